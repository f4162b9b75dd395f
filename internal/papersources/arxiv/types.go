package arxiv

import "encoding/xml"

// The arXiv API speaks Atom with OpenSearch extensions. Only the elements
// the client reads are mapped here.

type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	StartIndex   int         `xml:"startIndex"`
	ItemsPerPage int         `xml:"itemsPerPage"`
	Entries      []atomEntry `xml:"entry"`
}

// atomEntry is one paper record. ID carries the abs URL
// ("http://arxiv.org/abs/2301.12345v1"), Summary the abstract, and
// Published an RFC 3339 timestamp.
type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	Categories      []atomCategory `xml:"category"`
	Links           []atomLink     `xml:"link"`
	DOI             string         `xml:"doi"`
	JournalRef      string         `xml:"journal_ref"`
	Comment         string         `xml:"comment"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
}

type atomAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

// atomCategory holds a subject class such as "cs.LG" in its term attribute.
type atomCategory struct {
	Term string `xml:"term,attr"`
}

// atomLink distinguishes the abstract page from the PDF via its title and
// type attributes.
type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
