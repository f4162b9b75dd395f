package temporal

// CancelRequest is the payload carried by the cancel signal.
type CancelRequest struct {
	// Reason is an optional human-readable cancellation reason. It is
	// recorded as the review's error message.
	Reason string
}
