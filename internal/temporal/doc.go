// Package temporal wraps the Temporal SDK for the review pipeline: client
// construction, workflow and activity registration, and worker lifecycle.
//
// A Client is created from ClientConfig and closed when the process shuts
// down:
//
//	client, err := temporal.NewClient(temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "litreview",
//	    TaskQueue: "litreview-tasks",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// ReviewWorkflowClient layers review-specific operations on top: it starts
// one workflow per request with a deterministic ID, so duplicate submissions
// surface as ErrWorkflowAlreadyStarted.
//
//	workflowID, runID, err := reviewClient.StartReviewWorkflow(ctx, temporal.ReviewWorkflowInput{
//	    RequestID: requestID,
//	    Topic:     topic,
//	    Config:    cfg,
//	}, workflows.LiteratureReviewWorkflow)
//
// The workflow itself runs five phases in order: craft the arXiv query from
// the topic, fetch candidates (overfetched past the requested count),
// down-select to exactly the requested count, review each selected paper,
// then assemble and persist the combined document. Activities are grouped by
// responsibility into agent, search, and persistence sets, registered on the
// worker in cmd/worker.
//
// SDK errors are translated into package sentinels; callers match with the
// Is* helpers rather than inspecting serviceerror types:
//
//	if temporal.IsWorkflowNotFound(err) {
//	    // workflow never existed or already completed
//	}
//
// The client is safe for concurrent use.
package temporal
