package temporal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/scribeworks/litreview-service/internal/domain"
)

// Signal and query names live here rather than in the workflows package so
// the server layer can reference them without importing workflow code.
const (
	// SignalCancel asks a running review to stop and record why.
	SignalCancel = "cancel"

	// QueryProgress reads a running review's progress snapshot.
	QueryProgress = "progress"
)

const (
	// DefaultWorkflowExecutionTimeout bounds a whole review run.
	DefaultWorkflowExecutionTimeout = 4 * time.Hour

	// DefaultHealthCheckTimeout bounds Temporal server health probes.
	DefaultHealthCheckTimeout = 5 * time.Second
)

// Sentinel errors for Temporal operations. wrapTemporalError maps SDK
// service errors onto these so callers can errors.Is without importing
// serviceerror.
var (
	ErrWorkflowNotFound       = errors.New("workflow not found")
	ErrWorkflowAlreadyStarted = errors.New("workflow already started")
	ErrQueryFailed            = errors.New("query failed")
	ErrClientClosed           = errors.New("client closed")
	ErrConnectionFailed       = errors.New("connection failed")
	ErrNamespaceNotFound      = errors.New("namespace not found")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrResourceExhausted      = errors.New("resource exhausted")
	ErrDeadlineExceeded       = errors.New("deadline exceeded")
)

// TemporalError carries the failed operation, the error category, and the
// workflow identity alongside the SDK error.
type TemporalError struct {
	Op         string
	Kind       error
	WorkflowID string
	RunID      string
	Err        error
}

func (e *TemporalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.WorkflowID != "" {
		msg += fmt.Sprintf(" [workflowID=%s", e.WorkflowID)
		if e.RunID != "" {
			msg += fmt.Sprintf(", runID=%s", e.RunID)
		}
		msg += "]"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *TemporalError) Unwrap() error { return e.Err }

// Is matches against the error's Kind, so errors.Is(err, ErrWorkflowNotFound)
// works through the wrapper.
func (e *TemporalError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrapTemporalError classifies an SDK error into a TemporalError.
func wrapTemporalError(op string, err error, workflowID, runID string) error {
	if err == nil {
		return nil
	}

	te := &TemporalError{
		Op:         op,
		WorkflowID: workflowID,
		RunID:      runID,
		Err:        err,
	}
	te.Kind = classify(err)
	return te
}

func classify(err error) error {
	var (
		notFound         *serviceerror.NotFound
		alreadyStarted   *serviceerror.WorkflowExecutionAlreadyStarted
		nsNotFound       *serviceerror.NamespaceNotFound
		permDenied       *serviceerror.PermissionDenied
		invalidArg       *serviceerror.InvalidArgument
		exhausted        *serviceerror.ResourceExhausted
		deadlineExceeded *serviceerror.DeadlineExceeded
		queryFailed      *serviceerror.QueryFailed
		unavailable      *serviceerror.Unavailable
	)

	switch {
	case errors.As(err, &notFound):
		return ErrWorkflowNotFound
	case errors.As(err, &alreadyStarted):
		return ErrWorkflowAlreadyStarted
	case errors.As(err, &nsNotFound):
		return ErrNamespaceNotFound
	case errors.As(err, &permDenied):
		return ErrPermissionDenied
	case errors.As(err, &invalidArg):
		return ErrInvalidArgument
	case errors.As(err, &exhausted):
		return ErrResourceExhausted
	case errors.As(err, &deadlineExceeded):
		return ErrDeadlineExceeded
	case errors.As(err, &queryFailed):
		return ErrQueryFailed
	case errors.As(err, &unavailable):
		return ErrConnectionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ErrClientClosed
	default:
		return ErrConnectionFailed
	}
}

// IsWorkflowNotFound reports whether err is a workflow-not-found error.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsWorkflowAlreadyStarted reports whether err is a duplicate-start error.
func IsWorkflowAlreadyStarted(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyStarted)
}

// IsQueryFailed reports whether err is a query failure.
func IsQueryFailed(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// TLSConfig describes mutual TLS toward the Temporal server.
type TLSConfig struct {
	Enabled bool

	// CertPath and KeyPath point at the client certificate pair (PEM).
	CertPath string
	KeyPath  string

	// CACertPath points at the CA bundle used to verify the server (PEM).
	CACertPath string

	// ServerName overrides the expected name on the server certificate.
	ServerName string

	// InsecureSkipVerify disables verification. Development only.
	InsecureSkipVerify bool
}

func (t *TLSConfig) buildTLSConfig() (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: t.InsecureSkipVerify,
		ServerName:         t.ServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if t.CertPath != "" && t.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(t.CertPath, t.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if t.CACertPath != "" {
		caCert, err := os.ReadFile(t.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// ClientConfig configures the Temporal connection.
type ClientConfig struct {
	// HostPort is the Temporal frontend address ("localhost:7233").
	HostPort string

	// Namespace scopes all workflow operations.
	Namespace string

	// TaskQueue is where started workflows are scheduled.
	TaskQueue string

	// TLS is optional transport security.
	TLS *TLSConfig

	// HealthCheckTimeout bounds Health calls; zero means the default.
	HealthCheckTimeout time.Duration
}

// NewClient dials the Temporal server.
func NewClient(cfg ClientConfig) (client.Client, error) {
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("configure TLS: %w", err)
		}
		options.ConnectionOptions = client.ConnectionOptions{TLS: tlsConfig}
	}

	c, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("create Temporal client: %w", err)
	}
	return c, nil
}

// ReviewWorkflowInput is the argument passed to the review workflow. It
// lives here rather than in workflows so the server layer can build it
// without importing workflow code.
type ReviewWorkflowInput struct {
	// RequestID identifies the review request this run serves.
	RequestID uuid.UUID

	// Topic is the research topic under review.
	Topic string

	// Config snapshots the review configuration at submission time.
	Config domain.ReviewConfiguration
}

// WorkflowIDForRequest returns the deterministic workflow ID for a review
// request. One workflow per request; restarts reuse the same ID.
func WorkflowIDForRequest(requestID uuid.UUID) string {
	return fmt.Sprintf("review-%s", requestID)
}

// ReviewWorkflowClient starts, signals, queries, and inspects review
// workflows over a shared Temporal connection.
type ReviewWorkflowClient struct {
	mu                 sync.RWMutex
	client             client.Client
	taskQueue          string
	healthCheckTimeout time.Duration
	closed             bool
}

// NewReviewWorkflowClient wraps an existing Temporal client.
func NewReviewWorkflowClient(c client.Client, taskQueue string) *ReviewWorkflowClient {
	return &ReviewWorkflowClient{
		client:             c,
		taskQueue:          taskQueue,
		healthCheckTimeout: DefaultHealthCheckTimeout,
	}
}

// NewReviewWorkflowClientWithConfig wraps an existing Temporal client using
// the timeouts and task queue from cfg.
func NewReviewWorkflowClientWithConfig(c client.Client, cfg ClientConfig) *ReviewWorkflowClient {
	healthTimeout := cfg.HealthCheckTimeout
	if healthTimeout == 0 {
		healthTimeout = DefaultHealthCheckTimeout
	}

	return &ReviewWorkflowClient{
		client:             c,
		taskQueue:          cfg.TaskQueue,
		healthCheckTimeout: healthTimeout,
	}
}

// Close shuts the underlying connection. Safe to call more than once.
func (c *ReviewWorkflowClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil && !c.closed {
		c.client.Close()
		c.closed = true
	}
}

func (c *ReviewWorkflowClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// guard returns a closed-client error for op, or nil when the client is
// usable.
func (c *ReviewWorkflowClient) guard(op, workflowID, runID string) error {
	if !c.isClosed() {
		return nil
	}
	return &TemporalError{
		Op:         op,
		Kind:       ErrClientClosed,
		WorkflowID: workflowID,
		RunID:      runID,
	}
}

// Health probes the Temporal server within the configured timeout.
func (c *ReviewWorkflowClient) Health(ctx context.Context) error {
	if err := c.guard("Health", "", ""); err != nil {
		return err
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.healthCheckTimeout)
	defer cancel()

	if _, err := c.client.CheckHealth(checkCtx, &client.CheckHealthRequest{}); err != nil {
		return wrapTemporalError("Health", err, "", "")
	}
	return nil
}

// StartReviewWorkflow launches a review run under the deterministic
// workflow ID for the request. The workflow function must be registered on
// a worker separately.
func (c *ReviewWorkflowClient) StartReviewWorkflow(ctx context.Context, input ReviewWorkflowInput, workflowFunc interface{}) (workflowID, runID string, err error) {
	workflowID = WorkflowIDForRequest(input.RequestID)
	if err := c.guard("StartReviewWorkflow", workflowID, ""); err != nil {
		return "", "", err
	}

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowExecutionTimeout: DefaultWorkflowExecutionTimeout,
	}

	run, err := c.client.ExecuteWorkflow(ctx, options, workflowFunc, input)
	if err != nil {
		return "", "", wrapTemporalError("StartReviewWorkflow", err, workflowID, "")
	}
	return workflowID, run.GetRunID(), nil
}

// CancelReview sends the cancel signal to a running review workflow.
// Unlike hard workflow cancellation this lets the workflow record the
// cancelled status and emit its final events before exiting.
func (c *ReviewWorkflowClient) CancelReview(ctx context.Context, workflowID, runID, reason string) error {
	return c.SignalWorkflow(ctx, workflowID, runID, SignalCancel, CancelRequest{Reason: reason})
}

// CancelWorkflow cancels a run through Temporal's own cancellation. Prefer
// CancelReview for user-initiated cancellation.
func (c *ReviewWorkflowClient) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	if err := c.guard("CancelWorkflow", workflowID, runID); err != nil {
		return err
	}

	if err := c.client.CancelWorkflow(ctx, workflowID, runID); err != nil {
		return wrapTemporalError("CancelWorkflow", err, workflowID, runID)
	}
	return nil
}

// GetWorkflowResult blocks until the run finishes and decodes its result.
func (c *ReviewWorkflowClient) GetWorkflowResult(ctx context.Context, workflowID, runID string, result interface{}) error {
	if err := c.guard("GetWorkflowResult", workflowID, runID); err != nil {
		return err
	}

	run := c.client.GetWorkflow(ctx, workflowID, runID)
	if err := run.Get(ctx, result); err != nil {
		return wrapTemporalError("GetWorkflowResult", err, workflowID, runID)
	}
	return nil
}

// WorkflowDescription summarizes one workflow execution.
type WorkflowDescription struct {
	WorkflowID string
	RunID      string
	Status     string
	StartTime  time.Time
	// CloseTime is nil while the run is still open.
	CloseTime *time.Time
}

// DescribeWorkflow fetches the execution summary for a run.
func (c *ReviewWorkflowClient) DescribeWorkflow(ctx context.Context, workflowID, runID string) (*WorkflowDescription, error) {
	if err := c.guard("DescribeWorkflow", workflowID, runID); err != nil {
		return nil, err
	}

	resp, err := c.client.DescribeWorkflowExecution(ctx, workflowID, runID)
	if err != nil {
		return nil, wrapTemporalError("DescribeWorkflow", err, workflowID, runID)
	}

	info := resp.WorkflowExecutionInfo
	desc := &WorkflowDescription{
		WorkflowID: workflowID,
		RunID:      info.Execution.RunId,
		Status:     info.Status.String(),
		StartTime:  info.StartTime.AsTime(),
	}
	if info.CloseTime != nil {
		closeTime := info.CloseTime.AsTime()
		desc.CloseTime = &closeTime
	}
	return desc, nil
}

// SignalWorkflow delivers a signal to a running workflow.
func (c *ReviewWorkflowClient) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	if err := c.guard("SignalWorkflow", workflowID, runID); err != nil {
		return err
	}

	if err := c.client.SignalWorkflow(ctx, workflowID, runID, signalName, arg); err != nil {
		return wrapTemporalError("SignalWorkflow", err, workflowID, runID)
	}
	return nil
}

// QueryWorkflow runs a query against a workflow and decodes the answer into
// result when it is non-nil.
func (c *ReviewWorkflowClient) QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, result interface{}, args ...interface{}) error {
	if err := c.guard("QueryWorkflow", workflowID, runID); err != nil {
		return err
	}

	resp, err := c.client.QueryWorkflow(ctx, workflowID, runID, queryType, args...)
	if err != nil {
		return wrapTemporalError("QueryWorkflow", err, workflowID, runID)
	}

	if result != nil {
		if err := resp.Get(result); err != nil {
			return &TemporalError{
				Op:         "QueryWorkflow",
				Kind:       ErrQueryFailed,
				WorkflowID: workflowID,
				RunID:      runID,
				Err:        fmt.Errorf("decode query result: %w", err),
			}
		}
	}
	return nil
}

// Client exposes the underlying Temporal client for operations the wrapper
// does not cover.
func (c *ReviewWorkflowClient) Client() client.Client {
	return c.client
}

// TaskQueue returns the task queue started workflows are scheduled on.
func (c *ReviewWorkflowClient) TaskQueue() string {
	return c.taskQueue
}
