package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// Worker sizing defaults. The review pipeline is activity-heavy (LLM and
// arXiv calls dominate), so activity slots outnumber workflow task slots.
const (
	defaultActivitySlots = 100
	defaultWorkflowSlots = 50
	defaultActivityPolls = 4
	defaultWorkflowPolls = 2
)

// WorkerConfig sizes a Temporal worker. Zero fields fall back to defaults.
type WorkerConfig struct {
	// TaskQueue is the queue this worker polls. Required.
	TaskQueue string

	// MaxConcurrentActivityExecutionSize caps in-flight activities.
	MaxConcurrentActivityExecutionSize int

	// MaxConcurrentWorkflowTaskExecutionSize caps in-flight workflow tasks.
	MaxConcurrentWorkflowTaskExecutionSize int

	// MaxConcurrentActivityTaskPollers sets the activity poller count.
	MaxConcurrentActivityTaskPollers int

	// MaxConcurrentWorkflowTaskPollers sets the workflow poller count.
	MaxConcurrentWorkflowTaskPollers int
}

// DefaultWorkerConfig returns the standard sizing for a task queue.
func DefaultWorkerConfig(taskQueue string) WorkerConfig {
	return WorkerConfig{
		TaskQueue:                              taskQueue,
		MaxConcurrentActivityExecutionSize:     defaultActivitySlots,
		MaxConcurrentWorkflowTaskExecutionSize: defaultWorkflowSlots,
		MaxConcurrentActivityTaskPollers:       defaultActivityPolls,
		MaxConcurrentWorkflowTaskPollers:       defaultWorkflowPolls,
	}
}

func workerOptionsFromConfig(config WorkerConfig) worker.Options {
	options := worker.Options{
		MaxConcurrentActivityExecutionSize:     config.MaxConcurrentActivityExecutionSize,
		MaxConcurrentWorkflowTaskExecutionSize: config.MaxConcurrentWorkflowTaskExecutionSize,
		MaxConcurrentActivityTaskPollers:       config.MaxConcurrentActivityTaskPollers,
		MaxConcurrentWorkflowTaskPollers:       config.MaxConcurrentWorkflowTaskPollers,
	}

	if options.MaxConcurrentActivityExecutionSize == 0 {
		options.MaxConcurrentActivityExecutionSize = defaultActivitySlots
	}
	if options.MaxConcurrentWorkflowTaskExecutionSize == 0 {
		options.MaxConcurrentWorkflowTaskExecutionSize = defaultWorkflowSlots
	}
	if options.MaxConcurrentActivityTaskPollers == 0 {
		options.MaxConcurrentActivityTaskPollers = defaultActivityPolls
	}
	if options.MaxConcurrentWorkflowTaskPollers == 0 {
		options.MaxConcurrentWorkflowTaskPollers = defaultWorkflowPolls
	}

	return options
}

// WorkerManager owns one Temporal worker and what is registered on it.
type WorkerManager struct {
	worker    worker.Worker
	taskQueue string
}

// NewWorkerManager builds a worker on the client and wraps it.
func NewWorkerManager(c client.Client, config WorkerConfig) (*WorkerManager, error) {
	w, err := NewWorker(c, config)
	if err != nil {
		return nil, err
	}

	return &WorkerManager{
		worker:    w,
		taskQueue: config.TaskQueue,
	}, nil
}

// RegisterWorkflow registers a workflow function.
func (m *WorkerManager) RegisterWorkflow(workflow interface{}) {
	m.worker.RegisterWorkflow(workflow)
}

// RegisterActivity registers an activity function or struct.
func (m *WorkerManager) RegisterActivity(activity interface{}) {
	m.worker.RegisterActivity(activity)
}

// Worker exposes the wrapped Temporal worker.
func (m *WorkerManager) Worker() worker.Worker {
	return m.worker
}

// TaskQueue returns the queue this worker polls.
func (m *WorkerManager) TaskQueue() string {
	return m.taskQueue
}

// Start runs the worker until ctx is cancelled or the worker fails.
func (m *WorkerManager) Start(ctx context.Context) error {
	return StartWorker(ctx, m.worker)
}

// Stop shuts the worker down gracefully.
func (m *WorkerManager) Stop() {
	m.worker.Stop()
}

// NewWorker builds a bare Temporal worker without the manager wrapper.
func NewWorker(c client.Client, config WorkerConfig) (worker.Worker, error) {
	if config.TaskQueue == "" {
		return nil, fmt.Errorf("task queue is required")
	}
	return worker.New(c, config.TaskQueue, workerOptionsFromConfig(config)), nil
}

// StartWorker runs w until ctx ends or the worker stops on its own. SIGINT
// and SIGTERM also stop it through the SDK's interrupt channel.
func StartWorker(ctx context.Context, w worker.Worker) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(worker.InterruptCh())
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
