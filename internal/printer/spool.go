package printer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"billdesk/terminal/internal/xid"
)

const (
	TaskPrintReceipt = "receipt:print"
	QueuePrint       = "print"
)

// Job is one receipt or drawer command headed for the printer.
type Job struct {
	ID             string `json:"id"`
	DocumentNumber string `json:"document_number,omitempty"`
	Data           []byte `json:"data"`
}

// Spooler accepts print jobs. Submit returns once the job is printed
// (direct) or durably queued (asynq).
type Spooler interface {
	Submit(ctx context.Context, job Job) (string, error)
	Close() error
}

type DirectSpooler struct {
	printer Printer
}

func NewDirectSpooler(p Printer) *DirectSpooler {
	return &DirectSpooler{printer: p}
}

func (s *DirectSpooler) Submit(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = xid.New("prn")
	}
	if err := s.printer.Print(ctx, job.Data); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (s *DirectSpooler) Close() error {
	return s.printer.Close()
}

// AsynqSpooler queues jobs in Redis so a busy or offline printer does not
// block the counter. A Worker drains the queue.
type AsynqSpooler struct {
	client *asynq.Client
}

func NewAsynqSpooler(opts asynq.RedisClientOpt) *AsynqSpooler {
	return &AsynqSpooler{client: asynq.NewClient(opts)}
}

func NewPrintTask(job Job) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPrintReceipt, payload, asynq.MaxRetry(5), asynq.Queue(QueuePrint)), nil
}

func (s *AsynqSpooler) Submit(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = xid.New("prn")
	}
	task, err := NewPrintTask(job)
	if err != nil {
		return "", err
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.TaskID(job.ID)); err != nil {
		return "", fmt.Errorf("enqueue print job: %w", err)
	}
	return job.ID, nil
}

func (s *AsynqSpooler) Close() error {
	return s.client.Close()
}

// HandlePrintTask returns the asynq handler that sends queued jobs to p.
func HandlePrintTask(p Printer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var job Job
		if err := json.Unmarshal(task.Payload(), &job); err != nil {
			return fmt.Errorf("decode print job: %v: %w", err, asynq.SkipRetry)
		}
		if err := p.Print(ctx, job.Data); err != nil {
			logger.Warn("print job failed", "job", job.ID, "document", job.DocumentNumber, "error", err)
			return err
		}
		logger.Info("print job done", "job", job.ID, "document", job.DocumentNumber, "bytes", len(job.Data))
		return nil
	}
}

// Worker drains the print queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(opts asynq.RedisClientOpt, p Printer, logger *slog.Logger) *Worker {
	srv := asynq.NewServer(opts, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{QueuePrint: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPrintReceipt, HandlePrintTask(p, logger))
	return &Worker{server: srv, mux: mux}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
