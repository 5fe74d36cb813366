package web

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// JobSource is the consumer side of the job queue.
type JobSource interface {
	Receive(ctx context.Context) ([]ReceivedJob, error)
	Ack(ctx context.Context, receipt string) error
}

var _ JobSource = (*SQSJobQueue)(nil)

// Worker publishes queued SaveJobs. Undecodable messages and jobs whose video is
// gone are acked and dropped; any other failure is left for redelivery.
type Worker struct {
	Jobs       JobSource
	Publisher  *Publisher
	RetryDelay time.Duration
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	delay := w.RetryDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	for ctx.Err() == nil {
		jobs, err := w.Jobs.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Error("receive message error", "error", err)
			sleep(ctx, delay)
			continue
		}
		for _, rj := range jobs {
			w.Handle(ctx, rj)
		}
	}
}

// Handle processes one delivery and reports whether it was acked.
func (w *Worker) Handle(ctx context.Context, rj ReceivedJob) bool {
	if rj.Job == nil {
		slog.Error("dropping undecodable message", "error", rj.Err)
		// delete message to avoid poison
		return w.ack(ctx, slog.Default(), rj.Receipt)
	}

	// child logger so every line carries the job's identity
	jobLog := slog.With("id", rj.Job.ID, "video_key", rj.Job.VideoKey)
	jobLog.Info("processing job")

	if _, err := w.Publisher.Publish(ctx, *rj.Job); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			jobLog.Error("dropping job for missing video", "error", err)
			return w.ack(ctx, jobLog, rj.Receipt)
		}
		// leave the message for redelivery
		jobLog.Error("publish failed", "error", err)
		return false
	}

	if !w.ack(ctx, jobLog, rj.Receipt) {
		return false
	}
	jobLog.Info("job completed")
	return true
}

func (w *Worker) ack(ctx context.Context, log *slog.Logger, receipt string) bool {
	if err := w.Jobs.Ack(ctx, receipt); err != nil {
		log.Error("failed to ack message", "error", err)
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
