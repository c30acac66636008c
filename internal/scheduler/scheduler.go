// Package scheduler fires configured cron-style jobs into the ingestion
// queue. Each due job enqueues its prompt with the scheduler source
// marker; replies can optionally be delivered to a channel.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/adjutant-ai/adjutant/internal/config"
	"github.com/adjutant-ai/adjutant/internal/queue"
	"github.com/adjutant-ai/adjutant/internal/routing"
)

// Submitter blocks until an enqueued message's turn completes.
// *queue.Ingestor satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req queue.Request) (string, error)
}

// Deliverer pushes a job's reply to a channel. *notify.Registry satisfies it.
type Deliverer interface {
	Notify(ctx context.Context, channel, recipient, text string)
}

// Scheduler evaluates job expressions once per minute.
type Scheduler struct {
	jobs    []config.ScheduledJob
	ingest  Submitter
	deliver Deliverer
	gron    *gronx.Gronx
}

func New(jobs []config.ScheduledJob, ingest Submitter, deliver Deliverer) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		ingest:  ingest,
		deliver: deliver,
		gron:    gronx.New(),
	}
}

// Start runs the evaluation loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.jobs) == 0 {
		return
	}
	slog.Info("scheduler started", "jobs", len(s.jobs))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now.Truncate(time.Minute))
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		due, err := s.gron.IsDue(job.Expr, now)
		if err != nil {
			slog.Warn("scheduler: bad cron expression", "job", job.Name, "expr", job.Expr, "error", err)
			continue
		}
		if !due {
			continue
		}
		slog.Info("scheduler: job due", "job", job.Name)
		go s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job config.ScheduledJob) {
	reply, err := s.ingest.Submit(ctx, queue.Request{
		Message: job.Message,
		Source:  routing.SourceCron,
	})
	if err != nil {
		slog.Warn("scheduler: job failed", "job", job.Name, "error", err)
		return
	}
	if reply != "" && job.Channel != "" && job.To != "" && s.deliver != nil {
		s.deliver.Notify(ctx, job.Channel, job.To, reply)
	}
}
