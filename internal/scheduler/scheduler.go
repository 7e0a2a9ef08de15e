package scheduler

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdemd/internal/engine"
)

// Handler processes one delivered task. Returning engine.ErrZombieTask is
// a normal outcome; any other error leaves the task leased for retry.
type Handler func(ctx context.Context, task engine.Task) error

// Scheduler pairs a Queue with a polling dispatcher. The poll interval
// bounds delivery slop on top of each task's own delay.
type Scheduler struct {
	queue    Queue
	handler  Handler
	clock    quartz.Clock
	logger   *log.Logger
	interval time.Duration
	lease    time.Duration
	maxTries int
}

// New creates a scheduler that dispatches due tasks to handler
func New(queue Queue, handler Handler, clock quartz.Clock, logger *log.Logger, interval time.Duration) *Scheduler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		queue:    queue,
		handler:  handler,
		clock:    clock,
		logger:   logger.WithPrefix("scheduler"),
		interval: interval,
		lease:    30 * time.Second,
		maxTries: 5,
	}
}

// Enqueue schedules a task after its delay. Must be called only after the
// transaction that minted the task's token has committed.
func (s *Scheduler) Enqueue(ctx context.Context, task engine.Task) error {
	dueAt := s.clock.Now().Add(task.Delay)
	return s.queue.Enqueue(ctx, task, dueAt)
}

// Run polls for due tasks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.TickerFunc(ctx, s.interval, func() error {
		s.dispatch(ctx)
		return nil
	}, "scheduler-poll")
	err := ticker.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Dispatch runs one poll cycle immediately. Exposed for tests driving a
// mock clock.
func (s *Scheduler) Dispatch(ctx context.Context) {
	s.dispatch(ctx)
}

func (s *Scheduler) dispatch(ctx context.Context) {
	deliveries, err := s.queue.Claim(ctx, s.clock.Now(), s.lease, 50)
	if err != nil {
		s.logger.Error("claim failed", "error", err)
		return
	}
	for _, d := range deliveries {
		err := s.handler(ctx, d.Task)
		switch {
		case err == nil || engine.IsZombie(err):
			if err := s.queue.Ack(ctx, d.ID); err != nil {
				s.logger.Error("ack failed", "id", d.ID, "error", err)
			}
		case d.Attempts >= s.maxTries:
			// Give up; the sweeper adjudicates anything that matters.
			s.logger.Error("dropping task after repeated failures",
				"kind", d.Task.Kind, "tableID", d.Task.TableID, "attempts", d.Attempts, "error", err)
			if err := s.queue.Ack(ctx, d.ID); err != nil {
				s.logger.Error("ack failed", "id", d.ID, "error", err)
			}
		default:
			s.logger.Warn("task failed, leaving for retry",
				"kind", d.Task.Kind, "tableID", d.Task.TableID, "attempts", d.Attempts, "error", err)
		}
	}
}
