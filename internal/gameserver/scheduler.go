// Package gameserver adapts the security core to a game server's session and
// tick machinery: a single-consumer scheduler standing in for the tick thread,
// a session registry, and the lifecycle hooks the server calls on join/quit.
package gameserver

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const taskQueueSize = 1024

// Scheduler serializes game-state mutations onto one goroutine, the way a game
// server serializes world access onto its tick thread. Tasks run in submission
// order; nothing outside that goroutine touches session state.
type Scheduler struct {
	logger *zap.Logger
	tasks  chan func()

	stopOnce sync.Once
	done     chan struct{}
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		tasks:  make(chan func(), taskQueueSize),
		done:   make(chan struct{}),
	}
}

// Start runs the consumer loop until ctx is cancelled or Stop is called.
// Queued tasks still present at shutdown are drained before returning.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		for {
			select {
			case task := <-s.tasks:
				s.run(task)
			case <-ctx.Done():
				s.drain()
				return
			}
		}
	}()
}

// Submit queues fn for execution on the scheduler goroutine. It never blocks;
// a full queue drops the task with a warning, matching how a saturated tick
// thread sheds work rather than deadlocking its callers.
func (s *Scheduler) Submit(fn func()) {
	select {
	case s.tasks <- fn:
	default:
		s.logger.Warn("scheduler queue full, task dropped",
			zap.Int("capacity", taskQueueSize))
	}
}

// ExecuteSync runs fn on the scheduler goroutine and waits for it, bounded by
// ctx. Used on paths that need an answer before proceeding, like the ban check
// on session start.
func (s *Scheduler) ExecuteSync(ctx context.Context, fn func()) error {
	doneCh := make(chan struct{})
	s.Submit(func() {
		defer close(doneCh)
		fn()
	})
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the consumer loop has exited.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

func (s *Scheduler) drain() {
	for {
		select {
		case task := <-s.tasks:
			s.run(task)
		default:
			return
		}
	}
}
