// Package scheduler serializes reply generation per user. Each user has at
// most one processing pass running at any time; a pass claims every
// unprocessed message for that user in one batch, so bursts collapse into
// a single reply instead of one reply per message.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Queue exposes the backlog count the scheduler needs for the post-pass
// recheck. Enqueueing happens at the channel layer before OnMessage.
type Queue interface {
	CountUnprocessed(ctx context.Context, userID string) (int, error)
}

// Processor claims all currently unprocessed messages for a user and
// returns the combined reply, or "" when no reply is warranted.
type Processor interface {
	Process(ctx context.Context, userID string) (string, error)
}

// Deliverer sends a reply to a user, splitting it when necessary.
type Deliverer interface {
	Deliver(ctx context.Context, userID, text string) error
}

// Scheduler tracks which users have a pass in flight and spawns passes.
type Scheduler struct {
	queue     Queue
	processor Processor
	deliverer Deliverer

	// wait is the debounce window a pass sleeps before claiming, letting
	// a burst of rapid messages land in the same batch.
	wait time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. wait is the pre-claim debounce window; pass 0
// to claim immediately.
func New(queue Queue, processor Processor, deliverer Deliverer, wait time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queue:     queue,
		processor: processor,
		deliverer: deliverer,
		wait:      wait,
		inflight:  make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnMessage notifies the scheduler that a message for userID has been
// enqueued. If no pass is in flight for the user, one is spawned; an
// already running pass will pick the message up, because claiming is
// always "all currently unprocessed".
func (s *Scheduler) OnMessage(userID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, busy := s.inflight[userID]; busy {
		s.mu.Unlock()
		return
	}
	s.inflight[userID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runPasses(userID)
}

// runPasses executes passes for userID until the backlog drains. The loop
// replaces self-relaunch recursion: each iteration is one pass.
func (s *Scheduler) runPasses(userID string) {
	defer s.wg.Done()

	for {
		s.runPass(userID)

		// Clear the in-flight flag before rechecking the backlog. A
		// message arriving inside this window sees the user as idle and
		// takes OnMessage's own spawn path, so it cannot be missed by
		// both paths.
		s.mu.Lock()
		delete(s.inflight, userID)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		pending, err := s.queue.CountUnprocessed(s.ctx, userID)
		if err != nil {
			slog.Error("backlog recheck failed", "user_id", userID, "error", err)
			return
		}
		if pending == 0 {
			return
		}

		// Backlog remains: reclaim in-flight status, unless a racing
		// OnMessage already spawned a fresh pass for this user.
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if _, busy := s.inflight[userID]; busy {
			s.mu.Unlock()
			return
		}
		s.inflight[userID] = struct{}{}
		s.mu.Unlock()

		slog.Debug("backlog remains, chaining pass", "user_id", userID, "pending", pending)
	}
}

// runPass executes a single claim-and-reply cycle. Processing errors end
// the pass without retry; the backlog recheck in runPasses gives the
// stranded messages a fresh attempt on the next inbound message.
func (s *Scheduler) runPass(userID string) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-s.ctx.Done():
			return
		}
	}

	reply, err := s.processor.Process(s.ctx, userID)
	if err != nil {
		slog.Error("processing pass failed", "user_id", userID, "error", err)
		return
	}
	if reply == "" {
		return
	}

	if err := s.deliverer.Deliver(s.ctx, userID, reply); err != nil {
		slog.Error("reply delivery incomplete", "user_id", userID, "error", err)
	}
}

// InFlight reports whether a pass is currently active for userID.
func (s *Scheduler) InFlight(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inflight[userID]
	return busy
}

// Close stops spawning new passes and waits for in-flight passes to
// finish. Pending backlogs are left in the queue for the next start.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every in-flight pass has finished. Intended for tests
// that need the scheduler to reach a quiescent state.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
