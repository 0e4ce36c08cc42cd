package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// backlog is an in-memory stand-in for the message queue: a per-user
// counter of unprocessed messages with an atomic claim-all operation.
type backlog struct {
	mu      sync.Mutex
	pending map[string]int
}

func newBacklog() *backlog {
	return &backlog{pending: make(map[string]int)}
}

func (b *backlog) add(userID string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[userID] += n
}

func (b *backlog) claimAll(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.pending[userID]
	b.pending[userID] = 0
	return n
}

func (b *backlog) CountUnprocessed(_ context.Context, userID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[userID], nil
}

// fakeProcessor claims everything from the backlog and replies with a
// per-claim summary. Hooks let tests inject mid-pass behavior.
type fakeProcessor struct {
	backlog   *backlog
	active    atomic.Int32
	maxActive atomic.Int32
	claimed   atomic.Int64
	passes    atomic.Int64

	// afterClaim runs after the claim but before the pass completes,
	// i.e. inside the window where the in-flight flag is still set.
	afterClaim func(userID string, pass int64)

	err error
}

func (p *fakeProcessor) Process(_ context.Context, userID string) (string, error) {
	cur := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		old := p.maxActive.Load()
		if cur <= old || p.maxActive.CompareAndSwap(old, cur) {
			break
		}
	}

	pass := p.passes.Add(1)
	n := p.backlog.claimAll(userID)
	p.claimed.Add(int64(n))

	if p.afterClaim != nil {
		p.afterClaim(userID, pass)
	}
	if p.err != nil {
		return "", p.err
	}
	if n == 0 {
		return "", nil
	}
	return fmt.Sprintf("processed %d", n), nil
}

type fakeDeliverer struct {
	mu       sync.Mutex
	messages []string
}

func (d *fakeDeliverer) Deliver(_ context.Context, _, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, text)
	return nil
}

func (d *fakeDeliverer) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.messages...)
}

// settle waits until the scheduler has no pass in flight for the user and
// the backlog is empty, or the deadline expires.
func settle(t *testing.T, s *Scheduler, b *backlog, userID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, _ := b.CountUnprocessed(context.Background(), userID)
		if n == 0 && !s.InFlight(userID) {
			// One more grace beat: a chained pass may be between the
			// recheck and the reclaim.
			time.Sleep(10 * time.Millisecond)
			n, _ = b.CountUnprocessed(context.Background(), userID)
			if n == 0 && !s.InFlight(userID) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("scheduler did not settle for user %s", userID)
}

func TestScheduler_SingleFlight(t *testing.T) {
	b := newBacklog()
	p := &fakeProcessor{backlog: b}
	d := &fakeDeliverer{}
	s := New(b, p, d, 0)
	defer s.Close()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.add("u1", 1)
			s.OnMessage("u1")
		}()
	}
	wg.Wait()
	settle(t, s, b, "u1")

	if m := p.maxActive.Load(); m > 1 {
		t.Errorf("max concurrent passes = %d, want <= 1", m)
	}
	if c := p.claimed.Load(); c != n {
		t.Errorf("claimed = %d messages, want %d", c, n)
	}
}

func TestScheduler_NoStarvation(t *testing.T) {
	b := newBacklog()
	p := &fakeProcessor{backlog: b}
	d := &fakeDeliverer{}
	s := New(b, p, d, 0)
	defer s.Close()

	// Messages arriving while a pass is active must all be claimed by
	// chained passes without further OnMessage calls.
	var injected atomic.Bool
	p.afterClaim = func(userID string, pass int64) {
		if injected.CompareAndSwap(false, true) {
			b.add(userID, 5)
		}
	}

	b.add("u1", 1)
	s.OnMessage("u1")
	settle(t, s, b, "u1")

	if c := p.claimed.Load(); c != 6 {
		t.Errorf("claimed = %d messages, want 6", c)
	}
	if n, _ := b.CountUnprocessed(context.Background(), "u1"); n != 0 {
		t.Errorf("unprocessed = %d after settle, want 0", n)
	}
}

func TestScheduler_IdleTerminal(t *testing.T) {
	b := newBacklog()
	p := &fakeProcessor{backlog: b}
	d := &fakeDeliverer{}
	s := New(b, p, d, 0)
	defer s.Close()

	b.add("u1", 1)
	s.OnMessage("u1")
	settle(t, s, b, "u1")
	s.Wait()

	if s.InFlight("u1") {
		t.Error("user still in flight after pass completed")
	}
	msgs := d.all()
	if len(msgs) != 1 {
		t.Fatalf("deliveries = %d, want 1 (%v)", len(msgs), msgs)
	}
	if msgs[0] != "processed 1" {
		t.Errorf("delivered %q, want %q", msgs[0], "processed 1")
	}
}

func TestScheduler_RaceWindow(t *testing.T) {
	b := newBacklog()
	p := &fakeProcessor{backlog: b}
	d := &fakeDeliverer{}
	s := New(b, p, d, 0)
	defer s.Close()

	// Message B lands after the first pass's claim but before the
	// in-flight flag clears. It must be picked up by a chained pass.
	p.afterClaim = func(userID string, pass int64) {
		if pass == 1 {
			b.add(userID, 1)
			s.OnMessage(userID) // no-op: user is still in flight
		}
	}

	b.add("u1", 1)
	s.OnMessage("u1")
	settle(t, s, b, "u1")

	if n, _ := b.CountUnprocessed(context.Background(), "u1"); n != 0 {
		t.Errorf("unprocessed = %d after settle, want 0", n)
	}
	if c := p.claimed.Load(); c != 2 {
		t.Errorf("claimed = %d messages, want 2", c)
	}
	if passes := p.passes.Load(); passes < 2 {
		t.Errorf("passes = %d, want >= 2", passes)
	}
}

func TestScheduler_ProcessorErrorClearsInFlight(t *testing.T) {
	b := newBacklog()
	p := &fakeProcessor{backlog: b, err: errors.New("model unavailable")}
	d := &fakeDeliverer{}
	s := New(b, p, d, 0)
	defer s.Close()

	b.add("u1", 1)
	s.OnMessage("u1")
	s.Wait()

	if s.InFlight("u1") {
		t.Error("user stuck in flight after processor error")
	}
	if len(d.all()) != 0 {
		t.Error("failed pass must not deliver anything")
	}

	// A later message still triggers a fresh pass.
	p.err = nil
	b.add("u1", 1)
	s.OnMessage("u1")
	settle(t, s, b, "u1")

	if len(d.all()) != 1 {
		t.Errorf("deliveries = %d after recovery, want 1", len(d.all()))
	}
}

func TestScheduler_UsersRunIndependently(t *testing.T) {
	b := newBacklog()
	p := &fakeProcessor{backlog: b}
	d := &fakeDeliverer{}
	s := New(b, p, d, 0)
	defer s.Close()

	// A slow pass for u1 must not block u2.
	release := make(chan struct{})
	p.afterClaim = func(userID string, _ int64) {
		if userID == "u1" {
			<-release
		}
	}

	b.add("u1", 1)
	s.OnMessage("u1")

	b.add("u2", 1)
	s.OnMessage("u2")

	deadline := time.After(2 * time.Second)
	for {
		if n, _ := b.CountUnprocessed(context.Background(), "u2"); n == 0 && !s.InFlight("u2") {
			break
		}
		select {
		case <-deadline:
			close(release)
			t.Fatal("pass for u2 blocked behind u1")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	close(release)
	settle(t, s, b, "u1")
}

func TestScheduler_DebounceBatchesBurst(t *testing.T) {
	b := newBacklog()
	p := &fakeProcessor{backlog: b}
	d := &fakeDeliverer{}
	s := New(b, p, d, 50*time.Millisecond)
	defer s.Close()

	// Messages arriving inside the wait window land in the same claim.
	b.add("u1", 1)
	s.OnMessage("u1")
	for i := 0; i < 4; i++ {
		time.Sleep(5 * time.Millisecond)
		b.add("u1", 1)
		s.OnMessage("u1")
	}
	settle(t, s, b, "u1")

	if passes := p.passes.Load(); passes != 1 {
		t.Errorf("passes = %d, want 1 (burst should collapse)", passes)
	}
	if c := p.claimed.Load(); c != 5 {
		t.Errorf("claimed = %d messages, want 5", c)
	}
}
