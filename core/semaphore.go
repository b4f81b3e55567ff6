package core

import (
	"context"
	"sync"
	"time"
)

// semaphorePollInterval bounds how long a waiter sleeps between re-checks when
// no release wakes it.
const semaphorePollInterval = 50 * time.Millisecond

// Semaphore is a counting semaphore for managed tasks.
//
// Acquire never hands a permit to a particular waiter: a woken waiter re-checks
// the count and proceeds only if a permit is still there. Release wakes at most
// one arbitrary waiter, so there is no FIFO or fairness guarantee. There is no
// owner tracking either; any task may Release.
type Semaphore struct {
	mu      sync.Mutex
	count   int
	nextTok uint64
	waiters map[uint64]chan struct{}
}

// NewSemaphore creates a semaphore holding count permits.
func NewSemaphore(count int) *Semaphore {
	return &Semaphore{
		count:   count,
		waiters: make(map[uint64]chan struct{}),
	}
}

// NewMutex creates a semaphore with a single permit.
func NewMutex() *Semaphore {
	return NewSemaphore(1)
}

// CreateSemaphore creates a semaphore holding count permits.
func (rt *Runtime) CreateSemaphore(count int) *Semaphore { return NewSemaphore(count) }

// CreateMutex creates a semaphore with a single permit.
func (rt *Runtime) CreateMutex() *Semaphore { return NewMutex() }

// Acquire takes a permit, waiting until one is available, timeout elapses
// (timeout <= 0 waits indefinitely) or ctx is done. It returns whether a permit
// was taken.
func (s *Semaphore) Acquire(ctx context.Context, timeout time.Duration) bool {
	deadline, stop := deadlineChan(timeout)
	defer stop()

	for {
		s.mu.Lock()
		if s.count > 0 {
			s.count--
			s.mu.Unlock()
			return true
		}
		tok := s.nextTok
		s.nextTok++
		wake := make(chan struct{})
		s.waiters[tok] = wake
		s.mu.Unlock()

		poll := time.NewTimer(semaphorePollInterval)
		select {
		case <-wake:
		case <-poll.C:
		case <-deadline:
			poll.Stop()
			s.dropWaiter(tok)
			return false
		case <-ctx.Done():
			poll.Stop()
			s.dropWaiter(tok)
			return false
		}
		poll.Stop()
		s.dropWaiter(tok)
	}
}

// TryAcquire takes a permit if one is available without waiting.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
		return true
	}
	return false
}

// Release returns a permit and wakes at most one waiter.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	for tok, wake := range s.waiters {
		delete(s.waiters, tok)
		close(wake)
		break
	}
}

func (s *Semaphore) dropWaiter(tok uint64) {
	s.mu.Lock()
	delete(s.waiters, tok)
	s.mu.Unlock()
}

// Count returns the current number of permits.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Waiters returns the number of registered waiter tokens.
func (s *Semaphore) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}
