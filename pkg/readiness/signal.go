package readiness

import (
	"context"
	"sync"
	"time"
)

// Signal is a credential resolved exactly once, typically by the configuration
// loader. It implements CredentialSource, so a polling Gate can also watch it.
type Signal struct {
	once  sync.Once
	done  chan struct{}
	mu    sync.RWMutex
	value string
}

// NewSignal creates an unresolved signal
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Resolve sets the credential. Only the first call has an effect; it reports
// whether this call resolved the signal.
func (s *Signal) Resolve(cred string) bool {
	resolved := false
	s.once.Do(func() {
		s.mu.Lock()
		s.value = cred
		s.mu.Unlock()
		close(s.done)
		resolved = true
	})
	return resolved
}

// Credential returns the resolved value, or "" before resolution
func (s *Signal) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Await blocks until the signal is resolved, timeout elapses, or ctx ends.
// A resolved but unusable credential (empty or placeholder) yields false.
func (s *Signal) Await(ctx context.Context, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-s.done:
		return IsUsable(s.Credential())
	case <-ctx.Done():
		return false
	}
}

// Waiter adapts the signal to the Waiter contract with a bounded wait
func (s *Signal) Waiter(timeout time.Duration) Waiter {
	return signalWaiter{signal: s, timeout: timeout}
}

type signalWaiter struct {
	signal  *Signal
	timeout time.Duration
}

func (w signalWaiter) Wait(ctx context.Context) bool {
	return w.signal.Await(ctx, w.timeout)
}
