package readiness

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// countingSource returns "" until `after` checks have been made, then value
type countingSource struct {
	calls atomic.Int32
	after int32
	value string
}

func (s *countingSource) Credential() string {
	n := s.calls.Add(1)
	if s.after >= 0 && n > s.after {
		return s.value
	}
	return ""
}

func fastConfig() Config {
	return Config{Interval: time.Millisecond, MaxAttempts: DefaultMaxAttempts}
}

func TestIsUsable(t *testing.T) {
	assert.True(t, IsUsable("AIza-real-key"))
	assert.False(t, IsUsable(""))
	assert.False(t, IsUsable("   "))
	assert.False(t, IsUsable(PlaceholderCredential))
}

func TestGateImmediateSuccess(t *testing.T) {
	src := &countingSource{after: 0, value: "key"}
	g := NewWithConfig(src, Config{Interval: time.Hour, MaxAttempts: DefaultMaxAttempts}, nil)

	start := time.Now()
	assert.True(t, g.Wait(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestGateExhaustsAttempts(t *testing.T) {
	src := &countingSource{after: -1}
	g := NewWithConfig(src, fastConfig(), nil)

	assert.False(t, g.Wait(context.Background()))
	assert.Equal(t, int32(DefaultMaxAttempts), src.calls.Load())
}

func TestGateRejectsPlaceholderUntilExhausted(t *testing.T) {
	g := NewWithConfig(StaticCredential(PlaceholderCredential), Config{Interval: time.Millisecond, MaxAttempts: 3}, nil)
	assert.False(t, g.Wait(context.Background()))
}

func TestGateSucceedsMidPoll(t *testing.T) {
	src := &countingSource{after: 5, value: "late-key"}
	g := NewWithConfig(src, fastConfig(), nil)

	assert.True(t, g.Wait(context.Background()))
	assert.Equal(t, int32(6), src.calls.Load())
}

func TestGateTotalWaitBound(t *testing.T) {
	src := &countingSource{after: -1}
	g := NewWithConfig(src, Config{Interval: 10 * time.Millisecond, MaxAttempts: 5}, nil)

	start := time.Now()
	assert.False(t, g.Wait(context.Background()))
	elapsed := time.Since(start)

	// four waits between five checks
	assert.GreaterOrEqual(t, elapsed, 35*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestGateContextCancel(t *testing.T) {
	src := &countingSource{after: -1}
	g := NewWithConfig(src, Config{Interval: time.Hour, MaxAttempts: DefaultMaxAttempts}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, g.Wait(ctx))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestNewDefaults(t *testing.T) {
	g := New(StaticCredential("k"))
	assert.Equal(t, DefaultInterval, g.config.Interval)
	assert.Equal(t, DefaultMaxAttempts, g.config.MaxAttempts)

	g = NewWithConfig(CredentialFunc(func() string { return "" }), Config{}, nil)
	assert.Equal(t, DefaultConfig(), g.config)
}

func TestSignalResolveOnce(t *testing.T) {
	s := NewSignal()
	assert.Equal(t, "", s.Credential())

	assert.True(t, s.Resolve("first"))
	assert.False(t, s.Resolve("second"))
	assert.Equal(t, "first", s.Credential())

	// already resolved, so an unbounded wait returns at once
	assert.True(t, s.Await(context.Background(), 0))
}

func TestSignalAwait(t *testing.T) {
	s := NewSignal()
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.Resolve("late-key")
	}()
	assert.True(t, s.Waiter(time.Second).Wait(context.Background()))
}

func TestSignalAwaitTimeout(t *testing.T) {
	s := NewSignal()
	start := time.Now()
	assert.False(t, s.Await(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSignalResolvedWithPlaceholder(t *testing.T) {
	s := NewSignal()
	s.Resolve(PlaceholderCredential)
	assert.False(t, s.Await(context.Background(), time.Second))
}

func TestGateWatchesSignal(t *testing.T) {
	s := NewSignal()
	g := NewWithConfig(s, fastConfig(), nil)
	go func() {
		time.Sleep(3 * time.Millisecond)
		s.Resolve("key")
	}()
	assert.True(t, g.Wait(context.Background()))
}
