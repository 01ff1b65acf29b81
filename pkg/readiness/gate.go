// Package readiness waits for a late-arriving API credential.
//
// Two mechanisms satisfy the same Waiter contract: Gate polls a
// CredentialSource at a fixed interval up to an attempt ceiling, and Signal is a
// once-resolved credential that the configuration loader completes. In both
// cases an unavailable credential is a false result, not an error.
package readiness

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PlaceholderCredential is the documented value shipped in sample configuration
const PlaceholderCredential = "YOUR_API_KEY_HERE"

const (
	DefaultInterval    = 100 * time.Millisecond
	DefaultMaxAttempts = 30
)

// CredentialSource supplies the current credential, empty when not yet known
type CredentialSource interface {
	Credential() string
}

// CredentialFunc adapts a function to CredentialSource
type CredentialFunc func() string

func (f CredentialFunc) Credential() string { return f() }

// StaticCredential is a credential known up front
type StaticCredential string

func (s StaticCredential) Credential() string { return string(s) }

// Waiter reports whether the credential became usable within its bound
type Waiter interface {
	Wait(ctx context.Context) bool
}

// IsUsable reports whether cred is non-empty and not the placeholder
func IsUsable(cred string) bool {
	cred = strings.TrimSpace(cred)
	return cred != "" && cred != PlaceholderCredential
}

// Config holds the polling bounds
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultConfig returns 30 checks 100ms apart
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts}
}

// Gate polls a CredentialSource until it yields a usable credential
type Gate struct {
	source CredentialSource
	config Config
	logger *zap.Logger
}

// New creates a gate with the default bounds
func New(source CredentialSource) *Gate {
	return NewWithConfig(source, DefaultConfig(), nil)
}

// NewWithConfig creates a gate with custom bounds
func NewWithConfig(source CredentialSource, config Config, logger *zap.Logger) *Gate {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{source: source, config: config, logger: logger}
}

// Wait checks the source immediately and then once per interval, at most
// MaxAttempts times in total. It returns false when attempts run out or ctx ends.
func (g *Gate) Wait(ctx context.Context) bool {
	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if IsUsable(g.source.Credential()) {
			g.logger.Debug("credential ready", zap.Int("attempt", attempt))
			return true
		}
		if attempt >= g.config.MaxAttempts {
			g.logger.Warn("credential not available",
				zap.Int("attempts", attempt),
				zap.Duration("interval", g.config.Interval))
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
