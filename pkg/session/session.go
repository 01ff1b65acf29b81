// Package session holds the state of one interactive analysis: the staged
// image, the current view state, and the latest result or error.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/menta2k/calorie-analyzer/pkg/types"
)

// TopicStateChanged is published with a Snapshot after every transition
const TopicStateChanged = "session:state"

// ErrSuperseded is returned by Analyze when the session was reset or restaged
// while the analysis was in flight. The late result is discarded.
var ErrSuperseded = errors.New("analysis superseded by a newer session state")

// State is the single visible state of a session
type State int

const (
	Idle State = iota
	PreviewReady
	Loading
	ResultReady
	ErrorShown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PreviewReady:
		return "preview_ready"
	case Loading:
		return "loading"
	case ResultReady:
		return "result_ready"
	case ErrorShown:
		return "error_shown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Analyzer performs one analysis of a staged image
type Analyzer interface {
	Analyze(ctx context.Context, payload types.ImagePayload) (types.AnalysisResult, error)
}

// Snapshot is a consistent copy of the session. Payload is set from staging
// until reset; Result only in ResultReady; Err only in ErrorShown.
type Snapshot struct {
	State      State
	Generation uint64
	Payload    types.ImagePayload
	Result     *types.AnalysisResult
	Err        error
}

// Session is safe for concurrent use
type Session struct {
	analyzer Analyzer
	logger   *zap.Logger
	bus      EventBus.Bus
	group    singleflight.Group

	mu         sync.Mutex
	state      State
	generation uint64
	payload    types.ImagePayload
	result     *types.AnalysisResult
	err        error

	// keeps published snapshots in transition order
	notifyMu sync.Mutex
}

// New creates an idle session
func New(analyzer Analyzer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		analyzer: analyzer,
		logger:   logger,
		bus:      EventBus.New(),
	}
}

// Subscribe registers fn for every state change. Handlers run synchronously
// and must not call Stage, Analyze, Fail or Reset.
func (s *Session) Subscribe(fn func(Snapshot)) error {
	return s.bus.Subscribe(TopicStateChanged, fn)
}

// Unsubscribe removes a handler registered with Subscribe
func (s *Session) Unsubscribe(fn func(Snapshot)) error {
	return s.bus.Unsubscribe(TopicStateChanged, fn)
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Stage holds a new image and shows its preview. Any in-flight analysis
// becomes stale.
func (s *Session) Stage(payload types.ImagePayload) error {
	if payload.IsEmpty() {
		return &types.NoImageError{}
	}
	s.transition(func() {
		s.generation++
		s.payload = payload
		s.enter(PreviewReady)
	})
	return nil
}

// Fail shows err, for failures outside analysis such as a rejected upload.
// The staged image, if any, is kept.
func (s *Session) Fail(err error) {
	s.transition(func() {
		s.generation++
		s.err = err
		s.enter(ErrorShown)
	})
}

// Reset discards the image, result and error and returns to Idle
func (s *Session) Reset() {
	s.transition(func() {
		s.generation++
		s.payload = types.ImagePayload{}
		s.enter(Idle)
	})
}

// Analyze runs the analyzer on the staged image. Concurrent calls for the same
// staged image share one backend call. When the session is restaged or reset
// before the call returns, the outcome is discarded and ErrSuperseded returned.
func (s *Session) Analyze(ctx context.Context) (types.AnalysisResult, error) {
	s.mu.Lock()
	if s.payload.IsEmpty() {
		s.mu.Unlock()
		err := &types.NoImageError{}
		s.Fail(err)
		return types.AnalysisResult{}, err
	}
	gen := s.generation
	payload := s.payload
	s.mu.Unlock()

	s.transition(func() {
		if s.generation == gen {
			s.enter(Loading)
		}
	})

	v, err, shared := s.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return s.analyzer.Analyze(ctx, payload)
	})
	result, _ := v.(types.AnalysisResult)

	stale := false
	s.transition(func() {
		if s.generation != gen {
			stale = true
			return
		}
		if err != nil {
			s.err = err
			s.enter(ErrorShown)
			return
		}
		r := result
		s.result = &r
		s.enter(ResultReady)
	})

	if stale {
		s.logger.Debug("discarding stale analysis",
			zap.Uint64("generation", gen),
			zap.Bool("shared", shared))
		return types.AnalysisResult{}, ErrSuperseded
	}
	return result, err
}

// enter clears every other state's data before switching. Callers hold mu.
func (s *Session) enter(state State) {
	if state != ResultReady {
		s.result = nil
	}
	if state != ErrorShown {
		s.err = nil
	}
	s.state = state
}

// transition applies mutate under mu and publishes the resulting snapshot if
// the state or generation changed
func (s *Session) transition(mutate func()) {
	s.mu.Lock()
	state, gen := s.state, s.generation
	mutate()
	if state == s.state && gen == s.generation {
		s.mu.Unlock()
		return
	}
	after := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.logger.Debug("session state changed",
		zap.Stringer("from", state),
		zap.Stringer("to", after.State),
		zap.Uint64("generation", after.Generation))
	s.bus.Publish(TopicStateChanged, after)
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      s.state,
		Generation: s.generation,
		Payload:    s.payload,
		Err:        s.err,
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}
