package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"adstudio/internal/providers"
)

// State is the lifecycle phase of one generation session.
type State string

const (
	StateIdle         State = "idle"
	StateStrategizing State = "strategizing"
	StateScripting    State = "scripting"
	StateReady        State = "ready"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether no further pipeline work will happen.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateCancelled
}

// Session tracks one brief through the strategy and scripting stages and owns
// the cancellation scope for every chain invocation made on its behalf.
type Session struct {
	ID        string
	Brief     Brief
	CreatedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.RWMutex
	state         State
	transitions   []State
	strategy      *Strategy
	variations    []*Variation
	variationErrs []error
	err           error
}

func newSession(brief Brief) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:            uuid.NewString(),
		Brief:         brief,
		CreatedAt:     time.Now().UTC(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		state:         StateIdle,
		transitions:   []State{StateIdle},
		variations:    make([]*Variation, brief.VariationsCount),
		variationErrs: make([]error, brief.VariationsCount),
	}
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transitions returns every state the session has passed through, in order.
func (s *Session) Transitions() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]State, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Strategy returns the stage-1 output once available.
func (s *Session) Strategy() (*Strategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.strategy == nil {
		return nil, false
	}
	strategy := *s.strategy
	return &strategy, true
}

// Variations returns the successfully scripted variations. Failed slots are
// omitted; use VariationError for their diagnostics.
func (s *Session) Variations() []Variation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Variation
	for _, v := range s.variations {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Variation returns the scripted variation at index.
func (s *Session) Variation(index int) (*Variation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.variations) || s.variations[index] == nil {
		return nil, false
	}
	v := *s.variations[index]
	return &v, true
}

// VariationError returns the failure recorded for a variation slot, if any.
func (s *Session) VariationError(index int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.variationErrs) {
		return nil
	}
	return s.variationErrs[index]
}

// Err returns the session-fatal error for Failed or Cancelled sessions.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed once the strategy and scripting stages have finished, in any
// terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = state
	s.transitions = append(s.transitions, state)
}

func (s *Session) setStrategy(strategy *Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = strategy
}

func (s *Session) setVariation(index int, v *Variation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variations[index] = v
	s.variationErrs[index] = nil
}

func (s *Session) setVariationError(index int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variationErrs[index] = err
}

// fail records a terminal error, distinguishing cancellation from failure.
func (s *Session) fail(err error) {
	state := StateFailed
	if providers.KindOf(err) == providers.KindCancelled {
		state = StateCancelled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.err = err
	s.state = state
	s.transitions = append(s.transitions, state)
}
