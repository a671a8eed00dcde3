// Package session orchestrates prediction requests for one editing session:
// it owns the passenger model and the request state, and applies network
// completions in submission order.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/survival-check/internal/logging"
	"github.com/example/survival-check/internal/passenger"
	"github.com/example/survival-check/internal/scorer"
)

//go:generate mockgen -destination=mock_predictor_test.go -package=session . Predictor

// Predictor performs one prediction exchange.
type Predictor interface {
	Predict(ctx context.Context, in passenger.Input) (scorer.Result, error)
}

// Policy decides what a submit does while another one is in flight.
type Policy string

const (
	// PolicySupersede issues the new request; the older completion is dropped.
	PolicySupersede Policy = "supersede"
	// PolicyIgnore rejects the submit with ErrSubmitInFlight.
	PolicyIgnore Policy = "ignore"
)

// ParsePolicy validates a policy name. Empty means supersede.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicySupersede:
		return PolicySupersede, nil
	case PolicyIgnore:
		return PolicyIgnore, nil
	}
	return "", fmt.Errorf("unknown submit policy %q", name)
}

var (
	// ErrSubmitInFlight is returned by Submit under PolicyIgnore.
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	// ErrClosed is returned once the session is closed.
	ErrClosed = errors.New("session closed")
)

// Observer receives every change to a session. It is called with the
// session lock held and must not call back into the session.
type Observer func(Snapshot)

// Options configure a Session.
type Options struct {
	Policy Policy
	// Strict validates the input before any network call.
	Strict    bool
	Observers []Observer
	Logger    *zap.Logger
}

// Session is safe for concurrent use.
type Session struct {
	id        string
	predictor Predictor
	policy    Policy
	strict    bool
	observers []Observer
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	model   *passenger.Model
	state   State
	seq     uint64
	pending map[uint64]chan struct{}
	closed  bool
}

// New starts an idle session with the default passenger.
func New(predictor Predictor, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicySupersede
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		id:        id,
		predictor: predictor,
		policy:    policy,
		strict:    opts.Strict,
		observers: opts.Observers,
		logger:    logger.Named("session").With(zap.String("session_id", id)),
		ctx:       ctx,
		cancel:    cancel,
		model:     passenger.NewModel(),
		state:     Idle(),
		pending:   make(map[uint64]chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetField edits one passenger attribute. It returns ErrClosed once the
// session is closed.
func (s *Session) SetField(name, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.model.SetField(name, raw); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Snapshot returns the current input and state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// State returns the current request state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit starts a prediction for the current input and returns its
// sequence number. The prior result or error is cleared immediately.
func (s *Session) Submit() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.policy == PolicyIgnore && s.state.Phase == PhaseSubmitting {
		return 0, ErrSubmitInFlight
	}

	in := s.model.Snapshot()
	s.seq++
	seq := s.seq
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(s.logger, "session.submit", requestID)

	s.state = submitting(seq, requestID)
	s.notify()

	if s.strict {
		if err := in.Validate(); err != nil {
			opLogger.Info("submission rejected by validation", zap.Uint64("seq", seq), zap.Error(err))
			s.state = failed(seq, requestID, FailureFrom(err))
			s.notify()
			return seq, nil
		}
	}

	done := make(chan struct{})
	s.pending[seq] = done
	opLogger.Debug("submission started", zap.Uint64("seq", seq))

	ctx := logging.ContextWithRequestID(s.ctx, requestID)
	go func() {
		res, err := s.predictor.Predict(ctx, in)
		s.complete(seq, requestID, res, err)
	}()
	return seq, nil
}

func (s *Session) complete(seq uint64, requestID string, res scorer.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if done, ok := s.pending[seq]; ok {
		delete(s.pending, seq)
		defer close(done)
	}

	opLogger := logging.WithOperation(s.logger, "session.complete", requestID)
	if seq != s.seq || s.closed {
		opLogger.Debug("stale completion ignored", zap.Uint64("seq", seq), zap.Uint64("latest", s.seq))
		return
	}

	if err != nil {
		f := FailureFrom(err)
		opLogger.Info("submission failed", zap.Uint64("seq", seq), zap.String("kind", string(f.Kind)), zap.String("message", f.Message))
		s.state = failed(seq, requestID, f)
	} else {
		opLogger.Info("submission succeeded", zap.Uint64("seq", seq), zap.Int("prediction", res.Prediction))
		s.state = succeeded(seq, requestID, res)
	}
	s.notify()
}

// Wait blocks until submission seq has completed, whether applied or
// superseded, and returns the state at that point.
func (s *Session) Wait(ctx context.Context, seq uint64) (State, error) {
	s.mu.Lock()
	done, ok := s.pending[seq]
	s.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return s.State(), ctx.Err()
		}
	}
	return s.State(), nil
}

// Close abandons in-flight requests and rejects further edits and
// submissions.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{ID: s.id, Input: s.model.Snapshot(), State: s.state}
}

// notify runs under s.mu so observers see transitions in order. Observers
// must not block; Mirror.Observe only queues the snapshot.
func (s *Session) notify() {
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshot()
	for _, observe := range s.observers {
		observe(snap)
	}
}
