package session

import (
	"errors"

	"github.com/example/survival-check/internal/passenger"
	"github.com/example/survival-check/internal/scorer"
)

// Phase is the active variant of a State.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Failure is the reason a submission failed.
type Failure struct {
	Kind    scorer.Kind `json:"kind"`
	Message string      `json:"message"`
}

// State is the request lifecycle. Result is set only when succeeded and
// Failure only when failed.
type State struct {
	Phase     Phase          `json:"phase"`
	Seq       uint64         `json:"seq"`
	RequestID string         `json:"request_id,omitempty"`
	Result    *scorer.Result `json:"result,omitempty"`
	Failure   *Failure       `json:"failure,omitempty"`
}

// Idle is the initial state.
func Idle() State {
	return State{Phase: PhaseIdle}
}

func submitting(seq uint64, requestID string) State {
	return State{Phase: PhaseSubmitting, Seq: seq, RequestID: requestID}
}

func succeeded(seq uint64, requestID string, res scorer.Result) State {
	return State{Phase: PhaseSucceeded, Seq: seq, RequestID: requestID, Result: &res}
}

func failed(seq uint64, requestID string, f Failure) State {
	return State{Phase: PhaseFailed, Seq: seq, RequestID: requestID, Failure: &f}
}

// Resolved reports whether the state is terminal for its submission.
func (s State) Resolved() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}

// FailureFrom classifies err into a Failure.
func FailureFrom(err error) Failure {
	var se *scorer.Error
	if errors.As(err, &se) {
		return Failure{Kind: se.Kind, Message: se.Message}
	}
	var ve *passenger.ValidationError
	if errors.As(err, &ve) || errors.Is(err, passenger.ErrUnknownField) {
		return Failure{Kind: scorer.KindValidation, Message: err.Error()}
	}
	return Failure{Kind: scorer.KindTransport, Message: err.Error()}
}

// Snapshot is the caller-visible view of a session.
type Snapshot struct {
	ID    string          `json:"id"`
	Input passenger.Input `json:"input"`
	State State           `json:"state"`
}

// Outcome builds the resolved state of a one-off prediction that is not
// tracked by a Session.
func Outcome(requestID string, res scorer.Result, err error) State {
	if err != nil {
		return failed(0, requestID, FailureFrom(err))
	}
	return succeeded(0, requestID, res)
}
