package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Reason string

const (
	ReasonRateLimited   Reason = "rate_limited"
	ReasonAccessDenied  Reason = "access_denied"
	ReasonUnavailable   Reason = "unavailable"
	ReasonTimeout       Reason = "timeout"
	ReasonCanceled      Reason = "canceled"
	ReasonInvalidOutput Reason = "invalid_output"
)

var ErrInvalidOutput = errors.New("invalid_output")

// State is shared by the stages of one run. Later stages read what earlier ones wrote.
type State struct {
	Text        string
	Image       []byte
	ContentType string
	Outputs     map[string]string
}

func NewState() *State {
	return &State{Outputs: map[string]string{}}
}

func (s *State) clone() *State {
	out := &State{
		Text:        s.Text,
		Image:       s.Image,
		ContentType: s.ContentType,
		Outputs:     make(map[string]string, len(s.Outputs)),
	}
	for k, v := range s.Outputs {
		out.Outputs[k] = v
	}
	return out
}

// StageFunc performs one gateway call, mutates st and returns the tokens consumed.
type StageFunc func(ctx context.Context, st *State) (int64, error)

type Stage struct {
	Name string
	// Timeout overrides the configured stage timeout when positive.
	Timeout time.Duration
	Run     StageFunc
}

type StageReport struct {
	Name     string        `json:"name"`
	Cost     int64         `json:"cost"`
	Duration time.Duration `json:"duration"`
}

type Result struct {
	Cost   int64
	State  *State
	Stages []StageReport
}

// StageError reports the first failing stage and the cost already consumed before it.
type StageError struct {
	Stage       string
	Index       int
	Reason      Reason
	AccruedCost int64
	Err         error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %d (%s) failed: %s: %v", e.Index, e.Stage, e.Reason, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AsStageError extracts a *StageError from err's chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
