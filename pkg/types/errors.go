// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout is wrapped by any error caused by an external call exceeding
// its time bound.
var ErrTimeout = errors.New("timed out")

// IsTimeout reports whether err is or wraps ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// ValidationError rejects a claim before any retrieval happens. It is a
// client error and is never retried.
type ValidationError struct {
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions"`
}

func (e *ValidationError) Error() string {
	return "invalid claim: " + e.Reason
}

// Stage names a pipeline stage in errors and logs.
type Stage string

const (
	StageValidation Stage = "validation"
	StageRetrieval  Stage = "retrieval"
	StageScoring    Stage = "scoring"
	StageSynthesis  Stage = "synthesis"
)

// StageError reports a failed pipeline stage. Err carries the cause and
// may wrap ErrTimeout.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err for stage. A nil err returns nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage of the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// ContractError collects the problems found when model output fails its
// response contract (missing ids, out-of-range scores, absent sections).
type ContractError struct {
	Problems []string
}

func (e *ContractError) Error() string {
	return "response contract violated: " + strings.Join(e.Problems, "; ")
}
