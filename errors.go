package gapgo

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTrainingData is returned when a fit is attempted with an empty
	// structure list.
	ErrNoTrainingData = errors.New("gapgo: no training structures")

	// ErrGradientsUnavailable is returned when a force fit is requested but
	// the feature matrix carries no gradient block.
	ErrGradientsUnavailable = errors.New("gapgo: feature matrix has no gradients")
)

// ErrNotKRRModel indicates a loaded record that is not a fitted KRR model.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrNotKRRModel struct {
	Got   string
	cause error
}

func (e *ErrNotKRRModel) Error() string {
	return fmt.Sprintf("gapgo: record holds %s, want a KRR model", e.Got)
}

func (e *ErrNotKRRModel) Unwrap() error { return e.cause }
