package dataset

import (
	"errors"
	"fmt"
)

// ErrTrainingData is the base error for malformed or insufficient training
// data. It is fatal to a training run.
var ErrTrainingData = errors.New("training data error")

// TrainingDataError describes what is wrong with a dataset.
type TrainingDataError struct {
	Op      string // e.g. "read", "train"
	Message string
	Err     error // underlying error (optional)
}

func (e *TrainingDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dataset.%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("dataset.%s: %s", e.Op, e.Message)
}

func (e *TrainingDataError) Unwrap() error {
	return e.Err
}

// Is matches ErrTrainingData as well as the wrapped error.
func (e *TrainingDataError) Is(target error) bool {
	return target == ErrTrainingData
}

// Errorf builds a TrainingDataError for op.
func Errorf(op, format string, args ...any) error {
	return &TrainingDataError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a TrainingDataError around err.
func Wrap(op, message string, err error) error {
	return &TrainingDataError{Op: op, Message: message, Err: err}
}
