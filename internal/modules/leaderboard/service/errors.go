package service

import (
	"errors"
	"fmt"
)

var ErrRunInProgress = errors.New("a leaderboard rebuild is already running")

// FatalJobError aborts a rebuild. Step names the phase that failed.
type FatalJobError struct {
	Step string
	Err  error
}

func (e *FatalJobError) Error() string {
	return fmt.Sprintf("leaderboard rebuild failed at %s: %v", e.Step, e.Err)
}

func (e *FatalJobError) Unwrap() error {
	return e.Err
}

func fatal(step string, err error) error {
	return &FatalJobError{Step: step, Err: err}
}
