package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// ErrRunInProgress is returned by Run when the orchestrator is already
// driving a run. One orchestrator drives one run at a time.
var ErrRunInProgress = errors.New("a run is already in progress")

// ComponentLoadError wraps whatever the loader returned for one component.
// It is attached to that component's report entry and never escapes Run.
type ComponentLoadError struct {
	Name string
	Err  error
}

func (e *ComponentLoadError) Error() string {
	return fmt.Sprintf("loading component %q: %v", e.Name, e.Err)
}

func (e *ComponentLoadError) Unwrap() error {
	return e.Err
}

// TimeoutError marks a load abandoned after the configured per-call timeout.
// It always arrives wrapped in a *ComponentLoadError.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("load timed out after %s", e.Timeout)
}
