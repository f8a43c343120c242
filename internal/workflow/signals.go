package workflow

import (
	"errors"
	"fmt"
)

// Sentinels matched by the signal types' Is methods.
var (
	ErrStopClient   = errors.New("stop client")
	ErrAbortProgram = errors.New("abort program")
)

// StopClientSignal skips the rest of the current client. Run resumes at the
// next BeginClient.
type StopClientSignal struct {
	Path   []int
	Reason string
}

func (s *StopClientSignal) Error() string {
	return fmt.Sprintf("stop client at step %s: %s", formatPath(s.Path, 0), s.Reason)
}

func (s *StopClientSignal) Is(target error) bool { return target == ErrStopClient }

// AbortSignal ends the whole run.
type AbortSignal struct {
	Path   []int
	Reason string
}

func (s *AbortSignal) Error() string {
	return fmt.Sprintf("abort at step %s: %s", formatPath(s.Path, 0), s.Reason)
}

func (s *AbortSignal) Is(target error) bool { return target == ErrAbortProgram }

func isSignal(err error) bool {
	return errors.Is(err, ErrStopClient) || errors.Is(err, ErrAbortProgram)
}
