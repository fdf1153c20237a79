package je

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedPath is matched, via errors.Is, by every *PathError.
var ErrMalformedPath = errors.New("malformed path")

// PathError reports a local path that does not contain the jcr_root marker exactly once.
type PathError struct {
	Path    string
	Markers int
}

func (e *PathError) Error() string {
	return fmt.Sprintf("malformed path %s: found %d jcr_root segments, want exactly 1", e.Path, e.Markers)
}

func (e *PathError) Is(target error) bool {
	return target == ErrMalformedPath
}

// ArchiveError reports a corrupt or unsafe entry while reading or writing a zip archive.
type ArchiveError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ArchiveError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("archive %s: %s", e.Archive, e.Err)
	}
	return fmt.Sprintf("archive %s, entry %q: %s", e.Archive, e.Entry, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// TransportError reports a failed request to the remote package manager:
// a network failure, a non-success status, or a reply that says it failed.
type TransportError struct {
	Method string
	URL    string
	Status int    // HTTP status, 0 if no response arrived
	Msg    string // remote message or body excerpt
	Err    error
}

func (e *TransportError) Error() string {
	s := fmt.Sprintf("%s %s", e.Method, e.URL)
	if e.Status != 0 {
		s += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *TransportError) Unwrap() error { return e.Err }

// FilterError reports a content file the filter could not read or rewrite.
type FilterError struct {
	File string
	Err  error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filtering %s: %s", e.File, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// StepError records which step of a synchronization failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// AtStep wraps a non-nil err in a *StepError for step.
// It returns nil for a nil err.
func AtStep(step Step, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

// FailedStep reports the step at which err occurred,
// if err is or wraps a *StepError.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
