// Package journal records synchronization runs
// so that packages left on a remote by a failed run can be found and purged later.
//
// A run is begun before its package is uploaded,
// tracked after each step with whether the package is on the remote,
// and finished with its outcome.
// A run whose package is still (so far as is known) on the remote is "stranded"
// until it is forgotten.
package journal

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/je"
)

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Entry is the journal's record of one run.
type Entry struct {
	ID      int64
	Command string // "get", "get-bundle", or "put"
	Target  string // local path or bundle name
	Addr    string // remote address
	Package je.Package
	Started time.Time

	// Step is the last step completed.
	Step je.Step

	// Remote tells whether the package is believed to be on the remote.
	Remote bool

	// Finished is the zero time for a run that has not finished.
	Finished time.Time

	// Err is the failure the run finished with, if any.
	Err string
}

// Journal is a durable log of runs.
type Journal interface {
	// Begin adds e to the journal and returns its new ID.
	// The ID and step fields of e are ignored.
	Begin(ctx context.Context, e Entry) (int64, error)

	// Track records that the run id completed step,
	// leaving its package on the remote or not.
	Track(ctx context.Context, id int64, step je.Step, remote bool) error

	// Finish records the outcome of the run id.
	// A nil runErr means success.
	Finish(ctx context.Context, id int64, runErr error) error

	// Stranded calls f, in ID order, on each entry for addr whose package is on the remote.
	Stranded(ctx context.Context, addr string, f func(Entry) error) error

	// Forget removes the run id from the journal.
	Forget(ctx context.Context, id int64) error
}

// ErrString is the text recorded for runErr.
func ErrString(runErr error) string {
	if runErr == nil {
		return ""
	}
	return runErr.Error()
}
