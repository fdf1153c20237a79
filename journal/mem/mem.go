// Package mem implements an in-memory journal.
package mem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobg/je"
	"github.com/bobg/je/journal"
)

var _ journal.Journal = &Journal{}

// Journal is a memory-based implementation of a journal.
// Its contents last only as long as the process.
type Journal struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*journal.Entry
}

// New produces a new Journal.
func New() *Journal {
	return &Journal{
		nextID:  1,
		entries: make(map[int64]*journal.Entry),
	}
}

func (j *Journal) Begin(_ context.Context, e journal.Entry) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.ID = j.nextID
	e.Step = ""
	e.Remote = false
	e.Finished = time.Time{}
	e.Err = ""
	j.nextID++
	j.entries[e.ID] = &e
	return e.ID, nil
}

func (j *Journal) Track(_ context.Context, id int64, step je.Step, remote bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.entries[id]
	if !ok {
		return journal.ErrNotFound
	}
	e.Step = step
	e.Remote = remote
	return nil
}

func (j *Journal) Finish(_ context.Context, id int64, runErr error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.entries[id]
	if !ok {
		return journal.ErrNotFound
	}
	e.Finished = time.Now()
	e.Err = journal.ErrString(runErr)
	return nil
}

func (j *Journal) Stranded(_ context.Context, addr string, f func(journal.Entry) error) error {
	j.mu.Lock()
	var stranded []journal.Entry
	for _, e := range j.entries {
		if e.Addr == addr && e.Remote {
			stranded = append(stranded, *e)
		}
	}
	j.mu.Unlock()

	sort.Slice(stranded, func(a, b int) bool { return stranded[a].ID < stranded[b].ID })

	for _, e := range stranded {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Forget(_ context.Context, id int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.entries[id]; !ok {
		return journal.ErrNotFound
	}
	delete(j.entries, id)
	return nil
}

func init() {
	journal.Register("mem", func(context.Context, map[string]interface{}) (journal.Journal, error) {
		return New(), nil
	})
}
