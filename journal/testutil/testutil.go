// Package testutil exercises journal.Journal implementations.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/bobg/je"
	"github.com/bobg/je/journal"
)

// Journal runs a journal through the life cycle of a few runs.
// It needs no particular starting state in j:
// all its entries are for addresses unique to the call.
func Journal(ctx context.Context, t *testing.T, j journal.Journal) {
	var (
		suffix = time.Now().UnixNano()
		addrA  = fmt.Sprintf("http://a-%d:4502", suffix)
		addrB  = fmt.Sprintf("http://b-%d:4502", suffix)

		started = time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	)

	e1 := journal.Entry{
		Command: "get",
		Target:  "/p/jcr_root/content/site",
		Addr:    addrA,
		Package: je.NewPackage(started),
		Started: started,
	}
	e2 := journal.Entry{
		Command: "put",
		Target:  "/p/jcr_root/apps/site",
		Addr:    addrA,
		Package: je.NewPackage(started.Add(time.Second)),
		Started: started.Add(time.Second),
	}
	e3 := journal.Entry{
		Command: "get-bundle",
		Target:  "site",
		Addr:    addrB,
		Package: je.NewPackage(started.Add(2 * time.Second)),
		Started: started.Add(2 * time.Second),
	}

	id1, err := j.Begin(ctx, e1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := j.Begin(ctx, e2)
	if err != nil {
		t.Fatal(err)
	}
	id3, err := j.Begin(ctx, e3)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 || id2 == id3 || id1 == id3 {
		t.Fatalf("got duplicate IDs %d, %d, %d", id1, id2, id3)
	}
	if id2 < id1 {
		t.Errorf("got ID %d after ID %d", id2, id1)
	}

	stranded := func(addr string) []journal.Entry {
		var result []journal.Entry
		err := j.Stranded(ctx, addr, func(e journal.Entry) error {
			result = append(result, e)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return result
	}

	if got := stranded(addrA); len(got) != 0 {
		t.Errorf("got %d stranded entries before any upload, want 0", len(got))
	}

	// Run 1 uploads and then fails.
	if err = j.Track(ctx, id1, je.StepUpload, true); err != nil {
		t.Fatal(err)
	}
	if err = j.Finish(ctx, id1, errors.New("build failed")); err != nil {
		t.Fatal(err)
	}

	// Run 2 uploads, installs and deletes.
	for _, s := range []struct {
		step   je.Step
		remote bool
	}{{je.StepUpload, true}, {je.StepInstall, true}, {je.StepDelete, false}} {
		if err = j.Track(ctx, id2, s.step, s.remote); err != nil {
			t.Fatal(err)
		}
	}
	if err = j.Finish(ctx, id2, nil); err != nil {
		t.Fatal(err)
	}

	// Run 3 is left in progress with its package on the remote.
	if err = j.Track(ctx, id3, je.StepBuild, true); err != nil {
		t.Fatal(err)
	}

	want1 := e1
	want1.ID = id1
	want1.Step = je.StepUpload
	want1.Remote = true
	want1.Err = "build failed"

	got := stranded(addrA)
	if diff := cmp.Diff([]journal.Entry{want1}, got, cmpopts.IgnoreFields(journal.Entry{}, "Finished")); diff != "" {
		t.Errorf("stranded mismatch (-want +got):\n%s", diff)
	}
	if len(got) == 1 && got[0].Finished.IsZero() {
		t.Error("finished run has a zero finish time")
	}

	want3 := e3
	want3.ID = id3
	want3.Step = je.StepBuild
	want3.Remote = true

	got = stranded(addrB)
	if diff := cmp.Diff([]journal.Entry{want3}, got); diff != "" {
		t.Errorf("stranded mismatch (-want +got):\n%s", diff)
	}

	sentinel := errors.New("stop")
	err = j.Stranded(ctx, addrB, func(journal.Entry) error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("got error %v from Stranded, want the callback's error", err)
	}

	for _, id := range []int64{id1, id2, id3} {
		if err = j.Forget(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if got := stranded(addrA); len(got) != 0 {
		t.Errorf("got %d stranded entries after Forget, want 0", len(got))
	}

	if err = j.Track(ctx, id1, je.StepDelete, false); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("got %v tracking a forgotten run, want ErrNotFound", err)
	}
	if err = j.Finish(ctx, id1, nil); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("got %v finishing a forgotten run, want ErrNotFound", err)
	}
	if err = j.Forget(ctx, id1); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("got %v forgetting a forgotten run, want ErrNotFound", err)
	}
}
