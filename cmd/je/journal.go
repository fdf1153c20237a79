package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/je/journal"
)

// withJournal loads the config and calls f with the selected remote,
// which must have a journal.
func (c maincmd) withJournal(ctx context.Context, f func(*remote) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal == nil {
		return errors.Errorf("no [journal] configured in %s", c.configFile)
	}
	r, err := c.remote(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	return f(r)
}

func (c maincmd) leftovers(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	return c.withJournal(ctx, func(r *remote) error {
		return r.journal.Stranded(ctx, r.inst.Address, func(e journal.Entry) error {
			status := "unfinished"
			if !e.Finished.IsZero() {
				status = "ok"
				if e.Err != "" {
					status = "failed: " + e.Err
				}
			}
			_, err := fmt.Fprintf(c.out, "%d\t%s\t%s %s\t%s\tafter %s\t%s\n",
				e.ID, e.Started.Local().Format(time.RFC3339), e.Command, e.Target, e.Package.StoragePath(), e.Step, status)
			return err
		})
	})
}

func (c maincmd) purge(ctx context.Context, fs *flag.FlagSet, args []string) error {
	dryRun := fs.Bool("n", false, "list what would be purged without deleting anything")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	return c.withJournal(ctx, func(r *remote) error {
		var entries []journal.Entry
		err := r.journal.Stranded(ctx, r.inst.Address, func(e journal.Entry) error {
			entries = append(entries, e)
			return nil
		})
		if err != nil {
			return err
		}

		var failed int
		for _, e := range entries {
			if *dryRun {
				fmt.Fprintf(c.out, "would delete %s\n", e.Package.StoragePath())
				continue
			}
			if err = r.manager.Delete(ctx, e.Package); err != nil {
				c.logger.Error("could not delete package", zap.String("package", e.Package.StoragePath()), zap.Error(err))
				failed++
				continue
			}
			if err = r.journal.Forget(ctx, e.ID); err != nil {
				return errors.Wrapf(err, "forgetting run %d", e.ID)
			}
			fmt.Fprintf(c.out, "deleted %s\n", e.Package.StoragePath())
		}
		if failed > 0 {
			return errors.Errorf("%d of %d packages could not be deleted", failed, len(entries))
		}
		return nil
	})
}
