package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/bobg/je/config"
	"github.com/bobg/je/jsync"
)

func (c maincmd) get(ctx context.Context, fs *flag.FlagSet, args []string) error {
	path, err := onePath(fs, args)
	if err != nil {
		return err
	}
	return c.withSyncer(ctx, func(s *jsync.Syncer, _ *config.Config) error {
		return s.Get(ctx, path)
	})
}

func (c maincmd) getBundle(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: get-bundle NAME")
	}
	name := fs.Arg(0)

	return c.withSyncer(ctx, func(s *jsync.Syncer, cfg *config.Config) error {
		b, err := cfg.Bundle(name)
		if err != nil {
			return err
		}
		return s.GetBundle(ctx, b)
	})
}

func (c maincmd) put(ctx context.Context, fs *flag.FlagSet, args []string) error {
	path, err := onePath(fs, args)
	if err != nil {
		return err
	}
	return c.withSyncer(ctx, func(s *jsync.Syncer, _ *config.Config) error {
		return s.Put(ctx, path)
	})
}

func onePath(fs *flag.FlagSet, args []string) (string, error) {
	err := fs.Parse(args)
	if err != nil {
		return "", errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return "", errors.New("exactly one path required")
	}
	return fs.Arg(0), nil
}
