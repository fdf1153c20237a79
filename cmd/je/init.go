package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bobg/je/config"
)

func (c maincmd) initConfig(_ context.Context, fs *flag.FlagSet, args []string) error {
	force := fs.Bool("force", false, "overwrite an existing config file")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	exists, err := afero.Exists(c.fs, c.configFile)
	if err != nil {
		return errors.Wrapf(err, "checking for %s", c.configFile)
	}
	if exists && !*force {
		return errors.Errorf("%s already exists (use -force to overwrite it, or reinit to update it)", c.configFile)
	}

	c.logger.Info("initializing config file", zap.String("file", c.configFile))
	return config.Default().Save(c.fs, c.configFile)
}

func (c maincmd) reinit(_ context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	cfg, err := config.Load(c.fs, c.configFile)
	if err != nil {
		return err
	}
	c.logger.Info("rewriting config file", zap.String("file", c.configFile), zap.String("from", cfg.Version), zap.String("to", cfg.Current().Version))
	return cfg.Current().Save(c.fs, c.configFile)
}
