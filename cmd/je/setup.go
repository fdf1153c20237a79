package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/je"
	"github.com/bobg/je/config"
	"github.com/bobg/je/filter"
	"github.com/bobg/je/journal"
	"github.com/bobg/je/jsync"
	"github.com/bobg/je/packmgr"
	"github.com/bobg/je/packmgr/logging"
)

const legacyBanner = `###########################################
#                                         #
#    YOU ARE USING OLDER CONFIG FORMAT.   #
#    USE je reinit TO REINIT CONFIG       #
#                                         #
###########################################`

// loadConfig reads the config file,
// complaining if it is out of date.
func (c maincmd) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.fs, c.configFile)
	if err != nil {
		return nil, err
	}
	switch {
	case cfg.Legacy():
		fmt.Fprintln(c.out, legacyBanner)
	case cfg.Outdated():
		c.logger.Warn("config file is from another version, run `je reinit` to update it", zap.String("file", c.configFile), zap.String("version", cfg.Version), zap.String("current", je.Version))
	}
	return cfg, nil
}

// remote bundles what a command needs to talk to the selected remote.
type remote struct {
	inst    je.Instance
	manager *packmgr.Manager
	journal journal.Journal // may be nil
}

func (r *remote) Close() error {
	if cl, ok := r.journal.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c maincmd) remote(ctx context.Context, cfg *config.Config) (*remote, error) {
	inst := cfg.Instance(c.profile, c.logger)
	c.logger.Info("using remote", zap.String("addr", inst.Address), zap.String("user", inst.User))

	t := logging.New(packmgr.NewClient(inst), c.logger.Named("http"))
	r := &remote{
		inst:    inst,
		manager: packmgr.New(t, cfg.Options(c.retain), c.logger.Named("packmgr")),
	}

	if cfg.Journal != nil {
		typ, _ := cfg.Journal["type"].(string)
		j, err := journal.Create(ctx, typ, cfg.Journal)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s journal", typ)
		}
		r.journal = j
	}
	return r, nil
}

func (c maincmd) syncer(r *remote, cfg *config.Config) *jsync.Syncer {
	return &jsync.Syncer{
		Fs:       c.fs,
		Manager:  r.manager,
		Filter:   filter.New(cfg.IgnoreProperties, c.logger.Named("filter")),
		Logger:   c.logger,
		Journal:  r.journal,
		Addr:     r.inst.Address,
		LockPath: c.lockFile,
	}
}

// withSyncer loads the config and calls f with a Syncer for the selected remote.
func (c maincmd) withSyncer(ctx context.Context, f func(*jsync.Syncer, *config.Config) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	r, err := c.remote(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	return f(c.syncer(r, cfg), cfg)
}
