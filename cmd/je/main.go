// Command je exchanges content between a local jcr_root mirror and a remote repository.
//
// Usage:
//
//	je [-config FILE] [-profile NAME] [-debug] [-v [-v]] get PATH
//	je ... get-bundle NAME
//	je ... put PATH
//	je ... init [-force]
//	je ... reinit
//	je ... leftovers
//	je ... purge
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bobg/subcmd"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bobg/je"
	"github.com/bobg/je/config"
	_ "github.com/bobg/je/journal/mem"
	_ "github.com/bobg/je/journal/pg"
	_ "github.com/bobg/je/journal/sqlite3"
	"github.com/bobg/je/packmgr"
)

type maincmd struct {
	fs         afero.Fs
	out        io.Writer
	logger     *zap.Logger
	configFile string
	profile    string
	retain     bool
	lockFile   string
}

func main() {
	var (
		configFile = flag.String("config", config.FileName, "path to config file")
		profile    = flag.String("profile", "", "name of the remote profile to use (default: the first one configured)")
		retain     = flag.Bool("debug", false, "leave packages on the remote and work directories on disk for inspection")
		lockFile   = flag.String("lock", ".je.lock", "lock file held while synchronizing (empty for none)")
		v          verbosity
	)
	flag.Var(&v, "v", "log more (repeat for debug output)")
	flag.Parse()

	logger, err := newLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "je: creating logger: %s\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	c := maincmd{
		fs:         afero.NewOsFs(),
		out:        os.Stdout,
		logger:     logger,
		configFile: *configFile,
		profile:    *profile,
		retain:     *retain,
		lockFile:   *lockFile,
	}

	err = subcmd.Run(context.Background(), c, flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, failure(flag.Arg(0), err))
		os.Exit(1)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"get":        c.get,
		"get-bundle": c.getBundle,
		"put":        c.put,
		"init":       c.initConfig,
		"reinit":     c.reinit,
		"leftovers":  c.leftovers,
		"purge":      c.purge,
	}
}

// failure is the message printed when cmd fails with err.
func failure(cmd string, err error) string {
	msg := fmt.Sprintf("je: %s: %s", cmd, err)
	if step, ok := je.FailedStep(err); ok && packmgr.Stranded(step) {
		msg += "\nje: the package may still be on the remote; list it with `je leftovers` if a journal is configured, or delete it in the package manager"
	}
	return msg
}

// verbosity counts occurrences of -v.
type verbosity int

func (v *verbosity) String() string {
	if v == nil {
		return "0"
	}
	return strconv.Itoa(int(*v))
}

func (v *verbosity) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if b {
		*v++
	}
	return nil
}

func (v *verbosity) IsBoolFlag() bool { return true }
