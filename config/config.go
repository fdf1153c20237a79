// Package config reads and writes the .je configuration file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bobg/je"
)

// FileName is the configuration file's name in the working directory.
const FileName = ".je"

// Default remote.
const (
	DefaultProfile  = "author"
	DefaultAddr     = "http://localhost:4502"
	DefaultUser     = "admin"
	DefaultPassword = "admin"
)

// Config is the resolved contents of a configuration file.
type Config struct {
	// Version is the version that wrote the file.
	// It is empty for files in the legacy, unversioned format.
	Version string

	IgnoreProperties []je.IgnoreRule
	BuildWait        time.Duration // zero means je.DefaultBuildWait
	Profiles         []Profile
	Bundles          []je.Bundle

	// Journal configures the run journal.
	// Its "type" entry names a registered journal type;
	// the rest is passed to that type's factory.
	// Nil means no journal.
	Journal map[string]interface{}
}

// Profile is a named remote with its credentials.
type Profile struct {
	Name string `toml:"name"`
	Addr string `toml:"addr"`
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

func (p Profile) instance() je.Instance {
	return je.Instance{Address: p.Addr, User: p.User, Password: p.Pass}
}

// Default is the configuration used when there is no file.
func Default() *Config {
	return &Config{
		Version: je.Version,
		Profiles: []Profile{{
			Name: DefaultProfile,
			Addr: DefaultAddr,
			User: DefaultUser,
			Pass: DefaultPassword,
		}},
	}
}

// Load reads the configuration in file.
// A missing file yields Default().
func Load(fs afero.Fs, file string) (*Config, error) {
	b, err := afero.ReadFile(fs, file)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", file)
	}
	c, err := Parse(b)
	return c, errors.Wrapf(err, "parsing %s", file)
}

// Legacy tells whether c was read from an unversioned file.
func (c *Config) Legacy() bool {
	return c.Version == ""
}

// Outdated tells whether c was written by a different version.
func (c *Config) Outdated() bool {
	return c.Version != je.Version
}

// Instance resolves the remote for profile.
// An empty profile selects the first one configured.
// An unknown profile selects the default remote,
// with a warning.
func (c *Config) Instance(profile string, logger *zap.Logger) je.Instance {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := Default().Profiles[0].instance()
	if profile == "" {
		if len(c.Profiles) == 0 {
			return def
		}
		return c.Profiles[0].instance()
	}
	for _, p := range c.Profiles {
		if p.Name == profile {
			return p.instance()
		}
	}
	logger.Warn("profile not found, using the default remote", zap.String("profile", profile), zap.String("addr", def.Address))
	return def
}

// Bundle finds the bundle called name.
func (c *Config) Bundle(name string) (je.Bundle, error) {
	for _, b := range c.Bundles {
		if b.Name == name {
			return b, nil
		}
	}
	return je.Bundle{}, errors.Errorf("bundle %s not found in configuration", name)
}

// Options are the pipeline options c specifies.
func (c *Config) Options(retain bool) je.Options {
	return je.Options{RetainArtifacts: retain, BuildWait: c.BuildWait}
}

// Save writes c to file.
func (c *Config) Save(fs afero.Fs, file string) error {
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	return errors.Wrapf(afero.WriteFile(fs, file, b, 0644), "writing %s", file)
}

// Current is a copy of c marked with the current version.
func (c *Config) Current() *Config {
	cp := *c
	cp.Version = je.Version
	return &cp
}
