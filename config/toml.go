package config

import (
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/bobg/je"
)

type fileRule struct {
	Type  string `toml:"type"`
	Value string `toml:"value"`
}

type fileBundle struct {
	Name  string   `toml:"name"`
	Paths []string `toml:"paths,omitempty"`
	Files []string `toml:"files,omitempty"` // legacy spelling of paths
}

// inFile is the shape of the file as read.
// Ignore rules may be plain strings (legacy) or {type, value} tables.
type inFile struct {
	Version          string                 `toml:"version"`
	IgnoreProperties []interface{}          `toml:"ignore_properties"`
	BuildWait        string                 `toml:"build_wait"`
	Profiles         []Profile              `toml:"profile"`
	Bundles          []fileBundle           `toml:"bundle"`
	Journal          map[string]interface{} `toml:"journal"`
}

// outFile is the shape of the file as written.
type outFile struct {
	Version          string                 `toml:"version"`
	IgnoreProperties []fileRule             `toml:"ignore_properties"`
	BuildWait        string                 `toml:"build_wait,omitempty"`
	Profiles         []Profile              `toml:"profile"`
	Bundles          []fileBundle           `toml:"bundle,omitempty"`
	Journal          map[string]interface{} `toml:"journal,omitempty"`
}

// Parse decodes the contents of a configuration file.
func Parse(b []byte) (*Config, error) {
	var f inFile
	if err := toml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "decoding TOML")
	}

	c := &Config{
		Version:  f.Version,
		Profiles: f.Profiles,
		Journal:  f.Journal,
	}

	for i, r := range f.IgnoreProperties {
		rule, err := parseRule(r)
		if err != nil {
			return nil, errors.Wrapf(err, "ignore_properties[%d]", i)
		}
		c.IgnoreProperties = append(c.IgnoreProperties, rule)
	}

	if f.BuildWait != "" {
		d, err := time.ParseDuration(f.BuildWait)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing build_wait %q", f.BuildWait)
		}
		if d < 0 {
			return nil, errors.Errorf("negative build_wait %s", d)
		}
		c.BuildWait = d
	}

	for i, b := range f.Bundles {
		if b.Name == "" {
			return nil, errors.Errorf("bundle %d has no name", i)
		}
		paths := b.Paths
		if len(paths) == 0 {
			paths = b.Files
		}
		c.Bundles = append(c.Bundles, je.Bundle{Name: b.Name, Paths: paths})
	}

	if c.Journal != nil {
		if _, ok := c.Journal["type"].(string); !ok {
			return nil, errors.New(`journal table has no "type"`)
		}
	}

	return c, nil
}

func parseRule(r interface{}) (je.IgnoreRule, error) {
	switch r := r.(type) {
	case string:
		return je.IgnoreRule{Kind: je.Contains, Value: r}, nil

	case map[string]interface{}:
		typ, _ := r["type"].(string)
		val, ok := r["value"].(string)
		if !ok {
			return je.IgnoreRule{}, errors.New(`missing "value"`)
		}
		kind, err := je.ParseRuleKind(typ)
		if err != nil {
			return je.IgnoreRule{}, err
		}
		return je.IgnoreRule{Kind: kind, Value: val}, nil
	}
	return je.IgnoreRule{}, errors.Errorf("ignore rule is a %T, want a string or a table", r)
}

// Marshal encodes c in the current file format.
func (c *Config) Marshal() ([]byte, error) {
	f := outFile{
		Version:          c.Version,
		IgnoreProperties: []fileRule{},
		Profiles:         c.Profiles,
		Journal:          c.Journal,
	}
	for _, r := range c.IgnoreProperties {
		f.IgnoreProperties = append(f.IgnoreProperties, fileRule{Type: r.Kind.String(), Value: r.Value})
	}
	if c.BuildWait > 0 {
		f.BuildWait = c.BuildWait.String()
	}
	for _, b := range c.Bundles {
		f.Bundles = append(f.Bundles, fileBundle{Name: b.Name, Paths: b.Paths})
	}

	b, err := toml.Marshal(f)
	return b, errors.Wrap(err, "encoding TOML")
}
