package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"

	"github.com/bobg/je"
)

const current = `version = "0.4.0"
ignore_properties = [{type = "contains", value = "jcr:lastModified"}, {type = "regex", value = ".*By="}]
build_wait = "250ms"

[[profile]]
name = "publish"
addr = "http://localhost:4503"
user = "user2"
pass = "pass2"

[[profile]]
name = "author"
addr = "http://localhost:4502"
user = "user1"
pass = "pass1"

[[bundle]]
name = "site"
paths = ["jcr_root/content/site", "jcr_root/conf/site"]

[journal]
type = "sqlite3"
file = ".je.db"
`

const legacy = `ignore_properties = ["prop1", "prop2"]

[[profile]]
name = "author"
addr = "http://localhost:4502"
user = "user1"
pass = "pass1"

[[bundle]]
name = "simple"
files = ["file1", "file2"]
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(current))
	if err != nil {
		t.Fatal(err)
	}

	want := &Config{
		Version: "0.4.0",
		IgnoreProperties: []je.IgnoreRule{
			{Kind: je.Contains, Value: "jcr:lastModified"},
			{Kind: je.Regex, Value: ".*By="},
		},
		BuildWait: 250 * time.Millisecond,
		Profiles: []Profile{
			{Name: "publish", Addr: "http://localhost:4503", User: "user2", Pass: "pass2"},
			{Name: "author", Addr: "http://localhost:4502", User: "user1", Pass: "pass1"},
		},
		Bundles: []je.Bundle{{Name: "site", Paths: []string{"jcr_root/content/site", "jcr_root/conf/site"}}},
		Journal: map[string]interface{}{"type": "sqlite3", "file": ".je.db"},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if c.Legacy() || c.Outdated() {
		t.Errorf("current config reported as legacy=%v outdated=%v", c.Legacy(), c.Outdated())
	}
	if got := c.Options(true); got != (je.Options{RetainArtifacts: true, BuildWait: 250 * time.Millisecond}) {
		t.Errorf("got options %+v", got)
	}
}

func TestParseLegacy(t *testing.T) {
	c, err := Parse([]byte(legacy))
	if err != nil {
		t.Fatal(err)
	}
	if !c.Legacy() || !c.Outdated() {
		t.Errorf("legacy config reported as legacy=%v outdated=%v", c.Legacy(), c.Outdated())
	}

	wantRules := []je.IgnoreRule{{Kind: je.Contains, Value: "prop1"}, {Kind: je.Contains, Value: "prop2"}}
	if diff := cmp.Diff(wantRules, c.IgnoreProperties); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}

	b, err := c.Bundle("simple")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(je.Bundle{Name: "simple", Paths: []string{"file1", "file2"}}, b); diff != "" {
		t.Errorf("bundle mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"bad toml":        `ignore_properties = [`,
		"unknown rule":    `ignore_properties = [{type = "glob", value = "x"}]`,
		"rule type":       `ignore_properties = [3]`,
		"no value":        `ignore_properties = [{type = "regex"}]`,
		"unnamed bundle":  "[[bundle]]\nfiles = [\"a\"]\n",
		"bad build wait":  `build_wait = "soon"`,
		"negative wait":   `build_wait = "-1s"`,
		"untyped journal": "[journal]\nfile = \"x\"\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(text)); err == nil {
				t.Error("got no error")
			}
		})
	}
}

func TestInstance(t *testing.T) {
	c, err := Parse([]byte(current))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		profile string
		want    je.Instance
	}{
		{"author", je.Instance{Address: "http://localhost:4502", User: "user1", Password: "pass1"}},
		{"publish", je.Instance{Address: "http://localhost:4503", User: "user2", Password: "pass2"}},
		{"", je.Instance{Address: "http://localhost:4503", User: "user2", Password: "pass2"}},
		{"not-existing", je.Instance{Address: DefaultAddr, User: DefaultUser, Password: DefaultPassword}},
	}
	for _, tc := range cases {
		if got := c.Instance(tc.profile, nil); got != tc.want {
			t.Errorf("Instance(%q) = %+v, want %+v", tc.profile, got, tc.want)
		}
	}

	if got := (&Config{}).Instance("", nil); got.Address != DefaultAddr {
		t.Errorf("got %+v from a config without profiles, want the default", got)
	}
}

func TestBundleNotFound(t *testing.T) {
	c, err := Parse([]byte(current))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = c.Bundle("not-existing"); err == nil {
		t.Error("got no error for an unknown bundle")
	}
}

func TestLoadMissing(t *testing.T) {
	c, err := Load(afero.NewMemMapFs(), FileName)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if c.Outdated() {
		t.Error("default config is outdated")
	}
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()

	c, err := Parse([]byte(legacy))
	if err != nil {
		t.Fatal(err)
	}
	c = c.Current()
	c.Journal = map[string]interface{}{"type": "mem"}

	if err = c.Save(fs, FileName); err != nil {
		t.Fatal(err)
	}
	got, err := Load(fs, FileName)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if got.Legacy() || got.Outdated() {
		t.Error("rewritten config is still outdated")
	}
}
