package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bobg/je"
	"github.com/bobg/je/config"
	"github.com/bobg/je/packmgr/packmgrtest"
)

func TestVerbosity(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want verbosity
	}{
		{nil, 0},
		{[]string{"-v"}, 1},
		{[]string{"-v", "-v"}, 2},
		{[]string{"-v", "-v", "-v"}, 3},
	} {
		var (
			fs = flag.NewFlagSet("", flag.ContinueOnError)
			v  verbosity
		)
		fs.Var(&v, "v", "")
		if err := fs.Parse(tc.args); err != nil {
			t.Fatal(err)
		}
		if v != tc.want {
			t.Errorf("%v: got %d, want %d", tc.args, v, tc.want)
		}
		if _, err := newLogger(v); err != nil {
			t.Errorf("newLogger(%d): %s", v, err)
		}
	}
}

func TestFailure(t *testing.T) {
	err := je.AtStep(je.StepBuild, errors.New("status 500"))
	got := failure("get", err)
	if !strings.HasPrefix(got, "je: get: build: status 500\n") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "may still be on the remote") {
		t.Errorf("got %q, want a note about the remote package", got)
	}

	err = je.AtStep(je.StepUpload, errors.New("connection refused"))
	if got = failure("put", err); got != "je: put: upload: connection refused" {
		t.Errorf("got %q", got)
	}
}

type testEnv struct {
	srv *packmgrtest.Server
	dir string
	out *bytes.Buffer
	c   maincmd
}

func newTestEnv(t *testing.T, withJournal bool) *testEnv {
	srv := packmgrtest.NewServer("user1", "pass1")
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	conf := fmt.Sprintf(`version = %q
ignore_properties = [{type = "contains", value = "jcr:lastModified"}]
build_wait = "1ms"

[[profile]]
name = "local"
addr = %q
user = "user1"
pass = "pass1"
`, je.Version, srv.URL)
	if withJournal {
		conf += fmt.Sprintf("\n[journal]\ntype = \"sqlite3\"\nfile = %q\n", filepath.Join(dir, "je.db"))
	}
	configFile := filepath.Join(dir, ".je")
	if err := os.WriteFile(configFile, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}

	out := new(bytes.Buffer)
	return &testEnv{
		srv: srv,
		dir: dir,
		out: out,
		c: maincmd{
			fs:         afero.NewOsFs(),
			out:        out,
			logger:     zap.NewNop(),
			configFile: configFile,
		},
	}
}

func (e *testEnv) run(args ...string) error {
	return subcmd.Run(context.Background(), e.c, args)
}

func TestPutCommand(t *testing.T) {
	e := newTestEnv(t, false)

	local := filepath.Join(e.dir, "project", "jcr_root", "apps", "site")
	if err := os.MkdirAll(local, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(local, ".content.xml"), []byte("<jcr:root/>\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := e.run("put", local); err != nil {
		t.Fatal(err)
	}
	cmds := e.srv.Commands()
	if len(cmds) != 3 || cmds[0] != "upload" || !strings.HasPrefix(cmds[1], "install ") || !strings.HasPrefix(cmds[2], "delete ") {
		t.Errorf("got commands %v", cmds)
	}

	if err := e.run("put"); err == nil {
		t.Error("got no error for put without a path")
	}
	if err := e.run("get-bundle", "nonesuch"); err == nil {
		t.Error("got no error for an unknown bundle")
	}
}

func TestLeftoversAndPurge(t *testing.T) {
	e := newTestEnv(t, true)

	local := filepath.Join(e.dir, "project", "jcr_root", "content", "site")
	if err := os.MkdirAll(local, 0755); err != nil {
		t.Fatal(err)
	}

	e.srv.Fail("build", http.StatusInternalServerError)
	err := e.run("get", local)
	if step, ok := je.FailedStep(err); !ok || step != je.StepBuild {
		t.Fatalf("got error %v, want a failure at %s", err, je.StepBuild)
	}
	e.srv.Fail("build", 0)

	if err = e.run("leftovers"); err != nil {
		t.Fatal(err)
	}
	listing := e.out.String()
	if !strings.Contains(listing, "get "+local) || !strings.Contains(listing, "je/je-pkg-") || !strings.Contains(listing, "failed:") {
		t.Errorf("unexpected leftovers listing:\n%s", listing)
	}

	e.out.Reset()
	if err = e.run("purge", "-n"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(e.out.String(), "would delete je/je-pkg-") {
		t.Errorf("unexpected dry run output:\n%s", e.out.String())
	}

	e.out.Reset()
	if err = e.run("purge"); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(e.out.String(), "deleted je/je-pkg-") {
		t.Errorf("unexpected purge output:\n%s", e.out.String())
	}

	e.out.Reset()
	if err = e.run("leftovers"); err != nil {
		t.Fatal(err)
	}
	if e.out.Len() != 0 {
		t.Errorf("got leftovers after purge:\n%s", e.out.String())
	}
}

func TestLeftoversWithoutJournal(t *testing.T) {
	e := newTestEnv(t, false)
	if err := e.run("leftovers"); err == nil {
		t.Error("got no error without a journal")
	}
}

func TestInitReinit(t *testing.T) {
	var (
		fs  = afero.NewMemMapFs()
		out = new(bytes.Buffer)
		c   = maincmd{fs: fs, out: out, logger: zap.NewNop(), configFile: config.FileName}
		ctx = context.Background()
	)

	if err := subcmd.Run(ctx, c, []string{"init"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(fs, config.FileName)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Outdated() || cfg.Instance("", nil).Address != config.DefaultAddr {
		t.Errorf("unexpected initial config %+v", cfg)
	}

	if err = subcmd.Run(ctx, c, []string{"init"}); err == nil {
		t.Error("got no error overwriting a config without -force")
	}

	const legacy = `ignore_properties = ["prop1"]

[[profile]]
name = "author"
addr = "http://localhost:4502"
user = "user1"
pass = "pass1"
`
	if err = afero.WriteFile(fs, config.FileName, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err = c.loadConfig(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "YOU ARE USING OLDER CONFIG FORMAT.") {
		t.Errorf("no banner for a legacy config, got %q", out.String())
	}

	if err = subcmd.Run(ctx, c, []string{"reinit"}); err != nil {
		t.Fatal(err)
	}
	cfg, err = config.Load(fs, config.FileName)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Outdated() {
		t.Errorf("config still outdated after reinit: version %q", cfg.Version)
	}
	if got := cfg.Instance("author", nil); got.User != "user1" {
		t.Errorf("reinit lost the profile: %+v", got)
	}
	if len(cfg.IgnoreProperties) != 1 || cfg.IgnoreProperties[0] != (je.IgnoreRule{Kind: je.Contains, Value: "prop1"}) {
		t.Errorf("reinit changed the ignore rules: %+v", cfg.IgnoreProperties)
	}

	if err = subcmd.Run(ctx, c, []string{"init", "-force"}); err != nil {
		t.Fatal(err)
	}
}
