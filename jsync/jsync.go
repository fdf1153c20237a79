// Package jsync synchronizes local content mirrors with a remote repository.
//
// Get and GetBundle replace local paths with the remote's version of them,
// minus the lines the filter drops.
// Put installs local paths on the remote.
package jsync

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bobg/flock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bobg/je"
	"github.com/bobg/je/filter"
	"github.com/bobg/je/jcrpath"
	"github.com/bobg/je/journal"
	"github.com/bobg/je/packmgr"
	"github.com/bobg/je/pkgdir"
)

// Syncer runs synchronizations against one remote.
// A Syncer must not be copied after first use.
type Syncer struct {
	Fs      afero.Fs
	Manager *packmgr.Manager
	Filter  *filter.Filter
	Logger  *zap.Logger

	// Journal, if not nil, records each run under Addr.
	Journal journal.Journal
	Addr    string

	// LockPath, if not empty, names a file locked for the duration of each run.
	LockPath string

	// Now is the clock that versions packages.
	// Nil means time.Now.
	Now func() time.Time

	locker flock.Locker
}

func (s *Syncer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Syncer) retain() bool {
	return s.Manager.Options.RetainArtifacts
}

// Get replaces the local path with the remote's version of it.
func (s *Syncer) Get(ctx context.Context, local string) (err error) {
	local, err = filepath.Abs(local)
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}

	unlock, err := s.lock()
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}
	defer unlock()

	pkg := je.NewPackage(s.now())
	r := s.begin(ctx, "get", local, pkg)
	defer func() { r.finish(ctx, err) }()

	s.logger().Info("get", zap.String("path", local), zap.Stringer("package", pkg))

	w, err := pkgdir.BuildSimple(s.Fs, local, pkg)
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}
	defer s.dispose(w)

	if err = s.export(ctx, r, w, pkg); err != nil {
		return err
	}
	return je.AtStep(je.StepMove, s.moveBack(w, local))
}

// GetBundle replaces each path of b with the remote's version of it.
func (s *Syncer) GetBundle(ctx context.Context, b je.Bundle) (err error) {
	abs := je.Bundle{Name: b.Name}
	for _, p := range b.Paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return je.AtStep(je.StepPrepare, err)
		}
		abs.Paths = append(abs.Paths, a)
	}

	unlock, err := s.lock()
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}
	defer unlock()

	pkg := je.NewPackage(s.now())
	r := s.begin(ctx, "get-bundle", b.Name, pkg)
	defer func() { r.finish(ctx, err) }()

	s.logger().Info("get bundle", zap.String("bundle", b.Name), zap.Strings("paths", abs.Paths), zap.Stringer("package", pkg))

	w, err := pkgdir.BuildBundle(s.Fs, abs, pkg)
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}
	defer s.dispose(w)

	if err = s.export(ctx, r, w, pkg); err != nil {
		return err
	}
	for _, p := range abs.Paths {
		if err = s.moveBack(w, p); err != nil {
			return je.AtStep(je.StepMove, err)
		}
	}
	return nil
}

// export zips w, exports it, and filters the result.
func (s *Syncer) export(ctx context.Context, r *run, w *pkgdir.WorkDir, pkg je.Package) error {
	if _, err := w.Zip(); err != nil {
		return je.AtStep(je.StepZip, err)
	}
	if err := s.manager(r).Export(ctx, w, pkg); err != nil {
		s.warnStranded(err, pkg)
		return err
	}
	if s.Filter != nil {
		if err := s.Filter.CleanupFiles(s.Fs, w.Path(pkgdir.ContentRoot)); err != nil {
			return je.AtStep(je.StepFilter, err)
		}
	}
	return nil
}

// Put installs the local path on the remote.
func (s *Syncer) Put(ctx context.Context, local string) (err error) {
	local, err = filepath.Abs(local)
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}

	unlock, err := s.lock()
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}
	defer unlock()

	pkg := je.NewPackage(s.now())
	r := s.begin(ctx, "put", local, pkg)
	defer func() { r.finish(ctx, err) }()

	s.logger().Info("put", zap.String("path", local), zap.Stringer("package", pkg))

	w, err := pkgdir.BuildSimple(s.Fs, local, pkg)
	if err != nil {
		return je.AtStep(je.StepPrepare, err)
	}
	defer s.dispose(w)

	if err = s.copyIn(w, local); err != nil {
		return je.AtStep(je.StepCopy, err)
	}
	if _, err = w.Zip(); err != nil {
		return je.AtStep(je.StepZip, err)
	}
	if err = s.manager(r).Import(ctx, w, pkg); err != nil {
		s.warnStranded(err, pkg)
		return err
	}
	return nil
}

// manager is s.Manager reporting to r.
func (s *Syncer) manager(r *run) *packmgr.Manager {
	m := *s.Manager
	if m.Logger == nil {
		m.Logger = s.logger()
	}
	if r != nil {
		m.Tracker = r
	}
	return &m
}

func (s *Syncer) warnStranded(err error, pkg je.Package) {
	if step, ok := je.FailedStep(err); ok && packmgr.Stranded(step) {
		s.logger().Warn("package left on the remote, delete it manually or with purge", zap.String("path", packmgr.DownloadPath(pkg)), zap.String("step", string(step)))
	}
}

func (s *Syncer) dispose(w *pkgdir.WorkDir) {
	if s.retain() {
		s.logger().Warn("keeping work directory", zap.String("dir", w.Root))
		return
	}
	if err := w.Remove(); err != nil {
		s.logger().Warn("could not remove work directory", zap.String("dir", w.Root), zap.Error(err))
	}
}

func (s *Syncer) lock() (func(), error) {
	if s.LockPath == "" {
		return func() {}, nil
	}
	if err := s.locker.Lock(s.LockPath); err != nil {
		return nil, errors.Wrapf(err, "locking %s", s.LockPath)
	}
	return func() {
		if err := s.locker.Unlock(s.LockPath); err != nil {
			s.logger().Warn("could not unlock", zap.String("file", s.LockPath), zap.Error(err))
		}
	}, nil
}

// moveBack replaces local with its counterpart in w.
func (s *Syncer) moveBack(w *pkgdir.WorkDir, local string) error {
	mirror, err := jcrpath.MirrorPath(local)
	if err != nil {
		return err
	}
	from := w.Path(filepath.ToSlash(mirror))

	s.logger().Info("moving files back", zap.String("from", from), zap.String("to", local))
	if ce := s.logger().Check(zap.DebugLevel, "file from remote"); ce != nil {
		afero.Walk(s.Fs, from, func(p string, _ os.FileInfo, err error) error {
			if err == nil {
				s.logger().Debug("file from remote", zap.String("file", p))
			}
			return nil
		})
	}

	if _, err = s.Fs.Stat(from); err != nil {
		return errors.Wrapf(err, "remote returned nothing for %s", local)
	}
	return replace(s.Fs, from, local, s.logger())
}

// copyIn copies local into the content mirror of w:
// a directory beneath its parent's mirror, a file to its own mirror path.
func (s *Syncer) copyIn(w *pkgdir.WorkDir, local string) error {
	parent, err := jcrpath.ParentMirrorPath(local)
	if err != nil {
		return err
	}
	mirror, err := jcrpath.MirrorPath(local)
	if err != nil {
		return err
	}
	if err = s.Fs.MkdirAll(w.Path(filepath.ToSlash(parent)), 0755); err != nil {
		return errors.Wrap(err, "creating mirror parent")
	}

	dst := w.Path(filepath.ToSlash(mirror))
	s.logger().Info("copying files", zap.String("from", local), zap.String("to", dst))
	return copyTree(s.Fs, local, dst)
}

// run is one journaled synchronization.
// Its methods are no-ops when there is no journal.
type run struct {
	s  *Syncer
	id int64
}

var _ packmgr.Tracker = &run{}

func (s *Syncer) begin(ctx context.Context, command, target string, pkg je.Package) *run {
	if s.Journal == nil {
		return nil
	}
	id, err := s.Journal.Begin(ctx, journal.Entry{
		Command: command,
		Target:  target,
		Addr:    s.Addr,
		Package: pkg,
		Started: s.now(),
	})
	if err != nil {
		s.logger().Warn("could not journal run", zap.Error(err))
		return nil
	}
	return &run{s: s, id: id}
}

func (r *run) Track(ctx context.Context, step je.Step, remote bool) {
	if r == nil {
		return
	}
	if err := r.s.Journal.Track(ctx, r.id, step, remote); err != nil {
		r.s.logger().Warn("could not journal step", zap.Int64("run", r.id), zap.String("step", string(step)), zap.Error(err))
	}
}

func (r *run) finish(ctx context.Context, runErr error) {
	if r == nil {
		return
	}
	if err := r.s.Journal.Finish(ctx, r.id, runErr); err != nil {
		r.s.logger().Warn("could not journal outcome", zap.Int64("run", r.id), zap.Error(err))
	}
}
