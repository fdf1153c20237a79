// Package packmgr drives the remote package manager:
// it uploads, builds, downloads, installs and deletes content packages
// over a Transport.
package packmgr

import (
	"context"
	"time"

	units "github.com/docker/go-units"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/je"
	"github.com/bobg/je/pkgdir"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Remote paths of the package manager service.
const (
	ServicePath  = "/crx/packmgr/service/.json"
	PackagesPath = "/etc/packages"
	UploadField  = "package"
)

// UploadPath is where packages are uploaded.
func UploadPath() string {
	return ServicePath + "?cmd=upload"
}

// CommandPath is where cmd is sent for pkg.
func CommandPath(pkg je.Package, cmd string) string {
	return ServicePath + PackagesPath + "/" + pkg.StoragePath() + "?cmd=" + cmd
}

// DownloadPath is where the built pkg is fetched from.
func DownloadPath(pkg je.Package) string {
	return PackagesPath + "/" + pkg.StoragePath()
}

// Reply is the package manager's answer to a service command.
type Reply struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// Tracker is told after each step of an Export or Import
// whether the package is (so far as is known) present on the remote.
type Tracker interface {
	Track(ctx context.Context, step je.Step, remote bool)
}

// Manager runs package-manager commands against one remote.
type Manager struct {
	T       Transport
	Logger  *zap.Logger
	Options je.Options
	Tracker Tracker // may be nil
}

// New produces a Manager using t.
func New(t Transport, opts je.Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{T: t, Logger: logger, Options: opts}
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

func (m *Manager) track(ctx context.Context, step je.Step, remote bool) {
	if m.Tracker != nil {
		m.Tracker.Track(ctx, step, remote)
	}
}

// Upload sends the outbound archive of w to the remote.
func (m *Manager) Upload(ctx context.Context, w *pkgdir.WorkDir) error {
	p := w.Path(pkgdir.OutArchive)
	f, err := w.Fs.Open(p)
	if err != nil {
		return errors.Wrapf(err, "opening %s", p)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		m.logger().Info("uploading package", zap.String("size", units.HumanSize(float64(info.Size()))))
	}

	b, err := m.T.PostFile(ctx, UploadPath(), UploadField, pkgdir.OutArchive, f)
	if err != nil {
		return err
	}
	return check("upload", UploadPath(), b)
}

// Build asks the remote to build pkg.
func (m *Manager) Build(ctx context.Context, pkg je.Package) error {
	m.logger().Info("building package", zap.Stringer("package", pkg))
	return m.command(ctx, pkg, "build")
}

// Install asks the remote to install pkg.
func (m *Manager) Install(ctx context.Context, pkg je.Package) error {
	m.logger().Info("installing package", zap.Stringer("package", pkg))
	return m.command(ctx, pkg, "install")
}

// Delete asks the remote to delete pkg.
func (m *Manager) Delete(ctx context.Context, pkg je.Package) error {
	m.logger().Info("deleting package", zap.Stringer("package", pkg))
	return m.command(ctx, pkg, "delete")
}

func (m *Manager) command(ctx context.Context, pkg je.Package, cmd string) error {
	path := CommandPath(pkg, cmd)
	b, err := m.T.Post(ctx, path)
	if err != nil {
		return err
	}
	return check(cmd, path, b)
}

// check interprets a service reply.
// An empty body counts as success.
func check(cmd, path string, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	var r Reply
	if err := json.Unmarshal(b, &r); err != nil {
		return &je.TransportError{Method: "POST", URL: path, Msg: excerpt(b), Err: errors.Wrapf(err, "decoding %s reply", cmd)}
	}
	if !r.Success {
		return &je.TransportError{Method: "POST", URL: path, Msg: r.Msg}
	}
	return nil
}

func excerpt(b []byte) string {
	if len(b) > 256 {
		return string(b[:256]) + "..."
	}
	return string(b)
}

// Download fetches the built pkg into the inbound archive of w.
func (m *Manager) Download(ctx context.Context, w *pkgdir.WorkDir, pkg je.Package) error {
	p := w.Path(pkgdir.InArchive)
	f, err := w.Fs.Create(p)
	if err != nil {
		return errors.Wrapf(err, "creating %s", p)
	}
	defer f.Close()

	n, err := m.T.Get(ctx, DownloadPath(pkg), f)
	if err != nil {
		return err
	}
	m.logger().Info("downloaded package", zap.Stringer("package", pkg), zap.String("size", units.HumanSize(float64(n))))
	return errors.Wrapf(f.Close(), "closing %s", p)
}

// Wait pauses after a build request for the configured interval,
// or until ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	// TODO: poll the package's build status instead, once the remote reports one.
	d := m.Options.Wait()
	m.logger().Debug("waiting for build", zap.Duration("wait", d))

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Export runs the export round trip for the zipped package in w:
// upload, build, wait, clean, download, delete, unzip.
// After it returns successfully, w holds the remote's version of the content mirror.
// With RetainArtifacts the remote package is not deleted.
func (m *Manager) Export(ctx context.Context, w *pkgdir.WorkDir, pkg je.Package) error {
	if err := m.Upload(ctx, w); err != nil {
		return je.AtStep(je.StepUpload, err)
	}
	m.track(ctx, je.StepUpload, true)

	if err := m.Build(ctx, pkg); err != nil {
		return je.AtStep(je.StepBuild, err)
	}
	if err := m.Wait(ctx); err != nil {
		return je.AtStep(je.StepBuild, err)
	}
	m.track(ctx, je.StepBuild, true)

	if err := w.Clean(); err != nil {
		return je.AtStep(je.StepClean, err)
	}

	if err := m.Download(ctx, w, pkg); err != nil {
		return je.AtStep(je.StepDownload, err)
	}
	m.track(ctx, je.StepDownload, true)

	if err := m.deleteUnlessRetained(ctx, pkg); err != nil {
		return je.AtStep(je.StepDelete, err)
	}

	return je.AtStep(je.StepUnzip, w.Unzip())
}

// Import runs the import sequence for the zipped package in w:
// upload, install, delete.
// With RetainArtifacts the remote package is not deleted.
func (m *Manager) Import(ctx context.Context, w *pkgdir.WorkDir, pkg je.Package) error {
	if err := m.Upload(ctx, w); err != nil {
		return je.AtStep(je.StepUpload, err)
	}
	m.track(ctx, je.StepUpload, true)

	if err := m.Install(ctx, pkg); err != nil {
		return je.AtStep(je.StepInstall, err)
	}
	m.track(ctx, je.StepInstall, true)

	return je.AtStep(je.StepDelete, m.deleteUnlessRetained(ctx, pkg))
}

func (m *Manager) deleteUnlessRetained(ctx context.Context, pkg je.Package) error {
	if m.Options.RetainArtifacts {
		m.logger().Warn("leaving package on the remote", zap.Stringer("package", pkg))
		return nil
	}
	if err := m.Delete(ctx, pkg); err != nil {
		return err
	}
	m.track(ctx, je.StepDelete, false)
	return nil
}

// Stranded tells whether a failure at step leaves the package on the remote.
func Stranded(step je.Step) bool {
	switch step {
	case je.StepBuild, je.StepClean, je.StepDownload, je.StepDelete, je.StepInstall:
		return true
	}
	return false
}
