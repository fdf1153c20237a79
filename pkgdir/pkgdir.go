// Package pkgdir lays out the work directory of a content package.
//
// A work directory holds the content mirror (jcr_root),
// the control metadata (META-INF/vault/filter.xml and properties.xml),
// and the archives exchanged with the remote:
// pkg.zip going out and res.zip coming back.
package pkgdir

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/bobg/je"
	"github.com/bobg/je/archive"
	"github.com/bobg/je/jcrpath"
)

// Names inside a work directory.
const (
	ContentRoot    = jcrpath.Marker
	ControlRoot    = "META-INF"
	VaultDir       = "META-INF/vault"
	FilterFile     = "filter.xml"
	PropertiesFile = "properties.xml"
	OutArchive     = "pkg.zip"
	InArchive      = "res.zip"
)

// WorkDir is the directory in which one package is assembled.
type WorkDir struct {
	Fs   afero.Fs
	Root string
}

// New creates an empty work directory under the system temp dir.
func New(fs afero.Fs) (*WorkDir, error) {
	root, err := afero.TempDir(fs, "", "je-pkg")
	if err != nil {
		return nil, errors.Wrap(err, "creating work directory")
	}
	return &WorkDir{Fs: fs, Root: root}, nil
}

// Path joins elem, slash-separated names relative to the work directory, onto its root.
func (w *WorkDir) Path(elem ...string) string {
	parts := []string{w.Root}
	for _, e := range elem {
		parts = append(parts, filepath.FromSlash(e))
	}
	return filepath.Join(parts...)
}

// Clean empties the work directory,
// so nothing from one stage leaks into the next.
func (w *WorkDir) Clean() error {
	if err := w.Fs.RemoveAll(w.Root); err != nil {
		return errors.Wrapf(err, "removing %s", w.Root)
	}
	return errors.Wrapf(w.Fs.MkdirAll(w.Root, 0755), "recreating %s", w.Root)
}

// Remove deletes the work directory and everything in it.
func (w *WorkDir) Remove() error {
	return errors.Wrapf(w.Fs.RemoveAll(w.Root), "removing %s", w.Root)
}

// Zip writes the content mirror and control metadata to OutArchive.
// It returns the archive's size.
func (w *WorkDir) Zip() (int64, error) {
	return archive.Write(w.Fs, w.Root, w.Path(OutArchive), ContentRoot, ControlRoot)
}

// Unzip extracts InArchive into the work directory.
func (w *WorkDir) Unzip() error {
	return archive.Extract(w.Fs, w.Path(InArchive), w.Root)
}

// BuildSimple creates a work directory for a package covering the single local path.
func BuildSimple(fs afero.Fs, local string, pkg je.Package) (*WorkDir, error) {
	return build(fs, []string{local}, pkg)
}

// BuildBundle creates a work directory for a package covering every path of b, in order.
func BuildBundle(fs afero.Fs, b je.Bundle, pkg je.Package) (*WorkDir, error) {
	if len(b.Paths) == 0 {
		return nil, fmt.Errorf("bundle %s has no paths", b.Name)
	}
	return build(fs, b.Paths, pkg)
}

func build(fs afero.Fs, locals []string, pkg je.Package) (*WorkDir, error) {
	roots := make([]string, 0, len(locals))
	for _, local := range locals {
		root, err := jcrpath.FilterRoot(local)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}

	w, err := New(fs)
	if err != nil {
		return nil, err
	}

	err = w.populate(roots, pkg)
	if err != nil {
		w.Remove()
		return nil, err
	}
	return w, nil
}

func (w *WorkDir) populate(roots []string, pkg je.Package) error {
	for _, dir := range []string{ContentRoot, VaultDir} {
		if err := w.Fs.MkdirAll(w.Path(dir), 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}

	filterPath := w.Path(VaultDir, FilterFile)
	if err := afero.WriteFile(w.Fs, filterPath, FilterDocument(roots), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", filterPath)
	}

	propsPath := w.Path(VaultDir, PropertiesFile)
	if err := afero.WriteFile(w.Fs, propsPath, PropertiesDocument(pkg), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", propsPath)
	}
	return nil
}

// FilterDocument is the workspace filter listing roots, in order.
func FilterDocument(roots []string) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<workspaceFilter version="1.0">` + "\n")
	for _, root := range roots {
		buf.WriteString(`    <filter root="`)
		escape(buf, root)
		buf.WriteString(`"/>` + "\n")
	}
	buf.WriteString("</workspaceFilter>\n")
	return buf.Bytes()
}

// PropertiesDocument is the package properties naming pkg.
func PropertiesDocument(pkg je.Package) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n")
	buf.WriteString(`<!DOCTYPE properties SYSTEM "http://java.sun.com/dtd/properties.dtd">` + "\n")
	buf.WriteString("<properties>\n")
	for _, e := range []struct{ key, val string }{
		{"name", pkg.Name},
		{"version", pkg.Version},
		{"group", pkg.Group},
	} {
		fmt.Fprintf(buf, `    <entry key="%s">`, e.key)
		escape(buf, e.val)
		buf.WriteString("</entry>\n")
	}
	buf.WriteString("</properties>\n")
	return buf.Bytes()
}

func escape(buf *bytes.Buffer, s string) {
	xml.EscapeText(buf, []byte(s)) // writes to a bytes.Buffer cannot fail
}
