package jsync

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// replace moves from over to, removing to first if it is a directory.
// When from and to are on different devices it copies instead.
func replace(fs afero.Fs, from, to string, logger *zap.Logger) error {
	if info, err := fs.Stat(to); err == nil && info.IsDir() {
		if err = fs.RemoveAll(to); err != nil {
			return errors.Wrapf(err, "removing %s", to)
		}
	}
	if err := fs.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", to)
	}

	err := fs.Rename(from, to)
	if err == nil {
		return nil
	}
	logger.Debug("rename failed, copying", zap.String("from", from), zap.String("to", to), zap.Error(err))

	if err = copyTree(fs, from, to); err != nil {
		return err
	}
	return errors.Wrapf(fs.RemoveAll(from), "removing %s", from)
}

// copyTree copies the file or directory tree src to dst.
func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return errors.Wrapf(err, "computing path of %s relative to %s", p, src)
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return errors.Wrapf(fs.MkdirAll(target, 0755), "creating %s", target)
		case info.Mode().IsRegular():
			return copyFile(fs, p, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	if err = fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", dst)
	}
	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "creating %s", dst)
	}
	defer out.Close()

	if _, err = io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copying %s to %s", src, dst)
	}
	return out.Close()
}
