// Package archive writes directory trees to zip archives and extracts them again.
//
// Entry names are always slash-separated and relative to a root directory
// passed explicitly,
// so writing never depends on the process's working directory.
package archive

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/bobg/je"
)

// Write creates the zip archive `out` from the trees `members`,
// each a path relative to `root`.
// Every directory gets an explicit entry (name ending in "/")
// so that empty directories survive extraction.
// Files are stored at their path relative to root.
// It returns the size of the archive in bytes.
func Write(fs afero.Fs, root, out string, members ...string) (int64, error) {
	f, err := fs.Create(out)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", out)
	}
	defer f.Close()

	w := zip.NewWriter(f)

	for _, member := range members {
		top := filepath.Join(root, member)
		err = afero.Walk(fs, top, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return errors.Wrapf(err, "computing path of %s relative to %s", p, root)
			}
			name := filepath.ToSlash(rel)

			switch {
			case info.IsDir():
				_, err = w.CreateHeader(&zip.FileHeader{
					Name:     name + "/",
					Method:   zip.Store,
					Modified: info.ModTime(),
				})
				return errors.Wrapf(err, "adding directory %s", name)

			case info.Mode().IsRegular():
				return addFile(fs, w, p, name, info)

			default:
				// Sockets, devices and links have no place in a content package.
				return nil
			}
		})
		if err != nil {
			return 0, &je.ArchiveError{Archive: out, Err: errors.Wrapf(err, "adding %s", member)}
		}
	}

	if err = w.Close(); err != nil {
		return 0, &je.ArchiveError{Archive: out, Err: errors.Wrap(err, "finishing archive")}
	}

	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "statting %s", out)
	}
	return info.Size(), f.Close()
}

func addFile(fs afero.Fs, w *zip.Writer, p, name string, info os.FileInfo) error {
	in, err := fs.Open(p)
	if err != nil {
		return errors.Wrapf(err, "opening %s", p)
	}
	defer in.Close()

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return errors.Wrapf(err, "building header for %s", p)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := w.CreateHeader(hdr)
	if err != nil {
		return errors.Wrapf(err, "adding file %s", name)
	}
	_, err = io.Copy(dst, in)
	return errors.Wrapf(err, "copying %s into archive", p)
}

// Extract unpacks the zip archive `in` beneath `root`,
// creating directories as needed.
// An entry whose name is absolute or climbs out of root is rejected with a *je.ArchiveError
// before anything is written for it.
func Extract(fs afero.Fs, in, root string) error {
	f, err := fs.Open(in)
	if err != nil {
		return errors.Wrapf(err, "opening %s", in)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "statting %s", in)
	}

	r, err := zip.NewReader(f, info.Size())
	if err != nil {
		return &je.ArchiveError{Archive: in, Err: err}
	}

	for _, entry := range r.File {
		dest, err := entryPath(root, entry.Name)
		if err != nil {
			return &je.ArchiveError{Archive: in, Entry: entry.Name, Err: err}
		}

		mode := entry.Mode()
		switch {
		case strings.HasSuffix(entry.Name, "/") || mode.IsDir():
			if err = fs.MkdirAll(dest, 0755); err != nil {
				return errors.Wrapf(err, "creating directory %s", dest)
			}

		case mode&os.ModeSymlink != 0:
			return &je.ArchiveError{Archive: in, Entry: entry.Name, Err: errors.New("symbolic links are not allowed")}

		default:
			if err = extractFile(fs, entry, dest); err != nil {
				return &je.ArchiveError{Archive: in, Entry: entry.Name, Err: err}
			}
		}
	}

	return nil
}

// entryPath is the destination of the entry `name` beneath root.
func entryPath(root, name string) (string, error) {
	if name == "" {
		return "", errors.New("empty name")
	}
	slashed := strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(slashed) || filepath.VolumeName(filepath.FromSlash(slashed)) != "" {
		return "", errors.New("absolute path")
	}
	clean := path.Clean(slashed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.New("path escapes the destination directory")
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

func extractFile(fs afero.Fs, entry *zip.File, dest string) error {
	if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", dest)
	}

	in, err := entry.Open()
	if err != nil {
		return errors.Wrap(err, "opening entry")
	}
	defer in.Close()

	out, err := fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating %s", dest)
	}
	defer out.Close()

	if _, err = io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	return out.Close()
}
