// Package filter removes volatile property lines from downloaded content files.
package filter

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/bobg/je"
	"github.com/bobg/je/jcrpath"
)

type matcher interface {
	match(line string) bool
}

type contains string

// A contains rule matches an occurrence of its value
// that does not run on into a longer property name:
// "cq:lastModified" matches `cq:lastModified="..."` but not `cq:lastModifiedBy="..."`,
// and "lastModified" matches both.
func (c contains) match(line string) bool {
	val := string(c)
	if val == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(line[start:], val)
		if i < 0 {
			return false
		}
		end := start + i + len(val)
		if end == len(line) || !nameByte(line[end]) || !nameByte(val[len(val)-1]) {
			return true
		}
		start += i + 1
	}
}

// nameByte tells whether b can appear in a property name.
func nameByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	case b == ':', b == '_', b == '-', b == '.':
		return true
	}
	return false
}

type pattern struct{ *regexp.Regexp }

func (p pattern) match(line string) bool {
	return p.MatchString(line)
}

// Filter drops lines matching any of its rules.
type Filter struct {
	matchers []matcher
	logger   *zap.Logger
}

// New compiles rules into a Filter.
// A regex rule that does not compile is logged and skipped.
func New(rules []je.IgnoreRule, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Filter{logger: logger}
	for _, rule := range rules {
		switch rule.Kind {
		case je.Contains:
			f.matchers = append(f.matchers, contains(rule.Value))

		case je.Regex:
			re, err := regexp.Compile(rule.Value)
			if err != nil {
				logger.Warn("skipping ignore rule with a malformed regex", zap.String("regex", rule.Value), zap.Error(err))
				continue
			}
			f.matchers = append(f.matchers, pattern{Regexp: re})

		default:
			logger.Warn("skipping ignore rule of unknown type", zap.Stringer("type", rule.Kind), zap.String("value", rule.Value))
		}
	}
	return f
}

// Len is the number of usable rules in f.
func (f *Filter) Len() int {
	return len(f.matchers)
}

// Keep tells whether line survives filtering.
func (f *Filter) Keep(line string) bool {
	for _, m := range f.matchers {
		if m.match(line) {
			return false
		}
	}
	return true
}

// Lines returns the lines of r that survive filtering,
// each terminated with a newline.
func (f *Filter) Lines(r io.Reader) ([]string, error) {
	var (
		br     = bufio.NewReader(r)
		result []string
	)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if f.Keep(line) {
				result = append(result, line+"\n")
			} else {
				f.logger.Debug("removing line", zap.String("line", line))
			}
		}
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// CleanupFiles rewrites every .content.xml file beneath root,
// the content mirror of a work directory,
// without the lines f drops.
func (f *Filter) CleanupFiles(fs afero.Fs, root string) error {
	f.logger.Info("cleaning files of unwanted properties", zap.String("root", root), zap.Int("rules", len(f.matchers)))

	return afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return &je.FilterError{File: p, Err: err}
		}
		if !info.Mode().IsRegular() || info.Name() != jcrpath.ContentFile {
			return nil
		}
		if err = f.cleanupFile(fs, p, info.Mode().Perm()); err != nil {
			return &je.FilterError{File: p, Err: err}
		}
		return nil
	})
}

func (f *Filter) cleanupFile(fs afero.Fs, p string, perm os.FileMode) error {
	f.logger.Debug("cleaning file", zap.String("file", p))

	in, err := fs.Open(p)
	if err != nil {
		return errors.Wrap(err, "opening")
	}
	lines, err := f.Lines(in)
	in.Close()
	if err != nil {
		return errors.Wrap(err, "reading")
	}

	buf := new(bytes.Buffer)
	for _, line := range lines {
		buf.WriteString(line)
	}
	return errors.Wrap(afero.WriteFile(fs, p, buf.Bytes(), perm), "rewriting")
}
