// Package jcrpath translates between local filesystem paths and repository paths.
//
// A local path is tied to the repository by its jcr_root segment:
// everything after that segment is the repository path.
package jcrpath

import (
	"path/filepath"
	"strings"

	"github.com/bobg/je"
)

// Marker is the segment separating a local project prefix from repository content.
const Marker = "jcr_root"

// ContentFile is the file in which a node's properties are serialized.
const ContentFile = ".content.xml"

// split returns the slash-separated segments following the sole Marker segment of local.
func split(local string) ([]string, error) {
	segs := strings.Split(filepath.ToSlash(local), "/")

	idx, n := -1, 0
	for i, seg := range segs {
		if seg == Marker {
			idx = i
			n++
		}
	}
	if n != 1 {
		return nil, &je.PathError{Path: local, Markers: n}
	}

	var rest []string
	for _, seg := range segs[idx+1:] {
		if seg != "" && seg != "." {
			rest = append(rest, seg)
		}
	}
	return rest, nil
}

// RepoPath is the repository path of local, e.g. /content/site for /x/jcr_root/content/site.
// It returns a *je.PathError if local does not contain the Marker segment exactly once.
func RepoPath(local string) (string, error) {
	rest, err := split(local)
	if err != nil {
		return "", err
	}
	return "/" + strings.Join(rest, "/"), nil
}

// MirrorPath is local relative to a package's work directory:
// the repository path beneath the Marker directory, e.g. jcr_root/content/site.
// The result uses the platform separator.
func MirrorPath(local string) (string, error) {
	rest, err := split(local)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{Marker}, rest...)...), nil
}

// ParentMirrorPath is the MirrorPath of local's parent directory.
// For the Marker directory itself it is the Marker directory.
func ParentMirrorPath(local string) (string, error) {
	rest, err := split(local)
	if err != nil {
		return "", err
	}
	if len(rest) > 0 {
		rest = rest[:len(rest)-1]
	}
	return filepath.Join(append([]string{Marker}, rest...)...), nil
}

// Escaped namespace prefixes and their repository forms, in the order they are applied.
var namespaces = []struct{ escaped, qualified string }{
	{"_jcr_", "jcr:"},
	{"_rep_", "rep:"},
	{"_cq_", "cq:"},
	{"_oak_", "oak:"},
	{"_sling_", "sling:"},
	{"_granite_", "granite:"},
	{"_dam_", "dam:"},
	{"_exif_", "exif:"},
	{"_social_", "social:"},
}

// Normalize rewrites a repository path as it is spelled on disk
// into the form the repository uses:
// backslashes become slashes,
// a trailing .content.xml is dropped
// (leaving the node path with a trailing slash),
// a trailing .xml is dropped from a namespace-escaped final segment
// (_jcr_content.xml names the node jcr:content),
// and segments starting with an escaped namespace prefix
// get their colon-qualified form (_cq_dialog becomes cq:dialog).
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")

	if strings.HasSuffix(p, ContentFile) {
		prefix := strings.TrimSuffix(p, ContentFile)
		if prefix == "" || strings.HasSuffix(prefix, "/") {
			p = prefix
		}
	} else if last := p[strings.LastIndex(p, "/")+1:]; strings.HasSuffix(last, ".xml") && isEscaped(last) {
		p = strings.TrimSuffix(p, ".xml")
	}

	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = unescape(seg)
	}
	return strings.Join(segs, "/")
}

func isEscaped(seg string) bool {
	for _, ns := range namespaces {
		if strings.HasPrefix(seg, ns.escaped) {
			return true
		}
	}
	return false
}

func unescape(seg string) string {
	for _, ns := range namespaces {
		if strings.HasPrefix(seg, ns.escaped) {
			// Only the leading prefix is a namespace.
			return ns.qualified + strings.TrimPrefix(seg, ns.escaped)
		}
	}
	return seg
}

// FilterRoot is the normalized repository path of local,
// as it appears in a package filter.
func FilterRoot(local string) (string, error) {
	p, err := RepoPath(local)
	if err != nil {
		return "", err
	}
	return Normalize(p), nil
}
