package jcrpath

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/bobg/je"
)

func TestRepoPath(t *testing.T) {
	cases := []struct {
		local, want string
	}{
		{"/home/user/project/test/jcr_root/content/abc", "/content/abc"},
		{"/home/user/project/jcr_root/content/abc/", "/content/abc"},
		{"/home/user/project/jcr_root", "/"},
		{"/p/jcr_root/content/_jcr_content/.content.xml", "/content/_jcr_content/.content.xml"},
		{"/p/jcr_root/content/my_jcr_rootish", "/content/my_jcr_rootish"},
	}
	for _, c := range cases {
		t.Run(c.local, func(t *testing.T) {
			got, err := RepoPath(c.local)
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestRepoPathMalformed(t *testing.T) {
	cases := []struct {
		local   string
		markers int
	}{
		{"/home/user/project/test/content/abc", 0},
		{"/home/user/project/test", 0},
		{"/a/jcr_root/b/jcr_root/c", 2},
	}
	for _, c := range cases {
		t.Run(c.local, func(t *testing.T) {
			_, err := RepoPath(c.local)
			if !errors.Is(err, je.ErrMalformedPath) {
				t.Fatalf("got error %v, want a malformed-path error", err)
			}
			var pe *je.PathError
			if !errors.As(err, &pe) {
				t.Fatalf("got %T, want *je.PathError", err)
			}
			if pe.Markers != c.markers {
				t.Errorf("got %d markers, want %d", pe.Markers, c.markers)
			}

			if _, err = MirrorPath(c.local); !errors.Is(err, je.ErrMalformedPath) {
				t.Errorf("MirrorPath: got error %v, want a malformed-path error", err)
			}
			if _, err = ParentMirrorPath(c.local); !errors.Is(err, je.ErrMalformedPath) {
				t.Errorf("ParentMirrorPath: got error %v, want a malformed-path error", err)
			}
		})
	}
}

// The mirror path of a local path is the marker followed by its repository path.
func TestMirrorMatchesRepoPath(t *testing.T) {
	locals := []string{
		"/home/user/project/jcr_root/content/abc",
		"/srv/x/jcr_root/apps/site/components/page/_cq_dialog",
		"/srv/x/jcr_root/conf",
		"/srv/x/jcr_root",
	}
	for _, local := range locals {
		repo, err := RepoPath(local)
		if err != nil {
			t.Fatal(err)
		}
		mirror, err := MirrorPath(local)
		if err != nil {
			t.Fatal(err)
		}
		suffix := strings.TrimPrefix(filepath.ToSlash(mirror), Marker)
		if suffix == "" {
			suffix = "/"
		}
		if suffix != repo {
			t.Errorf("%s: mirror path %s does not match repository path %s", local, mirror, repo)
		}
		after := local[strings.Index(local, Marker)+len(Marker):]
		if after == "" {
			after = "/"
		}
		if repo != after {
			t.Errorf("%s: repository path %s, want %s", local, repo, after)
		}
	}
}

func TestMirrorPaths(t *testing.T) {
	local := "/home/user/project/jcr_root/content/project/en_gb/home"

	got, err := MirrorPath(local)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.FromSlash("jcr_root/content/project/en_gb/home"); got != want {
		t.Errorf("got mirror path %s, want %s", got, want)
	}

	got, err = ParentMirrorPath(local)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.FromSlash("jcr_root/content/project/en_gb"); got != want {
		t.Errorf("got parent mirror path %s, want %s", got, want)
	}

	got, err = ParentMirrorPath("/p/jcr_root")
	if err != nil {
		t.Fatal(err)
	}
	if got != Marker {
		t.Errorf("got parent mirror path %s, want %s", got, Marker)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"_jcr_content/.content.xml", "jcr:content/"},
		{"_jcr_content.xml", "jcr:content"},
		{`\content\site\_jcr_content\.content.xml`, "/content/site/jcr:content/"},
		{"/content/site/.content.xml", "/content/site/"},
		{"/apps/site/components/page/_cq_dialog", "/apps/site/components/page/cq:dialog"},
		{"/home/users/_rep_policy.xml", "/home/users/rep:policy"},
		{"/content/dam/x/_jcr_content/metadata/_exif_data", "/content/dam/x/jcr:content/metadata/exif:data"},
		{"/conf/_sling_configs/_oak_index/_granite_x/_dam_y/_social_z",
			"/conf/sling:configs/oak:index/granite:x/dam:y/social:z"},
		{"/content/site/my_jcr_node", "/content/site/my_jcr_node"},
		{"/content/site/data.xml", "/content/site/data.xml"},
		{"/content/site/notcontent.xml", "/content/site/notcontent.xml"},
		{"/content/site", "/content/site"},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			if got := Normalize(c.in); got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestFilterRoot(t *testing.T) {
	got, err := FilterRoot("/p/jcr_root/content/site/_jcr_content/.content.xml")
	if err != nil {
		t.Fatal(err)
	}
	if want := "/content/site/jcr:content/"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if _, err = FilterRoot("/p/content"); !errors.Is(err, je.ErrMalformedPath) {
		t.Errorf("got error %v, want a malformed-path error", err)
	}
}
