// Package packmgrtest provides a fake remote package manager for tests.
package packmgrtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/bobg/je"
	"github.com/bobg/je/packmgr"
)

// Server is an in-process package manager.
// It records the commands it receives
// and answers downloads with Download applied to the last upload.
type Server struct {
	*httptest.Server

	User, Password string

	// Download produces the archive served for a package, given the last upload.
	// If nil, the upload itself is served.
	Download func(uploaded []byte) []byte

	mu       sync.Mutex
	commands []string
	uploaded []byte
	fail     map[string]int
	replies  map[string]string
}

// NewServer starts a Server requiring the given credentials.
// The caller must Close it.
func NewServer(user, password string) *Server {
	s := &Server{
		User:     user,
		Password: password,
		fail:     make(map[string]int),
		replies:  make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Instance is the je.Instance addressing s.
func (s *Server) Instance() je.Instance {
	return je.Instance{Address: s.URL, User: s.User, Password: s.Password}
}

// Fail makes s answer cmd ("upload", "build", "download", ...) with status.
// A zero status makes cmd succeed again.
func (s *Server) Fail(cmd string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.fail, cmd)
		return
	}
	s.fail[cmd] = status
}

// Reply makes s answer cmd with the given body instead of a success reply.
func (s *Server) Reply(cmd, body string) {
	s.mu.Lock()
	s.replies[cmd] = body
	s.mu.Unlock()
}

// Commands lists the commands received so far, in order,
// each as "cmd" or "cmd storagepath".
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Uploaded is the body of the last uploaded package.
func (s *Server) Uploaded() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded
}

func (s *Server) handle(w http.ResponseWriter, req *http.Request) {
	if user, pass, ok := req.BasicAuth(); !ok || user != s.User || pass != s.Password {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var (
		cmd, storage string
		path         = req.URL.Path
	)
	switch {
	case req.Method == http.MethodGet && strings.HasPrefix(path, packmgr.PackagesPath+"/"):
		cmd, storage = "download", strings.TrimPrefix(path, packmgr.PackagesPath+"/")

	case req.Method == http.MethodPost && path == packmgr.ServicePath:
		cmd = req.URL.Query().Get("cmd")

	case req.Method == http.MethodPost && strings.HasPrefix(path, packmgr.ServicePath+packmgr.PackagesPath+"/"):
		cmd, storage = req.URL.Query().Get("cmd"), strings.TrimPrefix(path, packmgr.ServicePath+packmgr.PackagesPath+"/")

	default:
		http.NotFound(w, req)
		return
	}

	s.mu.Lock()
	if storage == "" {
		s.commands = append(s.commands, cmd)
	} else {
		s.commands = append(s.commands, cmd+" "+storage)
	}
	status, failing := s.fail[cmd]
	reply, replying := s.replies[cmd]
	s.mu.Unlock()

	if failing {
		http.Error(w, cmd+" failed", status)
		return
	}

	switch cmd {
	case "download":
		s.mu.Lock()
		body := s.uploaded
		s.mu.Unlock()
		if s.Download != nil {
			body = s.Download(body)
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(body)
		return

	case "upload":
		f, _, err := req.FormFile(packmgr.UploadField)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		body, err := io.ReadAll(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.uploaded = body
		s.mu.Unlock()

	case "build", "install", "delete":

	default:
		http.Error(w, "unsupported command "+cmd, http.StatusNotImplemented)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if replying {
		io.WriteString(w, reply)
		return
	}
	fmt.Fprintf(w, `{"success":true,"msg":"%s done"}`, cmd)
}
