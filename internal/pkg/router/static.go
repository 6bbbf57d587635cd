package router

import (
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// staticHandler serves files from a directory for requests no route claims.
// Anything that is not a regular file inside the directory is a JSON 404.
type staticHandler struct {
	fsys fs.FS
}

func newStaticHandler(dir string) *staticHandler {
	if dir == "" {
		return &staticHandler{}
	}

	return &staticHandler{fsys: os.DirFS(dir)}
}

func (s *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		notFound(w)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if strings.HasPrefix(name, "api/") {
		notFound(w)
		return
	}

	s.serveFile(w, r, name)
}

func (s *staticHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, "index.html")
}

func (s *staticHandler) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	if s.fsys == nil || name == "" || !fs.ValidPath(name) {
		notFound(w)
		return
	}

	info, err := fs.Stat(s.fsys, name)
	if err != nil || !info.Mode().IsRegular() {
		notFound(w)
		return
	}

	f, err := s.fsys.Open(name)
	if err != nil {
		notFound(w)
		return
	}
	defer f.Close()

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		notFound(w)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, ErrorResponse{Error: "Not found"}, http.StatusNotFound)
}
