package test_helpers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// ServeFile returns a test server answering every request with body and an
// http.Client whose transport routes all traffic to it.
func ServeFile(code int, body, contentType string) (*httptest.Server, *http.Client) {
	return ServeHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(code)
		fmt.Fprintln(w, body)
	}))
}

// ServeHandler is ServeFile with a custom handler.
func ServeHandler(h http.Handler) (*httptest.Server, *http.Client) {
	server := httptest.NewServer(h)

	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			return url.Parse(server.URL)
		},
	}

	httpClient := &http.Client{Transport: transport}

	return server, httpClient
}

// TestReporter is a shim interface so helpers don't need the testing package.
type TestReporter interface {
	Fatalf(format string, args ...interface{})
}

// MemFs returns an in memory filesystem holding the given files (path to
// content).  Parent directories are created as needed.
func MemFs(t TestReporter, files map[string]string) afero.Fs {
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Error creating directory for %s: %s", path, err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("Error writing %s: %s", path, err)
		}
	}
	return fs
}

// ListFiles returns every regular file under root, sorted.
func ListFiles(t TestReporter, fs afero.Fs, root string) []string {
	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Error listing %s: %s", root, err)
	}
	sort.Strings(files)
	return files
}
