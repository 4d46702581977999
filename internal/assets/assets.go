// Package assets locates and prepares the files of a compiled WebGL build for
// delivery to browsers.
package assets

import (
	"io/fs"
	"net/http"
	"path"
)

const indexPage = "index.html"

// FileSystem wraps http.FileSystem to resolve request paths to servable files.
//
// Directory listings are never served. A directory resolves to its index page
// if it has one, and otherwise does not exist as far as clients can tell.
type FileSystem struct {
	http.FileSystem
}

// OpenAsset opens the file that a request for name should be answered with,
// along with its metadata. The returned error satisfies errors.Is(err,
// fs.ErrNotExist) when there is nothing to serve.
func (fsys FileSystem) OpenAsset(name string) (http.File, fs.FileInfo, error) {
	f, info, err := fsys.open(name)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return f, info, nil
	}
	f.Close()

	// The index page is served in place of the directory, without a redirect.
	f, info, err = fsys.open(path.Join(name, indexPage))
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fs.ErrNotExist
	}
	return f, info, nil
}

func (fsys FileSystem) open(name string) (http.File, fs.FileInfo, error) {
	f, err := fsys.FileSystem.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}
