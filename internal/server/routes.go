package server

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/ahamlinman/webglhost/internal/api"
	"github.com/ahamlinman/webglhost/internal/assets"
)

// An assetRoute either handles a request completely, or declines it without
// writing anything so that the next route may try.
type assetRoute func(w http.ResponseWriter, r *http.Request) (handled bool)

func (s *Server) serveAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		for _, route := range s.assetRoutes {
			if route(w, r) {
				return
			}
		}
	}
	api.NotFound(w, r)
}

func (s *Server) serveLanding(w http.ResponseWriter, r *http.Request) {
	if !s.serveStatic(w, r) {
		api.NotFound(w, r)
	}
}

// setIsolationHeaders opts the response into cross-origin isolation, which
// browsers require before they allow WebAssembly threads.
func setIsolationHeaders(h http.Header) {
	h.Set("Cross-Origin-Embedder-Policy", "require-corp")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
}

// serveDecompressedAlias answers a request for a logical artifact name with the
// decompressed content of its precompressed file. Some mobile browsers can't
// decode the compressed stream themselves when the loader fetches it.
func (s *Server) serveDecompressedAlias(w http.ResponseWriter, r *http.Request) bool {
	file, ok := assets.BuildFile(r.URL.Path)
	if !ok {
		return false
	}
	physical, ok := s.artifacts.Alias(file)
	if !ok {
		return false
	}

	buf, err := s.store.Decompressed(filepath.Join(s.publicDir, "Build", physical))
	if err != nil {
		s.noteFallthrough(physical, err)
		return false
	}

	h := w.Header()
	h.Set("Content-Length", strconv.Itoa(len(buf)))
	h.Set("Content-Type", assets.ContentType(file))
	setIsolationHeaders(h)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(buf)
	}
	return true
}

// servePrecompressed passes a precompressed artifact through verbatim, for
// clients that request the compressed file by name.
func (s *Server) servePrecompressed(w http.ResponseWriter, r *http.Request) bool {
	file, ok := assets.BuildFile(r.URL.Path)
	if !ok || !s.artifacts.Precompressed(file) {
		return false
	}

	f, info, err := s.files.OpenAsset(path.Join("/Build", file))
	if err != nil {
		return false
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", assets.ContentType(file))
	setIsolationHeaders(h)
	serveContent(w, r, info, f)
	return true
}

// serveStatic serves any other file under the public root unmodified.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) bool {
	f, info, err := s.files.OpenAsset(r.URL.Path)
	if err != nil {
		return false
	}
	defer f.Close()

	h := w.Header()
	setIsolationHeaders(h)
	if ctype := assets.ContentType(info.Name()); ctype != "" {
		h.Set("Content-Type", ctype)
	}
	serveContent(w, r, info, f)
	return true
}

// serveContent serves f with http.ServeContent, labeling a precompressed file
// with its content coding. ServeContent omits Content-Length whenever
// Content-Encoding is set, so a full response to an encoded file gets its
// length from the file size.
func serveContent(w http.ResponseWriter, r *http.Request, info fs.FileInfo, f io.ReadSeeker) {
	encoding, _ := assets.Encoding(info.Name())
	if encoding == "" {
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return
	}

	h := w.Header()
	h.Set("Content-Encoding", encoding)
	h.Add("Vary", "Accept-Encoding")
	http.ServeContent(encodedLengthWriter{w, info.Size()}, r, info.Name(), info.ModTime(), f)
}

type encodedLengthWriter struct {
	http.ResponseWriter
	size int64
}

func (w encodedLengthWriter) WriteHeader(code int) {
	if code == http.StatusOK {
		w.Header().Set("Content-Length", strconv.FormatInt(w.size, 10))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w encodedLengthWriter) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(w.ResponseWriter, r)
}

func (w encodedLengthWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) noteFallthrough(physical string, err error) {
	if errors.Is(err, assets.ErrArtifactCorrupt) {
		s.fallthroughCorrupt.Inc()
		s.log.Warn("Build artifact failed to decompress; falling through",
			zap.String("file", physical), zap.Error(err))
		return
	}
	s.fallthroughMissing.Inc()
	s.log.Debug("Build artifact unavailable; falling through",
		zap.String("file", physical), zap.Error(err))
}
