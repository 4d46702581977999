package assets

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/andybalholm/brotli"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
)

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/13)
	}
	return p
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestContentType(t *testing.T) {
	testCases := []struct {
		name         string
		wantType     string
		wantEncoding string
	}{
		{"build1.framework.js", "application/javascript", ""},
		{"build1.framework.js.br", "application/javascript", "br"},
		{"build1.wasm", "application/wasm", ""},
		{"build1.wasm.br", "application/wasm", "br"},
		{"build1.wasm.gz", "application/wasm", "gzip"},
		{"build1.data", "application/octet-stream", ""},
		{"build1.data.br", "application/octet-stream", "br"},
		{"index.html", "text/html; charset=utf-8", ""},
		{"mystery.unknownext.br", "application/octet-stream", "br"},
		{"mystery.unknownext", "", ""},
	}

	for _, tc := range testCases {
		if got := ContentType(tc.name); got != tc.wantType {
			t.Errorf("ContentType(%q) = %q; want %q", tc.name, got, tc.wantType)
		}
		if got, _ := Encoding(tc.name); got != tc.wantEncoding {
			t.Errorf("Encoding(%q) = %q; want %q", tc.name, got, tc.wantEncoding)
		}
	}
}

func TestArtifacts(t *testing.T) {
	a := NewArtifacts([]string{"build1", "build2"}, ".br")

	for _, name := range []string{"build1", "build2"} {
		for _, kind := range []string{".framework.js", ".data", ".wasm"} {
			physical, ok := a.Alias(name + kind)
			if !ok || physical != name+kind+".br" {
				t.Errorf("Alias(%q) = %q, %v", name+kind, physical, ok)
			}
			if !a.Precompressed(physical) {
				t.Errorf("Precompressed(%q) = false", physical)
			}
		}
	}

	if _, ok := a.Alias("build3.wasm"); ok {
		t.Error("unknown build resolved to an alias")
	}
	if _, ok := a.Alias("build1.loader.js"); ok {
		t.Error("loader script resolved to an alias")
	}
	if a.Precompressed("build1.wasm") {
		t.Error("logical name reported as precompressed")
	}
}

func TestBuildFile(t *testing.T) {
	testCases := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/Build/build1.wasm", "build1.wasm", true},
		{"/Build/build1.wasm.br", "build1.wasm.br", true},
		{`/Build/..\..\secret`, "secret", true},
		{"/Build/..", "", false},
		{"/Build/", "", false},
		{"/Build/nested/build1.wasm", "", false},
		{"/TemplateData/style.css", "", false},
		{"/build/build1.wasm", "", false},
	}

	for _, tc := range testCases {
		got, ok := BuildFile(tc.path)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("BuildFile(%q) = %q, %v; want %q, %v", tc.path, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestDecompress(t *testing.T) {
	want := payload(100_000)

	for name, data := range map[string][]byte{
		"build1.data.br": brotliBytes(t, want),
		"build1.data.gz": gzipBytes(t, want),
	} {
		got, err := Decompress(name, data)
		if err != nil {
			t.Errorf("Decompress(%q): %v", name, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Decompress(%q) returned %d bytes that differ from the original", name, len(got))
		}
	}
}

func TestDecompressCorrupt(t *testing.T) {
	br := brotliBytes(t, payload(100_000))
	gz := gzipBytes(t, payload(100_000))

	for name, data := range map[string][]byte{
		"truncated.data.br": br[:len(br)/2],
		"truncated.data.gz": gz[:len(gz)/2],
		"garbage.data.gz":   []byte("definitely not gzip"),
		"plain.data":        []byte("no compression suffix"),
	} {
		if _, err := Decompress(name, data); !errors.Is(err, ErrArtifactCorrupt) {
			t.Errorf("Decompress(%q) error = %v; want ErrArtifactCorrupt", name, err)
		}
	}
}

func TestDecompressTruncated(t *testing.T) {
	want := payload(100_000)

	for name, full := range map[string][]byte{
		"build1.data.br": brotliBytes(t, want),
		"build1.data.gz": gzipBytes(t, want),
	} {
		for _, cut := range []int{1, len(full) / 4, len(full) / 2, len(full) - 2, len(full) - 1} {
			out, err := Decompress(name, full[:cut])
			if !errors.Is(err, ErrArtifactCorrupt) {
				t.Errorf("Decompress(%q) cut at %d of %d: got %d bytes, error %v; want ErrArtifactCorrupt",
					name, cut, len(full), len(out), err)
			}
		}
	}
}

func TestStore(t *testing.T) {
	dir := t.TempDir()
	want := payload(50_000)
	good := filepath.Join(dir, "build1.wasm.br")
	writeFile(t, good, brotliBytes(t, want))

	set := metrics.NewSet()
	s := NewStore(32<<20, set)

	for range 3 {
		got, err := s.Decompressed(good)
		if err != nil {
			t.Fatalf("Decompressed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatal("decompressed content differs from the original")
		}
	}

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	for _, line := range []string{
		"webglhost_artifact_decompressions_total 1\n",
		"webglhost_artifact_cache_hits_total 2\n",
	} {
		if !bytes.Contains(buf.Bytes(), []byte(line)) {
			t.Errorf("metrics missing %q:\n%s", line, buf.String())
		}
	}

	// A rebuilt artifact must not be served from the cache.
	rebuilt := payload(60_000)
	writeFile(t, good, brotliBytes(t, rebuilt))
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(good, later, later); err != nil {
		t.Fatal(err)
	}
	got, err := s.Decompressed(good)
	if err != nil {
		t.Fatalf("Decompressed after rebuild: %v", err)
	}
	if len(got) != len(rebuilt) {
		t.Errorf("got %d bytes after rebuild; want %d", len(got), len(rebuilt))
	}
}

func TestStoreErrors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "build1.data.br")
	br := brotliBytes(t, payload(100_000))
	writeFile(t, corrupt, br[:len(br)/2])

	s := NewStore(0, metrics.NewSet())

	if _, err := s.Decompressed(filepath.Join(dir, "missing.data.br")); !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("missing file error = %v; want ErrArtifactMissing", err)
	}
	if _, err := s.Decompressed(dir); !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("directory error = %v; want ErrArtifactMissing", err)
	}
	if _, err := s.Decompressed(corrupt); !errors.Is(err, ErrArtifactCorrupt) {
		t.Errorf("corrupt file error = %v; want ErrArtifactCorrupt", err)
	}
}

func TestFileSystem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), []byte("<html>root</html>"))
	writeFile(t, filepath.Join(dir, "TemplateData", "style.css"), []byte("body{}"))
	writeFile(t, filepath.Join(dir, "Build", "build1.loader.js"), []byte("loader"))
	if err := os.MkdirAll(filepath.Join(dir, "Empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	fsys := FileSystem{http.Dir(dir)}

	read := func(name string) (string, error) {
		f, _, err := fsys.OpenAsset(name)
		if err != nil {
			return "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		return string(b), err
	}

	got := map[string]string{}
	for _, name := range []string{"/", "/index.html", "/TemplateData/style.css", "/Build/build1.loader.js"} {
		content, err := read(name)
		if err != nil {
			t.Errorf("OpenAsset(%q): %v", name, err)
		}
		got[name] = content
	}
	want := map[string]string{
		"/":                       "<html>root</html>",
		"/index.html":             "<html>root</html>",
		"/TemplateData/style.css": "body{}",
		"/Build/build1.loader.js": "loader",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected content (-want +got):\n%s", diff)
	}

	for _, name := range []string{"/Empty", "/Build", "/missing.txt", "/../../etc/passwd"} {
		if _, err := read(name); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("OpenAsset(%q) error = %v; want fs.ErrNotExist", name, err)
		}
	}
}
