package assets

import (
	"mime"
	"path"
	"strings"
)

// Content types for the artifacts of a Unity WebGL build, which the loader
// expects exactly.
var buildContentTypes = map[string]string{
	".js":   "application/javascript",
	".wasm": "application/wasm",
	".data": "application/octet-stream",
	".html": "text/html; charset=utf-8",
}

var encodingSuffixes = []struct {
	suffix   string
	encoding string
}{
	{".br", "br"},
	{".gz", "gzip"},
}

// Encoding reports the HTTP content coding of a precompressed file name, along
// with the name the file had before compression. For names without a known
// compression suffix, encoding is empty and inner is name.
func Encoding(name string) (encoding, inner string) {
	for _, es := range encodingSuffixes {
		if strings.HasSuffix(name, es.suffix) {
			return es.encoding, strings.TrimSuffix(name, es.suffix)
		}
	}
	return "", name
}

// ContentType returns the media type to report for the named file. For a
// precompressed file, this is the type of the decompressed content rather than
// that of the compression container.
//
// ContentType returns an empty string for an uncompressed file of unknown
// type, leaving the choice to content sniffing. An unknown precompressed type
// is reported as application/octet-stream, since sniffing compressed bytes
// would be meaningless.
func ContentType(name string) string {
	encoding, inner := Encoding(name)
	ext := strings.ToLower(path.Ext(inner))
	if ctype, ok := buildContentTypes[ext]; ok {
		return ctype
	}
	if ctype := mime.TypeByExtension(ext); ctype != "" {
		return ctype
	}
	if encoding != "" {
		return "application/octet-stream"
	}
	return ""
}
