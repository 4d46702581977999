package assets

import (
	"path"
	"strings"
)

// Kinds of artifact produced for every build of the game.
var artifactKinds = []string{".framework.js", ".data", ".wasm"}

// Artifacts knows which build artifacts exist only in precompressed form, and
// which logical names resolve to them.
type Artifacts struct {
	aliases       map[string]string
	precompressed map[string]struct{}
}

// NewArtifacts generates the alias table for the named builds, whose
// precompressed artifacts carry the given suffix (e.g. ".br").
//
// For a build named "build1" and suffix ".br", "build1.wasm" is an alias for
// "build1.wasm.br", and so on for every artifact kind.
func NewArtifacts(buildNames []string, suffix string) *Artifacts {
	a := &Artifacts{
		aliases:       make(map[string]string),
		precompressed: make(map[string]struct{}),
	}
	for _, name := range buildNames {
		for _, kind := range artifactKinds {
			logical := name + kind
			physical := logical + suffix
			a.aliases[logical] = physical
			a.precompressed[physical] = struct{}{}
		}
	}
	return a
}

// Alias returns the physical file name that a request for the logical name
// file should be answered from.
func (a *Artifacts) Alias(file string) (physical string, ok bool) {
	physical, ok = a.aliases[file]
	return
}

// Precompressed reports whether file is a known precompressed artifact that
// may be passed through to clients verbatim.
func (a *Artifacts) Precompressed(file string) bool {
	_, ok := a.precompressed[file]
	return ok
}

// BuildFile extracts the artifact file name from a request path of the form
// /Build/{file}. It reports false for paths outside of /Build, and for paths
// with more than one segment beneath it. The result never contains a path
// separator or a parent directory reference.
func BuildFile(urlPath string) (string, bool) {
	const prefix = "/Build/"
	rest, ok := strings.CutPrefix(urlPath, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	file := path.Base(strings.ReplaceAll(rest, `\`, "/"))
	if file == "." || file == ".." || file == "/" {
		return "", false
	}
	return file, true
}
