package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrArtifactMissing indicates that a precompressed artifact could not be
	// read from disk.
	ErrArtifactMissing = errors.New("artifact missing")

	// ErrArtifactCorrupt indicates that a precompressed artifact could not be
	// decompressed.
	ErrArtifactCorrupt = errors.New("artifact corrupt")
)

// Store produces the decompressed content of precompressed artifacts.
//
// Decompressed content is optionally cached in memory, keyed by the identity
// of the file on disk (its path, size, and modification time), so that a
// rebuilt artifact is never served stale. Concurrent requests for the same
// artifact share a single decompression.
type Store struct {
	cache *fastcache.Cache
	group singleflight.Group

	decompressions *metrics.Counter
	cacheHits      *metrics.Counter
}

// NewStore creates a Store that caches up to cacheBytes of decompressed
// content. A cacheBytes of zero disables caching. Counters are registered in
// set.
func NewStore(cacheBytes int, set *metrics.Set) *Store {
	s := &Store{
		decompressions: set.GetOrCreateCounter("webglhost_artifact_decompressions_total"),
		cacheHits:      set.GetOrCreateCounter("webglhost_artifact_cache_hits_total"),
	}
	if cacheBytes > 0 {
		s.cache = fastcache.New(cacheBytes)
	}
	return s
}

// Decompressed reads the file at physicalPath and returns its decompressed
// content. Errors wrap either ErrArtifactMissing or ErrArtifactCorrupt.
func (s *Store) Decompressed(physicalPath string) ([]byte, error) {
	info, err := os.Stat(physicalPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrArtifactMissing, physicalPath)
	}

	key := cacheKey(physicalPath, info)
	if s.cache != nil {
		if buf := s.cache.GetBig(nil, []byte(key)); len(buf) > 0 {
			s.cacheHits.Inc()
			return buf, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		data, err := os.ReadFile(physicalPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArtifactMissing, err)
		}
		buf, err := Decompress(physicalPath, data)
		if err != nil {
			return nil, err
		}
		s.decompressions.Inc()
		if s.cache != nil {
			s.cache.SetBig([]byte(key), buf)
		}
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func cacheKey(physicalPath string, info fs.FileInfo) string {
	return physicalPath + "\x00" +
		strconv.FormatInt(info.Size(), 10) + "\x00" +
		strconv.FormatInt(info.ModTime().UnixNano(), 10)
}
