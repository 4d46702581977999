package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Decompress fully decodes data, which was read from the file named name,
// according to the compression format indicated by the name's suffix. A stream
// that ends before its final block is an error.
//
// Errors wrap ErrArtifactCorrupt.
func Decompress(name string, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch encoding, _ := Encoding(name); encoding {
	case "br":
		out, err = decompressBrotli(data)
	case "gzip":
		out, err = decompressGzip(data)
	default:
		return nil, fmt.Errorf("%w: %s has no known compression suffix", ErrArtifactCorrupt, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, name, err)
	}
	return out, nil
}

var errIncompleteStream = errors.New("stream ends before its final block")

// brotliEndMarker is a byte fed to the brotli reader after the real input. The
// reader reports excessTrailingInput only once it has decoded the final block
// of the stream and finds input left over. When the source simply runs out
// instead, the reader returns a bare io.EOF whether or not the stream was
// complete.
var brotliEndMarker = []byte{0}

// excessTrailingInput is captured from a complete empty stream, since the
// brotli package does not export it.
var excessTrailingInput = func() error {
	var empty bytes.Buffer
	brotli.NewWriter(&empty).Close()
	_, err := io.ReadAll(brotli.NewReader(io.MultiReader(&empty, bytes.NewReader(brotliEndMarker))))
	return err
}()

func decompressBrotli(data []byte) ([]byte, error) {
	r := brotli.NewReader(io.MultiReader(bytes.NewReader(data), bytes.NewReader(brotliEndMarker)))
	out, err := io.ReadAll(r)
	switch {
	case excessTrailingInput != nil && err == excessTrailingInput:
		return out, nil
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
		return nil, errIncompleteStream
	default:
		return nil, err
	}
}

func decompressGzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
