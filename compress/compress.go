// Package compress wraps deflate compression. The codec's Compressed
// serializer uses it to keep stored message bodies packed at rest; the
// request/response wire path never compresses.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// Deflate compresses data at the default compression level.
func Deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Inflate reverses Deflate.
func Inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
