package feed

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var ErrTooLarge = errors.New("decompressed index exceeds size limit")

// Decompress picks the codec from the artifact name. Gzip input may consist
// of several concatenated members. A positive maxSize caps the number of
// decompressed bytes that can be read.
func Decompress(r io.Reader, name string, maxSize int64) (io.ReadCloser, error) {
	var (
		rc  io.ReadCloser
		err error
	)

	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".gz":
		var gz *gzip.Reader
		gz, err = gzip.NewReader(r)
		if err == nil {
			gz.Multistream(true)
			rc = gz
		}
	case ".zst":
		var dec *zstd.Decoder
		dec, err = zstd.NewReader(r)
		if err == nil {
			rc = dec.IOReadCloser()
		}
	case ".xz":
		var xr *xz.Reader
		xr, err = xz.NewReader(r)
		if err == nil {
			rc = io.NopCloser(xr)
		}
	case ".xml":
		rc = io.NopCloser(r)
	default:
		return nil, fmt.Errorf("unsupported compression %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if maxSize <= 0 {
		return rc, nil
	}
	return &cappedReader{ReadCloser: rc, max: maxSize}, nil
}

type cappedReader struct {
	io.ReadCloser
	max  int64
	read int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.read += int64(n)
	if c.read > c.max {
		return n, ErrTooLarge
	}
	return n, err
}
