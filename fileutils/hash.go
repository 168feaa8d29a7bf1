package fileutils

import (
	"errors"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash"
)

// Digest returns the xxhash of data as lowercase hex. It names document
// versions in ETags and object metadata.
func Digest(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// ComputeHash reads r to the end without closing it.
func ComputeHash(r io.Reader) (uint64, error) {
	hash := xxhash.New()
	if _, err := io.Copy(hash, r); err != nil {
		return 0, err
	}
	return hash.Sum64(), nil
}

func ComputeFileHash(path string) (hash uint64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return ComputeHash(file)
}
