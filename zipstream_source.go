package zipstream

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Source supplies the content of one entry. Open must report the
// content size in bytes, which ends up as the entry's uncompressed
// size. When the returned reader is an io.Closer it is closed once
// the content has been consumed.
type Source interface {
	Open() (io.Reader, int64, error)
}

// BytesSource is an in-memory source.
type BytesSource []byte

// Open implementation.
func (s BytesSource) Open() (io.Reader, int64, error) {
	return bytes.NewReader(s), int64(len(s)), nil
}

// FileSource reads content from the file at the given path.
type FileSource string

// Open implementation.
func (s FileSource) Open() (io.Reader, int64, error) {
	f, err := os.Open(string(s))
	if err != nil {
		return nil, 0, errors.Wrap(err, "opening file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errors.Wrap(err, "stating file")
	}

	return f, info.Size(), nil
}

// fileReader ties a transformed reader to the file it wraps, so a
// close from the reader's consumer reaches the underlying handle.
type fileReader struct {
	io.Reader
	f *os.File
}

// Close implementation.
func (r *fileReader) Close() error {
	return r.f.Close()
}

// ReaderSource pairs a reader with its known size.
type ReaderSource struct {
	Reader io.Reader
	Size   int64
}

// Open implementation.
func (s ReaderSource) Open() (io.Reader, int64, error) {
	return s.Reader, s.Size, nil
}
