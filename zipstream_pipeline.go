package zipstream

import (
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// Result describes the bytes a pipeline produced for one entry.
type Result struct {
	// Length is the number of bytes written to the sink.
	Length int64

	// CRC32 is the checksum of the original content. Encrypting
	// pipelines that carry integrity data of their own leave it zero.
	CRC32 uint32
}

// ProcessOptions are the per-entry transform parameters.
type ProcessOptions struct {
	// Level is the deflate level, zero stores the content as-is.
	Level int

	// Password enables encryption when non-empty.
	Password []byte

	// Size is the uncompressed content size in bytes.
	Size int64

	// Progress is invoked with the number of content bytes
	// consumed so far, and the total.
	Progress func(written, total int64)
}

// Pipeline transforms entry content into archive bytes. The writer
// passes its result verbatim into the entry's header and footer.
type Pipeline interface {
	Process(dst io.Writer, src io.Reader, opts ProcessOptions) (Result, error)
}

// PipelineFunc implements the Pipeline interface.
type PipelineFunc func(io.Writer, io.Reader, ProcessOptions) (Result, error)

// Process implementation.
func (f PipelineFunc) Process(dst io.Writer, src io.Reader, opts ProcessOptions) (Result, error) {
	return f(dst, src, opts)
}

// ErrEncryptionUnsupported is returned by the default pipeline when
// a password is supplied, encryption requires a replacement
// pipeline via WithPipeline.
var ErrEncryptionUnsupported = errors.New("zipstream: default pipeline does not encrypt")

// DefaultPipeline stores or deflates content and computes its CRC-32.
var DefaultPipeline Pipeline = PipelineFunc(process)

func process(dst io.Writer, src io.Reader, opts ProcessOptions) (Result, error) {
	if len(opts.Password) > 0 {
		return Result{}, ErrEncryptionUnsupported
	}

	crc := crc32.NewIEEE()
	count := &countWriter{w: dst}

	src = io.TeeReader(src, crc)
	if opts.Progress != nil {
		src = &progressReader{r: src, total: opts.Size, progress: opts.Progress}
	}

	if opts.Level > 0 {
		fw, err := flate.NewWriter(count, opts.Level)
		if err != nil {
			return Result{}, errors.Wrap(err, "creating deflater")
		}

		if _, err := io.Copy(fw, src); err != nil {
			return Result{}, errors.Wrap(err, "deflating")
		}

		if err := fw.Close(); err != nil {
			return Result{}, errors.Wrap(err, "flushing deflater")
		}
	} else {
		if _, err := io.Copy(count, src); err != nil {
			return Result{}, errors.Wrap(err, "storing")
		}
	}

	return Result{Length: count.n, CRC32: crc.Sum32()}, nil
}

// countWriter counts the bytes written through it.
type countWriter struct {
	w io.Writer
	n int64
}

// Write implementation.
func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, err
}

// progressReader reports consumed bytes.
type progressReader struct {
	r        io.Reader
	n        int64
	total    int64
	progress func(written, total int64)
}

// Read implementation.
func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.n += int64(n)
		r.progress(r.n, r.total)
	}
	return n, err
}
