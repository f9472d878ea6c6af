package zipstream

import (
	"bytes"
	"io"
)

// Sink is the archive output destination. Init is idempotent and
// invoked lazily before the first write. Data returns the
// accumulated bytes, and is only meaningful once the archive
// has been closed.
type Sink interface {
	io.Writer
	Init() error
	Data() []byte
}

// BufferSink accumulates the archive in memory.
type BufferSink struct {
	buf bytes.Buffer
}

// NewBufferSink returns a new in-memory sink.
func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

// Init implementation.
func (s *BufferSink) Init() error {
	return nil
}

// Write implementation.
func (s *BufferSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

// Data implementation.
func (s *BufferSink) Data() []byte {
	return s.buf.Bytes()
}

// WriterSink adapts an io.Writer. Data returns nil since the
// destination owns the bytes.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Init implementation.
func (s *WriterSink) Init() error {
	return nil
}

// Write implementation.
func (s *WriterSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Data implementation.
func (s *WriterSink) Data() []byte {
	return nil
}
