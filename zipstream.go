// Package zipstream assembles ZIP archives incrementally on an
// append-only output sink.
package zipstream

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Errors reported by the writer. Sink, source and pipeline failures
// are returned wrapped instead, and leave the in-progress archive
// unusable — partial writes are not rolled back.
var (
	ErrDuplicateName   = errors.New("zipstream: duplicate entry name")
	ErrCommentTooLarge = errors.New("zipstream: archive comment exceeds 65535 bytes")
	ErrClosed          = errors.New("zipstream: writer is closed")
)

// Transformer is the interface used to transform files added via
// AddDir. Note that the file info is accepted as-is, so if you
// alter the reader contents you must provide an appropriate .Size
// and so on.
type Transformer interface {
	Transform(io.Reader, os.FileInfo) (io.Reader, os.FileInfo)
}

// TransformFunc implements the Transformer interface.
type TransformFunc func(io.Reader, os.FileInfo) (io.Reader, os.FileInfo)

// Transform implementation.
func (f TransformFunc) Transform(r io.Reader, i os.FileInfo) (io.Reader, os.FileInfo) {
	return f(r, i)
}

// Stats for an archive.
type Stats struct {
	FilesAdded       int64
	DirsAdded        int64
	FilesFiltered    int64
	DirsFiltered     int64
	SizeUncompressed int64
}

// Writer assembles a ZIP archive entry by entry. Entries appear in
// the central directory in the order they were added.
//
// Add calls must be sequential: an entry's offset is only correct
// once the previous entry has fully committed its bytes, so
// concurrent Add calls on one writer are undefined behavior. The
// BufferedWrite option moves an entry's encoding onto a private
// buffer, only the final append needs the writer.
type Writer struct {
	log       log.Interface
	sink      Sink
	pipeline  Pipeline
	filter    Filter
	transform Transformer
	level     int
	comment   string

	entries []*Entry
	index   map[string]*Entry // nil value reserves a pending name
	offset  uint32
	inited  bool
	closed  bool
	stats   Stats
}

// New returns a writer emitting the archive to sink.
func New(sink Sink) *Writer {
	return &Writer{
		log:      log.Log,
		sink:     sink,
		pipeline: DefaultPipeline,
		level:    DefaultLevel,
		index:    make(map[string]*Entry),
	}
}

// NewWriter returns a writer emitting the archive to w.
func NewWriter(w io.Writer) *Writer {
	return New(NewWriterSink(w))
}

// Stats returns stats about the archive.
func (w *Writer) Stats() *Stats {
	return &w.stats
}

// WithFilter adds a filter applied by AddDir.
func (w *Writer) WithFilter(f Filter) *Writer {
	w.filter = f
	return w
}

// WithTransform adds a transform applied by AddDir.
func (w *Writer) WithTransform(t Transformer) *Writer {
	w.transform = t
	return w
}

// WithPipeline replaces the content pipeline, for example with an
// encrypting implementation.
func (w *Writer) WithPipeline(p Pipeline) *Writer {
	w.pipeline = p
	return w
}

// WithLevel sets the deflate level used by AddDir.
func (w *Writer) WithLevel(level int) *Writer {
	w.level = level
	return w
}

// SetComment sets the archive comment written in the trailer. The
// trailer's 16-bit length field caps it at 65535 bytes, enforced
// at Close.
func (w *Writer) SetComment(comment string) {
	w.comment = comment
}

// Data returns the finished archive bytes when the sink retains
// them, such as a BufferSink. Only meaningful after Close.
func (w *Writer) Data() []byte {
	return w.sink.Data()
}

// init lazily initializes the sink, once.
func (w *Writer) init() error {
	if w.inited {
		return nil
	}
	w.inited = true
	return errors.Wrap(w.sink.Init(), "initializing sink")
}

// Add writes one entry to the archive. src may be nil for an empty
// entry and opts may be nil for the defaults. Names are unique
// within an archive: the normalized name is reserved before any
// bytes are written, so a duplicate fails without touching the
// stream even while another suspending encode is in flight.
func (w *Writer) Add(name string, src Source, opts *EntryOptions) (*Entry, error) {
	if w.closed {
		return nil, ErrClosed
	}

	var o EntryOptions
	if opts != nil {
		o = *opts
	}

	key, err := normalizeName(name, o.Directory)
	if err != nil {
		return nil, err
	}

	if _, ok := w.index[key]; ok {
		return nil, errors.Wrapf(ErrDuplicateName, "entry %q", key)
	}
	w.index[key] = nil

	entry, err := w.encode(key, src, o)
	if err != nil {
		delete(w.index, key)
		return nil, err
	}

	w.index[key] = entry
	w.entries = append(w.entries, entry)
	entry.Offset = w.offset
	w.offset += uint32(entry.Length)

	if entry.Directory {
		w.stats.DirsAdded++
	} else {
		w.stats.FilesAdded++
	}

	w.log.Debugf("add %s: bytes=%d offset=%d", entry.Name, entry.Length, entry.Offset)
	return entry, nil
}

// encode runs the entry encoder against the shared sink, or against
// a private buffer appended as one write in buffered mode.
func (w *Writer) encode(name string, src Source, opts EntryOptions) (*Entry, error) {
	if opts.BufferedWrite {
		var buf bytes.Buffer

		entry, err := encodeEntry(name, src, opts, w.pipeline, &buf)
		if err != nil {
			return nil, err
		}

		if err := w.init(); err != nil {
			return nil, err
		}

		if _, err := w.sink.Write(buf.Bytes()); err != nil {
			return nil, errors.Wrap(err, "writing entry")
		}

		return entry, nil
	}

	if err := w.init(); err != nil {
		return nil, err
	}

	return encodeEntry(name, src, opts, w.pipeline, w.sink)
}

// AddDir adds the directory tree rooted at root, applying the
// configured filter. Directories become explicit entries so empty
// ones survive the round trip.
func (w *Writer) AddDir(root string) error {
	return filepath.Walk(root, func(abspath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		path, err := filepath.Rel(root, abspath)
		if err != nil {
			return err
		}
		path = filepath.Clean(path)

		if path == "." {
			return nil
		}
		path = filepath.ToSlash(path)

		if w.filter != nil && w.filter.Match(path, info) {
			w.log.Debugf("filtered %s – %d", path, info.Size())

			if info.IsDir() {
				w.stats.DirsFiltered++
				return filepath.SkipDir
			}

			w.stats.FilesFiltered++
			return nil
		}

		if info.IsDir() {
			_, err := w.Add(path, nil, &EntryOptions{
				Directory: true,
				Modified:  info.ModTime(),
			})
			return errors.Wrap(err, "adding directory")
		}

		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(abspath)
			if err != nil {
				return errors.Wrap(err, "reading symlink")
			}

			_, err = w.Add(path, BytesSource(link), &EntryOptions{
				Modified: info.ModTime(),
			})
			return errors.Wrap(err, "adding symlink")
		}

		w.stats.SizeUncompressed += info.Size()

		if w.transform == nil {
			_, err := w.Add(path, FileSource(abspath), &EntryOptions{
				Level:    w.level,
				Modified: info.ModTime(),
			})
			return errors.Wrap(err, "adding file")
		}

		f, err := os.Open(abspath)
		if err != nil {
			return errors.Wrap(err, "opening file")
		}

		r, tinfo := w.transform.Transform(f, info)

		// The encoder owns the reader from here, fileReader routes
		// its close to the underlying handle even when the transform
		// wrapped it. Closing again below is a no-op on that path.
		_, err = w.Add(path, ReaderSource{
			Reader: &fileReader{Reader: r, f: f},
			Size:   tinfo.Size(),
		}, &EntryOptions{
			Level:    w.level,
			Modified: tinfo.ModTime(),
		})
		if err != nil {
			f.Close()
			return errors.Wrap(err, "adding file")
		}

		return nil
	})
}

// Close writes the central directory and the trailing end record,
// finalizing the archive. It must be called exactly once, after
// all Add calls have completed. An oversized comment fails before
// any bytes are written, shorten it and retry.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}

	comment := []byte(w.comment)
	if len(comment) > maxCommentLen {
		return errors.Wrapf(ErrCommentTooLarge, "%d bytes", len(comment))
	}
	w.closed = true

	if err := w.init(); err != nil {
		return err
	}

	size := 0
	for _, e := range w.entries {
		size += centralHeaderLen + len(e.Name) + len(e.Extra) + len(e.Comment)
	}

	dir := make([]byte, size+directoryEndLen+len(comment))
	offset := 0

	for _, e := range w.entries {
		b := writeBuf(dir[offset:])
		b.uint32(centralHeaderSignature)
		b.uint16(zipVersion20) // version made by
		copy(b, e.header[:])
		b.skip(headerSectionLen)
		b.uint16(uint16(len(e.Comment)))
		b.skip(4) // disk number start, internal attributes
		if e.Directory {
			b.uint8(0x10) // MS-DOS directory attribute
			b.skip(3)
		} else {
			b.skip(4)
		}
		b.uint32(e.Offset)

		offset += centralHeaderLen
		offset += copy(dir[offset:], e.Name)
		offset += copy(dir[offset:], e.Extra)
		offset += copy(dir[offset:], e.Comment)
	}

	b := writeBuf(dir[offset:])
	b.uint32(directoryEndSignature)
	b.skip(4) // disk numbers
	b.uint16(uint16(len(w.entries))) // entries on this disk
	b.uint16(uint16(len(w.entries))) // entries total
	b.uint32(uint32(size))
	b.uint32(w.offset) // the directory begins at the final running offset
	b.uint16(uint16(len(comment)))
	copy(dir[offset+directoryEndLen:], comment)

	if _, err := w.sink.Write(dir); err != nil {
		return errors.Wrap(err, "writing central directory")
	}

	w.log.WithFields(log.Fields{
		"entries":           len(w.entries),
		"files_filtered":    w.stats.FilesFiltered,
		"dirs_filtered":     w.stats.DirsFiltered,
		"size_uncompressed": humanize.Bytes(uint64(w.stats.SizeUncompressed)),
		"size":              humanize.Bytes(uint64(w.offset) + uint64(len(dir))),
	}).Debug("close")

	return nil
}
