package zipstream

import (
	"encoding/binary"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// EntryOptions configure a single archive entry.
type EntryOptions struct {
	// Directory marks the entry as a directory. A trailing slash
	// is appended to the name when missing, and any source is
	// ignored since directories carry no content.
	Directory bool

	// Level is the deflate compression level, zero stores the
	// content uncompressed.
	Level int

	// Password marks the entry as AES-encrypted. The transform
	// itself comes from the writer's pipeline.
	Password []byte

	// Comment is attached to the entry's central directory record.
	Comment string

	// Extra is appended to the entry's extra field.
	Extra []byte

	// Modified is the last-modified timestamp, defaulting to now.
	Modified time.Time

	// Version overrides the version-needed-to-extract field.
	Version uint16

	// BufferedWrite encodes the entry against a private buffer,
	// appending it to the archive as a single write.
	BufferedWrite bool

	// Progress is invoked with the number of content bytes
	// consumed so far, and the total.
	Progress func(written, total int64)
}

// Entry describes one written archive entry.
type Entry struct {
	// Name is the normalized entry name, directories carry a
	// trailing slash.
	Name string

	// Directory reports whether the entry is a directory.
	Directory bool

	// Comment and Extra are emitted in the central directory.
	Comment []byte
	Extra   []byte

	// Offset is the byte position of the entry's local header,
	// assigned by the writer once the entry has committed.
	Offset uint32

	// Length is the total bytes the entry occupies in the stream,
	// local header block + content + data descriptor.
	Length int64

	// header is the fixed section shared verbatim between the
	// local header and the entry's central directory record. The
	// checksum and sizes are patched in after the content is
	// written, both serialization sites read from this one buffer.
	header [headerSectionLen]byte
}

// normalizeName trims the entry name and enforces the trailing
// slash on directories.
func normalizeName(name string, directory bool) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("zipstream: empty entry name")
	}
	if len(name) > maxCommentLen {
		return "", errors.New("zipstream: entry name exceeds 65535 bytes")
	}
	if directory && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return name, nil
}

// encodeEntry writes one entry's local header, content and data
// descriptor to dst, returning its record with the offset unset.
// Duplicate detection and offset bookkeeping belong to the Writer.
// Pipeline errors are propagated to the caller.
func encodeEntry(name string, src Source, opts EntryOptions, pipeline Pipeline, dst io.Writer) (*Entry, error) {
	name, err := normalizeName(name, opts.Directory)
	if err != nil {
		return nil, err
	}

	if opts.Directory {
		src = nil
	}

	e := &Entry{
		Name:      name,
		Directory: opts.Directory,
		Comment:   []byte(opts.Comment),
	}

	modified := opts.Modified
	if modified.IsZero() {
		modified = time.Now()
	}
	date, tim := dosDateTime(modified)

	encrypted := len(opts.Password) > 0
	compressed := opts.Level > 0 && src != nil

	version := uint16(zipVersion20)
	flags := uint16(flagDataDescriptor)
	method := uint16(methodStore)
	extra := opts.Extra

	if encrypted {
		version = zipVersionAES
		flags |= flagEncrypted
		method = methodAES

		// WinZip AE-2: vendor ID, data size, vendor version,
		// vendor "AE", key strength, then the real method.
		aes := make([]byte, aesExtraLen)
		b := writeBuf(aes)
		b.uint16(aesExtraID)
		b.uint16(7)
		b.uint16(2)
		b.uint8('A')
		b.uint8('E')
		b.uint8(3) // 256-bit keys
		if compressed {
			b.uint16(methodDeflate)
		} else {
			b.uint16(methodStore)
		}
		extra = append(aes, extra...)
	} else if compressed {
		method = methodDeflate
	}

	if opts.Version != 0 {
		version = opts.Version
	}

	b := writeBuf(e.header[:])
	b.uint16(version)
	b.uint16(flags)
	b.uint16(method)
	b.uint16(tim)
	b.uint16(date)
	b.skip(12) // crc and sizes are patched in once the content is written
	b.uint16(uint16(len(name)))
	b.uint16(uint16(len(extra)))

	e.Extra = extra

	// Local header block, written contiguously before any content.
	header := make([]byte, 0, localHeaderLen+len(name)+len(extra))
	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], localHeaderSignature)
	header = append(header, sig[:]...)
	header = append(header, e.header[:]...)
	header = append(header, name...)
	header = append(header, extra...)

	if _, err := dst.Write(header); err != nil {
		return nil, errors.Wrap(err, "writing local header")
	}

	var res Result
	var size int64
	if src != nil {
		r, n, err := src.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening source")
		}
		size = n

		res, err = pipeline.Process(dst, r, ProcessOptions{
			Level:    opts.Level,
			Password: opts.Password,
			Size:     size,
			Progress: opts.Progress,
		})

		if c, ok := r.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "closing source")
			}
		}

		if err != nil {
			return nil, err
		}
	}

	// Data descriptor. The checksum and sizes are left zero for
	// empty and encrypted entries, AE-2 stores no checksum.
	footer := make([]byte, dataDescriptorLen)
	fb := writeBuf(footer)
	fb.uint32(dataDescriptorSignature)

	if src != nil && !encrypted {
		fb.uint32(res.CRC32)
		fb.uint32(uint32(res.Length))
		fb.uint32(uint32(size))

		hb := writeBuf(e.header[10:])
		hb.uint32(res.CRC32)
		hb.uint32(uint32(res.Length))
		hb.uint32(uint32(size))
	}

	if _, err := dst.Write(footer); err != nil {
		return nil, errors.Wrap(err, "writing data descriptor")
	}

	e.Length = int64(len(header)) + res.Length + dataDescriptorLen
	return e, nil
}
