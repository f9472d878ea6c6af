package zipstream

import (
	"encoding/binary"
	"time"
)

// Signatures.
const (
	localHeaderSignature    = 0x04034b50
	centralHeaderSignature  = 0x02014b50
	directoryEndSignature   = 0x06054b50
	dataDescriptorSignature = 0x08074b50 // de-facto standard; required by OS X Finder
)

// Record lengths, excluding variable-length name/extra/comment tails.
const (
	headerSectionLen  = 26 // fixed section shared by local and central headers
	localHeaderLen    = 30 // signature + fixed section
	centralHeaderLen  = 46 // signature + fixed section + attributes and offset
	directoryEndLen   = 22
	dataDescriptorLen = 16 // signature, crc32, compressed size, size
	aesExtraLen       = 11
)

// Version numbers.
const (
	zipVersion20  = 20 // 2.0
	zipVersionAES = 51 // 5.1, strong encryption
)

// General purpose bit flags.
const (
	flagEncrypted      = 0x0001
	flagDataDescriptor = 0x0008
)

// Compression methods.
const (
	methodStore   = 0
	methodDeflate = 8
	methodAES     = 99 // WinZip AES, real method recorded in the extra field
)

// aesExtraID is the WinZip AES extra field header ID.
const aesExtraID = 0x9901

// maxCommentLen is the largest comment the trailer's 16-bit
// length field can describe.
const maxCommentLen = 1<<16 - 1

// DefaultLevel is the deflate level used by AddDir.
const DefaultLevel = 6

// writeBuf provides little-endian appends into a fixed-size buffer.
type writeBuf []byte

func (b *writeBuf) uint8(v uint8) {
	(*b)[0] = v
	*b = (*b)[1:]
}

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}

func (b *writeBuf) skip(n int) {
	*b = (*b)[n:]
}

// dosDateTime packs t into the MS-DOS date and time format,
// with 2 second resolution. Years before 1980 are clamped.
func dosDateTime(t time.Time) (date, tim uint16) {
	year := t.Year() - 1980
	if year < 0 {
		year = 0
	}
	date = uint16(year<<9 | int(t.Month())<<5 | t.Day())
	tim = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return
}
