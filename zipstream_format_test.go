package zipstream

import (
	"testing"
	"time"

	"github.com/tj/assert"
)

func TestDosDateTime(t *testing.T) {
	date, tim := dosDateTime(time.Date(2023, 6, 15, 10, 30, 45, 0, time.UTC))

	// (((2023-1980)<<4 | 6) << 5) | 15
	assert.Equal(t, uint16(22223), date, "date")

	// ((10<<6 | 30) << 5) | 45/2
	assert.Equal(t, uint16(21462), tim, "time")
}

func TestDosDateTime_pre1980(t *testing.T) {
	date, _ := dosDateTime(time.Date(1969, 7, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, uint16(7<<5|20), date, "clamped year")
}

func TestWriteBuf(t *testing.T) {
	buf := make([]byte, 9)
	b := writeBuf(buf)
	b.uint32(0x04034b50)
	b.uint16(0xfeca)
	b.skip(2)
	b.uint8(7)

	assert.Equal(t, []byte{0x50, 0x4b, 0x03, 0x04, 0xca, 0xfe, 0, 0, 7}, buf)
}
