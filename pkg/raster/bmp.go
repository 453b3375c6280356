package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/bmp"
)

// ErrBMPHeader indicates a stream too short or malformed to hold BMP headers.
var ErrBMPHeader = errors.New("invalid bmp header")

// bmpHeaderSize is the file header plus the BITMAPINFOHEADER fields read.
const bmpHeaderSize = 14 + 16

// BMPInfo describes a bitmap container, possibly truncated.
type BMPInfo struct {
	Width        int
	Height       int
	BitsPerPixel int
	PixelOffset  int
	RowSize      int
	TopDown      bool
}

// ParseBMPHeader reads the headers at the start of data.
func ParseBMPHeader(data []byte) (BMPInfo, error) {
	if len(data) < bmpHeaderSize || data[0] != 'B' || data[1] != 'M' {
		return BMPInfo{}, ErrBMPHeader
	}
	le := binary.LittleEndian
	info := BMPInfo{
		PixelOffset:  int(le.Uint32(data[10:14])),
		Width:        int(int32(le.Uint32(data[18:22]))),
		Height:       int(int32(le.Uint32(data[22:26]))),
		BitsPerPixel: int(le.Uint16(data[28:30])),
	}
	if info.Height < 0 {
		info.Height = -info.Height
		info.TopDown = true
	}
	if info.Width <= 0 || info.BitsPerPixel == 0 || info.PixelOffset < bmpHeaderSize {
		return BMPInfo{}, fmt.Errorf("%w: %dx%d at %d bpp", ErrBMPHeader, info.Width, info.Height, info.BitsPerPixel)
	}
	info.RowSize = ((info.BitsPerPixel*info.Width + 31) / 32) * 4
	return info, nil
}

// FullSize returns the byte length of the complete container.
func (i BMPInfo) FullSize() int {
	return i.PixelOffset + i.RowSize*i.Height
}

// AvailableRows estimates how many rows of pixel data len bytes cover.
func (i BMPInfo) AvailableRows(n int) int {
	rows := (n - i.PixelOffset) / i.RowSize
	return max(0, min(rows, i.Height))
}

// BMPDecoder decodes truncated bitmap streams. Missing pixel data is
// zero-filled so an image in progress can still be inspected.
type BMPDecoder struct{}

// Decode decodes data, padding it to the size announced by its headers.
func (BMPDecoder) Decode(data []byte) (image.Image, error) {
	info, err := ParseBMPHeader(data)
	if err != nil {
		return nil, err
	}
	if full := info.FullSize(); len(data) < full {
		padded := make([]byte, full)
		copy(padded, data)
		data = padded
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode bmp: %w", err)
	}
	return img, nil
}

// Size returns the dimensions announced by the headers.
func (BMPDecoder) Size(data []byte) (width, height int, ok bool) {
	info, err := ParseBMPHeader(data)
	if err != nil {
		return 0, 0, false
	}
	return info.Width, info.Height, true
}

// AvailableLines estimates how many rows have been received.
func (BMPDecoder) AvailableLines(data []byte) int {
	info, err := ParseBMPHeader(data)
	if err != nil {
		return 0
	}
	return info.AvailableRows(len(data))
}
