package raster

import (
	"errors"
	"fmt"
)

// ErrInvalidParameters indicates scan parameters that cannot describe an image.
var ErrInvalidParameters = errors.New("invalid scan parameters")

// Format is the frame color format of a transfer.
type Format uint8

const (
	FrameGray Format = iota
	FrameRGB
	FrameRed
	FrameGreen
	FrameBlue
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FrameGray:
		return "gray"
	case FrameRGB:
		return "rgb"
	case FrameRed:
		return "red"
	case FrameGreen:
		return "green"
	case FrameBlue:
		return "blue"
	default:
		return "unknown"
	}
}

// Channels returns the number of samples per pixel.
func (f Format) Channels() int {
	if f == FrameRGB {
		return 3
	}
	return 1
}

// Parameters describe one page's transfer. They are fixed for the page and
// fetched again before the next one.
type Parameters struct {
	Format        Format `cbor:"1,keyasint"`
	LastFrame     bool   `cbor:"2,keyasint"`
	BytesPerLine  int    `cbor:"3,keyasint"`
	PixelsPerLine int    `cbor:"4,keyasint"`
	// Lines is negative when the length is unknown until end of page.
	Lines int `cbor:"5,keyasint"`
	Depth int `cbor:"6,keyasint"`
}

// Validate checks that p can be materialized.
func (p Parameters) Validate() error {
	if p.Format > FrameBlue {
		return fmt.Errorf("%w: format %d", ErrInvalidParameters, p.Format)
	}
	if p.Depth != 1 && p.Depth != 8 && p.Depth != 16 {
		return fmt.Errorf("%w: depth %d", ErrInvalidParameters, p.Depth)
	}
	if p.PixelsPerLine <= 0 || p.BytesPerLine <= 0 {
		return fmt.Errorf("%w: %d pixels in %d bytes per line", ErrInvalidParameters, p.PixelsPerLine, p.BytesPerLine)
	}
	if need := p.MinBytesPerLine(); p.BytesPerLine < need {
		return fmt.Errorf("%w: %d bytes per line, need %d", ErrInvalidParameters, p.BytesPerLine, need)
	}
	return nil
}

// MinBytesPerLine returns the number of bytes needed for one line's samples.
func (p Parameters) MinBytesPerLine() int {
	bits := p.PixelsPerLine * p.Format.Channels() * p.Depth
	return (bits + 7) / 8
}

// Mode returns the serialized mode of images built from p.
func (p Parameters) Mode() Mode {
	switch {
	case p.Format == FrameRGB && p.Depth == 16:
		return ModeRGB16
	case p.Format == FrameRGB:
		return ModeRGB
	case p.Depth == 16:
		return ModeGray16
	default:
		return ModeGray
	}
}
