package raster

import (
	"encoding/binary"
	"fmt"
	"image"
)

// Materialize converts raw scanlines to an image. raw must hold a whole
// number of lines of p.BytesPerLine bytes.
//
// 1-bit samples are unpacked to one byte each: a set bit is black (0x00),
// a clear bit white (0xFF). Padding bits at the end of each line are
// dropped. 16-bit samples are read in native byte order. Single-channel
// red, green and blue frames become grayscale images.
func Materialize(raw []byte, p Parameters) (image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(raw)%p.BytesPerLine != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidParameters, len(raw), p.BytesPerLine)
	}
	height := len(raw) / p.BytesPerLine
	width := p.PixelsPerLine
	ch := p.Format.Channels()
	rect := image.Rect(0, 0, width, height)

	if p.Depth == 1 {
		raw = UnpackBits(raw, width*ch, p.BytesPerLine)
		p.BytesPerLine = width * ch
		p.Depth = 8
	}

	switch {
	case p.Depth == 8 && ch == 1:
		img := image.NewGray(rect)
		for y := 0; y < height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+width], raw[y*p.BytesPerLine:])
		}
		return img, nil

	case p.Depth == 8:
		img := image.NewRGBA(rect)
		for y := 0; y < height; y++ {
			src := raw[y*p.BytesPerLine:]
			dst := img.Pix[y*img.Stride:]
			for x := 0; x < width; x++ {
				dst[4*x] = src[3*x]
				dst[4*x+1] = src[3*x+1]
				dst[4*x+2] = src[3*x+2]
				dst[4*x+3] = 0xFF
			}
		}
		return img, nil

	case ch == 1:
		img := image.NewGray16(rect)
		for y := 0; y < height; y++ {
			src := raw[y*p.BytesPerLine:]
			dst := img.Pix[y*img.Stride:]
			for x := 0; x < width; x++ {
				binary.BigEndian.PutUint16(dst[2*x:], binary.NativeEndian.Uint16(src[2*x:]))
			}
		}
		return img, nil

	default:
		img := image.NewRGBA64(rect)
		for y := 0; y < height; y++ {
			src := raw[y*p.BytesPerLine:]
			dst := img.Pix[y*img.Stride:]
			for x := 0; x < width; x++ {
				for c := 0; c < 3; c++ {
					binary.BigEndian.PutUint16(dst[8*x+2*c:], binary.NativeEndian.Uint16(src[6*x+2*c:]))
				}
				dst[8*x+6] = 0xFF
				dst[8*x+7] = 0xFF
			}
		}
		return img, nil
	}
}

// UnpackBits expands 1-bit lines to one byte per sample, keeping the first
// samplesPerLine samples of each bytesPerLine-long line.
func UnpackBits(packed []byte, samplesPerLine, bytesPerLine int) []byte {
	lines := len(packed) / bytesPerLine
	out := make([]byte, 0, lines*samplesPerLine)
	for l := 0; l < lines; l++ {
		line := packed[l*bytesPerLine : (l+1)*bytesPerLine]
		for i := 0; i < samplesPerLine; i++ {
			if line[i/8]&(0x80>>(i%8)) != 0 {
				out = append(out, 0x00)
			} else {
				out = append(out, 0xFF)
			}
		}
	}
	return out
}
