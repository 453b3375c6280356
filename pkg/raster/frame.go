package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrInvalidFrame indicates a frame whose buffer does not match its header.
var ErrInvalidFrame = errors.New("invalid frame")

// Mode tags the pixel layout of a Frame.
type Mode string

const (
	// ModeGray is 8-bit grayscale, one byte per pixel.
	ModeGray Mode = "L"

	// ModeRGB is 8-bit RGB, three bytes per pixel.
	ModeRGB Mode = "RGB"

	// ModeGray16 is 16-bit big-endian grayscale.
	ModeGray16 Mode = "I;16B"

	// ModeRGB16 is 16-bit big-endian RGB.
	ModeRGB16 Mode = "RGB;16B"
)

// BytesPerPixel returns the pixel size of m, or 0 for unknown modes.
func (m Mode) BytesPerPixel() int {
	switch m {
	case ModeGray:
		return 1
	case ModeRGB:
		return 3
	case ModeGray16:
		return 2
	case ModeRGB16:
		return 6
	default:
		return 0
	}
}

// Frame is an image flattened to (mode, size, raw bytes) with tightly
// packed rows.
type Frame struct {
	Mode   Mode   `cbor:"1,keyasint"`
	Width  int    `cbor:"2,keyasint"`
	Height int    `cbor:"3,keyasint"`
	Pix    []byte `cbor:"4,keyasint"`
}

// Validate checks that Pix holds exactly Width*Height pixels.
func (f Frame) Validate() error {
	bpp := f.Mode.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidFrame, f.Mode)
	}
	if f.Width < 0 || f.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if want := f.Width * f.Height * bpp; len(f.Pix) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d %s, want %d", ErrInvalidFrame, len(f.Pix), f.Width, f.Height, f.Mode, want)
	}
	return nil
}

// ToFrame flattens img. Gray images become ModeGray or ModeGray16; anything
// else is treated as opaque RGB.
func ToFrame(img image.Image) Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		f := Frame{Mode: ModeGray, Width: w, Height: h, Pix: make([]byte, w*h)}
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(f.Pix[y*w:(y+1)*w], src.Pix[off:off+w])
		}
		return f

	case *image.Gray16:
		f := Frame{Mode: ModeGray16, Width: w, Height: h, Pix: make([]byte, 2*w*h)}
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(f.Pix[2*y*w:2*(y+1)*w], src.Pix[off:off+2*w])
		}
		return f

	case *image.RGBA64:
		f := Frame{Mode: ModeRGB16, Width: w, Height: h, Pix: make([]byte, 6*w*h)}
		i := 0
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < w; x++ {
				copy(f.Pix[i:i+6], src.Pix[off+8*x:off+8*x+6])
				i += 6
			}
		}
		return f
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(b)
		draw.Draw(rgba, b, img, b.Min, draw.Src)
	}
	f := Frame{Mode: ModeRGB, Width: w, Height: h, Pix: make([]byte, 3*w*h)}
	i := 0
	for y := 0; y < h; y++ {
		off := rgba.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			copy(f.Pix[i:i+3], rgba.Pix[off+4*x:off+4*x+3])
			i += 3
		}
	}
	return f
}

// FromFrame rebuilds the image flattened by ToFrame.
func FromFrame(f Frame) (image.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, f.Width, f.Height)

	switch f.Mode {
	case ModeGray:
		img := image.NewGray(rect)
		copy(img.Pix, f.Pix)
		return img, nil

	case ModeGray16:
		img := image.NewGray16(rect)
		copy(img.Pix, f.Pix)
		return img, nil

	case ModeRGB16:
		img := image.NewRGBA64(rect)
		for i := 0; i < f.Width*f.Height; i++ {
			copy(img.Pix[8*i:8*i+6], f.Pix[6*i:6*i+6])
			img.Pix[8*i+6] = 0xFF
			img.Pix[8*i+7] = 0xFF
		}
		return img, nil

	default:
		img := image.NewRGBA(rect)
		for i := 0; i < f.Width*f.Height; i++ {
			img.Pix[4*i] = f.Pix[3*i]
			img.Pix[4*i+1] = f.Pix[3*i+1]
			img.Pix[4*i+2] = f.Pix[3*i+2]
			img.Pix[4*i+3] = 0xFF
		}
		return img, nil
	}
}

// IsGray reports whether img uses a grayscale color model.
func IsGray(img image.Image) bool {
	m := img.ColorModel()
	return m == color.GrayModel || m == color.Gray16Model
}
