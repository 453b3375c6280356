package virtual

import (
	"encoding/binary"
	"image"
	"image/color"
)

// sample returns the pattern value at (x, y) on page page for channel c.
func sample(x, y, page, c int) uint16 {
	v := (x*3 + y*2 + page*40 + c*85) % 256
	return uint16(v)<<8 | uint16(v)
}

// lineart reports whether (x, y) is black.
func lineart(x, y, page int) bool {
	return ((x/8)+(y/8)+page)%2 == 0
}

// rawPage renders a page in the packed layout of a buffered transfer.
func rawPage(width, height, depth, channels, page int) (data []byte, bytesPerLine int) {
	switch depth {
	case 1:
		bytesPerLine = (width + 7) / 8
	case 16:
		bytesPerLine = width * channels * 2
	default:
		bytesPerLine = width * channels
	}
	data = make([]byte, bytesPerLine*height)
	for y := 0; y < height; y++ {
		line := data[y*bytesPerLine : (y+1)*bytesPerLine]
		for x := 0; x < width; x++ {
			if depth == 1 {
				if lineart(x, y, page) {
					line[x/8] |= 0x80 >> (x % 8)
				}
				continue
			}
			for c := 0; c < channels; c++ {
				s := sample(x, y, page, c)
				i := x*channels + c
				if depth == 16 {
					binary.NativeEndian.PutUint16(line[i*2:], s)
				} else {
					line[i] = byte(s >> 8)
				}
			}
		}
	}
	return data, bytesPerLine
}

// pageImage renders a page as an image for encoded transfers.
func pageImage(width, height, depth, page int) image.Image {
	rect := image.Rect(0, 0, width, height)
	switch depth {
	case 1:
		img := image.NewGray(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if !lineart(x, y, page) {
					img.SetGray(x, y, color.Gray{Y: 0xff})
				}
			}
		}
		return img
	case 8:
		img := image.NewGray(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray(x, y, color.Gray{Y: uint8(sample(x, y, page, 0) >> 8)})
			}
		}
		return img
	default:
		img := image.NewRGBA(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetRGBA(x, y, color.RGBA{
					R: uint8(sample(x, y, page, 0) >> 8),
					G: uint8(sample(x, y, page, 1) >> 8),
					B: uint8(sample(x, y, page, 2) >> 8),
					A: 0xff,
				})
			}
		}
		return img
	}
}
