package main

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/unisane/unisane-go/pkg/config"
)

// pageWriter saves scanned pages to numbered files.
type pageWriter struct {
	pattern string
	format  string
	quality int
	next    int
}

func newPageWriter(out config.Output) *pageWriter {
	return &pageWriter{
		pattern: out.Pattern,
		format:  out.Format,
		quality: out.JPEGQuality,
	}
}

// path returns the file name for page i. A pattern without a verb gets
// the page number appended after the first page.
func (w *pageWriter) path(i int) string {
	var name string
	switch {
	case strings.Contains(w.pattern, "%"):
		name = fmt.Sprintf(w.pattern, i)
	case i == 0:
		name = w.pattern
	default:
		name = fmt.Sprintf("%s-%d", w.pattern, i)
	}
	return name + "." + extension(w.format)
}

// Write saves img as the next page and returns its path.
func (w *pageWriter) Write(img image.Image) (string, error) {
	path := w.path(w.next)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := encode(f, img, w.format, w.quality); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	w.next++
	return path, nil
}

func extension(format string) string {
	if format == config.FormatJPEG {
		return "jpg"
	}
	return format
}

func encode(out io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case config.FormatPNG:
		return png.Encode(out, img)
	case config.FormatJPEG:
		return jpeg.Encode(out, img, &jpeg.Options{Quality: quality})
	case config.FormatTIFF:
		return tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return fmt.Errorf("unknown format %q", format)
}
