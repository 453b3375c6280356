package raster

import (
	"image"
	"log/slog"
)

// Reassembler packs raw byte chunks into scanlines of Parameters.BytesPerLine
// bytes. Only closed lines are ever materialized; the trailing partial line
// is held back until enough bytes arrive.
//
// A Reassembler is not safe for concurrent use.
type Reassembler struct {
	params Parameters
	data   []byte
	short  int
	closed bool
	logger *slog.Logger
}

// NewReassembler creates a reassembler for one page described by p.
func NewReassembler(p Parameters, logger *slog.Logger) *Reassembler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Reassembler{params: p, logger: logger}
	if p.Lines > 0 && p.BytesPerLine > 0 {
		r.data = make([]byte, 0, p.Lines*p.BytesPerLine)
	}
	return r
}

// Parameters returns the page parameters.
func (r *Reassembler) Parameters() Parameters {
	return r.params
}

// Feed appends a chunk. Chunks may end anywhere, including mid-line or
// across several line boundaries.
func (r *Reassembler) Feed(p []byte) {
	r.data = append(r.data, p...)
}

// Lines returns the number of closed lines.
func (r *Reassembler) Lines() int {
	if r.params.BytesPerLine <= 0 {
		return 0
	}
	return len(r.data) / r.params.BytesPerLine
}

// Line returns closed line i. The slice aliases internal storage.
func (r *Reassembler) Line(i int) []byte {
	bpl := r.params.BytesPerLine
	return r.data[i*bpl : (i+1)*bpl]
}

// Pending returns the length of the trailing partial line.
func (r *Reassembler) Pending() int {
	if r.params.BytesPerLine <= 0 {
		return len(r.data)
	}
	return len(r.data) % r.params.BytesPerLine
}

// Size returns the number of bytes fed so far.
func (r *Reassembler) Size() int {
	return len(r.data)
}

// AvailableLines returns the half-open range of closed lines, (0, N).
// The trailing partial line is never counted.
func (r *Reassembler) AvailableLines() (start, end int) {
	return 0, r.Lines()
}

// ExpectedSize returns the page width in pixels and its height in lines.
// The height is negative when the backend cannot know it before end of page.
func (r *Reassembler) ExpectedSize() (width, height int) {
	return r.params.PixelsPerLine, r.params.Lines
}

// Image materializes closed lines [start, end). A negative end means all
// closed lines.
func (r *Reassembler) Image(start, end int) (image.Image, error) {
	n := r.Lines()
	if end < 0 || end > n {
		end = n
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	bpl := r.params.BytesPerLine
	return Materialize(r.data[start*bpl:end*bpl], r.params)
}

// Finish closes the page and materializes every complete line. A trailing
// partial line means the backend delivered a wrong amount of data: it is
// logged, counted in ShortLines and dropped.
func (r *Reassembler) Finish() (image.Image, error) {
	r.close("finish")
	return r.Image(0, -1)
}

// Abandon closes the page without materializing it, as when a transfer is
// cancelled. A trailing partial line is logged and counted like in Finish.
// Closed lines stay available.
func (r *Reassembler) Abandon() {
	r.close("abandon")
}

// close accounts for the trailing partial line once per page.
func (r *Reassembler) close(op string) {
	if r.closed {
		return
	}
	r.closed = true
	if pending := r.Pending(); pending > 0 {
		r.short++
		r.logger.Warn("unexpected line size",
			"op", op,
			"got", pending,
			"want", r.params.BytesPerLine)
	}
}

// ShortLines returns how many wrongly sized trailing lines were dropped.
func (r *Reassembler) ShortLines() int {
	return r.short
}

// Reset discards all data and starts a new page with p. A page that was
// neither finished nor abandoned is closed first.
func (r *Reassembler) Reset(p Parameters) {
	r.close("reset")
	r.params = p
	r.data = r.data[:0]
	r.closed = false
}
