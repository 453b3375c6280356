// Package scan implements incremental scan sessions.
//
// A Session owns the images completed so far and one Scan state machine.
// Callers drive the machine with Read until it reports the end of the
// session:
//
//	for {
//	    st, err := sess.Scan().Read(ctx)
//	    if err != nil {
//	        return err // a real failure
//	    }
//	    switch st {
//	    case scan.StatusPageComplete:
//	        // sess.Images() has grown by one
//	    case scan.StatusSessionComplete:
//	        return nil
//	    }
//	}
//
// A read loop is only correct if it tells page and session completion
// apart from errors; Read never reports them as errors.
//
// # Variants
//
// The buffered machine drives a backend with blocking reads (SANE model):
// chunks are packed into scanlines by a raster.Reassembler, and multi-page
// sessions re-arm the backend before every page after the first.
//
// The push machine serves backends that deliver data through callbacks
// (WIA model): a background download feeds a bounded channel of data,
// end-of-page and end-of-session events that Read consumes.
//
// # Driver Signals
//
// Drivers report the end of a page with ErrEndOfPage and "no more
// documents" with ErrEndOfSession. These are signals, not failures; the
// machines translate them into Status values.
package scan
