// Package raster turns raw scanline streams into images.
//
// A Reassembler accumulates the byte chunks returned by a buffered backend
// read and exposes them as fixed-length scanlines, so a partial image can
// be materialized at any point during a transfer (progressive preview).
//
// Frame is the serialized form used when images cross a process boundary:
// a mode tag, the dimensions and the raw pixel bytes.
//
// BMPDecoder decodes the possibly truncated bitmap containers produced by
// push-style transfers.
package raster
