// Package virtual provides deterministic scanner drivers.
//
// SaneDriver implements sane.Driver after the fashion of the SANE "test"
// backend: a flatbed and a document feeder, lineart, gray and color
// modes at 1, 8 or 16 bits. WIADriver implements wia.Driver and delivers
// BMP transfers through the push sink. Both generate the same gradient
// pattern so output can be compared across backends.
//
// The feeder holds a configurable number of pages. When it runs empty
// the driver reports "no documents" once and then refills, which keeps
// repeated demo scans working.
package virtual
