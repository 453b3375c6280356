// Package wia implements the push backend model: device properties on a
// tree of items, and transfers that deliver data through callbacks.
//
// Properties of the device root and of every source item are merged into
// one option.Set. Standard option names are synthesized on top of them so
// callers can treat both backend models alike:
//
//	source      selects the source item to scan from
//	mode        BW, Gray or Color, mapped to the depth property
//	tl-x, tl-y  scan area origin, backed by xpos and ypos
//	br-x, br-y  scan area end, backed by pos + extent
//	resolution  alias over xres and yres
//
// Transfers are requested as BMP, one page per transfer, and decoded with
// raster.BMPDecoder while they are still arriving.
package wia
