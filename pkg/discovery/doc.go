// Package discovery finds network scanners through mDNS/DNS-SD.
//
// Network scanners that speak eSCL (AirScan) announce themselves under two
// service types:
//
// # Plain eSCL (_uscan._tcp)
//
// The scanner serves eSCL over HTTP on the announced port.
//
// # Secure eSCL (_uscans._tcp)
//
// The scanner serves eSCL over HTTPS on the announced port.
//
// # TXT records
//
// Both carry the same keys: rs (resource path, usually "eSCL"), ty (model
// name), UUID, cs (color spaces, comma-separated), is (input sources,
// comma-separated), duplex (T or F), pdl (document formats), adminurl and
// representation (icon URL). Only ty is required; everything else falls
// back to a sensible default.
//
// Services are aggregated by instance name: a scanner seen on several
// interfaces is reported once with the union of its addresses. A scanner
// whose last address is withdrawn is forgotten and reported again if it
// comes back.
package discovery
