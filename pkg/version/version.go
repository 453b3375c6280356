// Package version holds the daemon channel protocol version.
//
// The client passes its version to the daemon on the command line; the
// daemon refuses to serve a client with a different major version.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the channel protocol version implemented by this module.
const Current = "1.0"

// Flag is the daemon command-line flag carrying the client's version.
const Flag = "-protocol"

// ErrIncompatible indicates a peer speaking a different major version.
var ErrIncompatible = errors.New("incompatible protocol version")

// ProtocolVersion is a parsed "major.minor" version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	majorStr, minorStr, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(minorStr, ".") {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(majorStr, 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(minorStr, 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// Check parses a peer's version and verifies it is compatible with
// Current. An empty string is accepted as Current.
func Check(peer string) error {
	if peer == "" {
		return nil
	}
	p, err := Parse(peer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompatible, err)
	}
	current, _ := Parse(Current)
	if !current.Compatible(p) {
		return fmt.Errorf("%w: peer %s, local %s", ErrIncompatible, p, current)
	}
	return nil
}
