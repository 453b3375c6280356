package discovery

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypeESCL is the service type for eSCL scanners over HTTP.
	ServiceTypeESCL = "_uscan._tcp"

	// ServiceTypeESCLSecure is the service type for eSCL scanners over HTTPS.
	ServiceTypeESCLSecure = "_uscans._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultResourcePath is used when a scanner omits the rs key.
	DefaultResourcePath = "eSCL"
)

// TXT record key constants.
const (
	TXTKeyVersion        = "txtvers"        // TXT record version
	TXTKeyModel          = "ty"             // Model name (required)
	TXTKeyResourcePath   = "rs"             // eSCL resource path
	TXTKeyUUID           = "UUID"           // Device UUID
	TXTKeyColorSpaces    = "cs"             // Color spaces (comma-separated)
	TXTKeyInputSources   = "is"             // Input sources (comma-separated)
	TXTKeyDuplex         = "duplex"         // T or F
	TXTKeyFormats        = "pdl"            // Document formats (comma-separated)
	TXTKeyAdminURL       = "adminurl"       // Admin page
	TXTKeyRepresentation = "representation" // Icon URL
	TXTKeyNote           = "note"           // Location note
)

// Input sources announced in the is key.
const (
	SourcePlaten = "platen"
	SourceADF    = "adf"
	SourceCamera = "camera"
)

// Color spaces announced in the cs key.
const (
	ColorSpaceColor     = "color"
	ColorSpaceGrayscale = "grayscale"
	ColorSpaceBinary    = "binary"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 5 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
	ErrBrowserStopped      = errors.New("browser stopped")
)

// ScannerInfo is the content of an eSCL TXT record.
type ScannerInfo struct {
	Model        string
	ResourcePath string
	UUID         string
	ColorSpaces  []string
	Sources      []string
	Duplex       bool
	Formats      []string
	AdminURL     string
	IconURL      string
	Note         string
}

// ScannerService is an eSCL scanner found on the network.
type ScannerService struct {
	// InstanceName is the DNS-SD instance name, usually the friendly name.
	InstanceName string

	// Host is the announced host name.
	Host string

	// Port is the eSCL port.
	Port uint16

	// Addresses holds every address seen for the instance.
	Addresses []string

	// Secure is true for _uscans._tcp.
	Secure bool

	ScannerInfo
}

// URL returns the eSCL root URL, preferring the first address over the
// host name.
func (s *ScannerService) URL() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	scheme := "http"
	if s.Secure {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(int(s.Port))),
		Path:   "/" + s.ResourcePath,
	}
	return u.String()
}

// HasSource reports whether the scanner announces the input source.
func (s *ScannerService) HasSource(source string) bool {
	for _, src := range s.Sources {
		if src == source {
			return true
		}
	}
	return false
}
