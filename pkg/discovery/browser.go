package discovery

import (
	"context"
	"net"
	"strings"
	"time"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// BrowseScanners searches for eSCL scanners, plain and secure.
	// The channel is closed when the context is cancelled or Stop is called.
	BrowseScanners(ctx context.Context) (<-chan *ScannerService, error)

	// FindByName searches for a scanner by instance name.
	// Returns when found or when context is cancelled/timeout.
	FindByName(ctx context.Context, name string) (*ScannerService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for browse operations.
	// Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Secure also browses _uscans._tcp.
	Secure bool
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Secure:        true,
	}
}

// FilterFunc is a function that filters browse results.
type FilterFunc func(*ScannerService) bool

// FilterBySource returns a filter that matches scanners announcing the input source.
func FilterBySource(source string) FilterFunc {
	return func(svc *ScannerService) bool {
		return svc.HasSource(source)
	}
}

// FilterByModel returns a filter that matches scanners whose model contains
// substr, ignoring case.
func FilterByModel(substr string) FilterFunc {
	substr = strings.ToLower(substr)
	return func(svc *ScannerService) bool {
		return strings.Contains(strings.ToLower(svc.Model), substr)
	}
}

// FilterBrowseResults filters a channel of scanner services.
func FilterBrowseResults(in <-chan *ScannerService, filter FilterFunc) <-chan *ScannerService {
	out := make(chan *ScannerService)
	go func() {
		defer close(out)
		for svc := range in {
			if filter(svc) {
				out <- svc
			}
		}
	}()
	return out
}

// ServiceEntry is a resolved mDNS service instance, independent of the
// mDNS library.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToScannerService converts a ServiceEntry to ScannerService.
func (e *ServiceEntry) ToScannerService() (*ScannerService, error) {
	txt := StringsToTXTRecords(e.Text)
	info, err := DecodeScannerTXT(txt)
	if err != nil {
		return nil, err
	}

	return &ScannerService{
		InstanceName: e.Instance,
		Host:         strings.TrimSuffix(e.Host, "."),
		Port:         e.Port,
		Addresses:    append([]string(nil), e.Addrs...),
		Secure:       strings.HasPrefix(e.Service, ServiceTypeESCLSecure),
		ScannerInfo:  *info,
	}, nil
}

func ipStrings(v4, v6 []net.IP) []string {
	addrs := make([]string, 0, len(v4)+len(v6))
	for _, ip := range v4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range v6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}
