package discovery

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	nextID  int
	cancels map[int]context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig, logger *slog.Logger) (*MDNSBrowser, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MDNSBrowser{
		config:  config,
		logger:  logger,
		cancels: make(map[int]context.CancelFunc),
	}, nil
}

// BrowseScanners searches for eSCL scanners.
// Services are aggregated by instance name - addresses from multiple interfaces
// are combined into a single entry. Removals are handled when interfaces disappear.
func (b *MDNSBrowser) BrowseScanners(ctx context.Context) (<-chan *ScannerService, error) {
	ctx, done, err := b.track(ctx)
	if err != nil {
		return nil, err
	}

	entries := make(chan *ServiceEntry)
	removed := make(chan *ServiceEntry)

	var wg sync.WaitGroup
	for _, service := range b.serviceTypes() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.browse(ctx, service, entries, removed)
		}()
	}
	go func() {
		wg.Wait()
		close(entries)
		close(removed)
	}()

	out := make(chan *ScannerService)
	go func() {
		defer done()
		aggregate(ctx, entries, removed, out)
	}()
	return out, nil
}

// FindByName searches for a scanner by instance name. Without a deadline on
// ctx the search gives up after the configured browse timeout.
func (b *MDNSBrowser) FindByName(ctx context.Context, name string) (*ScannerService, error) {
	if err := ValidateInstanceName(name); err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	results, err := b.BrowseScanners(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if svc.InstanceName == name {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ErrNotFound
		}
	}
}

// Collect browses for the configured timeout (or until ctx ends) and
// returns every scanner seen, sorted by instance name.
func (b *MDNSBrowser) Collect(ctx context.Context) ([]*ScannerService, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	results, err := b.BrowseScanners(ctx)
	if err != nil {
		return nil, err
	}
	var all []*ScannerService
	for svc := range results {
		all = append(all, svc)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].InstanceName < all[j].InstanceName
	})
	return all, nil
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, cancel := range b.cancels {
		cancel()
		delete(b.cancels, id)
	}
}

func (b *MDNSBrowser) track(ctx context.Context) (context.Context, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return nil, nil, ErrBrowserStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	id := b.nextID
	b.nextID++
	b.cancels[id] = cancel
	return ctx, func() {
		cancel()
		b.mu.Lock()
		delete(b.cancels, id)
		b.mu.Unlock()
	}, nil
}

func (b *MDNSBrowser) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || b.config.BrowseTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.config.BrowseTimeout)
}

func (b *MDNSBrowser) serviceTypes() []string {
	if b.config.Secure {
		return []string{ServiceTypeESCL, ServiceTypeESCLSecure}
	}
	return []string{ServiceTypeESCL}
}

// browse runs one zeroconf query and forwards its results until ctx ends.
func (b *MDNSBrowser) browse(ctx context.Context, service string, entries, removed chan<- *ServiceEntry) {
	zEntries := make(chan *zeroconf.ServiceEntry)
	zRemoved := make(chan *zeroconf.ServiceEntry)

	go func() {
		if err := zeroconf.Browse(ctx, service, Domain, zEntries, zRemoved, b.browserOptions()...); err != nil {
			b.logger.Warn("mDNS browse failed", "service", service, "error", err)
		}
	}()

	for zEntries != nil || zRemoved != nil {
		var (
			entry *zeroconf.ServiceEntry
			ok    bool
			dst   chan<- *ServiceEntry
		)
		select {
		case entry, ok = <-zEntries:
			if !ok {
				zEntries = nil
				continue
			}
			dst = entries
		case entry, ok = <-zRemoved:
			if !ok {
				zRemoved = nil
				continue
			}
			dst = removed
		case <-ctx.Done():
			return
		}
		select {
		case dst <- fromZeroconf(entry, service):
		case <-ctx.Done():
			return
		}
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.logger.Warn("mDNS interface not found, using all", "interface", b.config.Interface, "error", err)
		}
	}

	return opts
}

func fromZeroconf(entry *zeroconf.ServiceEntry, service string) *ServiceEntry {
	return &ServiceEntry{
		Instance: entry.Instance,
		Service:  service,
		Domain:   Domain,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    ipStrings(entry.AddrIPv4, entry.AddrIPv6),
	}
}

// aggregate turns entry and removal streams into a stream of new scanners.
// It returns, closing out, when ctx ends or both inputs are closed.
func aggregate(ctx context.Context, entries, removed <-chan *ServiceEntry, out chan<- *ScannerService) {
	defer close(out)

	// Track services by type and instance name, aggregating addresses
	services := make(map[string]*ScannerService)

	for entries != nil || removed != nil {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			svc, err := entry.ToScannerService()
			if err != nil {
				continue
			}

			key := serviceKey(entry)
			existing, found := services[key]
			if found {
				// Merge addresses into existing entry
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			// New service - store and emit a copy so later merges stay private
			services[key] = svc
			emitted := *svc
			emitted.Addresses = append([]string(nil), svc.Addresses...)
			select {
			case out <- &emitted:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			// Remove addresses that came from this interface
			key := serviceKey(entry)
			if existing, found := services[key]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addrs)
				// If no addresses remain, remove the service
				if len(existing.Addresses) == 0 {
					delete(services, key)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func serviceKey(e *ServiceEntry) string {
	return e.Service + "/" + e.Instance
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the given addresses from the list.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
