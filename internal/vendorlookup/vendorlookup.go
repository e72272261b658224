// Package vendorlookup resolves MAC addresses to manufacturer information
// through a chain of data sources: a local IEEE OUI table first, then public
// lookup APIs. Results, including misses, are cached to stay under the free
// tiers' rate limits.
package vendorlookup

import (
	"context"
	"strings"
	"sync"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
)

// DefaultCacheTTL is how long a resolved (or failed) lookup stays cached.
const DefaultCacheTTL = 90 * 24 * time.Hour

// VendorInfo is the resolved manufacturer data for a MAC address.
type VendorInfo struct {
	Vendor           string `json:"vendor,omitempty"`
	DeviceType       string `json:"device_type,omitempty"`
	Country          string `json:"country,omitempty"`
	IsVirtualMachine bool   `json:"is_virtual_machine,omitempty"`
	// BlockType is the IEEE registry block (MA-L, MA-M, MA-S) when the
	// source reports it.
	BlockType string `json:"block_type,omitempty"`
	// Source names the data source that produced this info, or "none"
	// for a cached miss.
	Source string `json:"source"`
}

// Found reports whether the lookup produced a vendor name.
func (v VendorInfo) Found() bool { return v.Vendor != "" }

// DisplayName returns the vendor name or "Unknown".
func (v VendorInfo) DisplayName() string {
	if v.Vendor == "" {
		return "Unknown"
	}
	return v.Vendor
}

// Source is one vendor data source. Lookup returns (nil, nil) when the
// source has no answer for the address; errors are reserved for transport
// and decoding failures.
type Source interface {
	Name() string
	Lookup(ctx context.Context, mac string) (*VendorInfo, error)
}

type cacheEntry struct {
	info     VendorInfo
	cachedAt time.Time
}

// Resolver runs sources in order and caches whatever the chain produces.
type Resolver struct {
	sources []Source
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL overrides the cache lifetime.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) { r.ttl = ttl }
}

// NewResolver builds a resolver over the given sources, consulted in order.
func NewResolver(sources []Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		sources: sources,
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup resolves the vendor for a MAC address. A miss across every source
// returns a zero-vendor VendorInfo with Source "none", never an error, and
// the miss is cached so the chain is not replayed per sighting.
func (r *Resolver) Lookup(ctx context.Context, mac string) (VendorInfo, error) {
	canonical, err := domain.CanonicalMAC(mac)
	if err != nil {
		return VendorInfo{}, err
	}

	if info, ok := r.cached(canonical); ok {
		return info, nil
	}

	log := logging.FromContext(ctx)
	for _, src := range r.sources {
		info, err := src.Lookup(ctx, canonical)
		if err != nil {
			log.Debug().Err(err).
				Str("source", src.Name()).
				Str("mac", canonical).
				Msg("vendor source failed")
			continue
		}
		if info == nil || info.Vendor == "" {
			continue
		}
		if info.DeviceType == "" {
			info.DeviceType = GuessDeviceType(info.Vendor, info.IsVirtualMachine)
		}
		if info.Source == "" {
			info.Source = src.Name()
		}
		r.store(canonical, *info)
		log.Info().
			Str("mac", canonical).
			Str("vendor", info.Vendor).
			Str("source", info.Source).
			Msg("vendor resolved")
		return *info, nil
	}

	miss := VendorInfo{Source: "none"}
	r.store(canonical, miss)
	return miss, nil
}

// ClearCache drops every cached entry.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}

func (r *Resolver) cached(mac string) (VendorInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[mac]
	if !ok || r.now().Sub(entry.cachedAt) >= r.ttl {
		return VendorInfo{}, false
	}
	return entry.info, true
}

func (r *Resolver) store(mac string, info VendorInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[mac] = cacheEntry{info: info, cachedAt: r.now()}
}

// ShortName returns a compact vendor label for list views.
func ShortName(vendor string) string {
	if vendor == "" {
		return "Unknown"
	}

	lower := strings.ToLower(vendor)
	for _, abbr := range shortNames {
		if strings.Contains(lower, abbr.match) {
			return abbr.short
		}
	}

	words := strings.Fields(vendor)
	if len(words) > 2 {
		words = words[:2]
	}
	result := strings.Join(words, " ")
	if len(result) > 20 {
		result = result[:17] + "..."
	}
	return result
}

var shortNames = []struct {
	match string
	short string
}{
	{"apple", "Apple"},
	{"samsung electronics", "Samsung"},
	{"huawei technologies", "Huawei"},
	{"xiaomi communications", "Xiaomi"},
	{"google", "Google"},
	{"microsoft", "Microsoft"},
	{"intel corporate", "Intel"},
	{"amazon technologies", "Amazon"},
	{"lg electronics", "LG"},
	{"sony mobile", "Sony"},
	{"dell", "Dell"},
	{"hewlett packard", "HP"},
	{"lenovo", "Lenovo"},
	{"cisco systems", "Cisco"},
	{"tp-link", "TP-Link"},
	{"netgear", "Netgear"},
	{"raspberry pi", "Raspberry Pi"},
	{"espressif", "Espressif"},
	{"tesla", "Tesla"},
	{"bmw", "BMW"},
	{"mercedes", "Mercedes"},
	{"volkswagen", "VW"},
	{"ford motor", "Ford"},
	{"toyota", "Toyota"},
}
