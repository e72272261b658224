package vendorlookup

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"whereabouts/internal/domain"
)

// LocalOUISource answers lookups from an IEEE OUI registry file on disk
// (the oui.txt format published by the IEEE, or a simple
// "AA:BB:CC<tab>Vendor" listing). The file is parsed once, on first use.
type LocalOUISource struct {
	path string

	once    sync.Once
	loadErr error
	vendors map[string]string
}

// NewLocalOUISource creates a source over the registry file at path.
func NewLocalOUISource(path string) *LocalOUISource {
	return &LocalOUISource{path: path}
}

func (s *LocalOUISource) Name() string { return "local_oui" }

// Lookup returns the registered vendor for the address's OUI prefix, or
// (nil, nil) when the prefix is not in the table.
func (s *LocalOUISource) Lookup(_ context.Context, mac string) (*VendorInfo, error) {
	s.once.Do(s.load)
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	vendor, ok := s.vendors[domain.OUIPrefix(mac)]
	if !ok {
		return nil, nil
	}
	return &VendorInfo{Vendor: vendor, Source: s.Name()}, nil
}

func (s *LocalOUISource) load() {
	f, err := os.Open(s.path)
	if err != nil {
		s.loadErr = fmt.Errorf("open oui table: %w", err)
		return
	}
	defer f.Close()

	s.vendors = make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		prefix, vendor, ok := parseOUILine(line)
		if !ok {
			continue
		}
		s.vendors[prefix] = vendor
	}
	if err := scanner.Err(); err != nil {
		s.loadErr = fmt.Errorf("read oui table: %w", err)
		s.vendors = nil
	}
}

// parseOUILine accepts the IEEE registry's "28-6F-B9   (hex)\t\tVendor"
// lines and plain "28:6F:B9\tVendor" listings. Other registry lines (base
// 16 duplicates, addresses, headers) are skipped.
func parseOUILine(line string) (prefix, vendor string, ok bool) {
	if idx := strings.Index(line, "(hex)"); idx >= 0 {
		raw := strings.TrimSpace(line[:idx])
		vendor = strings.TrimSpace(line[idx+len("(hex)"):])
		prefix = strings.ToUpper(strings.ReplaceAll(raw, "-", ":"))
	} else if idx := strings.IndexByte(line, '\t'); idx >= 0 {
		prefix = strings.ToUpper(strings.TrimSpace(line[:idx]))
		vendor = strings.TrimSpace(line[idx+1:])
	} else {
		return "", "", false
	}

	if len(prefix) != 8 || vendor == "" {
		return "", "", false
	}
	return prefix, vendor, true
}
