package vendorlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	macVendorsBaseURL   = "https://api.macvendors.com"
	macLookupAppBaseURL = "https://api.maclookup.app"
	macAddressIOBaseURL = "https://api.macaddress.io"

	remoteTimeout = 10 * time.Second
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: remoteTimeout}
}

// MacVendorsSource queries api.macvendors.com, a free plaintext lookup
// that needs no API key.
type MacVendorsSource struct {
	baseURL string
	client  *http.Client
}

// NewMacVendorsSource creates the source. An empty baseURL uses the public
// endpoint.
func NewMacVendorsSource(baseURL string) *MacVendorsSource {
	if baseURL == "" {
		baseURL = macVendorsBaseURL
	}
	return &MacVendorsSource{baseURL: baseURL, client: newHTTPClient()}
}

func (s *MacVendorsSource) Name() string { return "macvendors.com" }

func (s *MacVendorsSource) Lookup(ctx context.Context, mac string) (*VendorInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+url.PathEscape(mac), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if err != nil {
			return nil, err
		}
		vendor := strings.TrimSpace(string(body))
		if vendor == "" {
			return nil, nil
		}
		return &VendorInfo{Vendor: vendor, Source: s.Name()}, nil
	case http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("macvendors.com rate limit exceeded")
	default:
		return nil, fmt.Errorf("macvendors.com status %d", resp.StatusCode)
	}
}

// MacLookupAppSource queries api.maclookup.app with an authentication
// token. It reports the registry block type and country alongside the
// vendor name.
type MacLookupAppSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewMacLookupAppSource creates the source. The source answers nothing
// when apiKey is empty.
func NewMacLookupAppSource(baseURL, apiKey string) *MacLookupAppSource {
	if baseURL == "" {
		baseURL = macLookupAppBaseURL
	}
	return &MacLookupAppSource{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient()}
}

func (s *MacLookupAppSource) Name() string { return "maclookup.app" }

func (s *MacLookupAppSource) Lookup(ctx context.Context, mac string) (*VendorInfo, error) {
	if s.apiKey == "" {
		return nil, nil
	}

	oui := strings.ReplaceAll(mac, ":", "")[:6]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v2/macs/"+oui, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Authentication-Token", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("maclookup.app status %d", resp.StatusCode)
	}

	var payload struct {
		Company   string `json:"company"`
		Country   string `json:"country"`
		BlockType string `json:"blockType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("maclookup.app decode: %w", err)
	}
	if payload.Company == "" {
		return nil, nil
	}
	return &VendorInfo{
		Vendor:    payload.Company,
		Country:   payload.Country,
		BlockType: payload.BlockType,
		Source:    s.Name(),
	}, nil
}

// MacAddressIOSource queries api.macaddress.io, the only source in the
// chain that flags virtual machine address blocks.
type MacAddressIOSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewMacAddressIOSource creates the source. The source answers nothing
// when apiKey is empty.
func NewMacAddressIOSource(baseURL, apiKey string) *MacAddressIOSource {
	if baseURL == "" {
		baseURL = macAddressIOBaseURL
	}
	return &MacAddressIOSource{baseURL: baseURL, apiKey: apiKey, client: newHTTPClient()}
}

func (s *MacAddressIOSource) Name() string { return "macaddress.io" }

func (s *MacAddressIOSource) Lookup(ctx context.Context, mac string) (*VendorInfo, error) {
	if s.apiKey == "" {
		return nil, nil
	}

	query := url.Values{
		"apiKey": {s.apiKey},
		"output": {"json"},
		"search": {mac},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("macaddress.io status %d", resp.StatusCode)
	}

	var payload struct {
		VendorDetails struct {
			CompanyName string `json:"companyName"`
			CountryCode string `json:"countryCode"`
		} `json:"vendorDetails"`
		MacAddressDetails struct {
			VirtualMachine string `json:"virtualMachine"`
		} `json:"macAddressDetails"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("macaddress.io decode: %w", err)
	}
	if payload.VendorDetails.CompanyName == "" {
		return nil, nil
	}

	isVM := payload.MacAddressDetails.VirtualMachine == "true"
	return &VendorInfo{
		Vendor:           payload.VendorDetails.CompanyName,
		Country:          payload.VendorDetails.CountryCode,
		IsVirtualMachine: isVM,
		DeviceType:       GuessDeviceType(payload.VendorDetails.CompanyName, isVM),
		Source:           s.Name(),
	}, nil
}

// DefaultChain assembles the standard source order: local table first,
// then the keyless public API, then the keyed APIs.
func DefaultChain(ouiPath, macLookupAppKey, macAddressIOKey string) []Source {
	var sources []Source
	if ouiPath != "" {
		sources = append(sources, NewLocalOUISource(ouiPath))
	}
	sources = append(sources, NewMacVendorsSource(""))
	if macLookupAppKey != "" {
		sources = append(sources, NewMacLookupAppSource("", macLookupAppKey))
	}
	if macAddressIOKey != "" {
		sources = append(sources, NewMacAddressIOSource("", macAddressIOKey))
	}
	return sources
}
