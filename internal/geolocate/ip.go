package geolocate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"whereabouts/internal/domain"
)

const (
	ipAPIURL = "http://ip-api.com/json/?fields=status,lat,lon"

	// ipAccuracyMeters is the nominal city-level accuracy of IP
	// geolocation.
	ipAccuracyMeters = 5000.0

	ipStageTimeout = 10 * time.Second
)

// IPStage resolves a city-level position from the station's public IP.
// Last rung of the ladder; good enough to seed a map view, nothing more.
type IPStage struct {
	baseURL string
	client  *http.Client
}

// NewIPStage creates the stage. An empty baseURL uses ip-api.com.
func NewIPStage(baseURL string) *IPStage {
	if baseURL == "" {
		baseURL = ipAPIURL
	}
	return &IPStage{baseURL: baseURL, client: &http.Client{Timeout: ipStageTimeout}}
}

func (s *IPStage) Name() string { return "ip" }

func (s *IPStage) Locate(ctx context.Context) (*domain.GeoLocation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ip geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip geolocation status %d", resp.StatusCode)
	}

	var result struct {
		Status string   `json:"status"`
		Lat    *float64 `json:"lat"`
		Lon    *float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ip geolocation response: %w", err)
	}
	if result.Status == "fail" || result.Lat == nil || result.Lon == nil {
		return nil, nil
	}

	return &domain.GeoLocation{
		Latitude:  *result.Lat,
		Longitude: *result.Lon,
		Accuracy:  ipAccuracyMeters,
	}, nil
}
