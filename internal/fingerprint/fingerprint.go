// Package fingerprint groups randomized MAC addresses that likely belong
// to one physical device. Randomization cannot be reversed, so the package
// scores behavioral similarity: signal level, probe cadence, probed SSIDs
// and OUI prefix.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"whereabouts/internal/domain"
)

const (
	// Lookback is how much probe history feeds a fingerprint.
	Lookback = 24 * time.Hour

	// maxProbeGap drops intervals from periods the device was away, so
	// absence does not skew the cadence statistics.
	maxProbeGap = time.Hour

	// MatchThreshold is the minimum similarity to join an existing group.
	MatchThreshold = 0.6
)

// Fingerprint is the behavioral profile computed from probe history. The
// field encoding is the stored device_groups.fingerprint_data format.
type Fingerprint struct {
	AvgSignal    *float64 `json:"avg_signal"`
	SignalStddev *float64 `json:"signal_var"`
	AvgInterval  *float64 `json:"avg_interval"`
	// IntervalStddev is the spread of probe intervals in seconds.
	IntervalStddev *float64 `json:"interval_var"`
	VendorPrefix   string   `json:"vendor_prefix,omitempty"`
	SSIDs          []string `json:"ssids"`
}

// Encode serializes the fingerprint for storage.
func (f Fingerprint) Encode() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored fingerprint.
func Decode(data string) (Fingerprint, error) {
	var f Fingerprint
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return Fingerprint{}, fmt.Errorf("decode fingerprint: %w", err)
	}
	return f, nil
}

// Compute builds a fingerprint from an asset's probe records, which must
// already be limited to the lookback window. records order does not
// matter. ouiPrefix is the asset's first three MAC octets.
func Compute(records []domain.ProbeRecord, ouiPrefix string) Fingerprint {
	fp := Fingerprint{VendorPrefix: ouiPrefix, SSIDs: []string{}}
	if len(records) == 0 {
		return fp
	}

	sorted := make([]domain.ProbeRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var signals []float64
	seen := make(map[string]struct{})
	for _, r := range sorted {
		if r.SignalStrength != nil {
			signals = append(signals, float64(*r.SignalStrength))
		}
		if r.SSID != "" {
			if _, ok := seen[r.SSID]; !ok {
				seen[r.SSID] = struct{}{}
				fp.SSIDs = append(fp.SSIDs, r.SSID)
			}
		}
	}
	sort.Strings(fp.SSIDs)

	if len(signals) > 0 {
		mean, stddev := meanStddev(signals)
		fp.AvgSignal = &mean
		if len(signals) > 1 {
			fp.SignalStddev = &stddev
		}
	}

	var intervals []float64
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp)
		if gap < maxProbeGap {
			intervals = append(intervals, gap.Seconds())
		}
	}
	if len(intervals) > 0 {
		mean, stddev := meanStddev(intervals)
		fp.AvgInterval = &mean
		if len(intervals) > 1 {
			fp.IntervalStddev = &stddev
		}
	}

	return fp
}

// meanStddev returns the mean and population standard deviation.
func meanStddev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// Similarity scores two fingerprints on [0, 1]. Each factor contributes
// only when both sides have data, and the total is renormalized by the
// weight of the factors actually compared:
//
//	signal level  40%  linear falloff over a 10 dBm spread
//	probe cadence 20%  min/max ratio of mean intervals
//	SSID overlap  30%  Jaccard index
//	OUI prefix    10%  exact match
func Similarity(a, b Fingerprint) float64 {
	var score, factors float64

	if a.AvgSignal != nil && b.AvgSignal != nil {
		diff := math.Abs(*a.AvgSignal - *b.AvgSignal)
		if diff <= 10 {
			score += (1 - diff/10) * 0.4
		}
		factors += 0.4
	}

	if a.AvgInterval != nil && b.AvgInterval != nil &&
		*a.AvgInterval > 0 && *b.AvgInterval > 0 {
		ratio := math.Min(*a.AvgInterval, *b.AvgInterval) /
			math.Max(*a.AvgInterval, *b.AvgInterval)
		score += ratio * 0.2
		factors += 0.2
	}

	if len(a.SSIDs) > 0 && len(b.SSIDs) > 0 {
		score += jaccard(a.SSIDs, b.SSIDs) * 0.3
		factors += 0.3
	}

	if a.VendorPrefix != "" && b.VendorPrefix != "" {
		if a.VendorPrefix == b.VendorPrefix {
			score += 0.1
		}
		factors += 0.1
	}

	if factors == 0 {
		return 0
	}
	return score / factors
}

func jaccard(a, b []string) float64 {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	union := len(set)
	intersection := 0
	for _, s := range b {
		if _, ok := set[s]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
