package fingerprint

import (
	"context"
	"fmt"
	"time"

	"whereabouts/internal/domain"
	"whereabouts/internal/logging"
)

// ProbeSource supplies probe history for fingerprint computation.
type ProbeSource interface {
	ProbeHistory(ctx context.Context, assetID int64, since time.Time) ([]domain.ProbeRecord, error)
}

// GroupStore persists device groups and asset membership.
type GroupStore interface {
	ListDeviceGroups(ctx context.Context) ([]domain.DeviceGroup, error)
	CreateDeviceGroup(ctx context.Context, group *domain.DeviceGroup) error
	UpdateDeviceGroup(ctx context.Context, group *domain.DeviceGroup) error
	AssignAssetToGroup(ctx context.Context, assetID, groupID int64) error
}

// Grouper assigns randomized-MAC assets to device groups by fingerprint
// similarity.
type Grouper struct {
	probes    ProbeSource
	groups    GroupStore
	threshold float64
	now       func() time.Time
}

// NewGrouper builds a grouper using the default match threshold.
func NewGrouper(probes ProbeSource, groups GroupStore) *Grouper {
	return &Grouper{
		probes:    probes,
		groups:    groups,
		threshold: MatchThreshold,
		now:       time.Now,
	}
}

// Assign places the asset in the best-matching device group, creating a
// new single-member group when nothing scores above the threshold.
// Non-randomized MACs are left ungrouped and return (nil, nil).
func (g *Grouper) Assign(ctx context.Context, asset *domain.Asset) (*domain.DeviceGroup, error) {
	if !domain.IsRandomizedMAC(asset.MAC) {
		return nil, nil
	}

	now := g.now()
	records, err := g.probes.ProbeHistory(ctx, asset.ID, now.Add(-Lookback))
	if err != nil {
		return nil, fmt.Errorf("probe history for asset %d: %w", asset.ID, err)
	}
	candidate := Compute(records, domain.OUIPrefix(asset.MAC))

	best, score, err := g.bestMatch(ctx, candidate)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	if best != nil {
		// Promote this MAC to the group's face when it is the freshest
		// sighting; the group tracks the identity across rotations.
		if best.PrimaryMAC == "" || asset.LastSeen.After(best.LastSeen) {
			best.PrimaryMAC = asset.MAC
		}
		best.ConfidenceScore = score
		best.LastSeen = now
		best.TimesSeen++
		if err := g.groups.UpdateDeviceGroup(ctx, best); err != nil {
			return nil, fmt.Errorf("update device group %d: %w", best.ID, err)
		}
		if err := g.groups.AssignAssetToGroup(ctx, asset.ID, best.ID); err != nil {
			return nil, fmt.Errorf("assign asset %d to group %d: %w", asset.ID, best.ID, err)
		}
		asset.DeviceGroupID = &best.ID
		log.Info().
			Str("mac", asset.MAC).
			Int64("group_id", best.ID).
			Float64("similarity", score).
			Msg("joined device group")
		return best, nil
	}

	encoded, err := candidate.Encode()
	if err != nil {
		return nil, err
	}
	group := &domain.DeviceGroup{
		PrimaryMAC:      asset.MAC,
		FingerprintData: encoded,
		ConfidenceScore: 1.0,
		FirstSeen:       asset.FirstSeen,
		LastSeen:        asset.LastSeen,
		TimesSeen:       asset.TimesSeen,
	}
	if err := g.groups.CreateDeviceGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create device group: %w", err)
	}
	if err := g.groups.AssignAssetToGroup(ctx, asset.ID, group.ID); err != nil {
		return nil, fmt.Errorf("assign asset %d to group %d: %w", asset.ID, group.ID, err)
	}
	asset.DeviceGroupID = &group.ID
	log.Info().
		Str("mac", asset.MAC).
		Int64("group_id", group.ID).
		Msg("created device group")
	return group, nil
}

func (g *Grouper) bestMatch(ctx context.Context, candidate Fingerprint) (*domain.DeviceGroup, float64, error) {
	groups, err := g.groups.ListDeviceGroups(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list device groups: %w", err)
	}

	log := logging.FromContext(ctx)
	var best *domain.DeviceGroup
	bestScore := 0.0
	for i := range groups {
		group := &groups[i]
		if group.FingerprintData == "" {
			continue
		}
		stored, err := Decode(group.FingerprintData)
		if err != nil {
			log.Warn().Err(err).Int64("group_id", group.ID).Msg("unreadable group fingerprint")
			continue
		}
		if score := Similarity(candidate, stored); score >= g.threshold && score > bestScore {
			bestScore = score
			best = group
		}
	}
	return best, bestScore, nil
}
