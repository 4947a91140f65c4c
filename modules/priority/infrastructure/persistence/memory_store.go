// Package persistence provides the priority-policy storage backends: an
// in-memory store seeded with the default priority catalog, and a Postgres
// store for production.
package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kestrelrisk/mrg-console/modules/priority/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

type overrideKey struct {
	priority types.PriorityCode
	region   types.RegionCode
}

type MemoryStore struct {
	mu         sync.Mutex
	policies   map[types.PriorityCode]types.PriorityPolicy
	overrides  map[overrideKey]types.RegionalOverride
	timeframes map[string]types.TimeframeEntry
}

func NewMemoryStore() *MemoryStore {
	now := time.Unix(0, 0).UTC()
	policies := map[types.PriorityCode]types.PriorityPolicy{
		types.PriorityHigh: {
			PriorityCode: types.PriorityHigh, Description: "Material weakness requiring prompt remediation",
			RequiresActionPlan: true, RequiresFinalApproval: true, EnforceTimeframes: true, UpdatedAt: now,
		},
		types.PriorityMedium: {
			PriorityCode: types.PriorityMedium, Description: "Weakness to remediate within the agreed cycle",
			RequiresActionPlan: true, EnforceTimeframes: true, UpdatedAt: now,
		},
		types.PriorityLow: {
			PriorityCode: types.PriorityLow, Description: "Minor weakness, remediation at model owner discretion",
			UpdatedAt: now,
		},
		types.PriorityConsideration: {
			PriorityCode: types.PriorityConsideration, Description: "Advisory observation, no remediation required",
			UpdatedAt: now,
		},
	}
	return &MemoryStore{
		policies:   policies,
		overrides:  make(map[overrideKey]types.RegionalOverride),
		timeframes: make(map[string]types.TimeframeEntry),
	}
}

func (s *MemoryStore) ListPolicies(_ context.Context) ([]types.PriorityPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PriorityPolicy, 0, len(s.policies))
	for _, policy := range s.policies {
		out = append(out, policy)
	}
	sort.Slice(out, func(i, j int) bool { return priorityRank(out[i].PriorityCode) < priorityRank(out[j].PriorityCode) })
	return out, nil
}

func priorityRank(code types.PriorityCode) int {
	switch code {
	case types.PriorityHigh:
		return 0
	case types.PriorityMedium:
		return 1
	case types.PriorityLow:
		return 2
	default:
		return 3
	}
}

func (s *MemoryStore) GetPolicy(_ context.Context, code types.PriorityCode) (types.PriorityPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	policy, ok := s.policies[code]
	if !ok {
		return types.PriorityPolicy{}, httperr.NewNotFound("PRIORITY_NOT_FOUND", "unknown priority code")
	}
	return policy, nil
}

func (s *MemoryStore) UpdatePolicy(_ context.Context, code types.PriorityCode, patch types.PolicyPatch) (types.PriorityPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	policy, ok := s.policies[code]
	if !ok {
		return types.PriorityPolicy{}, httperr.NewNotFound("PRIORITY_NOT_FOUND", "unknown priority code")
	}
	if patch.Description != nil {
		policy.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.RequiresActionPlan != nil {
		policy.RequiresActionPlan = *patch.RequiresActionPlan
	}
	if patch.RequiresFinalApproval != nil {
		policy.RequiresFinalApproval = *patch.RequiresFinalApproval
	}
	if patch.EnforceTimeframes != nil {
		policy.EnforceTimeframes = *patch.EnforceTimeframes
	}
	policy.UpdatedAt = time.Now().UTC()
	s.policies[code] = policy
	return policy, nil
}

func (s *MemoryStore) ListOverrides(_ context.Context, code types.PriorityCode) ([]types.RegionalOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[code]; !ok {
		return nil, httperr.NewNotFound("PRIORITY_NOT_FOUND", "unknown priority code")
	}
	out := make([]types.RegionalOverride, 0)
	for key, override := range s.overrides {
		if key.priority == code {
			out = append(out, override)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionCode < out[j].RegionCode })
	return out, nil
}

func (s *MemoryStore) CreateOverride(_ context.Context, override types.RegionalOverride) (types.RegionalOverride, error) {
	if override.RegionCode == "" {
		return types.RegionalOverride{}, httperr.NewBadRequest("REGION_CODE_REQUIRED", "region code required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[override.PriorityCode]; !ok {
		return types.RegionalOverride{}, httperr.NewNotFound("PRIORITY_NOT_FOUND", "unknown priority code")
	}
	key := overrideKey{priority: override.PriorityCode, region: override.RegionCode}
	if _, exists := s.overrides[key]; exists {
		return types.RegionalOverride{}, httperr.NewConflict("OVERRIDE_ALREADY_EXISTS", "override for this priority and region already exists")
	}
	override.UpdatedAt = time.Now().UTC()
	s.overrides[key] = override
	return override, nil
}

func (s *MemoryStore) UpdateOverride(_ context.Context, code types.PriorityCode, region types.RegionCode, patch types.OverridePatch) (types.RegionalOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := overrideKey{priority: code, region: region}
	override, ok := s.overrides[key]
	if !ok {
		return types.RegionalOverride{}, httperr.NewNotFound("OVERRIDE_NOT_FOUND", "override not found")
	}
	if patch.RequiresActionPlan.Set {
		override.RequiresActionPlan = patch.RequiresActionPlan.Value
	}
	if patch.RequiresFinalApproval.Set {
		override.RequiresFinalApproval = patch.RequiresFinalApproval.Value
	}
	if patch.EnforceTimeframes.Set {
		override.EnforceTimeframes = patch.EnforceTimeframes.Value
	}
	override.UpdatedAt = time.Now().UTC()
	s.overrides[key] = override
	return override, nil
}

func (s *MemoryStore) DeleteOverride(_ context.Context, code types.PriorityCode, region types.RegionCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := overrideKey{priority: code, region: region}
	if _, ok := s.overrides[key]; !ok {
		return httperr.NewNotFound("OVERRIDE_NOT_FOUND", "override not found")
	}
	delete(s.overrides, key)
	return nil
}

func (s *MemoryStore) ListEntries(_ context.Context) ([]types.TimeframeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.TimeframeEntry, 0, len(s.timeframes))
	for _, entry := range s.timeframes {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (s *MemoryStore) UpdateEntry(_ context.Context, entryID string, maxDays *int) (types.TimeframeEntry, bool, error) {
	entryID = strings.ToLower(strings.TrimSpace(entryID))
	priority, riskTier, usageFrequency, ok := splitTimeframeEntryID(entryID)
	if !ok {
		return types.TimeframeEntry{}, false, httperr.NewBadRequest("TIMEFRAME_ENTRY_ID_INVALID", "entry id must be priority:risk_tier:usage_frequency")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if maxDays == nil {
		if _, ok := s.timeframes[entryID]; !ok {
			return types.TimeframeEntry{}, false, httperr.NewNotFound("TIMEFRAME_ENTRY_NOT_FOUND", "timeframe entry not found")
		}
		delete(s.timeframes, entryID)
		return types.TimeframeEntry{EntryID: entryID}, false, nil
	}
	if *maxDays <= 0 {
		return types.TimeframeEntry{}, false, httperr.NewBadRequest("TIMEFRAME_MAX_DAYS_INVALID", "max days must be positive")
	}
	entry := types.TimeframeEntry{
		EntryID:            entryID,
		PriorityCode:       priority,
		RiskTierCode:       riskTier,
		UsageFrequencyCode: usageFrequency,
		MaxDays:            *maxDays,
		UpdatedAt:          time.Now().UTC(),
	}
	s.timeframes[entryID] = entry
	return entry, true, nil
}

func (s *MemoryStore) LookupMaxDays(_ context.Context, priority types.PriorityCode, riskTier string, usageFrequency string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.timeframes[types.TimeframeEntryID(priority, riskTier, usageFrequency)]
	if !ok {
		return 0, false, nil
	}
	return entry.MaxDays, true, nil
}

func splitTimeframeEntryID(entryID string) (types.PriorityCode, string, string, bool) {
	parts := strings.Split(entryID, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	priority, ok := types.ParsePriorityCode(parts[0])
	if !ok {
		return "", "", "", false
	}
	return priority, parts[1], parts[2], true
}
