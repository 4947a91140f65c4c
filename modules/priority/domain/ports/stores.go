package ports

import (
	"context"

	"github.com/kestrelrisk/mrg-console/modules/priority/domain/types"
)

type PriorityStore interface {
	ListPolicies(ctx context.Context) ([]types.PriorityPolicy, error)
	GetPolicy(ctx context.Context, code types.PriorityCode) (types.PriorityPolicy, error)
	UpdatePolicy(ctx context.Context, code types.PriorityCode, patch types.PolicyPatch) (types.PriorityPolicy, error)

	ListOverrides(ctx context.Context, code types.PriorityCode) ([]types.RegionalOverride, error)
	CreateOverride(ctx context.Context, override types.RegionalOverride) (types.RegionalOverride, error)
	UpdateOverride(ctx context.Context, code types.PriorityCode, region types.RegionCode, patch types.OverridePatch) (types.RegionalOverride, error)
	DeleteOverride(ctx context.Context, code types.PriorityCode, region types.RegionCode) error
}

type TimeframeStore interface {
	ListEntries(ctx context.Context) ([]types.TimeframeEntry, error)
	// UpdateEntry sets the cap for an entry id; a nil maxDays removes the
	// entry, reverting the cell to advisory.
	UpdateEntry(ctx context.Context, entryID string, maxDays *int) (types.TimeframeEntry, bool, error)
	LookupMaxDays(ctx context.Context, priority types.PriorityCode, riskTier string, usageFrequency string) (int, bool, error)
}
