package services

import (
	"context"
	"sort"

	"github.com/kestrelrisk/mrg-console/modules/priority/domain/ports"
	"github.com/kestrelrisk/mrg-console/modules/priority/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

// Resolver computes the effective requirement flags for a priority code and
// a model's applicable regions.
type Resolver struct {
	policies ports.PriorityStore
}

func NewResolver(policies ports.PriorityStore) *Resolver {
	return &Resolver{policies: policies}
}

func (r *Resolver) Resolve(ctx context.Context, priorityCode string, regionCodes []string) (types.EffectiveResolution, error) {
	code, ok := types.ParsePriorityCode(priorityCode)
	if !ok {
		return types.EffectiveResolution{}, httperr.NewNotFound("PRIORITY_NOT_FOUND", "unknown priority code")
	}

	base, err := r.policies.GetPolicy(ctx, code)
	if err != nil {
		return types.EffectiveResolution{}, err
	}
	overrides, err := r.policies.ListOverrides(ctx, code)
	if err != nil {
		return types.EffectiveResolution{}, err
	}

	regions := make([]types.RegionCode, 0, len(regionCodes))
	seen := make(map[types.RegionCode]bool, len(regionCodes))
	for _, raw := range regionCodes {
		region := types.NormalizeRegionCode(raw)
		if region == "" || seen[region] {
			continue
		}
		seen[region] = true
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })

	return ResolveEffectiveFlags(base, overrides, regions), nil
}

// ResolveEffectiveFlags is the pure merge. Per flag, independently: start
// from the base policy value, then OR in every applicable non-null override.
// A requirement imposed anywhere the model is deployed stays imposed: the
// most restrictive value wins. Nil override flags contribute nothing.
func ResolveEffectiveFlags(base types.PriorityPolicy, overrides []types.RegionalOverride, regions []types.RegionCode) types.EffectiveResolution {
	applicable := make(map[types.RegionCode]bool, len(regions))
	for _, region := range regions {
		applicable[region] = true
	}

	matched := make([]types.RegionalOverride, 0, len(overrides))
	for _, override := range overrides {
		if override.PriorityCode == base.PriorityCode && applicable[override.RegionCode] {
			matched = append(matched, override)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RegionCode < matched[j].RegionCode })

	return types.EffectiveResolution{
		PriorityCode: base.PriorityCode,
		Regions:      regions,
		RequiresActionPlan: mergeFlag(base.RequiresActionPlan, matched, func(o types.RegionalOverride) *bool {
			return o.RequiresActionPlan
		}),
		RequiresFinalApproval: mergeFlag(base.RequiresFinalApproval, matched, func(o types.RegionalOverride) *bool {
			return o.RequiresFinalApproval
		}),
		EnforceTimeframes: mergeFlag(base.EnforceTimeframes, matched, func(o types.RegionalOverride) *bool {
			return o.EnforceTimeframes
		}),
	}
}

func mergeFlag(base bool, overrides []types.RegionalOverride, flag func(types.RegionalOverride) *bool) types.FlagResolution {
	res := types.FlagResolution{Value: base, Base: base}
	for _, override := range overrides {
		v := flag(override)
		if v == nil {
			continue
		}
		res.OverriddenBy = append(res.OverriddenBy, override.RegionCode)
		res.Value = res.Value || *v
	}
	return res
}
