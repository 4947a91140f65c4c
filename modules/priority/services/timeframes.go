package services

import (
	"context"

	"github.com/kestrelrisk/mrg-console/modules/priority/domain/ports"
	"github.com/kestrelrisk/mrg-console/modules/priority/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

// TimeframeResolver answers "what is the enforced remediation cap for this
// case". Direct keyed lookup, no inheritance: a missing cell is advisory.
type TimeframeResolver struct {
	store ports.TimeframeStore
}

func NewTimeframeResolver(store ports.TimeframeStore) *TimeframeResolver {
	return &TimeframeResolver{store: store}
}

func (r *TimeframeResolver) Lookup(ctx context.Context, priorityCode string, riskTierCode string, usageFrequencyCode string) (types.TimeframeDecision, error) {
	code, ok := types.ParsePriorityCode(priorityCode)
	if !ok {
		return types.TimeframeDecision{}, httperr.NewNotFound("PRIORITY_NOT_FOUND", "unknown priority code")
	}

	maxDays, found, err := r.store.LookupMaxDays(ctx, code, riskTierCode, usageFrequencyCode)
	if err != nil {
		return types.TimeframeDecision{}, err
	}
	if !found {
		return types.TimeframeDecision{Enforced: false}, nil
	}
	return types.TimeframeDecision{MaxDays: maxDays, Enforced: true}, nil
}
