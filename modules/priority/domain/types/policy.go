// Package types holds the recommendation-priority policy model: base
// policies keyed by priority code, per-region overrides with nullable
// (inherit) flags, and the timeframe lookup matrix.
package types

import (
	"encoding/json"
	"strings"
	"time"
)

type PriorityCode string

const (
	PriorityHigh          PriorityCode = "HIGH"
	PriorityMedium        PriorityCode = "MEDIUM"
	PriorityLow           PriorityCode = "LOW"
	PriorityConsideration PriorityCode = "CONSIDERATION"
)

func ParsePriorityCode(raw string) (PriorityCode, bool) {
	switch PriorityCode(strings.ToUpper(strings.TrimSpace(raw))) {
	case PriorityHigh:
		return PriorityHigh, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityLow:
		return PriorityLow, true
	case PriorityConsideration:
		return PriorityConsideration, true
	default:
		return "", false
	}
}

type RegionCode string

func NormalizeRegionCode(raw string) RegionCode {
	return RegionCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// PriorityPolicy is the global default for a priority code. Unlike the
// versioned configuration domains it is edited in place.
type PriorityPolicy struct {
	PriorityCode          PriorityCode `json:"priority_code"`
	Description           string       `json:"description"`
	RequiresActionPlan    bool         `json:"requires_action_plan"`
	RequiresFinalApproval bool         `json:"requires_final_approval"`
	EnforceTimeframes     bool         `json:"enforce_timeframes"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// RegionalOverride scopes a priority policy to one region. A nil flag means
// "inherit the base policy value"; deleting the override reverts the region
// to base entirely.
type RegionalOverride struct {
	PriorityCode          PriorityCode `json:"priority_code"`
	RegionCode            RegionCode   `json:"region_code"`
	RequiresActionPlan    *bool        `json:"requires_action_plan"`
	RequiresFinalApproval *bool        `json:"requires_final_approval"`
	EnforceTimeframes     *bool        `json:"enforce_timeframes"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

type PolicyPatch struct {
	Description           *string `json:"description"`
	RequiresActionPlan    *bool   `json:"requires_action_plan"`
	RequiresFinalApproval *bool   `json:"requires_final_approval"`
	EnforceTimeframes     *bool   `json:"enforce_timeframes"`
}

// FlagPatch distinguishes three PATCH states for an override flag: absent
// (leave as is), explicit null (set to inherit), and an explicit boolean.
type FlagPatch struct {
	Set   bool
	Value *bool
}

func (p *FlagPatch) UnmarshalJSON(b []byte) error {
	p.Set = true
	if string(b) == "null" {
		p.Value = nil
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}

type OverridePatch struct {
	RequiresActionPlan    FlagPatch `json:"requires_action_plan"`
	RequiresFinalApproval FlagPatch `json:"requires_final_approval"`
	EnforceTimeframes     FlagPatch `json:"enforce_timeframes"`
}

// FlagResolution explains one effective flag: the base value and the regions
// whose non-null overrides contributed to the merge.
type FlagResolution struct {
	Value        bool         `json:"value"`
	Base         bool         `json:"base"`
	OverriddenBy []RegionCode `json:"overridden_by,omitempty"`
}

type EffectiveResolution struct {
	PriorityCode          PriorityCode   `json:"priority_code"`
	Regions               []RegionCode   `json:"regions"`
	RequiresActionPlan    FlagResolution `json:"requires_action_plan"`
	RequiresFinalApproval FlagResolution `json:"requires_final_approval"`
	EnforceTimeframes     FlagResolution `json:"enforce_timeframes"`
}

// TimeframeEntry caps remediation days for one (priority, risk tier, usage
// frequency) cell. Absence of an entry means the timeframe is advisory only.
type TimeframeEntry struct {
	EntryID            string       `json:"entry_id"`
	PriorityCode       PriorityCode `json:"priority_code"`
	RiskTierCode       string       `json:"risk_tier_code"`
	UsageFrequencyCode string       `json:"usage_frequency_code"`
	MaxDays            int          `json:"max_days"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func TimeframeEntryID(priority PriorityCode, riskTier string, usageFrequency string) string {
	return strings.ToLower(string(priority) + ":" + strings.TrimSpace(riskTier) + ":" + strings.TrimSpace(usageFrequency))
}

// TimeframeDecision reports a matrix lookup. Enforced=false means no entry
// exists for the triple: "no maximum", never "zero days".
type TimeframeDecision struct {
	MaxDays  int  `json:"max_days"`
	Enforced bool `json:"enforced"`
}
