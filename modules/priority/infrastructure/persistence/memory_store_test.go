package persistence

import (
	"context"
	"testing"

	"github.com/kestrelrisk/mrg-console/modules/priority/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

func boolPtr(v bool) *bool { return &v }

func TestMemoryStoreSeedsPriorityCatalog(t *testing.T) {
	store := NewMemoryStore()
	policies, err := store.ListPolicies(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(policies) != 4 {
		t.Fatalf("policies = %d, want 4", len(policies))
	}
	if policies[0].PriorityCode != types.PriorityHigh || policies[3].PriorityCode != types.PriorityConsideration {
		t.Fatalf("unexpected order: %v, %v", policies[0].PriorityCode, policies[3].PriorityCode)
	}

	high, err := store.GetPolicy(context.Background(), types.PriorityHigh)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !high.RequiresActionPlan || !high.RequiresFinalApproval || !high.EnforceTimeframes {
		t.Fatalf("HIGH defaults = %+v", high)
	}
	low, err := store.GetPolicy(context.Background(), types.PriorityLow)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if low.RequiresActionPlan || low.RequiresFinalApproval || low.EnforceTimeframes {
		t.Fatalf("LOW defaults = %+v", low)
	}
}

func TestUpdatePolicyAppliesPatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	desc := "  Updated description "
	policy, err := store.UpdatePolicy(ctx, types.PriorityLow, types.PolicyPatch{
		Description:        &desc,
		RequiresActionPlan: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if policy.Description != "Updated description" || !policy.RequiresActionPlan {
		t.Fatalf("policy = %+v", policy)
	}
	// Untouched flags keep their values.
	if policy.RequiresFinalApproval || policy.EnforceTimeframes {
		t.Fatalf("unpatched flags changed: %+v", policy)
	}
}

func TestCreateOverrideValidation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.CreateOverride(ctx, types.RegionalOverride{PriorityCode: types.PriorityHigh}); !httperr.IsBadRequest(err) {
		t.Fatalf("err = %v, want BadRequest for empty region", err)
	}
	if _, err := store.CreateOverride(ctx, types.RegionalOverride{PriorityCode: "NOPE", RegionCode: "EU"}); !httperr.IsNotFound(err) {
		t.Fatalf("err = %v, want NotFound for unknown priority", err)
	}

	override := types.RegionalOverride{PriorityCode: types.PriorityHigh, RegionCode: "EU", EnforceTimeframes: boolPtr(false)}
	if _, err := store.CreateOverride(ctx, override); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateOverride(ctx, override); !httperr.IsConflict(err) {
		t.Fatalf("err = %v, want Conflict for duplicate", err)
	}
}

func TestUpdateOverrideTriStatePatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.CreateOverride(ctx, types.RegionalOverride{
		PriorityCode:       types.PriorityMedium,
		RegionCode:         "EU",
		RequiresActionPlan: boolPtr(true),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Explicit null reverts a flag to inherit; absent fields stay untouched.
	override, err := store.UpdateOverride(ctx, types.PriorityMedium, "EU", types.OverridePatch{
		RequiresActionPlan:    types.FlagPatch{Set: true, Value: nil},
		RequiresFinalApproval: types.FlagPatch{Set: true, Value: boolPtr(true)},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if override.RequiresActionPlan != nil {
		t.Fatalf("action plan flag should be inherit, got %v", *override.RequiresActionPlan)
	}
	if override.RequiresFinalApproval == nil || !*override.RequiresFinalApproval {
		t.Fatalf("final approval flag = %v", override.RequiresFinalApproval)
	}

	if _, err := store.UpdateOverride(ctx, types.PriorityMedium, "US", types.OverridePatch{}); !httperr.IsNotFound(err) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestDeleteOverride(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.DeleteOverride(ctx, types.PriorityHigh, "EU"); !httperr.IsNotFound(err) {
		t.Fatalf("err = %v, want NotFound", err)
	}

	if _, err := store.CreateOverride(ctx, types.RegionalOverride{
		PriorityCode: types.PriorityHigh, RegionCode: "EU", RequiresActionPlan: boolPtr(true),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.DeleteOverride(ctx, types.PriorityHigh, "EU"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	overrides, err := store.ListOverrides(ctx, types.PriorityHigh)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overrides) != 0 {
		t.Fatalf("overrides = %+v, want empty", overrides)
	}
}

func TestTimeframeEntryLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	days := 30
	entry, present, err := store.UpdateEntry(ctx, "MEDIUM:tier-2:monthly", &days)
	if err != nil || !present {
		t.Fatalf("update: %v present=%v", err, present)
	}
	if entry.EntryID != "medium:tier-2:monthly" || entry.MaxDays != 30 {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.PriorityCode != types.PriorityMedium || entry.RiskTierCode != "tier-2" || entry.UsageFrequencyCode != "monthly" {
		t.Fatalf("entry parts = %+v", entry)
	}

	zero := 0
	if _, _, err := store.UpdateEntry(ctx, "medium:tier-2:monthly", &zero); !httperr.IsBadRequest(err) {
		t.Fatalf("err = %v, want BadRequest for non-positive cap", err)
	}
	if _, _, err := store.UpdateEntry(ctx, "not-an-entry-id", &days); !httperr.IsBadRequest(err) {
		t.Fatalf("err = %v, want BadRequest for malformed id", err)
	}

	maxDays, found, err := store.LookupMaxDays(ctx, types.PriorityMedium, "tier-2", "monthly")
	if err != nil || !found || maxDays != 30 {
		t.Fatalf("lookup = %d found=%v err=%v", maxDays, found, err)
	}

	// nil max_days removes the entry.
	if _, present, err := store.UpdateEntry(ctx, "medium:tier-2:monthly", nil); err != nil || present {
		t.Fatalf("remove: %v present=%v", err, present)
	}
	if _, found, _ := store.LookupMaxDays(ctx, types.PriorityMedium, "tier-2", "monthly"); found {
		t.Fatalf("entry still present after removal")
	}
	if _, _, err := store.UpdateEntry(ctx, "medium:tier-2:monthly", nil); !httperr.IsNotFound(err) {
		t.Fatalf("err = %v, want NotFound for removing absent entry", err)
	}
}
