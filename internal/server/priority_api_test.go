package server

import (
	"net/http"
	"testing"

	"github.com/kestrelrisk/mrg-console/pkg/authz"
)

func TestPriorityCatalogOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/priority-config", "", authz.RoleRiskAnalyst)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	priorities, _ := body["priorities"].([]any)
	if len(priorities) != 4 {
		t.Fatalf("priorities = %d, want 4", len(priorities))
	}
	first, _ := priorities[0].(map[string]any)
	if first["priority_code"] != "HIGH" {
		t.Fatalf("first priority = %v, want HIGH", first["priority_code"])
	}

	// Trailing-slash alias serves the same list.
	rec = doRequest(t, h, http.MethodGet, "/priority-config/", "", authz.RoleRiskAnalyst)
	if rec.Code != http.StatusOK {
		t.Fatalf("alias status = %d", rec.Code)
	}
}

func TestPriorityPatchOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	admin := authz.RoleGovernanceAdmin

	rec := doRequest(t, h, http.MethodPatch, "/priority-config/LOW",
		`{"requires_action_plan":true}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	policy := decodeBody(t, rec)
	if policy["requires_action_plan"] != true {
		t.Fatalf("requires_action_plan = %v", policy["requires_action_plan"])
	}
	if policy["enforce_timeframes"] != false {
		t.Fatalf("enforce_timeframes changed: %v", policy["enforce_timeframes"])
	}

	rec = doRequest(t, h, http.MethodPatch, "/priority-config/URGENT", `{}`, admin)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown priority status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "priority_not_found" {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestRegionalOverrideFlowOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	admin := authz.RoleGovernanceAdmin

	// LOW requires no action plan by default; the EU override flips it on.
	rec := doRequest(t, h, http.MethodPost, "/priority-config/LOW/regional-overrides",
		`{"region_code":"eu","requires_action_plan":true}`, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	if created["region_code"] != "EU" {
		t.Fatalf("region_code = %v, want EU (normalized)", created["region_code"])
	}

	rec = doRequest(t, h, http.MethodPost, "/priority-config/LOW/regional-overrides",
		`{"region_code":"EU"}`, admin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/priority-config/LOW/regional-overrides",
		`{"region_code":"  "}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank region status = %d, want 400", rec.Code)
	}

	// Resolution over the overridden region picks up the stricter flag.
	rec = doRequest(t, h, http.MethodPost, "/priority-config/resolve",
		`{"priority_code":"LOW","region_codes":["eu"]}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d: %s", rec.Code, rec.Body.String())
	}
	resolution := decodeBody(t, rec)
	actionPlan, _ := resolution["requires_action_plan"].(map[string]any)
	if actionPlan["value"] != true || actionPlan["base"] != false {
		t.Fatalf("requires_action_plan = %v", actionPlan)
	}
	overriddenBy, _ := actionPlan["overridden_by"].([]any)
	if len(overriddenBy) != 1 || overriddenBy[0] != "EU" {
		t.Fatalf("overridden_by = %v", overriddenBy)
	}

	// An explicit null returns the flag to inheritance.
	rec = doRequest(t, h, http.MethodPatch, "/priority-config/LOW/regional-overrides/EU",
		`{"requires_action_plan":null}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	patched := decodeBody(t, rec)
	if patched["requires_action_plan"] != nil {
		t.Fatalf("requires_action_plan = %v, want null", patched["requires_action_plan"])
	}

	rec = doRequest(t, h, http.MethodPost, "/priority-config/resolve",
		`{"priority_code":"LOW","region_codes":["eu"]}`, admin)
	resolution = decodeBody(t, rec)
	actionPlan, _ = resolution["requires_action_plan"].(map[string]any)
	if actionPlan["value"] != false {
		t.Fatalf("after null patch value = %v, want false", actionPlan["value"])
	}

	rec = doRequest(t, h, http.MethodDelete, "/priority-config/LOW/regional-overrides/EU", "", admin)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodDelete, "/priority-config/LOW/regional-overrides/EU", "", admin)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat delete status = %d, want 404", rec.Code)
	}
}

func TestTimeframeFlowOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	admin := authz.RoleGovernanceAdmin

	rec := doRequest(t, h, http.MethodPatch, "/timeframe-config/HIGH:tier-1:daily",
		`{"max_days":30}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	entry := decodeBody(t, rec)
	if entry["entry_id"] != "high:tier-1:daily" || entry["max_days"] != float64(30) {
		t.Fatalf("entry = %v", entry)
	}

	rec = doRequest(t, h, http.MethodGet, "/timeframe-config", "", admin)
	body := decodeBody(t, rec)
	if entries, _ := body["entries"].([]any); len(entries) != 1 {
		t.Fatalf("entries = %v", body["entries"])
	}

	// The lookup endpoint is what consumers call at decision time.
	rec = doRequest(t, h, http.MethodGet,
		"/timeframe-config/lookup?priority=HIGH&risk_tier=tier-1&usage_frequency=daily", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d: %s", rec.Code, rec.Body.String())
	}
	decision := decodeBody(t, rec)
	if decision["enforced"] != true || decision["max_days"] != float64(30) {
		t.Fatalf("decision = %v", decision)
	}

	// Missing cells are reported as unenforced, never as a zero-day deadline.
	rec = doRequest(t, h, http.MethodGet,
		"/timeframe-config/lookup?priority=LOW&risk_tier=tier-3&usage_frequency=annual", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("missing cell status = %d", rec.Code)
	}
	decision = decodeBody(t, rec)
	if decision["enforced"] != false {
		t.Fatalf("missing cell decision = %v", decision)
	}

	rec = doRequest(t, h, http.MethodGet, "/timeframe-config/lookup?priority=HIGH", "", admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("partial lookup status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPatch, "/timeframe-config/HIGH:tier-1:daily",
		`{"max_days":0}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero cap status = %d, want 400", rec.Code)
	}

	// A null max_days clears the cell.
	rec = doRequest(t, h, http.MethodPatch, "/timeframe-config/HIGH:tier-1:daily",
		`{"max_days":null}`, admin)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", rec.Code)
	}
}
