package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kestrelrisk/mrg-console/internal/routing"
	priorityports "github.com/kestrelrisk/mrg-console/modules/priority/domain/ports"
	"github.com/kestrelrisk/mrg-console/modules/priority/domain/types"
	priorityservices "github.com/kestrelrisk/mrg-console/modules/priority/services"
)

func priorityCodeFromPath(w http.ResponseWriter, r *http.Request) (types.PriorityCode, bool) {
	segs := splitRouteSegments(r.URL.Path)
	if len(segs) < 2 {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "not_found", "not found")
		return "", false
	}
	code, ok := types.ParsePriorityCode(segs[1])
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "priority_not_found", "unknown priority code")
		return "", false
	}
	return code, true
}

func handlePriorityListAPI(w http.ResponseWriter, r *http.Request, store priorityports.PriorityStore) {
	policies, err := store.ListPolicies(r.Context())
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"priorities": policies})
}

func handlePriorityPatchAPI(w http.ResponseWriter, r *http.Request, store priorityports.PriorityStore) {
	code, ok := priorityCodeFromPath(w, r)
	if !ok {
		return
	}
	var patch types.PolicyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	policy, err := store.UpdatePolicy(r.Context(), code, patch)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func handleOverrideListAPI(w http.ResponseWriter, r *http.Request, store priorityports.PriorityStore) {
	code, ok := priorityCodeFromPath(w, r)
	if !ok {
		return
	}
	overrides, err := store.ListOverrides(r.Context(), code)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

func handleOverrideCreateAPI(w http.ResponseWriter, r *http.Request, store priorityports.PriorityStore) {
	code, ok := priorityCodeFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		RegionCode            string `json:"region_code"`
		RequiresActionPlan    *bool  `json:"requires_action_plan"`
		RequiresFinalApproval *bool  `json:"requires_final_approval"`
		EnforceTimeframes     *bool  `json:"enforce_timeframes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	override, err := store.CreateOverride(r.Context(), types.RegionalOverride{
		PriorityCode:          code,
		RegionCode:            types.NormalizeRegionCode(req.RegionCode),
		RequiresActionPlan:    req.RequiresActionPlan,
		RequiresFinalApproval: req.RequiresFinalApproval,
		EnforceTimeframes:     req.EnforceTimeframes,
	})
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, override)
}

func handleOverridePatchAPI(w http.ResponseWriter, r *http.Request, store priorityports.PriorityStore) {
	code, ok := priorityCodeFromPath(w, r)
	if !ok {
		return
	}
	segs := splitRouteSegments(r.URL.Path)
	region := types.NormalizeRegionCode(segs[3])

	var patch types.OverridePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	override, err := store.UpdateOverride(r.Context(), code, region, patch)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, override)
}

func handleOverrideDeleteAPI(w http.ResponseWriter, r *http.Request, store priorityports.PriorityStore) {
	code, ok := priorityCodeFromPath(w, r)
	if !ok {
		return
	}
	segs := splitRouteSegments(r.URL.Path)
	region := types.NormalizeRegionCode(segs[3])
	if err := store.DeleteOverride(r.Context(), code, region); err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handlePriorityResolveAPI(w http.ResponseWriter, r *http.Request, resolver *priorityservices.Resolver) {
	var req struct {
		PriorityCode string   `json:"priority_code"`
		RegionCodes  []string `json:"region_codes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	resolution, err := resolver.Resolve(r.Context(), req.PriorityCode, req.RegionCodes)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func handleTimeframeListAPI(w http.ResponseWriter, r *http.Request, store priorityports.TimeframeStore) {
	entries, err := store.ListEntries(r.Context())
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func handleTimeframePatchAPI(w http.ResponseWriter, r *http.Request, store priorityports.TimeframeStore) {
	segs := splitRouteSegments(r.URL.Path)
	if len(segs) != 2 {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "not_found", "not found")
		return
	}

	var req struct {
		MaxDays *int `json:"max_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	entry, present, err := store.UpdateEntry(r.Context(), segs[1], req.MaxDays)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	if !present {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func handleTimeframeLookupAPI(w http.ResponseWriter, r *http.Request, resolver *priorityservices.TimeframeResolver) {
	q := r.URL.Query()
	priority := strings.TrimSpace(q.Get("priority"))
	riskTier := strings.TrimSpace(q.Get("risk_tier"))
	usageFrequency := strings.TrimSpace(q.Get("usage_frequency"))
	if priority == "" || riskTier == "" || usageFrequency == "" {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "lookup_params_required", "priority, risk_tier and usage_frequency are required")
		return
	}

	decision, err := resolver.Lookup(r.Context(), priority, riskTier, usageFrequency)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
