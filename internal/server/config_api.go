package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kestrelrisk/mrg-console/internal/routing"
	versioningports "github.com/kestrelrisk/mrg-console/modules/versioning/domain/ports"
	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
	versioningservices "github.com/kestrelrisk/mrg-console/modules/versioning/services"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiErrorEnvelope matches routing.ErrorEnvelope with optional detail fields
// for reference-blocked deletes and failed publish preconditions.
type apiErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	TraceID string       `json:"trace_id"`
	Meta    apiErrorMeta `json:"meta"`
}

type apiErrorMeta struct {
	Path               string   `json:"path"`
	Method             string   `json:"method"`
	BlockingReferences *int     `json:"blocking_references,omitempty"`
	Reasons            []string `json:"reasons,omitempty"`
}

func writeConfigAPIError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case httperr.IsBadRequest(err):
		status = http.StatusBadRequest
	case httperr.IsNotFound(err):
		status = http.StatusNotFound
	case httperr.IsConflict(err):
		status = http.StatusConflict
	case httperr.IsFailedPrecondition(err):
		status = http.StatusPreconditionFailed
	}
	if c := httperr.Code(err); c != "" {
		code = strings.ToLower(c)
	}

	meta := apiErrorMeta{Path: r.URL.Path, Method: r.Method}
	if refs, ok := httperr.ConflictReferences(err); ok && refs > 0 {
		meta.BlockingReferences = &refs
	}
	if reasons, ok := httperr.PreconditionReasons(err); ok && len(reasons) > 0 {
		meta.Reasons = reasons
	}

	msg := "internal error"
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, apiErrorEnvelope{
		Code:    code,
		Message: msg,
		TraceID: routing.TraceIDFromRequest(r),
		Meta:    meta,
	})
}

func configDomainFromPath(w http.ResponseWriter, r *http.Request) (types.ConfigDomain, bool) {
	segs := splitRouteSegments(r.URL.Path)
	if len(segs) < 2 {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "not_found", "not found")
		return "", false
	}
	domain, ok := types.ParseConfigDomain(segs[1])
	if !ok {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "domain_not_found", "unknown configuration domain")
		return "", false
	}
	return domain, true
}

func handleActiveVersionAPI(w http.ResponseWriter, r *http.Request, store versioningports.VersionStore) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	version, found, err := store.GetActiveVersion(r.Context(), domain)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	if !found {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "no_active_version", "domain has never been published")
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func handleVersionListAPI(w http.ResponseWriter, r *http.Request, store versioningports.VersionStore) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	versions, err := store.ListVersions(r.Context(), domain)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func handleVersionGetAPI(w http.ResponseWriter, r *http.Request, store versioningports.VersionStore) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	segs := splitRouteSegments(r.URL.Path)
	version, err := store.GetVersion(r.Context(), domain, segs[3])
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func handlePublishAPI(w http.ResponseWriter, r *http.Request, publisher *versioningservices.Publisher) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	publishedBy := ""
	if actor, ok := currentActor(r.Context()); ok {
		publishedBy = actor.ID
	}

	version, err := publisher.Publish(r.Context(), versioningservices.PublishRequest{
		Domain:      domain,
		Name:        req.Name,
		Description: req.Description,
		PublishedBy: publishedBy,
	})
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func handleUnpublishedChangesAPI(w http.ResponseWriter, r *http.Request, differ *versioningservices.Differ) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	changes, err := differ.UnpublishedChanges(r.Context(), domain)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func handleDraftItemListAPI(w http.ResponseWriter, r *http.Request, store versioningports.DraftStore) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	items, err := store.ListDraftItems(r.Context(), domain)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func handleDraftItemGetAPI(w http.ResponseWriter, r *http.Request, store versioningports.DraftStore) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	segs := splitRouteSegments(r.URL.Path)
	item, err := store.GetDraftItem(r.Context(), domain, segs[3])
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func handleDraftItemPutAPI(w http.ResponseWriter, r *http.Request, store versioningports.DraftStore, differ *versioningservices.Differ) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	segs := splitRouteSegments(r.URL.Path)
	itemID := strings.TrimSpace(segs[3])

	var req struct {
		SortOrder int             `json:"sort_order"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "draft_payload_invalid", "payload must be valid JSON")
		return
	}

	item, err := store.UpsertDraftItem(r.Context(), domain, types.DraftItem{
		ItemID:    itemID,
		SortOrder: req.SortOrder,
		Active:    true,
		Payload:   req.Payload,
	})
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	differ.Invalidate(domain)
	writeJSON(w, http.StatusOK, item)
}

func handleDraftItemDeleteAPI(w http.ResponseWriter, r *http.Request, store versioningports.DraftStore, differ *versioningservices.Differ) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	segs := splitRouteSegments(r.URL.Path)
	if err := store.DeleteDraftItem(r.Context(), domain, segs[3]); err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	differ.Invalidate(domain)
	w.WriteHeader(http.StatusNoContent)
}

func handleDraftItemDeactivateAPI(w http.ResponseWriter, r *http.Request, store versioningports.DraftStore, differ *versioningservices.Differ) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}
	segs := splitRouteSegments(r.URL.Path)
	item, err := store.DeactivateDraftItem(r.Context(), domain, segs[3])
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	differ.Invalidate(domain)
	writeJSON(w, http.StatusOK, item)
}

func handleBindingCreateAPI(w http.ResponseWriter, r *http.Request, binder *versioningservices.Binder) {
	domain, ok := configDomainFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		ConsumerID string `json:"consumer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	binding, version, err := binder.Bind(r.Context(), domain, req.ConsumerID)
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"binding":        binding,
		"version_number": version.VersionNumber,
	})
}

func handleBindingResolveAPI(w http.ResponseWriter, r *http.Request, binder *versioningservices.Binder) {
	segs := splitRouteSegments(r.URL.Path)
	if len(segs) != 3 {
		routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusNotFound, "not_found", "not found")
		return
	}
	binding, version, err := binder.ResolveFor(r.Context(), segs[2])
	if err != nil {
		writeConfigAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"binding": binding,
		"version": version,
	})
}
