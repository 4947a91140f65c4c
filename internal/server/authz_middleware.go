package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelrisk/mrg-console/internal/routing"
	"github.com/kestrelrisk/mrg-console/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassInternalAPI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		roleSlug := authz.RoleAnonymous
		if actor, ok := currentActor(r.Context()); ok && actor.Role != "" {
			roleSlug = actor.Role
		}
		subject := authz.SubjectFromRoleSlug(roleSlug)

		allowed, enforced, err := a.Authorize(subject, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	if pathMatchRouteTemplate(path, "/config/bindings/{consumer_id}") {
		if method == http.MethodGet {
			return authz.ObjectConfigBindings, authz.ActionRead, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/config/{domain}/bindings") {
		if method == http.MethodPost {
			return authz.ObjectConfigBindings, authz.ActionWrite, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/config/{domain}/publish") {
		if method == http.MethodPost {
			return authz.ObjectConfigVersions, authz.ActionPublish, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/config/{domain}/active-version") ||
		pathMatchRouteTemplate(path, "/config/{domain}/versions") ||
		pathMatchRouteTemplate(path, "/config/{domain}/versions/{version_id}") ||
		pathMatchRouteTemplate(path, "/config/{domain}/unpublished-changes") {
		if method == http.MethodGet {
			return authz.ObjectConfigVersions, authz.ActionRead, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/config/{domain}/draft-items") ||
		pathMatchRouteTemplate(path, "/config/{domain}/draft-items/{item_id}") {
		switch method {
		case http.MethodGet:
			return authz.ObjectConfigDrafts, authz.ActionRead, true
		case http.MethodPut, http.MethodDelete:
			return authz.ObjectConfigDrafts, authz.ActionWrite, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/config/{domain}/draft-items/{item_id}/deactivate") {
		if method == http.MethodPost {
			return authz.ObjectConfigDrafts, authz.ActionWrite, true
		}
		return "", "", false
	}

	switch path {
	case "/priority-config", "/priority-config/":
		if method == http.MethodGet {
			return authz.ObjectPriorityPolicies, authz.ActionRead, true
		}
		return "", "", false
	case "/priority-config/resolve":
		if method == http.MethodPost {
			return authz.ObjectPriorityPolicies, authz.ActionRead, true
		}
		return "", "", false
	case "/timeframe-config", "/timeframe-config/", "/timeframe-config/lookup":
		if method == http.MethodGet {
			return authz.ObjectTimeframeMatrix, authz.ActionRead, true
		}
		return "", "", false
	}

	if pathMatchRouteTemplate(path, "/priority-config/{priority_id}") {
		if method == http.MethodPatch {
			return authz.ObjectPriorityPolicies, authz.ActionWrite, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/priority-config/{priority_id}/regional-overrides") {
		switch method {
		case http.MethodGet:
			return authz.ObjectPriorityOverrides, authz.ActionRead, true
		case http.MethodPost:
			return authz.ObjectPriorityOverrides, authz.ActionWrite, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/priority-config/{priority_id}/regional-overrides/{region}") {
		if method == http.MethodPatch || method == http.MethodDelete {
			return authz.ObjectPriorityOverrides, authz.ActionWrite, true
		}
		return "", "", false
	}
	if pathMatchRouteTemplate(path, "/timeframe-config/{config_id}") {
		if method == http.MethodPatch {
			return authz.ObjectTimeframeMatrix, authz.ActionWrite, true
		}
		return "", "", false
	}

	return "", "", false
}

func pathMatchRouteTemplate(path string, template string) bool {
	in := splitRouteSegments(path)
	want := splitRouteSegments(template)
	if len(in) != len(want) {
		return false
	}
	for i := range want {
		w := want[i]
		g := in[i]
		if g == "" {
			return false
		}
		if routeTemplateIsParamSegment(w) {
			continue
		}
		if g != w {
			return false
		}
	}
	return true
}

func splitRouteSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func routeTemplateIsParamSegment(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2
}
