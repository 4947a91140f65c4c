// Package server wires the governance console's HTTP surface: the allowlist
// router, actor/authz middleware and the versioning and priority handlers.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kestrelrisk/mrg-console/internal/routing"
	priorityports "github.com/kestrelrisk/mrg-console/modules/priority/domain/ports"
	prioritypersistence "github.com/kestrelrisk/mrg-console/modules/priority/infrastructure/persistence"
	priorityservices "github.com/kestrelrisk/mrg-console/modules/priority/services"
	versioningports "github.com/kestrelrisk/mrg-console/modules/versioning/domain/ports"
	versioningpersistence "github.com/kestrelrisk/mrg-console/modules/versioning/infrastructure/persistence"
	versioningservices "github.com/kestrelrisk/mrg-console/modules/versioning/services"
)

// ConfigStore is the combined versioning storage surface. Both the memory
// and Postgres stores satisfy it.
type ConfigStore interface {
	versioningports.DraftStore
	versioningports.VersionStore
	versioningports.BindingStore
}

// PriorityStore combines the priority policy and timeframe surfaces.
type PriorityStore interface {
	priorityports.PriorityStore
	priorityports.TimeframeStore
}

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	ConfigStore   ConfigStore
	PriorityStore PriorityStore
	PublishGuard  *versioningservices.PublishGuard
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a)
	if err != nil {
		return nil, err
	}

	configStore := opts.ConfigStore
	priorityStore := opts.PriorityStore

	var pgPool *pgxpool.Pool
	if configStore == nil || priorityStore == nil {
		if dsn := os.Getenv("DATABASE_URL"); dsn != "" || os.Getenv("DB_HOST") != "" {
			pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
			if err != nil {
				return nil, err
			}
			pgPool = pool
		}
	}
	if configStore == nil {
		if pgPool != nil {
			configStore = versioningpersistence.NewPGStore(pgPool)
		} else {
			configStore = versioningpersistence.NewMemoryStore()
		}
	}
	if priorityStore == nil {
		if pgPool != nil {
			priorityStore = prioritypersistence.NewPGStore(pgPool)
		} else {
			priorityStore = prioritypersistence.NewMemoryStore()
		}
	}

	guard := opts.PublishGuard
	if guard == nil {
		g, err := loadPublishGuard()
		if err != nil {
			return nil, err
		}
		guard = g
	}

	differ := versioningservices.NewDiffer(configStore, configStore)
	publisher := versioningservices.NewPublisher(configStore, configStore, guard, differ)
	binder := versioningservices.NewBinder(configStore, configStore)
	resolver := priorityservices.NewResolver(priorityStore)
	timeframes := priorityservices.NewTimeframeResolver(priorityStore)

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	// Binding resolve is registered before the {domain} patterns so
	// /config/bindings/* never falls into a domain route.
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/config/bindings/{consumer_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleBindingResolveAPI(w, r, binder)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/config/{domain}/active-version", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleActiveVersionAPI(w, r, configStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/config/{domain}/versions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleVersionListAPI(w, r, configStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/config/{domain}/versions/{version_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleVersionGetAPI(w, r, configStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/config/{domain}/publish", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePublishAPI(w, r, publisher)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/config/{domain}/unpublished-changes", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleUnpublishedChangesAPI(w, r, differ)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/config/{domain}/draft-items", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDraftItemListAPI(w, r, configStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/config/{domain}/draft-items/{item_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDraftItemGetAPI(w, r, configStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPut, "/config/{domain}/draft-items/{item_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDraftItemPutAPI(w, r, configStore, differ)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodDelete, "/config/{domain}/draft-items/{item_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDraftItemDeleteAPI(w, r, configStore, differ)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/config/{domain}/draft-items/{item_id}/deactivate", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDraftItemDeactivateAPI(w, r, configStore, differ)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/config/{domain}/bindings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleBindingCreateAPI(w, r, binder)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/priority-config", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePriorityListAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/priority-config/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePriorityListAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/priority-config/resolve", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePriorityResolveAPI(w, r, resolver)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPatch, "/priority-config/{priority_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePriorityPatchAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/priority-config/{priority_id}/regional-overrides", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOverrideListAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/priority-config/{priority_id}/regional-overrides", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOverrideCreateAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPatch, "/priority-config/{priority_id}/regional-overrides/{region}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOverridePatchAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodDelete, "/priority-config/{priority_id}/regional-overrides/{region}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOverrideDeleteAPI(w, r, priorityStore)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/timeframe-config", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTimeframeListAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/timeframe-config/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTimeframeListAPI(w, r, priorityStore)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/timeframe-config/lookup", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTimeframeLookupAPI(w, r, timeframes)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPatch, "/timeframe-config/{config_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTimeframePatchAPI(w, r, priorityStore)
	}))

	return withActor(withAuthz(classifier, authorizer, router)), nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
