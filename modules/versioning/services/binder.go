package services

import (
	"context"
	"strings"
	"time"

	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/ports"
	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

// Binder pins downstream consumers to the version active at lock time.
// A binding is written once and resolves to the same version forever,
// regardless of later publishes.
type Binder struct {
	versions ports.VersionStore
	bindings ports.BindingStore
}

func NewBinder(versions ports.VersionStore, bindings ports.BindingStore) *Binder {
	return &Binder{versions: versions, bindings: bindings}
}

func (b *Binder) Bind(ctx context.Context, domain types.ConfigDomain, consumerID string) (types.Binding, types.Version, error) {
	consumerID = strings.TrimSpace(consumerID)
	if consumerID == "" {
		return types.Binding{}, types.Version{}, httperr.NewBadRequest("CONSUMER_ID_REQUIRED", "consumer id required")
	}

	active, ok, err := b.versions.GetActiveVersion(ctx, domain)
	if err != nil {
		return types.Binding{}, types.Version{}, err
	}
	if !ok {
		return types.Binding{}, types.Version{}, httperr.NewFailedPrecondition("NO_ACTIVE_VERSION", "domain has no active version to bind to")
	}

	binding, err := b.bindings.InsertBinding(ctx, types.Binding{
		ConsumerID: consumerID,
		Domain:     domain,
		VersionID:  active.VersionID,
		BoundAt:    time.Now().UTC(),
	})
	if err != nil {
		return types.Binding{}, types.Version{}, err
	}
	return binding, active, nil
}

func (b *Binder) ResolveFor(ctx context.Context, consumerID string) (types.Binding, types.Version, error) {
	consumerID = strings.TrimSpace(consumerID)
	binding, ok, err := b.bindings.GetBinding(ctx, consumerID)
	if err != nil {
		return types.Binding{}, types.Version{}, err
	}
	if !ok {
		return types.Binding{}, types.Version{}, httperr.NewNotFound("BINDING_NOT_FOUND", "no binding recorded for consumer")
	}

	version, err := b.versions.GetVersion(ctx, binding.Domain, binding.VersionID)
	if err != nil {
		return types.Binding{}, types.Version{}, err
	}
	return binding, version, nil
}
