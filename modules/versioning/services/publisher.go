package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/ports"
	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

type PublishRequest struct {
	Domain      types.ConfigDomain
	Name        string
	Description string
	PublishedBy string
}

// Publisher freezes a domain's active draft items into a new immutable
// version and flips the active pointer, as one atomic unit. Prior versions
// and existing bindings are never touched.
type Publisher struct {
	drafts   ports.DraftStore
	versions ports.VersionStore
	guard    *PublishGuard
	differ   *Differ

	locks map[types.ConfigDomain]*sync.Mutex
}

// NewPublisher builds a publisher. guard and differ may be nil (no
// precondition rules, no diff cache to invalidate).
func NewPublisher(drafts ports.DraftStore, versions ports.VersionStore, guard *PublishGuard, differ *Differ) *Publisher {
	locks := make(map[types.ConfigDomain]*sync.Mutex, len(types.AllConfigDomains()))
	for _, domain := range types.AllConfigDomains() {
		locks[domain] = &sync.Mutex{}
	}
	return &Publisher{drafts: drafts, versions: versions, guard: guard, differ: differ, locks: locks}
}

func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (types.Version, error) {
	lock, ok := p.locks[req.Domain]
	if !ok {
		return types.Version{}, httperr.NewNotFound("DOMAIN_NOT_FOUND", "unknown configuration domain")
	}

	// Losing a concurrent publish for the same domain is a retryable
	// Conflict, never a silent overwrite.
	if !lock.TryLock() {
		return types.Version{}, httperr.NewConflict("PUBLISH_IN_FLIGHT", "a publish for this domain is already in flight")
	}
	defer lock.Unlock()

	drafts, err := p.drafts.ListDraftItems(ctx, req.Domain)
	if err != nil {
		return types.Version{}, err
	}

	active := make([]types.DraftItem, 0, len(drafts))
	for _, item := range drafts {
		if item.Active {
			active = append(active, item)
		}
	}

	if p.guard != nil {
		if err := p.guard.Check(req.Domain, active); err != nil {
			return types.Version{}, err
		}
	}

	items := make([]types.FrozenItem, 0, len(active))
	for _, item := range active {
		frozen, err := freezeItem(item)
		if err != nil {
			return types.Version{}, httperr.NewBadRequest("DRAFT_PAYLOAD_INVALID", "draft item payload is not valid JSON")
		}
		items = append(items, frozen)
	}

	versionID, err := uuid.NewV7()
	if err != nil {
		return types.Version{}, err
	}

	version := types.Version{
		VersionID:   versionID.String(),
		Domain:      req.Domain,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		PublishedAt: time.Now().UTC(),
		PublishedBy: strings.TrimSpace(req.PublishedBy),
		IsActive:    true,
		Items:       items,
	}

	published, err := p.versions.InsertVersionAndActivate(ctx, version)
	if err != nil {
		return types.Version{}, err
	}

	if p.differ != nil {
		p.differ.Invalidate(req.Domain)
	}
	return published, nil
}
