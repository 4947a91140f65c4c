// Package persistence provides the storage backends for the versioning
// engine: an in-memory store for tests and DB-less development, and a
// Postgres store for production.
package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

type memoryDomainState struct {
	items    map[string]types.DraftItem
	retired  map[string]bool
	versions []types.Version
}

// MemoryStore implements DraftStore, VersionStore and BindingStore over
// process memory with a single mutex. Version inserts are serialized, so
// number allocation and the active flip are atomic by construction.
type MemoryStore struct {
	mu       sync.Mutex
	domains  map[types.ConfigDomain]*memoryDomainState
	bindings map[string]types.Binding
}

func NewMemoryStore() *MemoryStore {
	domains := make(map[types.ConfigDomain]*memoryDomainState)
	for _, domain := range types.AllConfigDomains() {
		domains[domain] = &memoryDomainState{
			items:   make(map[string]types.DraftItem),
			retired: make(map[string]bool),
		}
	}
	return &MemoryStore{domains: domains, bindings: make(map[string]types.Binding)}
}

func (s *MemoryStore) domainState(domain types.ConfigDomain) (*memoryDomainState, error) {
	state, ok := s.domains[domain]
	if !ok {
		return nil, httperr.NewNotFound("DOMAIN_NOT_FOUND", "unknown configuration domain")
	}
	return state, nil
}

func (s *MemoryStore) ListDraftItems(_ context.Context, domain types.ConfigDomain) ([]types.DraftItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return nil, err
	}

	out := make([]types.DraftItem, 0, len(state.items))
	for _, item := range state.items {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (s *MemoryStore) GetDraftItem(_ context.Context, domain types.ConfigDomain, itemID string) (types.DraftItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return types.DraftItem{}, err
	}
	item, ok := state.items[itemID]
	if !ok {
		return types.DraftItem{}, httperr.NewNotFound("DRAFT_ITEM_NOT_FOUND", "draft item not found")
	}
	return item.Clone(), nil
}

func (s *MemoryStore) UpsertDraftItem(_ context.Context, domain types.ConfigDomain, item types.DraftItem) (types.DraftItem, error) {
	item.ItemID = strings.TrimSpace(item.ItemID)
	if item.ItemID == "" {
		return types.DraftItem{}, httperr.NewBadRequest("DRAFT_ITEM_ID_REQUIRED", "item id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return types.DraftItem{}, err
	}

	if state.retired[item.ItemID] {
		return types.DraftItem{}, httperr.NewConflict("DRAFT_ITEM_ID_RETIRED", "item id was deactivated and cannot be reused")
	}

	item.Active = true
	item.UpdatedAt = time.Now().UTC()
	state.items[item.ItemID] = item.Clone()
	return item, nil
}

func (s *MemoryStore) DeactivateDraftItem(_ context.Context, domain types.ConfigDomain, itemID string) (types.DraftItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return types.DraftItem{}, err
	}

	item, ok := state.items[itemID]
	if !ok {
		return types.DraftItem{}, httperr.NewNotFound("DRAFT_ITEM_NOT_FOUND", "draft item not found")
	}
	item.Active = false
	item.UpdatedAt = time.Now().UTC()
	state.items[itemID] = item
	state.retired[itemID] = true
	return item.Clone(), nil
}

func (s *MemoryStore) DeleteDraftItem(_ context.Context, domain types.ConfigDomain, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return err
	}

	if _, ok := state.items[itemID]; !ok {
		return httperr.NewNotFound("DRAFT_ITEM_NOT_FOUND", "draft item not found")
	}

	references := 0
	for _, version := range state.versions {
		for _, frozen := range version.Items {
			if frozen.ItemID == itemID {
				references++
				break
			}
		}
	}
	if references > 0 {
		return httperr.NewReferencedConflict("DRAFT_ITEM_REFERENCED", "item is referenced by published versions; deactivate instead", references)
	}

	delete(state.items, itemID)
	return nil
}

func (s *MemoryStore) GetActiveVersion(_ context.Context, domain types.ConfigDomain) (types.Version, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return types.Version{}, false, err
	}
	for _, version := range state.versions {
		if version.IsActive {
			return version.Clone(), true, nil
		}
	}
	return types.Version{}, false, nil
}

func (s *MemoryStore) ListVersions(_ context.Context, domain types.ConfigDomain) ([]types.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return nil, err
	}
	out := make([]types.Version, 0, len(state.versions))
	for _, version := range state.versions {
		out = append(out, version.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetVersion(_ context.Context, domain types.ConfigDomain, versionID string) (types.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(domain)
	if err != nil {
		return types.Version{}, err
	}
	for _, version := range state.versions {
		if version.VersionID == versionID {
			return version.Clone(), nil
		}
	}
	return types.Version{}, httperr.NewNotFound("VERSION_NOT_FOUND", "version not found")
}

func (s *MemoryStore) InsertVersionAndActivate(_ context.Context, version types.Version) (types.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.domainState(version.Domain)
	if err != nil {
		return types.Version{}, err
	}

	version = version.Clone()
	version.VersionNumber = len(state.versions) + 1
	version.IsActive = true
	for i := range state.versions {
		state.versions[i].IsActive = false
	}
	state.versions = append(state.versions, version)
	return version.Clone(), nil
}

func (s *MemoryStore) InsertBinding(_ context.Context, binding types.Binding) (types.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bindings[binding.ConsumerID]; ok {
		return types.Binding{}, httperr.NewConflict("BINDING_ALREADY_EXISTS", "consumer is already bound")
	}
	s.bindings[binding.ConsumerID] = binding
	return binding, nil
}

func (s *MemoryStore) GetBinding(_ context.Context, consumerID string) (types.Binding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.bindings[consumerID]
	return binding, ok, nil
}
