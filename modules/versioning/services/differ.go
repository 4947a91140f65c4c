package services

import (
	"context"
	"sort"
	"sync"

	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/ports"
	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
)

// Differ reports whether a domain has unpublished changes by comparing the
// current draft set against the active version's frozen items. Results are
// cached per domain; any draft mutation or publish must call Invalidate.
type Differ struct {
	drafts   ports.DraftStore
	versions ports.VersionStore

	mu    sync.Mutex
	cache map[types.ConfigDomain]types.ChangeSet
	gen   map[types.ConfigDomain]uint64
}

func NewDiffer(drafts ports.DraftStore, versions ports.VersionStore) *Differ {
	return &Differ{
		drafts:   drafts,
		versions: versions,
		cache:    make(map[types.ConfigDomain]types.ChangeSet),
		gen:      make(map[types.ConfigDomain]uint64),
	}
}

func (d *Differ) Invalidate(domain types.ConfigDomain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache, domain)
	d.gen[domain]++
}

func (d *Differ) HasUnpublishedChanges(ctx context.Context, domain types.ConfigDomain) (bool, error) {
	cs, err := d.UnpublishedChanges(ctx, domain)
	if err != nil {
		return false, err
	}
	return cs.Dirty, nil
}

func (d *Differ) UnpublishedChanges(ctx context.Context, domain types.ConfigDomain) (types.ChangeSet, error) {
	d.mu.Lock()
	if cached, ok := d.cache[domain]; ok {
		d.mu.Unlock()
		return cached, nil
	}
	gen := d.gen[domain]
	d.mu.Unlock()

	var frozen []types.FrozenItem
	active, ok, err := d.versions.GetActiveVersion(ctx, domain)
	if err != nil {
		return types.ChangeSet{}, err
	}
	if ok {
		frozen = active.Items
	}

	drafts, err := d.drafts.ListDraftItems(ctx, domain)
	if err != nil {
		return types.ChangeSet{}, err
	}

	cs, err := CompareSnapshots(domain, frozen, drafts)
	if err != nil {
		return types.ChangeSet{}, err
	}

	// An Invalidate that raced the store reads above makes this result
	// stale; only cache it if the generation is unchanged.
	d.mu.Lock()
	if d.gen[domain] == gen {
		d.cache[domain] = cs
	}
	d.mu.Unlock()
	return cs, nil
}

// CompareSnapshots is the pure core of the differ: it keys both sides by item
// identifier and content hash. Inactive drafts are excluded, since they would
// not be part of the next snapshot. A domain with drafts but no version yet
// is always dirty.
func CompareSnapshots(domain types.ConfigDomain, frozen []types.FrozenItem, drafts []types.DraftItem) (types.ChangeSet, error) {
	frozenByID := make(map[string]string, len(frozen))
	for _, item := range frozen {
		frozenByID[item.ItemID] = item.ContentHash
	}

	draftByID := make(map[string]string)
	for _, item := range drafts {
		if !item.Active {
			continue
		}
		hash, err := ContentHash(item.Payload, item.SortOrder)
		if err != nil {
			return types.ChangeSet{}, err
		}
		draftByID[item.ItemID] = hash
	}

	changes := make([]types.Change, 0)
	for id, hash := range draftByID {
		frozenHash, ok := frozenByID[id]
		switch {
		case !ok:
			changes = append(changes, types.Change{Kind: types.ChangeAdded, ItemID: id})
		case frozenHash != hash:
			changes = append(changes, types.Change{Kind: types.ChangeModified, ItemID: id})
		}
	}
	for id := range frozenByID {
		if _, ok := draftByID[id]; !ok {
			changes = append(changes, types.Change{Kind: types.ChangeRemoved, ItemID: id})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ItemID == changes[j].ItemID {
			return changes[i].Kind < changes[j].Kind
		}
		return changes[i].ItemID < changes[j].ItemID
	})

	return types.ChangeSet{Domain: domain, Dirty: len(changes) > 0, Changes: changes}, nil
}
