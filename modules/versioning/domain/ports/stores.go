package ports

import (
	"context"

	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
)

type DraftStore interface {
	ListDraftItems(ctx context.Context, domain types.ConfigDomain) ([]types.DraftItem, error)
	GetDraftItem(ctx context.Context, domain types.ConfigDomain, itemID string) (types.DraftItem, error)
	// UpsertDraftItem creates or updates a draft row. Reusing the identifier
	// of a deactivated item fails with Conflict: a revived id would alias two
	// different historical items in version comparisons.
	UpsertDraftItem(ctx context.Context, domain types.ConfigDomain, item types.DraftItem) (types.DraftItem, error)
	// DeactivateDraftItem is the soft path: the row stays for historical
	// comparisons but drops out of future snapshots.
	DeactivateDraftItem(ctx context.Context, domain types.ConfigDomain, itemID string) (types.DraftItem, error)
	// DeleteDraftItem hard-deletes a never-referenced item. If any version
	// snapshot references the id it fails with a Conflict carrying the
	// blocking reference count.
	DeleteDraftItem(ctx context.Context, domain types.ConfigDomain, itemID string) error
}

type VersionStore interface {
	GetActiveVersion(ctx context.Context, domain types.ConfigDomain) (types.Version, bool, error)
	ListVersions(ctx context.Context, domain types.ConfigDomain) ([]types.Version, error)
	GetVersion(ctx context.Context, domain types.ConfigDomain, versionID string) (types.Version, error)
	// InsertVersionAndActivate allocates the next version number, inserts the
	// snapshot with is_active=true and flips the previously active version,
	// all atomically. Concurrent inserts for one domain fail with Conflict.
	InsertVersionAndActivate(ctx context.Context, version types.Version) (types.Version, error)
}

type BindingStore interface {
	InsertBinding(ctx context.Context, binding types.Binding) (types.Binding, error)
	GetBinding(ctx context.Context, consumerID string) (types.Binding, bool, error)
}
