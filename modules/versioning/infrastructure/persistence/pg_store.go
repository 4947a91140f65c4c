package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kestrelrisk/mrg-console/modules/versioning/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore implements DraftStore, VersionStore and BindingStore over
// Postgres. The version insert relies on the unique (domain, version_number)
// index: a losing concurrent publish surfaces as a retryable Conflict.
type PGStore struct {
	pool pgBeginner
}

func NewPGStore(pool pgBeginner) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) ListDraftItems(ctx context.Context, domain types.ConfigDomain) ([]types.DraftItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT item_id, sort_order, active, payload, updated_at
FROM mrg.config_draft_items
WHERE domain = $1
ORDER BY sort_order ASC, item_id ASC
`, string(domain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.DraftItem, 0)
	for rows.Next() {
		var item types.DraftItem
		if err := rows.Scan(&item.ItemID, &item.SortOrder, &item.Active, &item.Payload, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PGStore) GetDraftItem(ctx context.Context, domain types.ConfigDomain, itemID string) (types.DraftItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.DraftItem{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var item types.DraftItem
	err = tx.QueryRow(ctx, `
SELECT item_id, sort_order, active, payload, updated_at
FROM mrg.config_draft_items
WHERE domain = $1 AND item_id = $2
`, string(domain), itemID).Scan(&item.ItemID, &item.SortOrder, &item.Active, &item.Payload, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.DraftItem{}, httperr.NewNotFound("DRAFT_ITEM_NOT_FOUND", "draft item not found")
	}
	if err != nil {
		return types.DraftItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.DraftItem{}, err
	}
	return item, nil
}

func (s *PGStore) UpsertDraftItem(ctx context.Context, domain types.ConfigDomain, item types.DraftItem) (types.DraftItem, error) {
	item.ItemID = strings.TrimSpace(item.ItemID)
	if item.ItemID == "" {
		return types.DraftItem{}, httperr.NewBadRequest("DRAFT_ITEM_ID_REQUIRED", "item id required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.DraftItem{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var retired bool
	err = tx.QueryRow(ctx, `
SELECT retired FROM mrg.config_draft_items WHERE domain = $1 AND item_id = $2
`, string(domain), item.ItemID).Scan(&retired)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return types.DraftItem{}, err
	}
	if retired {
		return types.DraftItem{}, httperr.NewConflict("DRAFT_ITEM_ID_RETIRED", "item id was deactivated and cannot be reused")
	}

	item.Active = true
	item.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(ctx, `
INSERT INTO mrg.config_draft_items (domain, item_id, sort_order, active, retired, payload, updated_at)
VALUES ($1, $2, $3, true, false, $4, $5)
ON CONFLICT (domain, item_id) DO UPDATE
SET sort_order = EXCLUDED.sort_order, active = true, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
`, string(domain), item.ItemID, item.SortOrder, item.Payload, item.UpdatedAt)
	if err != nil {
		return types.DraftItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.DraftItem{}, err
	}
	return item, nil
}

func (s *PGStore) DeactivateDraftItem(ctx context.Context, domain types.ConfigDomain, itemID string) (types.DraftItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.DraftItem{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var item types.DraftItem
	err = tx.QueryRow(ctx, `
UPDATE mrg.config_draft_items
SET active = false, retired = true, updated_at = now()
WHERE domain = $1 AND item_id = $2
RETURNING item_id, sort_order, active, payload, updated_at
`, string(domain), itemID).Scan(&item.ItemID, &item.SortOrder, &item.Active, &item.Payload, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.DraftItem{}, httperr.NewNotFound("DRAFT_ITEM_NOT_FOUND", "draft item not found")
	}
	if err != nil {
		return types.DraftItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.DraftItem{}, err
	}
	return item, nil
}

func (s *PGStore) DeleteDraftItem(ctx context.Context, domain types.ConfigDomain, itemID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var references int
	err = tx.QueryRow(ctx, `
SELECT count(*)
FROM mrg.config_versions
WHERE domain = $1
  AND items @> jsonb_build_array(jsonb_build_object('item_id', $2::text))
`, string(domain), itemID).Scan(&references)
	if err != nil {
		return err
	}
	if references > 0 {
		return httperr.NewReferencedConflict("DRAFT_ITEM_REFERENCED", "item is referenced by published versions; deactivate instead", references)
	}

	tag, err := tx.Exec(ctx, `
DELETE FROM mrg.config_draft_items WHERE domain = $1 AND item_id = $2
`, string(domain), itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.NewNotFound("DRAFT_ITEM_NOT_FOUND", "draft item not found")
	}
	return tx.Commit(ctx)
}

func (s *PGStore) GetActiveVersion(ctx context.Context, domain types.ConfigDomain) (types.Version, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Version{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	version, err := scanVersionRow(tx.QueryRow(ctx, `
SELECT version_id, domain, version_number, name, description, published_at, published_by, is_active, items
FROM mrg.config_versions
WHERE domain = $1 AND is_active
`, string(domain)))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Version{}, false, nil
	}
	if err != nil {
		return types.Version{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Version{}, false, err
	}
	return version, true, nil
}

func (s *PGStore) ListVersions(ctx context.Context, domain types.ConfigDomain) ([]types.Version, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT version_id, domain, version_number, name, description, published_at, published_by, is_active, items
FROM mrg.config_versions
WHERE domain = $1
ORDER BY version_number ASC
`, string(domain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]types.Version, 0)
	for rows.Next() {
		version, err := scanVersionRow(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return versions, nil
}

func (s *PGStore) GetVersion(ctx context.Context, domain types.ConfigDomain, versionID string) (types.Version, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Version{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	version, err := scanVersionRow(tx.QueryRow(ctx, `
SELECT version_id, domain, version_number, name, description, published_at, published_by, is_active, items
FROM mrg.config_versions
WHERE domain = $1 AND version_id = $2
`, string(domain), versionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Version{}, httperr.NewNotFound("VERSION_NOT_FOUND", "version not found")
	}
	if err != nil {
		return types.Version{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Version{}, err
	}
	return version, nil
}

func (s *PGStore) InsertVersionAndActivate(ctx context.Context, version types.Version) (types.Version, error) {
	itemsJSON, err := json.Marshal(version.Items)
	if err != nil {
		return types.Version{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Version{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var next int
	if err := tx.QueryRow(ctx, `
SELECT COALESCE(MAX(version_number), 0) + 1 FROM mrg.config_versions WHERE domain = $1
`, string(version.Domain)).Scan(&next); err != nil {
		return types.Version{}, err
	}

	if _, err := tx.Exec(ctx, `
UPDATE mrg.config_versions SET is_active = false WHERE domain = $1 AND is_active
`, string(version.Domain)); err != nil {
		return types.Version{}, err
	}

	version.VersionNumber = next
	version.IsActive = true
	if _, err := tx.Exec(ctx, `
INSERT INTO mrg.config_versions (version_id, domain, version_number, name, description, published_at, published_by, is_active, items)
VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
`, version.VersionID, string(version.Domain), version.VersionNumber, version.Name, version.Description, version.PublishedAt, version.PublishedBy, itemsJSON); err != nil {
		if isPgUniqueViolation(err) {
			return types.Version{}, httperr.NewConflict("VERSION_NUMBER_COLLISION", "concurrent publish allocated the same version number; retry")
		}
		return types.Version{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isPgUniqueViolation(err) {
			return types.Version{}, httperr.NewConflict("VERSION_NUMBER_COLLISION", "concurrent publish allocated the same version number; retry")
		}
		return types.Version{}, err
	}
	return version, nil
}

func (s *PGStore) InsertBinding(ctx context.Context, binding types.Binding) (types.Binding, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Binding{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO mrg.consumer_bindings (consumer_id, domain, version_id, bound_at)
VALUES ($1, $2, $3, $4)
`, binding.ConsumerID, string(binding.Domain), binding.VersionID, binding.BoundAt); err != nil {
		if isPgUniqueViolation(err) {
			return types.Binding{}, httperr.NewConflict("BINDING_ALREADY_EXISTS", "consumer is already bound")
		}
		return types.Binding{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Binding{}, err
	}
	return binding, nil
}

func (s *PGStore) GetBinding(ctx context.Context, consumerID string) (types.Binding, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Binding{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var binding types.Binding
	var domain string
	err = tx.QueryRow(ctx, `
SELECT consumer_id, domain, version_id, bound_at
FROM mrg.consumer_bindings
WHERE consumer_id = $1
`, consumerID).Scan(&binding.ConsumerID, &domain, &binding.VersionID, &binding.BoundAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Binding{}, false, nil
	}
	if err != nil {
		return types.Binding{}, false, err
	}
	binding.Domain = types.ConfigDomain(domain)
	if err := tx.Commit(ctx); err != nil {
		return types.Binding{}, false, err
	}
	return binding, true, nil
}

type versionRowScanner interface {
	Scan(dest ...any) error
}

func scanVersionRow(row versionRowScanner) (types.Version, error) {
	var version types.Version
	var domain string
	var itemsJSON []byte
	if err := row.Scan(&version.VersionID, &domain, &version.VersionNumber, &version.Name, &version.Description,
		&version.PublishedAt, &version.PublishedBy, &version.IsActive, &itemsJSON); err != nil {
		return types.Version{}, err
	}
	version.Domain = types.ConfigDomain(domain)
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &version.Items); err != nil {
			return types.Version{}, err
		}
	}
	if version.Items == nil {
		version.Items = []types.FrozenItem{}
	}
	return version, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
