package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kestrelrisk/mrg-console/modules/priority/domain/types"
	"github.com/kestrelrisk/mrg-console/pkg/httperr"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore implements PriorityStore and TimeframeStore over Postgres. Base
// policies are seeded by migration; the store only updates them in place.
type PGStore struct {
	pool pgBeginner
}

func NewPGStore(pool pgBeginner) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) ListPolicies(ctx context.Context) ([]types.PriorityPolicy, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT priority_code, description, requires_action_plan, requires_final_approval, enforce_timeframes, updated_at
FROM mrg.priority_policies
ORDER BY rank ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	policies := make([]types.PriorityPolicy, 0, 4)
	for rows.Next() {
		var policy types.PriorityPolicy
		if err := rows.Scan(&policy.PriorityCode, &policy.Description, &policy.RequiresActionPlan, &policy.RequiresFinalApproval, &policy.EnforceTimeframes, &policy.UpdatedAt); err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return policies, nil
}

func (s *PGStore) GetPolicy(ctx context.Context, code types.PriorityCode) (types.PriorityPolicy, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.PriorityPolicy{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	policy, err := getPolicyTx(ctx, tx, code)
	if err != nil {
		return types.PriorityPolicy{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.PriorityPolicy{}, err
	}
	return policy, nil
}

func getPolicyTx(ctx context.Context, tx pgx.Tx, code types.PriorityCode) (types.PriorityPolicy, error) {
	var policy types.PriorityPolicy
	err := tx.QueryRow(ctx, `
SELECT priority_code, description, requires_action_plan, requires_final_approval, enforce_timeframes, updated_at
FROM mrg.priority_policies
WHERE priority_code = $1
`, string(code)).Scan(&policy.PriorityCode, &policy.Description, &policy.RequiresActionPlan, &policy.RequiresFinalApproval, &policy.EnforceTimeframes, &policy.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.PriorityPolicy{}, httperr.NewNotFound("PRIORITY_NOT_FOUND", "unknown priority code")
	}
	if err != nil {
		return types.PriorityPolicy{}, err
	}
	return policy, nil
}

func (s *PGStore) UpdatePolicy(ctx context.Context, code types.PriorityCode, patch types.PolicyPatch) (types.PriorityPolicy, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.PriorityPolicy{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	policy, err := getPolicyTx(ctx, tx, code)
	if err != nil {
		return types.PriorityPolicy{}, err
	}
	if patch.Description != nil {
		policy.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.RequiresActionPlan != nil {
		policy.RequiresActionPlan = *patch.RequiresActionPlan
	}
	if patch.RequiresFinalApproval != nil {
		policy.RequiresFinalApproval = *patch.RequiresFinalApproval
	}
	if patch.EnforceTimeframes != nil {
		policy.EnforceTimeframes = *patch.EnforceTimeframes
	}
	policy.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
UPDATE mrg.priority_policies
SET description = $2, requires_action_plan = $3, requires_final_approval = $4, enforce_timeframes = $5, updated_at = $6
WHERE priority_code = $1
`, string(code), policy.Description, policy.RequiresActionPlan, policy.RequiresFinalApproval, policy.EnforceTimeframes, policy.UpdatedAt)
	if err != nil {
		return types.PriorityPolicy{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.PriorityPolicy{}, err
	}
	return policy, nil
}

func (s *PGStore) ListOverrides(ctx context.Context, code types.PriorityCode) ([]types.RegionalOverride, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := getPolicyTx(ctx, tx, code); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT priority_code, region_code, requires_action_plan, requires_final_approval, enforce_timeframes, updated_at
FROM mrg.regional_overrides
WHERE priority_code = $1
ORDER BY region_code ASC
`, string(code))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make([]types.RegionalOverride, 0)
	for rows.Next() {
		var override types.RegionalOverride
		if err := rows.Scan(&override.PriorityCode, &override.RegionCode, &override.RequiresActionPlan, &override.RequiresFinalApproval, &override.EnforceTimeframes, &override.UpdatedAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *PGStore) CreateOverride(ctx context.Context, override types.RegionalOverride) (types.RegionalOverride, error) {
	if override.RegionCode == "" {
		return types.RegionalOverride{}, httperr.NewBadRequest("REGION_CODE_REQUIRED", "region code required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.RegionalOverride{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := getPolicyTx(ctx, tx, override.PriorityCode); err != nil {
		return types.RegionalOverride{}, err
	}

	override.UpdatedAt = time.Now().UTC()
	_, err = tx.Exec(ctx, `
INSERT INTO mrg.regional_overrides (priority_code, region_code, requires_action_plan, requires_final_approval, enforce_timeframes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, string(override.PriorityCode), string(override.RegionCode), override.RequiresActionPlan, override.RequiresFinalApproval, override.EnforceTimeframes, override.UpdatedAt)
	if isPgUniqueViolation(err) {
		return types.RegionalOverride{}, httperr.NewConflict("OVERRIDE_ALREADY_EXISTS", "override for this priority and region already exists")
	}
	if err != nil {
		return types.RegionalOverride{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.RegionalOverride{}, err
	}
	return override, nil
}

func (s *PGStore) UpdateOverride(ctx context.Context, code types.PriorityCode, region types.RegionCode, patch types.OverridePatch) (types.RegionalOverride, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.RegionalOverride{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var override types.RegionalOverride
	err = tx.QueryRow(ctx, `
SELECT priority_code, region_code, requires_action_plan, requires_final_approval, enforce_timeframes, updated_at
FROM mrg.regional_overrides
WHERE priority_code = $1 AND region_code = $2
`, string(code), string(region)).Scan(&override.PriorityCode, &override.RegionCode, &override.RequiresActionPlan, &override.RequiresFinalApproval, &override.EnforceTimeframes, &override.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.RegionalOverride{}, httperr.NewNotFound("OVERRIDE_NOT_FOUND", "override not found")
	}
	if err != nil {
		return types.RegionalOverride{}, err
	}

	if patch.RequiresActionPlan.Set {
		override.RequiresActionPlan = patch.RequiresActionPlan.Value
	}
	if patch.RequiresFinalApproval.Set {
		override.RequiresFinalApproval = patch.RequiresFinalApproval.Value
	}
	if patch.EnforceTimeframes.Set {
		override.EnforceTimeframes = patch.EnforceTimeframes.Value
	}
	override.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx, `
UPDATE mrg.regional_overrides
SET requires_action_plan = $3, requires_final_approval = $4, enforce_timeframes = $5, updated_at = $6
WHERE priority_code = $1 AND region_code = $2
`, string(code), string(region), override.RequiresActionPlan, override.RequiresFinalApproval, override.EnforceTimeframes, override.UpdatedAt)
	if err != nil {
		return types.RegionalOverride{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.RegionalOverride{}, err
	}
	return override, nil
}

func (s *PGStore) DeleteOverride(ctx context.Context, code types.PriorityCode, region types.RegionCode) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
DELETE FROM mrg.regional_overrides
WHERE priority_code = $1 AND region_code = $2
`, string(code), string(region))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httperr.NewNotFound("OVERRIDE_NOT_FOUND", "override not found")
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ListEntries(ctx context.Context) ([]types.TimeframeEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT entry_id, priority_code, risk_tier_code, usage_frequency_code, max_days, updated_at
FROM mrg.timeframe_entries
ORDER BY entry_id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.TimeframeEntry, 0)
	for rows.Next() {
		var entry types.TimeframeEntry
		if err := rows.Scan(&entry.EntryID, &entry.PriorityCode, &entry.RiskTierCode, &entry.UsageFrequencyCode, &entry.MaxDays, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *PGStore) UpdateEntry(ctx context.Context, entryID string, maxDays *int) (types.TimeframeEntry, bool, error) {
	entryID = strings.ToLower(strings.TrimSpace(entryID))
	priority, riskTier, usageFrequency, ok := splitTimeframeEntryID(entryID)
	if !ok {
		return types.TimeframeEntry{}, false, httperr.NewBadRequest("TIMEFRAME_ENTRY_ID_INVALID", "entry id must be priority:risk_tier:usage_frequency")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.TimeframeEntry{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if maxDays == nil {
		tag, err := tx.Exec(ctx, `
DELETE FROM mrg.timeframe_entries
WHERE entry_id = $1
`, entryID)
		if err != nil {
			return types.TimeframeEntry{}, false, err
		}
		if tag.RowsAffected() == 0 {
			return types.TimeframeEntry{}, false, httperr.NewNotFound("TIMEFRAME_ENTRY_NOT_FOUND", "timeframe entry not found")
		}
		if err := tx.Commit(ctx); err != nil {
			return types.TimeframeEntry{}, false, err
		}
		return types.TimeframeEntry{EntryID: entryID}, false, nil
	}
	if *maxDays <= 0 {
		return types.TimeframeEntry{}, false, httperr.NewBadRequest("TIMEFRAME_MAX_DAYS_INVALID", "max days must be positive")
	}

	entry := types.TimeframeEntry{
		EntryID:            entryID,
		PriorityCode:       priority,
		RiskTierCode:       riskTier,
		UsageFrequencyCode: usageFrequency,
		MaxDays:            *maxDays,
		UpdatedAt:          time.Now().UTC(),
	}
	_, err = tx.Exec(ctx, `
INSERT INTO mrg.timeframe_entries (entry_id, priority_code, risk_tier_code, usage_frequency_code, max_days, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (entry_id) DO UPDATE
SET max_days = EXCLUDED.max_days, updated_at = EXCLUDED.updated_at
`, entry.EntryID, string(entry.PriorityCode), entry.RiskTierCode, entry.UsageFrequencyCode, entry.MaxDays, entry.UpdatedAt)
	if err != nil {
		return types.TimeframeEntry{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.TimeframeEntry{}, false, err
	}
	return entry, true, nil
}

func (s *PGStore) LookupMaxDays(ctx context.Context, priority types.PriorityCode, riskTier string, usageFrequency string) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var maxDays int
	err = tx.QueryRow(ctx, `
SELECT max_days
FROM mrg.timeframe_entries
WHERE entry_id = $1
`, types.TimeframeEntryID(priority, riskTier, usageFrequency)).Scan(&maxDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return maxDays, true, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
