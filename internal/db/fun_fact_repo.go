package db

import (
	"context"
	"time"

	"ridecast/internal/types"
)

// FunFactRepository provides data access for the rider_facts table: the
// per-rider history of footer facts already delivered. Fact selection reads
// this history to avoid repeats and to rotate categories.
type FunFactRepository struct {
	db DBTX
}

// NewFunFactRepository creates a new FunFactRepository backed by the given
// database connection (pool or transaction).
func NewFunFactRepository(db DBTX) *FunFactRepository {
	return &FunFactRepository{db: db}
}

// Record stores a fact that was just delivered to a rider. used_at defaults
// to NOW() when unset.
func (r *FunFactRepository) Record(ctx context.Context, fact *types.FunFact) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO rider_facts (
			id, rider_id, content, content_hash, category, used_at
		) VALUES (
			$1, $2, $3, $4, $5, COALESCE($6, NOW())
		)`,
		fact.ID,
		fact.RiderID,
		fact.Content,
		fact.ContentHash,
		fact.Category,
		nilIfZeroTime(fact.UsedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record fun fact", err)
	}
	return nil
}

// UsedHashesSince returns the content hashes delivered to a rider at or
// after the given time. A candidate fact whose hash appears in this set is
// a duplicate.
func (r *FunFactRepository) UsedHashesSince(ctx context.Context, riderID string, since time.Time) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx,
		`SELECT content_hash
		 FROM rider_facts
		 WHERE rider_id = $1 AND used_at >= $2`,
		riderID, since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load used fact hashes", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if scanErr := rows.Scan(&hash); scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan fact hash", scanErr)
		}
		hashes[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating fact hashes", err)
	}
	return hashes, nil
}

// CategoriesUsedSince returns the distinct fact categories delivered to a
// rider at or after the given time. Selection prefers categories absent
// from this set.
func (r *FunFactRepository) CategoriesUsedSince(ctx context.Context, riderID string, since time.Time) ([]types.FactCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT category
		 FROM rider_facts
		 WHERE rider_id = $1 AND used_at >= $2`,
		riderID, since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load used fact categories", err)
	}
	defer rows.Close()

	var categories []types.FactCategory
	for rows.Next() {
		var category types.FactCategory
		if scanErr := rows.Scan(&category); scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan fact category", scanErr)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating fact categories", err)
	}
	return categories, nil
}

// DeleteBefore hard-deletes fact history older than the cutoff. Used for
// retention cleanup. Returns the count of deleted records.
func (r *FunFactRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM rider_facts WHERE used_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune fact history", err)
	}
	return tag.RowsAffected(), nil
}
