package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ridecast/internal/types"
)

// ListRidersParams defines the filtering and pagination parameters for
// listing riders.
type ListRidersParams struct {
	Enabled *bool  `json:"enabled"`
	Limit   int    `json:"limit"`
	Cursor  string `json:"cursor"`
}

// RiderRepository provides data access for the riders table.
type RiderRepository struct {
	db DBTX
}

// NewRiderRepository creates a new RiderRepository backed by the given
// database connection (pool or transaction).
func NewRiderRepository(db DBTX) *RiderRepository {
	return &RiderRepository{db: db}
}

// riderColumns defines the standard set of columns selected for rider
// queries. locations, weather_preferences, and notification_settings are
// jsonb columns that pgx decodes straight into their Go types.
const riderColumns = `r.id, r.name, r.display_name, r.email, r.backup_email,
	r.enabled, r.timezone,
	r.ride_in_start, r.ride_in_end, r.ride_back_start, r.ride_back_end,
	r.locations, r.weather_preferences, r.notification_settings,
	r.vehicle_type, r.commute_days,
	r.created_at, r.updated_at, r.deleted_at`

// scanRider scans a single rider row into a types.Rider struct. The columns
// must match the order defined in riderColumns.
func scanRider(row pgx.Row) (*types.Rider, error) {
	var rd types.Rider
	var (
		displayName   *string
		backupEmail   *string
		preferences   *types.WeatherPreferences
		notifications *types.NotificationSettings
		vehicleType   *string
	)

	err := row.Scan(
		&rd.ID,
		&rd.Name,
		&displayName,
		&rd.Email,
		&backupEmail,
		&rd.Enabled,
		&rd.Timezone,
		&rd.RideIn.StartHour,
		&rd.RideIn.EndHour,
		&rd.RideBack.StartHour,
		&rd.RideBack.EndHour,
		&rd.Locations,
		&preferences,
		&notifications,
		&vehicleType,
		&rd.CommuteDays,
		&rd.CreatedAt,
		&rd.UpdatedAt,
		&rd.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	// Hydrate optional fields from nullable columns.
	if displayName != nil {
		rd.DisplayName = *displayName
	}
	if backupEmail != nil {
		rd.BackupEmail = *backupEmail
	}
	if preferences != nil {
		rd.Preferences = *preferences
	}
	if notifications != nil {
		rd.Notifications = *notifications
	}
	if vehicleType != nil {
		rd.VehicleType = *vehicleType
	}

	return &rd, nil
}

// scanRiderFromRows scans a single row from a pgx.Rows result set. Uses the
// same column ordering as scanRider but operates on pgx.Rows.
func scanRiderFromRows(rows pgx.Rows) (*types.Rider, error) {
	var rd types.Rider
	var (
		displayName   *string
		backupEmail   *string
		preferences   *types.WeatherPreferences
		notifications *types.NotificationSettings
		vehicleType   *string
	)

	err := rows.Scan(
		&rd.ID,
		&rd.Name,
		&displayName,
		&rd.Email,
		&backupEmail,
		&rd.Enabled,
		&rd.Timezone,
		&rd.RideIn.StartHour,
		&rd.RideIn.EndHour,
		&rd.RideBack.StartHour,
		&rd.RideBack.EndHour,
		&rd.Locations,
		&preferences,
		&notifications,
		&vehicleType,
		&rd.CommuteDays,
		&rd.CreatedAt,
		&rd.UpdatedAt,
		&rd.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if displayName != nil {
		rd.DisplayName = *displayName
	}
	if backupEmail != nil {
		rd.BackupEmail = *backupEmail
	}
	if preferences != nil {
		rd.Preferences = *preferences
	}
	if notifications != nil {
		rd.Notifications = *notifications
	}
	if vehicleType != nil {
		rd.VehicleType = *vehicleType
	}

	return &rd, nil
}

// Create inserts a new rider record. The caller must set the ID (UUID) and
// required fields before calling.
//
// Email uniqueness among live riders is enforced by a partial unique index
// on (email) WHERE deleted_at IS NULL; violations surface as
// ErrCodeConflictEmail.
func (r *RiderRepository) Create(ctx context.Context, rider *types.Rider) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO riders (
			id, name, display_name, email, backup_email,
			enabled, timezone,
			ride_in_start, ride_in_end, ride_back_start, ride_back_end,
			locations, weather_preferences, notification_settings,
			vehicle_type, commute_days,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16,
			COALESCE($17, NOW()), COALESCE($18, NOW())
		)`,
		rider.ID,
		rider.Name,
		nilIfEmpty(rider.DisplayName),
		rider.Email,
		nilIfEmpty(rider.BackupEmail),
		rider.Enabled,
		rider.Timezone,
		rider.RideIn.StartHour,
		rider.RideIn.EndHour,
		rider.RideBack.StartHour,
		rider.RideBack.EndHour,
		rider.Locations,
		rider.Preferences,
		rider.Notifications,
		nilIfEmpty(rider.VehicleType),
		rider.CommuteDays,
		nilIfZeroTime(rider.CreatedAt),
		nilIfZeroTime(rider.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "a rider with this email already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create rider", err)
	}
	return nil
}

// GetByID retrieves a rider by ID. Excludes soft-deleted records. Returns
// ErrCodeNotFoundRider if not found.
func (r *RiderRepository) GetByID(ctx context.Context, id string) (*types.Rider, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+riderColumns+`
		 FROM riders r
		 WHERE r.id = $1 AND r.deleted_at IS NULL`,
		id,
	)

	rider, err := scanRider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRider, "rider not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve rider", err)
	}
	return rider, nil
}

// ListEnabled returns every enabled, non-deleted rider, oldest first. The
// evaluation cycle uses this to walk the full roster without pagination.
func (r *RiderRepository) ListEnabled(ctx context.Context) ([]*types.Rider, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+riderColumns+`
		 FROM riders r
		 WHERE r.enabled AND r.deleted_at IS NULL
		 ORDER BY r.created_at ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list enabled riders", err)
	}
	defer rows.Close()

	var riders []*types.Rider
	for rows.Next() {
		rider, scanErr := scanRiderFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan rider row", scanErr)
		}
		riders = append(riders, rider)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating rider rows", err)
	}
	return riders, nil
}

// List retrieves riders with optional filtering and cursor-based pagination.
// Results are ordered by created_at DESC (newest first).
func (r *RiderRepository) List(ctx context.Context, params ListRidersParams) ([]*types.Rider, types.PageInfo, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var conditions []string
	var args []any
	argIdx := 1

	// Always exclude soft-deleted records.
	conditions = append(conditions, "r.deleted_at IS NULL")

	if params.Enabled != nil {
		conditions = append(conditions, fmt.Sprintf("r.enabled = $%d", argIdx))
		args = append(args, *params.Enabled)
		argIdx++
	}

	// Cursor-based pagination: fetch items older than the cursor timestamp.
	if params.Cursor != "" {
		cursorTime, err := time.Parse(time.RFC3339Nano, params.Cursor)
		if err != nil {
			return nil, types.PageInfo{}, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"invalid cursor format; expected RFC3339 timestamp",
				err,
			)
		}
		conditions = append(conditions, fmt.Sprintf("r.created_at < $%d", argIdx))
		args = append(args, cursorTime)
		argIdx++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	// Fetch limit+1 to detect if there are more results.
	query := fmt.Sprintf(
		`SELECT %s
		 FROM riders r
		 %s
		 ORDER BY r.created_at DESC
		 LIMIT $%d`,
		riderColumns,
		whereClause,
		argIdx,
	)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to list riders", err)
	}
	defer rows.Close()

	var results []*types.Rider
	for rows.Next() {
		rider, scanErr := scanRiderFromRows(rows)
		if scanErr != nil {
			return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan rider row", scanErr)
		}
		results = append(results, rider)
	}
	if err := rows.Err(); err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "error iterating rider rows", err)
	}

	pageInfo := types.PageInfo{}
	if len(results) > limit {
		pageInfo.HasMore = true
		// The cursor is the created_at of the last item we will return.
		pageInfo.NextCursor = results[limit-1].CreatedAt.Format(time.RFC3339Nano)
		results = results[:limit]
	}

	return results, pageInfo, nil
}

// Update applies changes to an existing rider. The caller passes the full
// rider struct; all mutable fields are written. The updated_at timestamp is
// set by the database. Returns ErrCodeNotFoundRider when the rider does not
// exist or was soft-deleted, ErrCodeConflictEmail when the new email
// collides with another live rider.
func (r *RiderRepository) Update(ctx context.Context, rider *types.Rider) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE riders SET
			name = $1,
			display_name = $2,
			email = $3,
			backup_email = $4,
			enabled = $5,
			timezone = $6,
			ride_in_start = $7,
			ride_in_end = $8,
			ride_back_start = $9,
			ride_back_end = $10,
			locations = $11,
			weather_preferences = $12,
			notification_settings = $13,
			vehicle_type = $14,
			commute_days = $15,
			updated_at = NOW()
		 WHERE id = $16 AND deleted_at IS NULL`,
		rider.Name,
		nilIfEmpty(rider.DisplayName),
		rider.Email,
		nilIfEmpty(rider.BackupEmail),
		rider.Enabled,
		rider.Timezone,
		rider.RideIn.StartHour,
		rider.RideIn.EndHour,
		rider.RideBack.StartHour,
		rider.RideBack.EndHour,
		rider.Locations,
		rider.Preferences,
		rider.Notifications,
		nilIfEmpty(rider.VehicleType),
		rider.CommuteDays,
		rider.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEmail, "a rider with this email already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update rider", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRider, "rider not found", nil)
	}
	return nil
}

// Delete soft-deletes a rider. The row is retained so fact history stays
// attributable; the rider also drops out of ListEnabled immediately.
func (r *RiderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE riders SET
			deleted_at = NOW(),
			enabled = FALSE,
			updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete rider", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRider, "rider not found", nil)
	}
	return nil
}

// nilIfEmpty returns nil if the string is empty, otherwise returns a pointer
// to the string. Used for nullable text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime returns nil if the time is zero, otherwise returns a pointer
// to the time. Used to let the DB default (NOW()) apply when no time is set.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (error code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
