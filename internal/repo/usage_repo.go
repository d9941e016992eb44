package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/podsage/internal/model"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

func (r *UsageRepo) Get(ctx context.Context, callerKey string) (*model.UsageRecord, bool, error) {
	const query = `
		SELECT caller_key, minute_window_start, minute_request_count,
		       day_window_start, day_request_count, day_token_count,
		       COALESCE(last_input_hash, ''), COALESCE(last_input_at, 0), updated_at
		FROM usage_limits
		WHERE caller_key = $1
	`
	row := r.db.QueryRowContext(ctx, query, callerKey)
	item := &model.UsageRecord{}
	if err := row.Scan(
		&item.CallerKey, &item.MinuteWindowStart, &item.MinuteRequestCount,
		&item.DayWindowStart, &item.DayRequestCount, &item.DayTokenCount,
		&item.LastInputHash, &item.LastInputAt, &item.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return item, true, nil
}

func (r *UsageRepo) Save(ctx context.Context, item *model.UsageRecord) error {
	const query = `
		INSERT INTO usage_limits
			(caller_key, minute_window_start, minute_request_count,
			 day_window_start, day_request_count, day_token_count,
			 last_input_hash, last_input_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (caller_key) DO UPDATE SET
			minute_window_start = EXCLUDED.minute_window_start,
			minute_request_count = EXCLUDED.minute_request_count,
			day_window_start = EXCLUDED.day_window_start,
			day_request_count = EXCLUDED.day_request_count,
			day_token_count = EXCLUDED.day_token_count,
			last_input_hash = EXCLUDED.last_input_hash,
			last_input_at = EXCLUDED.last_input_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		item.CallerKey, item.MinuteWindowStart, item.MinuteRequestCount,
		item.DayWindowStart, item.DayRequestCount, item.DayTokenCount,
		item.LastInputHash, item.LastInputAt, item.UpdatedAt)
	return err
}

// AddTokens records actual token spend after a generation completes. A
// concurrent window reset may land between read and write; the governor
// tolerates that since token accounting is advisory, not transactional.
func (r *UsageRepo) AddTokens(ctx context.Context, callerKey string, tokens int, now int64) error {
	const query = `
		UPDATE usage_limits
		SET day_token_count = day_token_count + $2, updated_at = $3
		WHERE caller_key = $1
	`
	_, err := r.db.ExecContext(ctx, query, callerKey, tokens, now)
	return err
}
