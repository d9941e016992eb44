package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/xxxsen/podsage/internal/model"
	"github.com/xxxsen/podsage/internal/pkg/dbutil"
)

type UsageLogRepo struct {
	db *sql.DB
}

func NewUsageLogRepo(db *sql.DB) *UsageLogRepo {
	return &UsageLogRepo{db: db}
}

func (r *UsageLogRepo) Add(ctx context.Context, item *model.UsageLog) error {
	data := map[string]interface{}{
		"caller_key":      item.CallerKey,
		"podcast_slug":    item.PodcastSlug,
		"model":           item.Model,
		"request_chars":   item.RequestChars,
		"input_excerpt":   item.InputExcerpt,
		"context_chunks":  item.ContextChunks,
		"best_similarity": item.BestSimilarity,
		"tokens_in":       item.TokensIn,
		"tokens_out":      item.TokensOut,
		"status":          item.Status,
		"error_code":      item.ErrorCode,
		"ctime":           item.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("ai_usage_logs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// CountByStatus summarizes outcomes over a time range, for the daily report.
func (r *UsageLogRepo) CountByStatus(ctx context.Context, since int64) (map[string]int, error) {
	const query = `
		SELECT status, COUNT(*)
		FROM ai_usage_logs
		WHERE ctime >= $1
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// SumTokens totals estimated token spend over a time range.
func (r *UsageLogRepo) SumTokens(ctx context.Context, since int64) (int, int, error) {
	const query = `
		SELECT COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0)
		FROM ai_usage_logs
		WHERE ctime >= $1
	`
	var tokensIn, tokensOut int
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&tokensIn, &tokensOut); err != nil {
		return 0, 0, err
	}
	return tokensIn, tokensOut, nil
}
