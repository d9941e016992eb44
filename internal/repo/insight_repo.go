package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xxxsen/podsage/internal/model"
)

type InsightRepo struct {
	db *sql.DB
}

func NewInsightRepo(db *sql.DB) *InsightRepo {
	return &InsightRepo{db: db}
}

// ReplaceAll swaps the published insight set of a podcast in one
// transaction.
func (r *InsightRepo) ReplaceAll(ctx context.Context, podcastID string, items []*model.Insight) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM insight_evidence
		WHERE insight_id IN (SELECT id FROM insights WHERE podcast_id = $1)
	`, podcastID); err != nil {
		return fmt.Errorf("delete insight evidence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE podcast_id = $1`, podcastID); err != nil {
		return fmt.Errorf("delete insights: %w", err)
	}

	for _, item := range items {
		explanation, err := json.Marshal(item.Explanation)
		if err != nil {
			return fmt.Errorf("encode explanation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO insights
				(id, podcast_id, title, slug, takeaway, signal, trend, category,
				 theme_label, explanation, guest_count, episode_count, ctime)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, item.ID, item.PodcastID, item.Title, item.Slug, item.Takeaway, item.Signal,
			item.Trend, item.Category, item.ThemeLabel, string(explanation),
			item.GuestCount, item.EpisodeCount, item.Ctime); err != nil {
			return fmt.Errorf("insert insight %s: %w", item.Slug, err)
		}
		for _, ref := range item.Evidence {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO insight_evidence
					(insight_id, chunk_id, guest_id, episode_id, quote,
					 time_stamp, time_seconds, episode_url, display_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, item.ID, ref.ChunkID, ref.GuestID, ref.EpisodeID, ref.Quote,
				ref.TimeStamp, ref.TimeSeconds, ref.EpisodeURL, ref.DisplayOrder); err != nil {
				return fmt.Errorf("insert insight evidence: %w", err)
			}
		}
	}
	return tx.Commit()
}

func (r *InsightRepo) ListByPodcast(ctx context.Context, podcastID string) ([]*model.Insight, error) {
	const query = `
		SELECT id, podcast_id, title, slug, takeaway, signal,
		       COALESCE(trend, ''), COALESCE(category, ''), COALESCE(theme_label, ''),
		       explanation, guest_count, episode_count, ctime
		FROM insights
		WHERE podcast_id = $1
		ORDER BY title
	`
	rows, err := r.db.QueryContext(ctx, query, podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.Insight
	for rows.Next() {
		item := &model.Insight{}
		var explanation []byte
		if err := rows.Scan(
			&item.ID, &item.PodcastID, &item.Title, &item.Slug, &item.Takeaway,
			&item.Signal, &item.Trend, &item.Category, &item.ThemeLabel,
			&explanation, &item.GuestCount, &item.EpisodeCount, &item.Ctime,
		); err != nil {
			return nil, err
		}
		if len(explanation) > 0 {
			if err := json.Unmarshal(explanation, &item.Explanation); err != nil {
				return nil, fmt.Errorf("decode explanation: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, item := range items {
		evidence, err := r.listEvidence(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		item.Evidence = evidence
	}
	return items, nil
}

func (r *InsightRepo) listEvidence(ctx context.Context, insightID string) ([]model.EvidenceRef, error) {
	const query = `
		SELECT chunk_id, COALESCE(guest_id, ''), COALESCE(episode_id, ''),
		       COALESCE(quote, ''), COALESCE(time_stamp, ''), COALESCE(time_seconds, 0),
		       COALESCE(episode_url, ''), display_order
		FROM insight_evidence
		WHERE insight_id = $1
		ORDER BY display_order
	`
	rows, err := r.db.QueryContext(ctx, query, insightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []model.EvidenceRef
	for rows.Next() {
		ref := model.EvidenceRef{}
		if err := rows.Scan(
			&ref.ChunkID, &ref.GuestID, &ref.EpisodeID, &ref.Quote,
			&ref.TimeStamp, &ref.TimeSeconds, &ref.EpisodeURL, &ref.DisplayOrder,
		); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
