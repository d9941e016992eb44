package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xxxsen/podsage/internal/model"
)

type ConceptRepo struct {
	db *sql.DB
}

func NewConceptRepo(db *sql.DB) *ConceptRepo {
	return &ConceptRepo{db: db}
}

// ReplaceAll swaps the published concept set of a podcast in one
// transaction. Readers see either the old generation or the new one,
// never a mix.
func (r *ConceptRepo) ReplaceAll(ctx context.Context, podcastID string, items []*model.Concept) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM concept_references
		WHERE concept_id IN (SELECT id FROM concepts WHERE podcast_id = $1)
	`, podcastID); err != nil {
		return fmt.Errorf("delete concept references: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM concepts WHERE podcast_id = $1`, podcastID); err != nil {
		return fmt.Errorf("delete concepts: %w", err)
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO concepts
				(id, podcast_id, title, slug, summary, body, status, category,
				 theme_label, guest_count, episode_count, ctime)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, item.ID, item.PodcastID, item.Title, item.Slug, item.Summary, item.Body,
			item.Status, item.Category, item.ThemeLabel,
			item.GuestCount, item.EpisodeCount, item.Ctime); err != nil {
			return fmt.Errorf("insert concept %s: %w", item.Slug, err)
		}
		for _, ref := range item.References {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO concept_references
					(concept_id, chunk_id, guest_id, episode_id, quote,
					 time_stamp, time_seconds, episode_url, display_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, item.ID, ref.ChunkID, ref.GuestID, ref.EpisodeID, ref.Quote,
				ref.TimeStamp, ref.TimeSeconds, ref.EpisodeURL, ref.DisplayOrder); err != nil {
				return fmt.Errorf("insert concept reference: %w", err)
			}
		}
	}
	return tx.Commit()
}

func (r *ConceptRepo) ListByPodcast(ctx context.Context, podcastID string) ([]*model.Concept, error) {
	const query = `
		SELECT id, podcast_id, title, slug, summary, body, status,
		       COALESCE(category, ''), COALESCE(theme_label, ''),
		       guest_count, episode_count, ctime
		FROM concepts
		WHERE podcast_id = $1
		ORDER BY title
	`
	rows, err := r.db.QueryContext(ctx, query, podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.Concept
	for rows.Next() {
		item := &model.Concept{}
		if err := rows.Scan(
			&item.ID, &item.PodcastID, &item.Title, &item.Slug, &item.Summary,
			&item.Body, &item.Status, &item.Category, &item.ThemeLabel,
			&item.GuestCount, &item.EpisodeCount, &item.Ctime,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, item := range items {
		refs, err := r.listReferences(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		item.References = refs
	}
	return items, nil
}

func (r *ConceptRepo) listReferences(ctx context.Context, conceptID string) ([]model.EvidenceRef, error) {
	const query = `
		SELECT chunk_id, COALESCE(guest_id, ''), COALESCE(episode_id, ''),
		       COALESCE(quote, ''), COALESCE(time_stamp, ''), COALESCE(time_seconds, 0),
		       COALESCE(episode_url, ''), display_order
		FROM concept_references
		WHERE concept_id = $1
		ORDER BY display_order
	`
	rows, err := r.db.QueryContext(ctx, query, conceptID)
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
