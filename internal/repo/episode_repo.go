package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/podsage/internal/model"
)

type EpisodeRepo struct {
	db *sql.DB
}

func NewEpisodeRepo(db *sql.DB) *EpisodeRepo {
	return &EpisodeRepo{db: db}
}

func (r *EpisodeRepo) ListByPodcast(ctx context.Context, podcastID string) ([]*model.Episode, error) {
	const query = `
		SELECT id, podcast_id, title, COALESCE(media_url, ''), keywords, updated_at
		FROM episodes
		WHERE podcast_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.Episode
	for rows.Next() {
		item := &model.Episode{}
		var keywords sql.NullString
		if err := rows.Scan(&item.ID, &item.PodcastID, &item.Title, &item.MediaURL, &keywords, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if keywords.Valid {
			item.Keywords = []byte(keywords.String)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *EpisodeRepo) Save(ctx context.Context, item *model.Episode) error {
	const query = `
		INSERT INTO episodes (id, podcast_id, title, media_url, keywords, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			media_url = EXCLUDED.media_url,
			keywords = EXCLUDED.keywords,
			updated_at = EXCLUDED.updated_at
	`
	var keywords interface{}
	if len(item.Keywords) > 0 {
		keywords = string(item.Keywords)
	}
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.PodcastID, item.Title, item.MediaURL, keywords, item.UpdatedAt)
	return err
}
