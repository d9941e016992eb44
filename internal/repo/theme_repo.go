package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/podsage/internal/model"
)

type ThemeRepo struct {
	db *sql.DB
}

func NewThemeRepo(db *sql.DB) *ThemeRepo {
	return &ThemeRepo{db: db}
}

func (r *ThemeRepo) ListByPodcast(ctx context.Context, podcastID string) ([]*model.Theme, error) {
	const query = `SELECT id, podcast_id, label, centroid FROM themes WHERE podcast_id = $1`
	rows, err := r.db.QueryContext(ctx, query, podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.Theme
	for rows.Next() {
		item := &model.Theme{}
		var centroid pgvector.Vector
		if err := rows.Scan(&item.ID, &item.PodcastID, &item.Label, &centroid); err != nil {
			return nil, err
		}
		item.Centroid = centroid.Slice()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ThemeRepo) Save(ctx context.Context, item *model.Theme) error {
	const query = `
		INSERT INTO themes (id, podcast_id, label, centroid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			centroid = EXCLUDED.centroid
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.PodcastID, item.Label, pgvector.NewVector(item.Centroid))
	return err
}
