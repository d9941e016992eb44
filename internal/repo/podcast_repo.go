package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/xxxsen/podsage/internal/model"
	"github.com/xxxsen/podsage/internal/pkg/errs"
)

type PodcastRepo struct {
	db *sql.DB
}

func NewPodcastRepo(db *sql.DB) *PodcastRepo {
	return &PodcastRepo{db: db}
}

func (r *PodcastRepo) GetBySlug(ctx context.Context, slug string) (*model.Podcast, error) {
	const query = `SELECT id, slug, name FROM podcasts WHERE slug = $1`
	row := r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(slug)))
	item := &model.Podcast{}
	if err := row.Scan(&item.ID, &item.Slug, &item.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *PodcastRepo) Save(ctx context.Context, item *model.Podcast) error {
	const query = `
		INSERT INTO podcasts (id, slug, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
	`
	_, err := r.db.ExecContext(ctx, query, item.ID, item.Slug, item.Name)
	return err
}
