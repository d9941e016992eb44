package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/podsage/internal/model"
)

type GuestRepo struct {
	db *sql.DB
}

func NewGuestRepo(db *sql.DB) *GuestRepo {
	return &GuestRepo{db: db}
}

func (r *GuestRepo) ListByPodcast(ctx context.Context, podcastID string) ([]*model.Guest, error) {
	const query = `SELECT id, podcast_id, full_name FROM guests WHERE podcast_id = $1 ORDER BY full_name`
	rows, err := r.db.QueryContext(ctx, query, podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.Guest
	for rows.Next() {
		item := &model.Guest{}
		if err := rows.Scan(&item.ID, &item.PodcastID, &item.FullName); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListThemeStrengths returns every guest-theme strength row for guests of
// one podcast.
func (r *GuestRepo) ListThemeStrengths(ctx context.Context, podcastID string) ([]*model.GuestThemeStrength, error) {
	const query = `
		SELECT s.guest_id, s.theme_id, s.strength
		FROM guest_theme_strengths s
		JOIN guests g ON g.id = s.guest_id
		WHERE g.podcast_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, podcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.GuestThemeStrength
	for rows.Next() {
		item := &model.GuestThemeStrength{}
		if err := rows.Scan(&item.GuestID, &item.ThemeID, &item.Strength); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *GuestRepo) Save(ctx context.Context, item *model.Guest) error {
	const query = `
		INSERT INTO guests (id, podcast_id, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name
	`
	_, err := r.db.ExecContext(ctx, query, item.ID, item.PodcastID, item.FullName)
	return err
}

func (r *GuestRepo) SaveThemeStrength(ctx context.Context, item *model.GuestThemeStrength) error {
	const query = `
		INSERT INTO guest_theme_strengths (guest_id, theme_id, strength)
		VALUES ($1, $2, $3)
		ON CONFLICT (guest_id, theme_id) DO UPDATE SET strength = EXCLUDED.strength
	`
	_, err := r.db.ExecContext(ctx, query, item.GuestID, item.ThemeID, item.Strength)
	return err
}
