package repo

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/podsage/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// SearchFilter narrows a similarity search. Empty slices mean no filter on
// that dimension; SegmentTypes should normally be model.SegmentAllowlist.
type SearchFilter struct {
	PodcastID    string
	SegmentTypes []string
	GuestIDs     []string
	ThemeIDs     []string
	Limit        int
}

// Search runs a cosine similarity search over chunk embeddings, most
// similar first.
func (r *ChunkRepo) Search(ctx context.Context, embedding []float32, filter SearchFilter) ([]*model.ScoredChunk, error) {
	query := `
		SELECT chunk_id, podcast_id, COALESCE(guest_id, ''), COALESCE(episode_id, ''),
		       COALESCE(theme_id, ''), text, COALESCE(time_stamp, ''), COALESCE(time_seconds, 0),
		       segment_type, updated_at,
		       1 - (embedding <=> $1) AS similarity
		FROM chunk_embeddings
		WHERE podcast_id = $2
	`
	args := []interface{}{pgvector.NewVector(embedding), filter.PodcastID}
	idx := 3
	appendArg := func(clause string, value interface{}) {
		query += clause
		args = append(args, value)
		idx++
	}
	if len(filter.SegmentTypes) > 0 {
		appendArg(" AND segment_type = ANY($"+strconv.Itoa(idx)+")", pq.Array(filter.SegmentTypes))
	}
	if len(filter.GuestIDs) > 0 {
		appendArg(" AND guest_id = ANY($"+strconv.Itoa(idx)+")", pq.Array(filter.GuestIDs))
	}
	if len(filter.ThemeIDs) > 0 {
		appendArg(" AND theme_id = ANY($"+strconv.Itoa(idx)+")", pq.Array(filter.ThemeIDs))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	query += " ORDER BY embedding <=> $1 LIMIT $" + strconv.Itoa(idx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.ScoredChunk
	for rows.Next() {
		item := &model.ScoredChunk{}
		if err := rows.Scan(
			&item.ChunkID, &item.PodcastID, &item.GuestID, &item.EpisodeID,
			&item.ThemeID, &item.Text, &item.TimeStamp, &item.TimeSeconds,
			&item.SegmentType, &item.UpdatedAt, &item.Similarity,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListRecent returns the newest substantive chunks of a podcast without
// their embeddings, as the candidate pool for corpus-wide extraction.
func (r *ChunkRepo) ListRecent(ctx context.Context, podcastID string, segmentTypes []string, limit int) ([]*model.Chunk, error) {
	const query = `
		SELECT chunk_id, podcast_id, COALESCE(guest_id, ''), COALESCE(episode_id, ''),
		       COALESCE(theme_id, ''), text, COALESCE(time_stamp, ''), COALESCE(time_seconds, 0),
		       segment_type, updated_at
		FROM chunk_embeddings
		WHERE podcast_id = $1 AND segment_type = ANY($2)
		ORDER BY updated_at DESC, chunk_id
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, podcastID, pq.Array(segmentTypes), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.Chunk
	for rows.Next() {
		item := &model.Chunk{}
		if err := rows.Scan(
			&item.ChunkID, &item.PodcastID, &item.GuestID, &item.EpisodeID,
			&item.ThemeID, &item.Text, &item.TimeStamp, &item.TimeSeconds,
			&item.SegmentType, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ChunkRepo) Save(ctx context.Context, item *model.Chunk) error {
	const query = `
		INSERT INTO chunk_embeddings
			(chunk_id, podcast_id, guest_id, episode_id, theme_id, text, embedding,
			 time_stamp, time_seconds, segment_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (chunk_id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			theme_id = EXCLUDED.theme_id,
			segment_type = EXCLUDED.segment_type,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ChunkID, item.PodcastID, item.GuestID, item.EpisodeID, item.ThemeID,
		item.Text, pgvector.NewVector(item.Embedding),
		item.TimeStamp, item.TimeSeconds, item.SegmentType, item.UpdatedAt)
	return err
}
