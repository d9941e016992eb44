package model

// Chunk is the minimal retrievable unit of transcript evidence. Rows are
// written once by the ingestion backfill and never mutated afterwards.
type Chunk struct {
	ChunkID     string    `json:"chunk_id"`
	PodcastID   string    `json:"podcast_id"`
	GuestID     string    `json:"guest_id"`
	EpisodeID   string    `json:"episode_id"`
	ThemeID     string    `json:"theme_id"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding,omitempty"`
	TimeStamp   string    `json:"time_stamp"`
	TimeSeconds int       `json:"time_seconds"`
	SegmentType string    `json:"segment_type"`
	UpdatedAt   int64     `json:"updated_at"`
}

// ScoredChunk is a chunk returned from similarity search.
type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// SegmentAllowlist is the set of segment classifications considered
// substantive dialogue; everything else (intros, ads, transitions) is
// excluded from retrieval and extraction.
var SegmentAllowlist = []string{"interview", "lightning_round"}
