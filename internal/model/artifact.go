package model

const (
	SignalHighConsensus = "high_consensus"
	SignalSplitView     = "split_view"
	SignalEmerging      = "emerging"
)

// EvidenceRef points from a generated artifact back to one chunk. The row is
// owned by its parent artifact; the chunk itself is shared and non-owned.
type EvidenceRef struct {
	ChunkID      string `json:"chunk_id"`
	GuestID      string `json:"guest_id"`
	EpisodeID    string `json:"episode_id"`
	Quote        string `json:"quote,omitempty"`
	TimeStamp    string `json:"time_stamp,omitempty"`
	TimeSeconds  int    `json:"time_seconds,omitempty"`
	EpisodeURL   string `json:"episode_url,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

type Concept struct {
	ID           string        `json:"id"`
	PodcastID    string        `json:"podcast_id"`
	Title        string        `json:"title"`
	Slug         string        `json:"slug"`
	Summary      string        `json:"summary"`
	Body         string        `json:"body"`
	Status       string        `json:"status"`
	Category     string        `json:"category,omitempty"`
	ThemeLabel   string        `json:"theme_label,omitempty"`
	GuestCount   int           `json:"guest_count"`
	EpisodeCount int           `json:"episode_count"`
	Ctime        int64         `json:"ctime"`
	References   []EvidenceRef `json:"references"`
}

type Insight struct {
	ID           string        `json:"id"`
	PodcastID    string        `json:"podcast_id"`
	Title        string        `json:"title"`
	Slug         string        `json:"slug"`
	Takeaway     string        `json:"takeaway"`
	Signal       string        `json:"signal"`
	Trend        string        `json:"trend,omitempty"`
	Category     string        `json:"category,omitempty"`
	ThemeLabel   string        `json:"theme_label,omitempty"`
	Explanation  []string      `json:"explanation"`
	GuestCount   int           `json:"guest_count"`
	EpisodeCount int           `json:"episode_count"`
	Ctime        int64         `json:"ctime"`
	Evidence     []EvidenceRef `json:"evidence"`
}
