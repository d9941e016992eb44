package model

// UsageRecord is the per-caller sliding-window state. Window fields are reset
// lazily when read: if the elapsed time exceeds the window length the counter
// is treated as zero, there is no background sweep.
type UsageRecord struct {
	CallerKey          string `json:"caller_key"`
	MinuteWindowStart  int64  `json:"minute_window_start"`
	MinuteRequestCount int    `json:"minute_request_count"`
	DayWindowStart     int64  `json:"day_window_start"`
	DayRequestCount    int    `json:"day_request_count"`
	DayTokenCount      int    `json:"day_token_count"`
	LastInputHash      string `json:"last_input_hash"`
	LastInputAt        int64  `json:"last_input_at"`
	UpdatedAt          int64  `json:"updated_at"`
}

const (
	UsageStatusSuccess       = "success"
	UsageStatusRejected      = "rejected"
	UsageStatusFailed        = "failed"
	UsageStatusFallback      = "fallback"
	UsageStatusClarification = "clarification"
)

// UsageLog is one structured audit row per request outcome.
type UsageLog struct {
	CallerKey      string  `json:"caller_key"`
	PodcastSlug    string  `json:"podcast_slug"`
	Model          string  `json:"model"`
	RequestChars   int     `json:"request_chars"`
	InputExcerpt   string  `json:"input_excerpt"`
	ContextChunks  int     `json:"context_chunks"`
	BestSimilarity float64 `json:"best_similarity"`
	TokensIn       int     `json:"tokens_in"`
	TokensOut      int     `json:"tokens_out"`
	Status         string  `json:"status"`
	ErrorCode      string  `json:"error_code"`
	Ctime          int64   `json:"ctime"`
}
