package model

type Podcast struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Guest struct {
	ID        string `json:"id"`
	PodcastID string `json:"podcast_id"`
	FullName  string `json:"full_name"`
}

type Episode struct {
	ID        string `json:"id"`
	PodcastID string `json:"podcast_id"`
	Title     string `json:"title"`
	MediaURL  string `json:"media_url"`
	Keywords  []byte `json:"-"`
	UpdatedAt int64  `json:"updated_at"`
}
