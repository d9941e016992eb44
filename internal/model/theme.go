package model

// Theme is a persistent topic cluster represented by a centroid vector.
// Read-only at query time.
type Theme struct {
	ID        string    `json:"id"`
	PodcastID string    `json:"podcast_id"`
	Label     string    `json:"label"`
	Centroid  []float32 `json:"-"`
}

// ActiveTheme is a theme matched to a specific query above a score floor.
// Transient, never persisted.
type ActiveTheme struct {
	ThemeID string  `json:"theme_id"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
}

// GuestThemeStrength records how strongly a guest's material maps to a theme.
type GuestThemeStrength struct {
	GuestID  string  `json:"guest_id"`
	ThemeID  string  `json:"theme_id"`
	Strength float64 `json:"strength"`
}

// GuestScore ranks a guest against a set of active themes. Transient.
type GuestScore struct {
	GuestID            string   `json:"guest_id"`
	GuestName          string   `json:"guest_name"`
	Score              float64  `json:"score"`
	ContributingThemes []string `json:"contributing_themes"`
}
