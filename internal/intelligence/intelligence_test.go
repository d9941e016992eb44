package intelligence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/podsage/internal/model"
)

func makeTheme(id, label string, centroid []float32) *model.Theme {
	return &model.Theme{ID: id, PodcastID: "p1", Label: label, Centroid: centroid}
}

func TestMatchThemesOrderingAndFloor(t *testing.T) {
	themes := []*model.Theme{
		makeTheme("t1", "pricing", []float32{1, 0, 0}),
		makeTheme("t2", "growth", []float32{0, 1, 0}),
		makeTheme("t3", "hiring", []float32{0.7, 0.7, 0}),
	}
	query := []float32{1, 0.2, 0}

	matched := MatchThemes(query, themes, 5, 0.3)
	require.Len(t, matched, 2, "growth is below the floor")
	assert.Equal(t, "t1", matched[0].ThemeID)
	assert.Equal(t, "t3", matched[1].ThemeID)
	assert.Greater(t, matched[0].Score, matched[1].Score)
}

func TestMatchThemesTopN(t *testing.T) {
	themes := []*model.Theme{
		makeTheme("t1", "a", []float32{1, 0}),
		makeTheme("t2", "b", []float32{0.9, 0.1}),
		makeTheme("t3", "c", []float32{0.8, 0.2}),
	}
	matched := MatchThemes([]float32{1, 0}, themes, 2, 0.1)
	assert.Len(t, matched, 2)
}

func TestMatchThemesNormalizesCentroids(t *testing.T) {
	// Same direction, different magnitude, same score.
	themes := []*model.Theme{
		makeTheme("t1", "a", []float32{1, 0}),
		makeTheme("t2", "b", []float32{10, 0}),
	}
	matched := MatchThemes([]float32{1, 0}, themes, 5, 0)
	require.Len(t, matched, 2)
	assert.InDelta(t, matched[0].Score, matched[1].Score, 1e-9)
}

func TestDetectAmbiguityNoMatch(t *testing.T) {
	res := DetectAmbiguity(nil, 0.6, 0.1)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, "no_theme_match", res.Reason)
}

func TestDetectAmbiguityWeakMatch(t *testing.T) {
	matched := []*model.ActiveTheme{
		{ThemeID: "t1", Label: "pricing", Score: 0.5},
	}
	res := DetectAmbiguity(matched, 0.6, 0.1)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, "weak_match", res.Reason)
	assert.Equal(t, []string{"pricing"}, res.Candidates)
	assert.Equal(t, []float64{0.5}, res.Scores)
}

func TestDetectAmbiguityCloseCompetitors(t *testing.T) {
	matched := []*model.ActiveTheme{
		{ThemeID: "t1", Label: "pricing", Score: 0.80},
		{ThemeID: "t2", Label: "growth", Score: 0.75},
	}
	res := DetectAmbiguity(matched, 0.6, 0.1)
	assert.True(t, res.Ambiguous)
	assert.Equal(t, "close_competitors", res.Reason)
	assert.Equal(t, []string{"pricing", "growth"}, res.Candidates)
	assert.Equal(t, []float64{0.80, 0.75}, res.Scores)
}

func TestDetectAmbiguityClearWinner(t *testing.T) {
	matched := []*model.ActiveTheme{
		{ThemeID: "t1", Label: "pricing", Score: 0.85},
		{ThemeID: "t2", Label: "growth", Score: 0.60},
	}
	res := DetectAmbiguity(matched, 0.6, 0.1)
	assert.False(t, res.Ambiguous)
}

func TestSelectGuestsWeightedSum(t *testing.T) {
	matched := []*model.ActiveTheme{
		{ThemeID: "t1", Label: "pricing", Score: 0.9},
		{ThemeID: "t2", Label: "growth", Score: 0.7},
	}
	strengths := []*model.GuestThemeStrength{
		{GuestID: "g1", ThemeID: "t1", Strength: 0.8},
		{GuestID: "g1", ThemeID: "t2", Strength: 0.1},
		{GuestID: "g2", ThemeID: "t2", Strength: 0.9},
		{GuestID: "g3", ThemeID: "t9", Strength: 1.0},
	}
	guests := []*model.Guest{
		{ID: "g1", FullName: "Alice"},
		{ID: "g2", FullName: "Bob"},
		{ID: "g3", FullName: "Carol"},
	}

	ranked := SelectGuests(matched, strengths, guests, 10)
	require.Len(t, ranked, 2, "guest on an inactive theme is excluded")
	assert.Equal(t, "g1", ranked[0].GuestID)
	assert.InDelta(t, 0.9*0.8+0.7*0.1, ranked[0].Score, 1e-9)
	assert.Equal(t, []string{"pricing", "growth"}, ranked[0].ContributingThemes)
	assert.Equal(t, "Bob", ranked[1].GuestName)
}

func TestSelectGuestsCap(t *testing.T) {
	matched := []*model.ActiveTheme{{ThemeID: "t1", Label: "pricing", Score: 1}}
	var strengths []*model.GuestThemeStrength
	var guests []*model.Guest
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		strengths = append(strengths, &model.GuestThemeStrength{
			GuestID: id, ThemeID: "t1", Strength: float64(i+1) / 15,
		})
		guests = append(guests, &model.Guest{ID: id, FullName: id})
	}
	ranked := SelectGuests(matched, strengths, guests, 10)
	assert.Len(t, ranked, 10)
	assert.Equal(t, "o", ranked[0].GuestID, "strongest guest first")
}
