package intelligence

import (
	"math"
	"sort"

	"github.com/xxxsen/podsage/internal/model"
)

// MatchThemes scores the query embedding against every theme centroid and
// returns the themes at or above minScore, best first, capped at topN.
// Scores are cosine similarity; vectors are normalized before comparison
// so stored centroids need not be unit length.
func MatchThemes(query []float32, themes []*model.Theme, topN int, minScore float64) []*model.ActiveTheme {
	if len(query) == 0 || len(themes) == 0 {
		return nil
	}
	var matched []*model.ActiveTheme
	for _, theme := range themes {
		score := cosine(query, theme.Centroid)
		if score < minScore {
			continue
		}
		matched = append(matched, &model.ActiveTheme{
			ThemeID: theme.ID,
			Label:   theme.Label,
			Score:   score,
		})
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Score > matched[j].Score
	})
	if topN > 0 && len(matched) > topN {
		matched = matched[:topN]
	}
	return matched
}

// Ambiguity is the outcome of checking whether matched themes pin the
// query down well enough to answer without clarification. Scores lines
// up with Candidates so a clarification prompt can show how close the
// competing themes actually were.
type Ambiguity struct {
	Ambiguous  bool
	Reason     string
	Candidates []string
	Scores     []float64
}

// DetectAmbiguity flags a query as ambiguous when no theme matched, the
// best match is weak, or the top two matches are too close to choose
// between. Candidates carries the theme labels a clarification prompt
// should offer.
func DetectAmbiguity(matched []*model.ActiveTheme, threshold float64, gap float64) Ambiguity {
	if len(matched) == 0 {
		return Ambiguity{Ambiguous: true, Reason: "no_theme_match"}
	}
	if matched[0].Score < threshold {
		return Ambiguity{
			Ambiguous:  true,
			Reason:     "weak_match",
			Candidates: themeLabels(matched),
			Scores:     themeScores(matched),
		}
	}
	if len(matched) > 1 && matched[0].Score-matched[1].Score < gap {
		return Ambiguity{
			Ambiguous:  true,
			Reason:     "close_competitors",
			Candidates: themeLabels(matched[:2]),
			Scores:     themeScores(matched[:2]),
		}
	}
	return Ambiguity{}
}

// SelectGuests ranks guests by how strongly their material covers the
// active themes. A guest's score is the sum over active themes of the
// theme's match score times the guest's strength on that theme. Guests
// with zero score are dropped.
func SelectGuests(
	matched []*model.ActiveTheme,
	strengths []*model.GuestThemeStrength,
	guests []*model.Guest,
	maxGuests int,
) []*model.GuestScore {
	if len(matched) == 0 || len(strengths) == 0 {
		return nil
	}
	themeScore := make(map[string]float64, len(matched))
	themeLabel := make(map[string]string, len(matched))
	for _, theme := range matched {
		themeScore[theme.ThemeID] = theme.Score
		themeLabel[theme.ThemeID] = theme.Label
	}
	guestName := make(map[string]string, len(guests))
	for _, guest := range guests {
		guestName[guest.ID] = guest.FullName
	}

	scores := map[string]*model.GuestScore{}
	var order []string
	for _, item := range strengths {
		weight, ok := themeScore[item.ThemeID]
		if !ok || item.Strength <= 0 {
			continue
		}
		entry, ok := scores[item.GuestID]
		if !ok {
			entry = &model.GuestScore{
				GuestID:   item.GuestID,
				GuestName: guestName[item.GuestID],
			}
			scores[item.GuestID] = entry
			order = append(order, item.GuestID)
		}
		entry.Score += weight * item.Strength
		entry.ContributingThemes = append(entry.ContributingThemes, themeLabel[item.ThemeID])
	}

	ranked := make([]*model.GuestScore, 0, len(order))
	for _, id := range order {
		ranked = append(ranked, scores[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if maxGuests > 0 && len(ranked) > maxGuests {
		ranked = ranked[:maxGuests]
	}
	return ranked
}

func themeLabels(matched []*model.ActiveTheme) []string {
	labels := make([]string, 0, len(matched))
	for _, theme := range matched {
		labels = append(labels, theme.Label)
	}
	return labels
}

func themeScores(matched []*model.ActiveTheme) []float64 {
	scores := make([]float64, 0, len(matched))
	for _, theme := range matched {
		scores = append(scores, theme.Score)
	}
	return scores
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
