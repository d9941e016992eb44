package sampler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/podsage/internal/model"
)

func buildCorpus(n, guests, episodes int) ([]*model.Chunk, map[string][]string) {
	keywords := map[string][]string{}
	var chunks []*model.Chunk
	labels := []string{"pricing", "growth", "hiring", "ai", "roadmaps"}
	for i := 0; i < n; i++ {
		episodeID := fmt.Sprintf("ep-%02d", i%episodes)
		chunks = append(chunks, &model.Chunk{
			ChunkID:   fmt.Sprintf("c-%03d", i),
			GuestID:   fmt.Sprintf("g-%02d", i%guests),
			EpisodeID: episodeID,
			Text:      fmt.Sprintf("chunk %d", i),
		})
		keywords[episodeID] = []string{labels[i%len(labels)], labels[(i+1)%len(labels)]}
	}
	return chunks, keywords
}

func TestTakeDiversePassthroughWhenSmall(t *testing.T) {
	chunks, keywords := buildCorpus(50, 5, 10)
	out := TakeDiverse(chunks, 220, keywords)
	assert.Equal(t, chunks, out)
}

func TestTakeDiverseSizeAndUniqueness(t *testing.T) {
	chunks, keywords := buildCorpus(300, 10, 40)
	out := TakeDiverse(chunks, 220, keywords)
	require.Len(t, out, 220)

	seen := map[string]bool{}
	for _, row := range out {
		assert.False(t, seen[row.ChunkID], "duplicate chunk %s", row.ChunkID)
		seen[row.ChunkID] = true
	}
}

func TestTakeDiverseDeterministic(t *testing.T) {
	chunks, keywords := buildCorpus(300, 10, 40)
	first := TakeDiverse(chunks, 220, keywords)
	second := TakeDiverse(chunks, 220, keywords)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
	}
}

func TestTakeDiverseSpreadsAcrossGuests(t *testing.T) {
	chunks, keywords := buildCorpus(300, 10, 40)
	out := TakeDiverse(chunks, 100, keywords)

	perGuest := map[string]int{}
	for _, row := range out {
		perGuest[row.GuestID]++
	}
	assert.Len(t, perGuest, 10, "every guest represented")
	for guest, count := range perGuest {
		assert.LessOrEqual(t, count, 30, "guest %s dominates the sample", guest)
	}
}

func TestTakeDiverseNoKeywordsStillSamples(t *testing.T) {
	chunks, _ := buildCorpus(100, 4, 8)
	out := TakeDiverse(chunks, 40, map[string][]string{})
	assert.Len(t, out, 40)
}

func TestNormalizeKeyword(t *testing.T) {
	assert.Equal(t, "go to market", NormalizeKeyword("  Go   To Market "))
	assert.Equal(t, "", NormalizeKeyword("   "))
}

func TestExtractKeywordLabelsShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"string array", `["Pricing", "Growth"]`, []string{"Pricing", "Growth"}},
		{"object labels", `[{"name": "AI"}, {"label": "Hiring"}]`, []string{"AI", "Hiring"}},
		{"nested", `{"topics": [{"topic": "Roadmaps"}]}`, []string{"Roadmaps"}},
		{"dedup case-insensitive", `["Pricing", "pricing", "PRICING"]`, []string{"Pricing"}},
		{"invalid json", `{not json`, nil},
		{"empty", ``, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractKeywordLabels([]byte(tc.raw)))
		})
	}
}

func TestExtractKeywordLabelsCap(t *testing.T) {
	raw := `[`
	for i := 0; i < 20; i++ {
		if i > 0 {
			raw += ","
		}
		raw += fmt.Sprintf(`"kw-%d"`, i)
	}
	raw += `]`
	labels := ExtractKeywordLabels([]byte(raw))
	assert.Len(t, labels, 10)
}
