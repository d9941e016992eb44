package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/podsage/internal/ai"
	"github.com/xxxsen/podsage/internal/config"
	"github.com/xxxsen/podsage/internal/model"
	"github.com/xxxsen/podsage/internal/pkg/errs"
)

type fakeConcepts struct{ saved []*model.Concept }

func (f *fakeConcepts) ReplaceAll(ctx context.Context, podcastID string, items []*model.Concept) error {
	f.saved = items
	return nil
}

type fakeInsights struct{ saved []*model.Insight }

func (f *fakeInsights) ReplaceAll(ctx context.Context, podcastID string, items []*model.Insight) error {
	f.saved = items
	return nil
}

type payloadGenerator struct {
	payload extractPayload
	calls   int
}

func (p *payloadGenerator) Generate(ctx context.Context, prompt string, opts ai.GenOptions) (*ai.GenResult, error) {
	p.calls++
	data, err := json.Marshal(p.payload)
	if err != nil {
		return nil, err
	}
	return &ai.GenResult{Text: string(data), Provider: "scripted:model"}, nil
}

func extractTestConfig() config.ExtractConfig {
	return config.ExtractConfig{
		SampleChunks:        220,
		ConceptTarget:       4,
		InsightTarget:       4,
		MinGuestsPerInsight: 2,
		MinConceptWords:     5,
	}
}

// Ten chunks across three guests and two episodes.
func extractEvidencePool() []*model.Chunk {
	var chunks []*model.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, &model.Chunk{
			ChunkID:     fmt.Sprintf("c%d", i),
			PodcastID:   "p1",
			GuestID:     fmt.Sprintf("g%d", i%3),
			EpisodeID:   fmt.Sprintf("e%d", i%2),
			Text:        fmt.Sprintf("evidence excerpt %d", i),
			TimeSeconds: 100 * i,
			SegmentType: "interview",
		})
	}
	return chunks
}

func refIdx(indexes ...int) []draftRef {
	var refs []draftRef
	for _, idx := range indexes {
		refs = append(refs, draftRef{EvidenceIndex: idx, Quote: "quote"})
	}
	return refs
}

func goodConcept(n int, theme string) conceptDraft {
	return conceptDraft{
		Title:      fmt.Sprintf("Concept %d", n),
		Slug:       fmt.Sprintf("concept-%d", n),
		Summary:    "A short summary.",
		Body:       strings.Repeat("word ", 20),
		ThemeLabel: theme,
		References: refIdx(0, 1, 2, 3),
	}
}

func goodInsight(n int, signal string, indexes ...int) insightDraft {
	return insightDraft{
		Title:       fmt.Sprintf("Insight %d", n),
		Slug:        fmt.Sprintf("insight-%d", n),
		Takeaway:    "Do the thing.",
		Signal:      signal,
		Explanation: []string{"because evidence"},
		Evidence:    refIdx(indexes...),
	}
}

func goodPayload() extractPayload {
	return extractPayload{
		Concepts: []conceptDraft{
			goodConcept(1, "pricing strategy"),
			goodConcept(2, "growth loops"),
			goodConcept(3, "hiring bar"),
			goodConcept(4, "ai tooling"),
		},
		Insights: []insightDraft{
			goodInsight(1, model.SignalHighConsensus, 0, 1, 2),
			goodInsight(2, model.SignalSplitView, 0, 1),
			goodInsight(3, model.SignalEmerging, 1, 2, 3),
			goodInsight(4, model.SignalHighConsensus, 2, 3),
		},
	}
}

type extractFixture struct {
	svc      *ExtractService
	gen      *payloadGenerator
	concepts *fakeConcepts
	insights *fakeInsights
}

func newExtractFixture(cfg config.ExtractConfig, payload extractPayload) *extractFixture {
	gen := &payloadGenerator{payload: payload}
	concepts := &fakeConcepts{}
	insights := &fakeInsights{}
	svc := NewExtractService(
		cfg,
		gen,
		&fakePodcasts{podcast: &model.Podcast{ID: "p1", Slug: "show", Name: "Show"}},
		&fakeGuests{guests: []*model.Guest{
			{ID: "g0", FullName: "Alice"}, {ID: "g1", FullName: "Bob"}, {ID: "g2", FullName: "Carol"},
		}},
		&fakeEpisodes{episodes: []*model.Episode{
			{ID: "e0", PodcastID: "p1", Title: "Episode zero", MediaURL: "https://example.com/e0"},
			{ID: "e1", PodcastID: "p1", Title: "Episode one", MediaURL: "https://example.com/e1"},
		}},
		&fakeChunks{recent: extractEvidencePool()},
		concepts,
		insights,
		&fakeLogs{},
	)
	return &extractFixture{svc: svc, gen: gen, concepts: concepts, insights: insights}
}

func TestExtractHappyPath(t *testing.T) {
	fx := newExtractFixture(extractTestConfig(), goodPayload())
	result, err := fx.svc.Run(context.Background(), "show")
	require.NoError(t, err)

	assert.Equal(t, 1, fx.gen.calls, "no retry when the payload is sufficient")
	assert.Equal(t, 4, result.Concepts)
	assert.Equal(t, 4, result.Insights)
	assert.Equal(t, 10, result.SampledChunks)
	require.Len(t, fx.concepts.saved, 4)
	require.Len(t, fx.insights.saved, 4)

	first := fx.concepts.saved[0]
	assert.Equal(t, "published", first.Status)
	assert.Equal(t, "sales", first.Category, "category inferred from pricing theme")
	assert.NotEmpty(t, first.ID)
	assert.Len(t, first.References, 4)
	// Indexes 0..3 span guests g0,g1,g2 and episodes e0,e1.
	assert.Equal(t, 3, first.GuestCount)
	assert.Equal(t, 2, first.EpisodeCount)
	assert.Equal(t, "https://example.com/e1?t=100", first.References[1].EpisodeURL)
}

func TestExtractDropsSingleGuestInsight(t *testing.T) {
	payload := goodPayload()
	// Evidence indexes 0 and 3 are both guest g0.
	payload.Insights = append(payload.Insights, goodInsight(5, model.SignalEmerging, 0, 3))
	cfg := extractTestConfig()
	cfg.InsightTarget = 5

	fx := newExtractFixture(cfg, payload)
	result, err := fx.svc.Run(context.Background(), "show")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Insights, "one-guest insight is dropped")
	for _, row := range fx.insights.saved {
		assert.GreaterOrEqual(t, row.GuestCount, 2)
	}
}

func TestExtractPerThemeCap(t *testing.T) {
	payload := goodPayload()
	payload.Concepts = []conceptDraft{
		goodConcept(1, "Pricing"),
		goodConcept(2, "pricing"),
		goodConcept(3, "  PRICING "),
		goodConcept(4, "pricing"),
	}
	fx := newExtractFixture(extractTestConfig(), payload)
	result, err := fx.svc.Run(context.Background(), "show")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Concepts, "at most three concepts per theme")
}

func TestExtractInsightsRankedByGuestSpread(t *testing.T) {
	payload := goodPayload()
	fx := newExtractFixture(extractTestConfig(), payload)
	_, err := fx.svc.Run(context.Background(), "show")
	require.NoError(t, err)

	saved := fx.insights.saved
	require.NotEmpty(t, saved)
	for i := 1; i < len(saved); i++ {
		assert.GreaterOrEqual(t, saved[i-1].GuestCount, saved[i].GuestCount)
	}
}

func TestExtractQualityGate(t *testing.T) {
	payload := extractPayload{
		Concepts: []conceptDraft{goodConcept(1, "pricing")},
		Insights: []insightDraft{goodInsight(1, model.SignalHighConsensus, 0, 1)},
	}
	fx := newExtractFixture(extractTestConfig(), payload)
	_, err := fx.svc.Run(context.Background(), "show")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrQualityGate)
	assert.Equal(t, 1+extractMaxRetries, fx.gen.calls, "shortfall retries before giving up")
	assert.Empty(t, fx.concepts.saved, "nothing persisted when the gate fails")
}

func TestExtractRejectsConcurrentRun(t *testing.T) {
	fx := newExtractFixture(extractTestConfig(), goodPayload())
	require.True(t, fx.svc.acquire("show"))
	_, err := fx.svc.Run(context.Background(), "show")
	assert.ErrorIs(t, err, errs.ErrExtractionRunning)
	fx.svc.release("show")

	_, err = fx.svc.Run(context.Background(), "show")
	assert.NoError(t, err)
}

func TestExtractDryRunPersistsNothing(t *testing.T) {
	fx := newExtractFixture(extractTestConfig(), goodPayload())
	result, err := fx.svc.RunWith(context.Background(), "show", RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Len(t, result.PreviewConcepts, 4)
	assert.Len(t, result.PreviewInsights, 4)
	assert.Empty(t, fx.concepts.saved)
	assert.Empty(t, fx.insights.saved)
}

func TestExtractConceptsModeSkipsInsights(t *testing.T) {
	fx := newExtractFixture(extractTestConfig(), goodPayload())
	result, err := fx.svc.RunWith(context.Background(), "show", RunOptions{Mode: ModeConcepts})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Concepts)
	assert.Equal(t, 0, result.Insights)
	require.Len(t, fx.concepts.saved, 4)
	assert.Empty(t, fx.insights.saved)
}

func TestInferCategoryFromTheme(t *testing.T) {
	assert.Equal(t, "sales", InferCategoryFromTheme("Pricing and packaging"))
	assert.Equal(t, "growth", InferCategoryFromTheme("Retention loops"))
	assert.Equal(t, "people", InferCategoryFromTheme("Hiring senior engineers"))
	assert.Equal(t, "technology", InferCategoryFromTheme("AI tooling"))
	assert.Equal(t, "strategy", InferCategoryFromTheme("Something else"))
	assert.Equal(t, "", InferCategoryFromTheme(""))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "pricing-power-101", Slugify("Pricing Power 101!"))
	assert.Equal(t, "a-b", Slugify("  A  -  B  "))
	long := strings.Repeat("a", 100)
	assert.Len(t, Slugify(long), 80)
}
