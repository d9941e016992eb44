package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/podsage/internal/ai"
	"github.com/xxxsen/podsage/internal/config"
	"github.com/xxxsen/podsage/internal/model"
	"github.com/xxxsen/podsage/internal/pkg/errs"
	"github.com/xxxsen/podsage/internal/sampler"
	"go.uber.org/zap"
)

const (
	extractFetchMultiplier = 6
	extractFetchCap        = 3000
	extractMaxRetries      = 2
	perThemeConceptCap     = 3

	extractFallbackShape = `{"concepts": [], "insights": []}`
)

type ConceptStore interface {
	ReplaceAll(ctx context.Context, podcastID string, items []*model.Concept) error
}

type InsightStore interface {
	ReplaceAll(ctx context.Context, podcastID string, items []*model.Insight) error
}

// ExtractResult summarizes one extraction run for callers and reports.
type ExtractResult struct {
	Podcast         string         `json:"podcast"`
	Model           string         `json:"model"`
	DryRun          bool           `json:"dry_run,omitempty"`
	SampledChunks   int            `json:"sampled_chunks"`
	RawConcepts     int            `json:"raw_concepts"`
	RawInsights     int            `json:"raw_insights"`
	Concepts        int            `json:"concepts"`
	Insights        int            `json:"insights"`
	SignalBreakdown map[string]int `json:"signal_breakdown"`
	TokensIn        int            `json:"tokens_in"`
	TokensOut       int            `json:"tokens_out"`
	StartedAt       int64          `json:"started_at"`
	FinishedAt      int64          `json:"finished_at"`

	PreviewConcepts []*model.Concept `json:"preview_concepts,omitempty"`
	PreviewInsights []*model.Insight `json:"preview_insights,omitempty"`
}

// RunOptions override the configured extraction knobs for one run. Zero
// values keep the configured behavior; explicit overrides are clamped to
// sane ranges so a caller cannot ask for a degenerate run.
type RunOptions struct {
	Mode                string `json:"mode"`
	DryRun              bool   `json:"dry_run"`
	SampleChunks        int    `json:"sample_chunks"`
	ConceptTarget       int    `json:"concept_target"`
	InsightTarget       int    `json:"insight_target"`
	MinGuestsPerInsight int    `json:"min_guests_per_insight"`
	MinConceptWords     int    `json:"min_concept_words"`
	PrimaryOnly         bool   `json:"primary_only"`
}

const (
	ModeBoth     = "both"
	ModeConcepts = "concepts"
	ModeInsights = "insights"
)

type ExtractService struct {
	cfg      config.ExtractConfig
	gen      ai.IGenerator
	podcasts PodcastStore
	guests   GuestStore
	episodes EpisodeStore
	chunks   ChunkStore
	concepts ConceptStore
	insights InsightStore
	logs     UsageLogStore

	mu      sync.Mutex
	running map[string]bool
}

func NewExtractService(
	cfg config.ExtractConfig,
	gen ai.IGenerator,
	podcasts PodcastStore,
	guests GuestStore,
	episodes EpisodeStore,
	chunks ChunkStore,
	concepts ConceptStore,
	insights InsightStore,
	logs UsageLogStore,
) *ExtractService {
	return &ExtractService{
		cfg:      cfg,
		gen:      gen,
		podcasts: podcasts,
		guests:   guests,
		episodes: episodes,
		chunks:   chunks,
		concepts: concepts,
		insights: insights,
		logs:     logs,
		running:  map[string]bool{},
	}
}

// evidenceItem is one sampled chunk with the metadata the prompt and the
// persisted references need.
type evidenceItem struct {
	Idx           int
	ChunkID       string
	GuestID       string
	EpisodeID     string
	Timestamp     string
	TimeSeconds   int
	Excerpt       string
	KeywordLabels []string
	EpisodeTitle  string
	EpisodeURL    string
}

type draftRef struct {
	EvidenceIndex int    `json:"evidence_index"`
	Quote         string `json:"quote"`
}

type conceptDraft struct {
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Summary    string     `json:"summary"`
	Body       string     `json:"body"`
	Category   string     `json:"category"`
	ThemeLabel string     `json:"theme_label"`
	References []draftRef `json:"references"`
}

type insightDraft struct {
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Takeaway    string     `json:"takeaway"`
	Signal      string     `json:"signal"`
	Trend       string     `json:"trend"`
	Category    string     `json:"category"`
	ThemeLabel  string     `json:"theme_label"`
	Explanation []string   `json:"explanation"`
	Evidence    []draftRef `json:"evidence"`

	guestCount   int
	episodeCount int
}

type extractPayload struct {
	Concepts []conceptDraft `json:"concepts"`
	Insights []insightDraft `json:"insights"`
}

// Run performs one full extraction for a podcast with the configured
// knobs. See RunWith.
func (s *ExtractService) Run(ctx context.Context, podcastSlug string) (*ExtractResult, error) {
	return s.RunWith(ctx, podcastSlug, RunOptions{})
}

// RunWith performs one extraction for a podcast: sample a diverse slice
// of the corpus, ask the model for concepts and insights grounded in the
// sampled evidence, filter structurally, and atomically replace the
// published sets. A dry run stops short of the quality gate and the
// replace, returning previews instead. A second run for the same podcast
// while one is in flight is rejected.
func (s *ExtractService) RunWith(ctx context.Context, podcastSlug string, opts RunOptions) (*ExtractResult, error) {
	if !s.acquire(podcastSlug) {
		return nil, errs.ErrExtractionRunning
	}
	defer s.release(podcastSlug)

	cfg := s.effectiveConfig(opts)
	started := time.Now().Unix()
	podcast, err := s.podcasts.GetBySlug(ctx, podcastSlug)
	if err != nil {
		return nil, err
	}

	evidence, err := s.collectEvidence(ctx, cfg, podcast.ID)
	if err != nil {
		return nil, err
	}
	if len(evidence) == 0 {
		return nil, fmt.Errorf("podcast %s has no substantive chunks: %w", podcastSlug, errs.ErrQualityGate)
	}

	payload, stats, err := s.generate(ctx, cfg, evidence)
	if err != nil {
		return nil, err
	}

	concepts := filterConcepts(cfg, payload.Concepts, evidence)
	insights := filterInsights(cfg, payload.Insights, evidence)
	if cfg.ConceptTarget == 0 {
		concepts = nil
	}
	if cfg.InsightTarget == 0 {
		insights = nil
	}

	now := time.Now().Unix()
	conceptRows := buildConceptRows(podcast.ID, concepts, evidence, now)
	insightRows := buildInsightRows(podcast.ID, insights, evidence, now)

	breakdown := map[string]int{
		model.SignalHighConsensus: 0,
		model.SignalSplitView:     0,
		model.SignalEmerging:      0,
	}
	for _, row := range insightRows {
		breakdown[row.Signal]++
	}
	result := &ExtractResult{
		Podcast:         podcastSlug,
		Model:           stats.model,
		DryRun:          opts.DryRun,
		SampledChunks:   len(evidence),
		RawConcepts:     len(payload.Concepts),
		RawInsights:     len(payload.Insights),
		Concepts:        len(conceptRows),
		Insights:        len(insightRows),
		SignalBreakdown: breakdown,
		TokensIn:        stats.tokensIn,
		TokensOut:       stats.tokensOut,
		StartedAt:       started,
	}

	if opts.DryRun {
		result.PreviewConcepts = conceptRows
		result.PreviewInsights = insightRows
		result.FinishedAt = time.Now().Unix()
		return result, nil
	}

	minConcepts := qualityFloor(cfg.ConceptTarget)
	minInsights := qualityFloor(cfg.InsightTarget)
	if len(concepts) < minConcepts || len(insights) < minInsights {
		return nil, fmt.Errorf(
			"concepts=%d (min %d) insights=%d (min %d): %w",
			len(concepts), minConcepts, len(insights), minInsights, errs.ErrQualityGate)
	}

	if cfg.ConceptTarget > 0 {
		if err := s.concepts.ReplaceAll(ctx, podcast.ID, conceptRows); err != nil {
			return nil, fmt.Errorf("replace concepts: %w", err)
		}
	}
	if cfg.InsightTarget > 0 {
		if err := s.insights.ReplaceAll(ctx, podcast.ID, insightRows); err != nil {
			return nil, fmt.Errorf("replace insights: %w", err)
		}
	}

	result.FinishedAt = time.Now().Unix()
	s.logRun(ctx, result)
	return result, nil
}

// effectiveConfig applies per-run overrides onto the configured knobs.
func (s *ExtractService) effectiveConfig(opts RunOptions) config.ExtractConfig {
	cfg := s.cfg
	if opts.SampleChunks > 0 {
		cfg.SampleChunks = clamp(opts.SampleChunks, 60, 500)
	}
	if opts.ConceptTarget > 0 {
		cfg.ConceptTarget = clamp(opts.ConceptTarget, 8, 40)
	}
	if opts.InsightTarget > 0 {
		cfg.InsightTarget = clamp(opts.InsightTarget, 8, 40)
	}
	if opts.MinGuestsPerInsight > 0 {
		cfg.MinGuestsPerInsight = clamp(opts.MinGuestsPerInsight, 2, 8)
	}
	if opts.MinConceptWords > 0 {
		cfg.MinConceptWords = clamp(opts.MinConceptWords, 100, 1600)
	}
	if opts.PrimaryOnly {
		cfg.PrimaryOnly = true
	}
	switch opts.Mode {
	case ModeConcepts:
		cfg.InsightTarget = 0
	case ModeInsights:
		cfg.ConceptTarget = 0
	}
	return cfg
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *ExtractService) acquire(slug string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[slug] {
		return false
	}
	s.running[slug] = true
	return true
}

func (s *ExtractService) release(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, slug)
}

func (s *ExtractService) collectEvidence(ctx context.Context, cfg config.ExtractConfig, podcastID string) ([]evidenceItem, error) {
	fetchLimit := cfg.SampleChunks * extractFetchMultiplier
	if fetchLimit > extractFetchCap {
		fetchLimit = extractFetchCap
	}
	pool, err := s.chunks.ListRecent(ctx, podcastID, model.SegmentAllowlist, fetchLimit)
	if err != nil {
		return nil, err
	}

	episodeByID := map[string]*model.Episode{}
	episodeKeywords := map[string][]string{}
	if episodes, err := s.episodes.ListByPodcast(ctx, podcastID); err == nil {
		for _, ep := range episodes {
			episodeByID[ep.ID] = ep
			episodeKeywords[ep.ID] = sampler.ExtractKeywordLabels(ep.Keywords)
		}
	}

	sampled := sampler.TakeDiverse(pool, cfg.SampleChunks, episodeKeywords)
	evidence := make([]evidenceItem, 0, len(sampled))
	for i, chunk := range sampled {
		item := evidenceItem{
			Idx:           i,
			ChunkID:       chunk.ChunkID,
			GuestID:       chunk.GuestID,
			EpisodeID:     chunk.EpisodeID,
			Timestamp:     chunk.TimeStamp,
			TimeSeconds:   chunk.TimeSeconds,
			Excerpt:       chunk.Text,
			KeywordLabels: episodeKeywords[chunk.EpisodeID],
		}
		if ep, ok := episodeByID[chunk.EpisodeID]; ok {
			item.EpisodeTitle = ep.Title
			item.EpisodeURL = ep.MediaURL
		}
		evidence = append(evidence, item)
	}
	return evidence, nil
}

type genStats struct {
	model     string
	tokensIn  int
	tokensOut int
}

func (s *ExtractService) generate(ctx context.Context, cfg config.ExtractConfig, evidence []evidenceItem) (*extractPayload, *genStats, error) {
	gen := s.gen
	if cfg.PrimaryOnly {
		gen = ai.Primary(gen)
	}
	basePrompt := buildPrompt(cfg, evidence)
	stats := &genStats{}
	payload := &extractPayload{}

	runOnce := func(prompt string) error {
		res, err := ai.GenerateJSON(ctx, gen, prompt, ai.GenOptions{MaxTokens: 8192}, payload, extractFallbackShape)
		if err != nil {
			return err
		}
		stats.model = res.Provider
		stats.tokensIn += res.TokensIn
		stats.tokensOut += res.TokensOut
		return nil
	}

	if err := runOnce(basePrompt); err != nil {
		return nil, nil, err
	}
	for attempt := 0; attempt < extractMaxRetries; attempt++ {
		if payloadSufficient(cfg, payload) {
			break
		}
		logutil.GetLogger(ctx).Info("extraction shortfall, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("concepts", len(payload.Concepts)),
			zap.Int("insights", len(payload.Insights)))
		retryPrompt := basePrompt + "\n\n" + strings.Join([]string{
			fmt.Sprintf("Previous attempt returned too few items (concepts=%d, insights=%d).",
				len(payload.Concepts), len(payload.Insights)),
			fmt.Sprintf("Return at least %d concepts and %d insights in one JSON response.",
				cfg.ConceptTarget, cfg.InsightTarget),
			"Ensure insight signals include at least two of: high_consensus, split_view, emerging.",
			"Do not skip items because of uncertainty; use strongest available grounded evidence indexes.",
		}, "\n")
		payload.Concepts = nil
		payload.Insights = nil
		if err := runOnce(retryPrompt); err != nil {
			return nil, nil, err
		}
	}
	return payload, stats, nil
}

// payloadSufficient checks raw output volume before structural filtering:
// both item counts must reach 60% of their targets and insights must span
// at least two signal kinds.
func payloadSufficient(cfg config.ExtractConfig, payload *extractPayload) bool {
	conceptsGood := cfg.ConceptTarget == 0 ||
		len(payload.Concepts) >= softFloor(cfg.ConceptTarget)
	insightsGood := cfg.InsightTarget == 0 ||
		len(payload.Insights) >= softFloor(cfg.InsightTarget)
	kinds := map[string]bool{}
	for _, item := range payload.Insights {
		if validSignal(item.Signal) {
			kinds[item.Signal] = true
		}
	}
	signalsGood := cfg.InsightTarget == 0 || len(kinds) >= 2
	return conceptsGood && insightsGood && signalsGood
}

func filterConcepts(cfg config.ExtractConfig, drafts []conceptDraft, evidence []evidenceItem) []conceptDraft {
	var kept []conceptDraft
	for _, draft := range drafts {
		if draft.Title == "" || draft.Summary == "" || draft.Body == "" {
			continue
		}
		if len(validRefs(draft.References, len(evidence))) < 3 {
			continue
		}
		kept = append(kept, draft)
		if cfg.ConceptTarget > 0 && len(kept) >= cfg.ConceptTarget {
			break
		}
	}

	byTheme := map[string]int{}
	var out []conceptDraft
	for _, draft := range kept {
		if wordCount(draft.Body) < cfg.MinConceptWords {
			continue
		}
		themeKey := strings.ToLower(strings.TrimSpace(draft.ThemeLabel))
		if themeKey == "" {
			themeKey = "general"
		}
		if byTheme[themeKey] >= perThemeConceptCap {
			continue
		}
		byTheme[themeKey]++
		out = append(out, draft)
		if cfg.ConceptTarget > 0 && len(out) >= cfg.ConceptTarget {
			break
		}
	}
	return out
}

func filterInsights(cfg config.ExtractConfig, drafts []insightDraft, evidence []evidenceItem) []insightDraft {
	var kept []insightDraft
	for _, draft := range drafts {
		var explanation []string
		for _, line := range draft.Explanation {
			if strings.TrimSpace(line) != "" {
				explanation = append(explanation, line)
			}
		}
		draft.Explanation = explanation
		draft.Evidence = validRefs(draft.Evidence, len(evidence))
		if draft.Title == "" || draft.Takeaway == "" {
			continue
		}
		if len(draft.Evidence) < 1 || len(draft.Explanation) < 1 {
			continue
		}
		if !validSignal(draft.Signal) {
			draft.Signal = model.SignalEmerging
		}
		guests := map[string]bool{}
		episodes := map[string]bool{}
		for _, ref := range draft.Evidence {
			ev := evidence[ref.EvidenceIndex]
			if ev.GuestID != "" {
				guests[ev.GuestID] = true
			}
			if ev.EpisodeID != "" {
				episodes[ev.EpisodeID] = true
			}
		}
		draft.guestCount = len(guests)
		draft.episodeCount = len(episodes)
		if draft.guestCount < cfg.MinGuestsPerInsight {
			continue
		}
		kept = append(kept, draft)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].guestCount != kept[j].guestCount {
			return kept[i].guestCount > kept[j].guestCount
		}
		return kept[i].episodeCount > kept[j].episodeCount
	})
	if cfg.InsightTarget > 0 && len(kept) > cfg.InsightTarget {
		kept = kept[:cfg.InsightTarget]
	}
	return kept
}

func buildConceptRows(podcastID string, drafts []conceptDraft, evidence []evidenceItem, now int64) []*model.Concept {
	rows := make([]*model.Concept, 0, len(drafts))
	for _, draft := range drafts {
		refs := validRefs(draft.References, len(evidence))
		themeLabel := strings.TrimSpace(draft.ThemeLabel)
		if themeLabel == "" {
			themeLabel = topKeywordFromRefs(refs, evidence)
		}
		category := strings.TrimSpace(draft.Category)
		if category == "" {
			category = InferCategoryFromTheme(themeLabel)
		}
		guests := map[string]bool{}
		episodes := map[string]bool{}
		evidenceRefs := make([]model.EvidenceRef, 0, len(refs))
		for i, ref := range refs {
			ev := evidence[ref.EvidenceIndex]
			if ev.GuestID != "" {
				guests[ev.GuestID] = true
			}
			if ev.EpisodeID != "" {
				episodes[ev.EpisodeID] = true
			}
			evidenceRefs = append(evidenceRefs, model.EvidenceRef{
				ChunkID:      ev.ChunkID,
				GuestID:      ev.GuestID,
				EpisodeID:    ev.EpisodeID,
				Quote:        strings.TrimSpace(ref.Quote),
				TimeStamp:    ev.Timestamp,
				TimeSeconds:  ev.TimeSeconds,
				EpisodeURL:   DeepLink(ev.EpisodeURL, ev.TimeSeconds),
				DisplayOrder: i,
			})
		}
		slug := Slugify(draft.Slug)
		if slug == "" {
			slug = Slugify(draft.Title)
		}
		rows = append(rows, &model.Concept{
			ID:           NewID(),
			PodcastID:    podcastID,
			Title:        strings.TrimSpace(draft.Title),
			Slug:         slug,
			Summary:      strings.TrimSpace(draft.Summary),
			Body:         strings.TrimSpace(draft.Body),
			Status:       "published",
			Category:     category,
			ThemeLabel:   themeLabel,
			GuestCount:   len(guests),
			EpisodeCount: len(episodes),
			Ctime:        now,
			References:   evidenceRefs,
		})
	}
	return rows
}

func buildInsightRows(podcastID string, drafts []insightDraft, evidence []evidenceItem, now int64) []*model.Insight {
	rows := make([]*model.Insight, 0, len(drafts))
	for _, draft := range drafts {
		themeLabel := strings.TrimSpace(draft.ThemeLabel)
		if themeLabel == "" {
			themeLabel = topKeywordFromRefs(draft.Evidence, evidence)
		}
		category := strings.TrimSpace(draft.Category)
		if category == "" {
			category = InferCategoryFromTheme(themeLabel)
		}
		explanation := draft.Explanation
		if len(explanation) > 5 {
			explanation = explanation[:5]
		}
		evidenceRefs := make([]model.EvidenceRef, 0, len(draft.Evidence))
		for i, ref := range draft.Evidence {
			ev := evidence[ref.EvidenceIndex]
			evidenceRefs = append(evidenceRefs, model.EvidenceRef{
				ChunkID:      ev.ChunkID,
				GuestID:      ev.GuestID,
				EpisodeID:    ev.EpisodeID,
				Quote:        strings.TrimSpace(ref.Quote),
				TimeStamp:    ev.Timestamp,
				TimeSeconds:  ev.TimeSeconds,
				EpisodeURL:   DeepLink(ev.EpisodeURL, ev.TimeSeconds),
				DisplayOrder: i,
			})
		}
		slug := Slugify(draft.Slug)
		if slug == "" {
			slug = Slugify(draft.Title)
		}
		rows = append(rows, &model.Insight{
			ID:           NewID(),
			PodcastID:    podcastID,
			Title:        strings.TrimSpace(draft.Title),
			Slug:         slug,
			Takeaway:     strings.TrimSpace(draft.Takeaway),
			Signal:       draft.Signal,
			Trend:        strings.TrimSpace(draft.Trend),
			Category:     category,
			ThemeLabel:   themeLabel,
			Explanation:  explanation,
			GuestCount:   draft.guestCount,
			EpisodeCount: draft.episodeCount,
			Ctime:        now,
			Evidence:     evidenceRefs,
		})
	}
	return rows
}

func buildPrompt(cfg config.ExtractConfig, evidence []evidenceItem) string {
	var sb strings.Builder
	sb.WriteString("You are analyzing transcript excerpts from many interviews on one podcast.\n")
	fmt.Fprintf(&sb, "Extract up to %d concepts and %d insights from the evidence below.\n\n",
		cfg.ConceptTarget, cfg.InsightTarget)
	sb.WriteString("Topic scope is WIDE: strategy, growth, pricing, leadership, hiring, careers,\n")
	sb.WriteString("mindsets, practical lessons, contrarian viewpoints, and any other substantive\n")
	sb.WriteString("topic guests discuss with genuine conviction.\n\n")
	sb.WriteString("Strict rules:\n")
	sb.WriteString("- Ground every concept/insight in provided evidence indexes ONLY. Do not invent claims.\n")
	sb.WriteString("- Concepts are conviction-heavy viewpoints with a concise 400-600 word overview body.\n")
	sb.WriteString("- References must include direct quote snippets from the evidence when available.\n")
	sb.WriteString("- Use multiple evidence indexes per item (4-12 for concepts, 3-8 for insights).\n")
	fmt.Fprintf(&sb, "- An insight is only valid when supported by at least %d DISTINCT guests. If fewer guests support it, exclude it.\n",
		cfg.MinGuestsPerInsight)
	sb.WriteString("- Prioritize cross-guest patterns that recur across many episodes.\n")
	sb.WriteString("- Use episode keywords to improve theme/category clustering.\n")
	sb.WriteString("- For insights, include a realistic MIX across high_consensus, split_view, and emerging.\n\n")
	sb.WriteString("Return one JSON object with exact keys:\n")
	sb.WriteString(`{"concepts": [{"title", "slug", "summary", "body", "category", "theme_label", "references": [{"evidence_index", "quote"}]}],` + "\n")
	sb.WriteString(` "insights": [{"title", "slug", "takeaway", "signal", "trend", "category", "theme_label", "explanation": ["..."], "evidence": [{"evidence_index", "quote"}]}]}` + "\n\n")
	sb.WriteString("Evidence snippets:\n")
	for _, ev := range evidence {
		keywords := strings.Join(ev.KeywordLabels, ", ")
		if keywords == "" {
			keywords = "na"
		}
		fmt.Fprintf(&sb, "[%d] chunk_id=%s | guest=%s | episode=%s | time=%s | keywords=%s\n%s\n",
			ev.Idx, ev.ChunkID, orNA(ev.GuestID), orNA(ev.EpisodeID), orNA(ev.Timestamp), keywords, ev.Excerpt)
	}
	return sb.String()
}

func (s *ExtractService) logRun(ctx context.Context, result *ExtractResult) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Add(ctx, &model.UsageLog{
		CallerKey:   "extract",
		PodcastSlug: result.Podcast,
		Model:       result.Model,
		TokensIn:    result.TokensIn,
		TokensOut:   result.TokensOut,
		Status:      model.UsageStatusSuccess,
		Ctime:       result.FinishedAt,
	}); err != nil {
		logutil.GetLogger(ctx).Warn("write extraction log failed", zap.Error(err))
	}
}

// InferCategoryFromTheme buckets a free-form theme label into one of the
// fixed categories the frontend filters on.
func InferCategoryFromTheme(themeLabel string) string {
	if themeLabel == "" {
		return ""
	}
	theme := strings.ToLower(themeLabel)
	contains := func(parts ...string) bool {
		for _, p := range parts {
			if strings.Contains(theme, p) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("growth", "retention", "acquisition"):
		return "growth"
	case contains("sales", "pricing", "gtm", "go-to-market"):
		return "sales"
	case contains("career", "hiring", "talent", "team", "leadership"):
		return "people"
	case contains("ai", "automation", "tooling", "platform"):
		return "technology"
	case contains("roadmap", "prioritization", "product"):
		return "product"
	case contains("ops", "operation"):
		return "operations"
	}
	return "strategy"
}

func topKeywordFromRefs(refs []draftRef, evidence []evidenceItem) string {
	type entry struct {
		label string
		count int
	}
	freq := map[string]*entry{}
	var order []string
	for _, ref := range refs {
		if ref.EvidenceIndex < 0 || ref.EvidenceIndex >= len(evidence) {
			continue
		}
		for _, label := range evidence[ref.EvidenceIndex].KeywordLabels {
			key := sampler.NormalizeKeyword(label)
			if key == "" {
				continue
			}
			if e, ok := freq[key]; ok {
				e.count++
				continue
			}
			freq[key] = &entry{label: label, count: 1}
			order = append(order, key)
		}
	}
	best := ""
	bestCount := 0
	for _, key := range order {
		if freq[key].count > bestCount {
			best = freq[key].label
			bestCount = freq[key].count
		}
	}
	return best
}

func validRefs(refs []draftRef, evidenceLen int) []draftRef {
	var out []draftRef
	for _, ref := range refs {
		if ref.EvidenceIndex >= 0 && ref.EvidenceIndex < evidenceLen {
			out = append(out, ref)
		}
	}
	return out
}

func validSignal(signal string) bool {
	switch signal {
	case model.SignalHighConsensus, model.SignalSplitView, model.SignalEmerging:
		return true
	}
	return false
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// softFloor is the raw-output volume that avoids a retry: 60% of target,
// at least 4.
func softFloor(target int) int {
	floor := target * 6 / 10
	if floor < 4 {
		floor = 4
	}
	return floor
}

// qualityFloor is the post-filter minimum below which the run is rejected
// outright: 50% of target, at least 2.
func qualityFloor(target int) int {
	if target == 0 {
		return 0
	}
	floor := target / 2
	if floor < 2 {
		floor = 2
	}
	return floor
}
