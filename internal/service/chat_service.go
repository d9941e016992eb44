package service

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/podsage/internal/ai"
	"github.com/xxxsen/podsage/internal/config"
	"github.com/xxxsen/podsage/internal/intelligence"
	"github.com/xxxsen/podsage/internal/model"
	"github.com/xxxsen/podsage/internal/pkg/errs"
	"github.com/xxxsen/podsage/internal/repo"
	"go.uber.org/zap"
)

const (
	// Answer kinds a chat response can carry.
	ChatAnswerGrounded      = "answer"
	ChatAnswerClarification = "clarification"
	ChatAnswerNoEvidence    = "no_evidence"

	chatFallbackShape = `{"direct_answer": "", "consensus": [], "disagreement": [], "minority_views": []}`

	chatRole        = "assistant"
	logExcerptChars = 200
)

// greetingPatterns catch chitchat that has no searchable topic. These run
// before any retrieval so a "hey there" never costs a credit or an embed
// call.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:hey|hi|hello|howdy|yo|sup|hiya|heya)\b`),
	regexp.MustCompile(`(?i)^what'?s?\s*up\b`),
	regexp.MustCompile(`(?i)^how(?:'s|\s+is|\s+are)\s+(?:it|you|things|everything|life)\b`),
	regexp.MustCompile(`(?i)^(?:good\s+)?(?:morning|afternoon|evening)\b`),
	regexp.MustCompile(`(?i)^how\s+(?:are\s+you|do\s+you\s+do)\b`),
	regexp.MustCompile(`(?i)^(?:thanks|thank\s+you|thx|cheers)\b`),
	regexp.MustCompile(`(?i)^(?:bye|goodbye|see\s+ya|later)\b`),
	regexp.MustCompile(`(?i)^who\s+are\s+you\b`),
	regexp.MustCompile(`(?i)^tell\s+me\s+about\s+(?:yourself|you)\b`),
}

var greetingPunct = regexp.MustCompile(`[?.!,]+`)

func isChitchat(message string) bool {
	cleaned := strings.TrimSpace(greetingPunct.ReplaceAllString(message, ""))
	for _, re := range greetingPatterns {
		if re.MatchString(cleaned) {
			return true
		}
	}
	return false
}

type PodcastStore interface {
	GetBySlug(ctx context.Context, slug string) (*model.Podcast, error)
}

type GuestStore interface {
	ListByPodcast(ctx context.Context, podcastID string) ([]*model.Guest, error)
	ListThemeStrengths(ctx context.Context, podcastID string) ([]*model.GuestThemeStrength, error)
}

type EpisodeStore interface {
	ListByPodcast(ctx context.Context, podcastID string) ([]*model.Episode, error)
}

type ThemeStore interface {
	ListByPodcast(ctx context.Context, podcastID string) ([]*model.Theme, error)
}

type ChunkStore interface {
	Search(ctx context.Context, embedding []float32, filter repo.SearchFilter) ([]*model.ScoredChunk, error)
	ListRecent(ctx context.Context, podcastID string, segmentTypes []string, limit int) ([]*model.Chunk, error)
}

type UsageLogStore interface {
	Add(ctx context.Context, item *model.UsageLog) error
}

type ChatRequest struct {
	Podcast   string `json:"podcast"`
	Message   string `json:"message"`
	CallerKey string `json:"-"`
}

// Reference points a reader at the transcript evidence behind an answer.
type Reference struct {
	ChunkID     string  `json:"chunk_id"`
	GuestName   string  `json:"guest_name,omitempty"`
	Episode     string  `json:"episode,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	TimeSeconds int     `json:"time_seconds,omitempty"`
	URL         string  `json:"url,omitempty"`
	Similarity  float64 `json:"similarity"`
}

type ChatResponse struct {
	ID            string      `json:"id"`
	Role          string      `json:"role"`
	Type          string      `json:"type"`
	Answer        string      `json:"answer"`
	DirectAnswer  string      `json:"direct_answer,omitempty"`
	Consensus     []string    `json:"consensus,omitempty"`
	Disagreement  []string    `json:"disagreement,omitempty"`
	MinorityViews []string    `json:"minority_views,omitempty"`
	Themes        []string    `json:"themes,omitempty"`
	Guests        []string    `json:"guests,omitempty"`
	References    []Reference `json:"references"`
	Credits       Credits     `json:"credits"`
}

type answerShape struct {
	DirectAnswer  string   `json:"direct_answer"`
	Consensus     []string `json:"consensus"`
	Disagreement  []string `json:"disagreement"`
	MinorityViews []string `json:"minority_views"`
}

type ChatService struct {
	cfg      config.ChatConfig
	guard    *Guard
	gen      ai.IGenerator
	embedder ai.IEmbedder
	podcasts PodcastStore
	guests   GuestStore
	episodes EpisodeStore
	themes   ThemeStore
	chunks   ChunkStore
	logs     UsageLogStore
}

func NewChatService(
	cfg config.ChatConfig,
	guard *Guard,
	gen ai.IGenerator,
	embedder ai.IEmbedder,
	podcasts PodcastStore,
	guests GuestStore,
	episodes EpisodeStore,
	themes ThemeStore,
	chunks ChunkStore,
	logs UsageLogStore,
) *ChatService {
	return &ChatService{
		cfg:      cfg,
		guard:    guard,
		gen:      gen,
		embedder: embedder,
		podcasts: podcasts,
		guests:   guests,
		episodes: episodes,
		themes:   themes,
		chunks:   chunks,
		logs:     logs,
	}
}

// Ask answers a question strictly from transcript evidence. The flow is
// validate, budget check, theme match, ambiguity gate, guest ranking,
// retrieve, evidence gate, generate. Only requests that reach generation
// consume a credit.
func (s *ChatService) Ask(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	message := strings.Join(strings.Fields(req.Message), " ")
	if message == "" || len(message) > s.cfg.MaxInputChars {
		s.logOutcome(ctx, req, nil, model.UsageStatusRejected, "invalid_input")
		return nil, errs.ErrInvalidInput
	}
	if s.isBlocked(message) {
		s.logOutcome(ctx, req, nil, model.UsageStatusRejected, "blocked_phrase")
		return nil, errs.ErrBlockedPhrase
	}

	adm, err := s.guard.Check(ctx, req.CallerKey, req.Podcast, message)
	if err != nil {
		s.logOutcome(ctx, req, nil, model.UsageStatusRejected, guardErrorCode(err))
		if adm != nil {
			return nil, &RejectionError{Err: err, Credits: adm.Credits}
		}
		return nil, err
	}

	if isChitchat(message) {
		s.logOutcome(ctx, req, nil, model.UsageStatusClarification, "greeting")
		return s.greet(adm.Credits), nil
	}

	podcast, err := s.podcasts.GetBySlug(ctx, req.Podcast)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, message, "RETRIEVAL_QUERY")
	if err != nil {
		s.logOutcome(ctx, req, nil, model.UsageStatusFailed, "embedding_unavailable")
		return nil, errs.ErrEmbeddingUnavailable
	}

	themes, err := s.themes.ListByPodcast(ctx, podcast.ID)
	if err != nil {
		return nil, err
	}
	matched := intelligence.MatchThemes(embedding, themes, s.cfg.ThemeTopN, s.cfg.ThemeMinScore)
	if amb := intelligence.DetectAmbiguity(matched, s.cfg.AmbiguityThreshold, s.cfg.AmbiguityGap); amb.Ambiguous {
		s.logOutcome(ctx, req, nil, model.UsageStatusClarification, amb.Reason)
		return s.clarify(amb, adm.Credits), nil
	}

	guests, err := s.guests.ListByPodcast(ctx, podcast.ID)
	if err != nil {
		return nil, err
	}
	strengths, err := s.guests.ListThemeStrengths(ctx, podcast.ID)
	if err != nil {
		return nil, err
	}
	ranked := intelligence.SelectGuests(matched, strengths, guests, s.cfg.MaxGuests)

	// Credit is consumed from here on.
	if err := s.guard.Commit(ctx, adm); err != nil {
		return nil, err
	}

	scored, err := s.chunks.Search(ctx, embedding, repo.SearchFilter{
		PodcastID:    podcast.ID,
		SegmentTypes: model.SegmentAllowlist,
		GuestIDs:     guestIDs(ranked),
		ThemeIDs:     themeIDs(matched),
		Limit:        s.cfg.MaxContextChunks,
	})
	if err != nil {
		return nil, err
	}

	best := bestSimilarity(scored)
	if len(scored) == 0 || best < s.cfg.MinSimilarity {
		resp := s.noEvidence(matched, adm.Credits)
		s.logOutcome(ctx, req, &outcomeStats{
			contextChunks:  len(scored),
			bestSimilarity: best,
		}, model.UsageStatusFallback, "insufficient_evidence")
		return resp, nil
	}

	guestNameByID, episodeByID := s.evidenceContext(ctx, podcast.ID)
	refs := buildReferences(scored, guestNameByID, episodeByID)
	prompt := buildChatPrompt(message, matched, ranked, scored, guestNameByID, episodeByID)
	var shape answerShape
	genRes, err := ai.GenerateJSON(ctx, s.gen, prompt, ai.GenOptions{MaxTokens: 2048}, &shape, chatFallbackShape)
	if err != nil {
		s.logOutcome(ctx, req, &outcomeStats{
			contextChunks:  len(scored),
			bestSimilarity: best,
		}, model.UsageStatusFailed, "generation_unavailable")
		return nil, err
	}
	s.guard.AddTokens(ctx, req.CallerKey, genRes.TokensIn+genRes.TokensOut)

	status := model.UsageStatusSuccess
	if genRes.Degraded {
		status = model.UsageStatusFallback
	}
	s.logOutcome(ctx, req, &outcomeStats{
		model:          genRes.Provider,
		contextChunks:  len(scored),
		bestSimilarity: best,
		tokensIn:       genRes.TokensIn,
		tokensOut:      genRes.TokensOut,
	}, status, "")

	return &ChatResponse{
		ID:            NewID(),
		Role:          chatRole,
		Type:          ChatAnswerGrounded,
		Answer:        renderAnswer(&shape),
		DirectAnswer:  shape.DirectAnswer,
		Consensus:     shape.Consensus,
		Disagreement:  shape.Disagreement,
		MinorityViews: shape.MinorityViews,
		Themes:        themeLabels(matched),
		Guests:        guestNames(ranked),
		References:    refs,
		Credits:       adm.Credits,
	}, nil
}

func (s *ChatService) isBlocked(message string) bool {
	lowered := strings.ToLower(message)
	for _, phrase := range s.cfg.BlockedPhrases {
		if phrase != "" && strings.Contains(lowered, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func (s *ChatService) clarify(amb intelligence.Ambiguity, credits Credits) *ChatResponse {
	answer := "I want to make sure I pull the right conversations. Could you narrow your question down?"
	if len(amb.Candidates) > 0 {
		answer = fmt.Sprintf(
			"Your question touches a few different topics (%s). Which one should I focus on?",
			strings.Join(candidateLabels(amb), ", "))
	}
	return &ChatResponse{
		ID:         NewID(),
		Role:       chatRole,
		Type:       ChatAnswerClarification,
		Answer:     answer,
		Themes:     amb.Candidates,
		References: []Reference{},
		Credits:    credits,
	}
}

// candidateLabels renders each competing theme with its match score, so
// the clarification shows the reader how close the call was.
func candidateLabels(amb intelligence.Ambiguity) []string {
	labels := make([]string, 0, len(amb.Candidates))
	for i, label := range amb.Candidates {
		if i < len(amb.Scores) {
			labels = append(labels, fmt.Sprintf("%s: %.2f", label, amb.Scores[i]))
			continue
		}
		labels = append(labels, label)
	}
	return labels
}

func (s *ChatService) greet(credits Credits) *ChatResponse {
	return &ChatResponse{
		ID:         NewID(),
		Role:       chatRole,
		Type:       ChatAnswerClarification,
		Answer:     "I'm doing great! I've absorbed hundreds of conversations with founders, operators, and product leaders, so I'm ready whenever you are. What's on your mind?",
		References: []Reference{},
		Credits:    credits,
	}
}

func (s *ChatService) noEvidence(matched []*model.ActiveTheme, credits Credits) *ChatResponse {
	return &ChatResponse{
		ID:         NewID(),
		Role:       chatRole,
		Type:       ChatAnswerNoEvidence,
		Answer:     "The guests haven't covered that in enough depth for me to give you a grounded answer. Try asking about one of the show's recurring topics.",
		Themes:     themeLabels(matched),
		References: []Reference{},
		Credits:    credits,
	}
}

// evidenceContext resolves the display names behind chunk foreign keys.
// The maps feed both the prompt context block and the reference list, so
// they are built once per request.
func (s *ChatService) evidenceContext(ctx context.Context, podcastID string) (map[string]string, map[string]*model.Episode) {
	guestName := map[string]string{}
	if guests, err := s.guests.ListByPodcast(ctx, podcastID); err == nil {
		for _, g := range guests {
			guestName[g.ID] = g.FullName
		}
	}
	episodeByID := map[string]*model.Episode{}
	if episodes, err := s.episodes.ListByPodcast(ctx, podcastID); err == nil {
		for _, ep := range episodes {
			episodeByID[ep.ID] = ep
		}
	}
	return guestName, episodeByID
}

func buildReferences(scored []*model.ScoredChunk, guestName map[string]string, episodeByID map[string]*model.Episode) []Reference {
	refs := make([]Reference, 0, len(scored))
	for _, chunk := range scored {
		ref := Reference{
			ChunkID:     chunk.ChunkID,
			GuestName:   guestName[chunk.GuestID],
			Timestamp:   chunk.TimeStamp,
			TimeSeconds: chunk.TimeSeconds,
			Similarity:  chunk.Similarity,
		}
		if ep, ok := episodeByID[chunk.EpisodeID]; ok {
			ref.Episode = ep.Title
			ref.URL = DeepLink(ep.MediaURL, chunk.TimeSeconds)
		}
		refs = append(refs, ref)
	}
	return refs
}

type outcomeStats struct {
	model          string
	contextChunks  int
	bestSimilarity float64
	tokensIn       int
	tokensOut      int
}

func (s *ChatService) logOutcome(ctx context.Context, req *ChatRequest, stats *outcomeStats, status, errorCode string) {
	if s.logs == nil {
		return
	}
	entry := &model.UsageLog{
		CallerKey:    req.CallerKey,
		PodcastSlug:  req.Podcast,
		RequestChars: len(req.Message),
		InputExcerpt: sanitizeExcerpt(req.Message),
		Status:       status,
		ErrorCode:    errorCode,
		Ctime:        time.Now().Unix(),
	}
	if stats != nil {
		entry.Model = stats.model
		entry.ContextChunks = stats.contextChunks
		entry.BestSimilarity = stats.bestSimilarity
		entry.TokensIn = stats.tokensIn
		entry.TokensOut = stats.tokensOut
	}
	if err := s.logs.Add(ctx, entry); err != nil {
		logutil.GetLogger(ctx).Warn("write usage log failed", zap.Error(err))
	}
}

// sanitizeExcerpt escapes markup in user text before it is persisted, so
// a log viewer rendering excerpts cannot be handed stored script.
func sanitizeExcerpt(message string) string {
	message = strings.TrimSpace(message)
	if len(message) > logExcerptChars {
		message = message[:logExcerptChars]
	}
	return html.EscapeString(message)
}

// DeepLink appends a start-time parameter to an episode URL so a
// reference opens at the quoted moment.
func DeepLink(mediaURL string, seconds int) string {
	if mediaURL == "" {
		return ""
	}
	if seconds <= 0 {
		return mediaURL
	}
	sep := "?"
	if strings.Contains(mediaURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%st=%d", mediaURL, sep, seconds)
}

func buildChatPrompt(
	message string,
	matched []*model.ActiveTheme,
	ranked []*model.GuestScore,
	scored []*model.ScoredChunk,
	guestName map[string]string,
	episodeByID map[string]*model.Episode,
) string {
	var sb strings.Builder
	sb.WriteString("You answer questions about a podcast using ONLY the transcript excerpts below.\n")
	sb.WriteString("Never invent facts. If the excerpts conflict, say so instead of papering over it.\n\n")
	sb.WriteString("Return a single JSON object with exactly these fields:\n")
	sb.WriteString(`{"direct_answer": string, "consensus": string[], "disagreement": string[], "minority_views": string[]}` + "\n")
	sb.WriteString("- direct_answer: two or three sentences answering the question.\n")
	sb.WriteString("- consensus: points most guests agree on. Empty array if none.\n")
	sb.WriteString("- disagreement: points where guests openly differ. Empty array if none.\n")
	sb.WriteString("- minority_views: positions held by a single guest. Empty array if none.\n\n")

	if len(matched) > 0 {
		sb.WriteString("Topics in play: " + strings.Join(themeLabels(matched), ", ") + "\n")
	}
	if len(ranked) > 0 {
		sb.WriteString("Relevant guests: " + strings.Join(guestNames(ranked), ", ") + "\n")
	}
	sb.WriteString("\nEXCERPTS (cite by chunk id):\n")
	for _, chunk := range scored {
		episodeTitle := ""
		if ep, ok := episodeByID[chunk.EpisodeID]; ok {
			episodeTitle = ep.Title
		}
		fmt.Fprintf(&sb, "[%s] guest=%s episode=%s time=%s\n%s\n\n",
			chunk.ChunkID, orNA(guestName[chunk.GuestID]), orNA(episodeTitle),
			orNA(chunk.TimeStamp), chunk.Text)
	}
	sb.WriteString("QUESTION: " + message + "\n")
	return sb.String()
}

func renderAnswer(shape *answerShape) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(shape.DirectAnswer))
	writeSection := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString("\n\n**" + title + "**\n")
		for _, item := range items {
			sb.WriteString("- " + strings.TrimSpace(item) + "\n")
		}
	}
	writeSection("Where guests agree", shape.Consensus)
	writeSection("Where guests disagree", shape.Disagreement)
	writeSection("Minority views", shape.MinorityViews)
	return strings.TrimSpace(sb.String())
}

func guardErrorCode(err error) string {
	switch err {
	case errs.ErrRepeatedInput:
		return "repeated_input"
	case errs.ErrRateLimited:
		return "rate_limited"
	}
	return "rejected"
}

func bestSimilarity(scored []*model.ScoredChunk) float64 {
	best := 0.0
	for _, chunk := range scored {
		if chunk.Similarity > best {
			best = chunk.Similarity
		}
	}
	return best
}

func guestIDs(ranked []*model.GuestScore) []string {
	ids := make([]string, 0, len(ranked))
	for _, g := range ranked {
		ids = append(ids, g.GuestID)
	}
	return ids
}

func guestNames(ranked []*model.GuestScore) []string {
	names := make([]string, 0, len(ranked))
	for _, g := range ranked {
		if g.GuestName != "" {
			names = append(names, g.GuestName)
		}
	}
	return names
}

func themeIDs(matched []*model.ActiveTheme) []string {
	ids := make([]string, 0, len(matched))
	for _, t := range matched {
		ids = append(ids, t.ThemeID)
	}
	return ids
}

func themeLabels(matched []*model.ActiveTheme) []string {
	labels := make([]string, 0, len(matched))
	for _, t := range matched {
		labels = append(labels, t.Label)
	}
	return labels
}

func orNA(value string) string {
	if value == "" {
		return "na"
	}
	return value
}
