package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/podsage/internal/reportstore"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"go.uber.org/zap"
)

// ReportService renders an extraction run summary to HTML and files it in
// the report store.
type ReportService struct {
	store reportstore.Store
	md    goldmark.Markdown
	logs  *usageSummarySource
}

// usageSummarySource is optional; when present the report includes a
// 24-hour usage recap alongside the run numbers.
type usageSummarySource struct {
	CountByStatus func(ctx context.Context, since int64) (map[string]int, error)
	SumTokens     func(ctx context.Context, since int64) (int, int, error)
}

func NewReportService(store reportstore.Store) *ReportService {
	return &ReportService{
		store: store,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// WithUsageSummary attaches a usage recap source, typically backed by
// repo.UsageLogRepo.
func (s *ReportService) WithUsageSummary(
	countByStatus func(ctx context.Context, since int64) (map[string]int, error),
	sumTokens func(ctx context.Context, since int64) (int, int, error),
) *ReportService {
	s.logs = &usageSummarySource{CountByStatus: countByStatus, SumTokens: sumTokens}
	return s
}

// Publish writes the run report. Failures are logged, a missing report
// never fails the run that produced it.
func (s *ReportService) Publish(ctx context.Context, result *ExtractResult) string {
	if s.store == nil || result == nil {
		return ""
	}
	markdown := s.renderMarkdown(ctx, result)
	var out bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &out); err != nil {
		logutil.GetLogger(ctx).Warn("render report failed", zap.Error(err))
		return ""
	}
	stamp := time.Unix(result.FinishedAt, 0).UTC().Format("20060102-150405")
	key := fmt.Sprintf("%s-%s.html", result.Podcast, stamp)
	if err := s.store.Save(ctx, key, wrapHTML(result.Podcast, out.String())); err != nil {
		logutil.GetLogger(ctx).Warn("save report failed",
			zap.String("key", key), zap.Error(err))
		return ""
	}
	if raw, err := json.MarshalIndent(result, "", "  "); err == nil {
		jsonKey := fmt.Sprintf("%s-%s.json", result.Podcast, stamp)
		if err := s.store.Save(ctx, jsonKey, raw); err != nil {
			logutil.GetLogger(ctx).Warn("save report data failed",
				zap.String("key", jsonKey), zap.Error(err))
		}
	}
	url := s.store.URL(key)
	logutil.GetLogger(ctx).Info("extraction report published",
		zap.String("podcast", result.Podcast), zap.String("url", url))
	return url
}

func (s *ReportService) renderMarkdown(ctx context.Context, result *ExtractResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Extraction run: %s\n\n", result.Podcast)
	fmt.Fprintf(&sb, "Finished %s, took %ds.\n\n",
		time.Unix(result.FinishedAt, 0).UTC().Format(time.RFC3339),
		result.FinishedAt-result.StartedAt)

	sb.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Model | %s |\n", result.Model)
	fmt.Fprintf(&sb, "| Sampled chunks | %d |\n", result.SampledChunks)
	fmt.Fprintf(&sb, "| Concepts (raw / kept) | %d / %d |\n", result.RawConcepts, result.Concepts)
	fmt.Fprintf(&sb, "| Insights (raw / kept) | %d / %d |\n", result.RawInsights, result.Insights)
	fmt.Fprintf(&sb, "| Tokens in / out | %d / %d |\n", result.TokensIn, result.TokensOut)

	if len(result.SignalBreakdown) > 0 {
		sb.WriteString("\n## Signal breakdown\n\n")
		for _, signal := range []string{"high_consensus", "split_view", "emerging"} {
			fmt.Fprintf(&sb, "- %s: %d\n", signal, result.SignalBreakdown[signal])
		}
	}

	if s.logs != nil {
		since := time.Now().Add(-24 * time.Hour).Unix()
		if counts, err := s.logs.CountByStatus(ctx, since); err == nil && len(counts) > 0 {
			sb.WriteString("\n## Last 24h usage\n\n")
			for status, count := range counts {
				fmt.Fprintf(&sb, "- %s: %d\n", status, count)
			}
		}
		if tokensIn, tokensOut, err := s.logs.SumTokens(ctx, since); err == nil {
			fmt.Fprintf(&sb, "\nTokens last 24h: %d in / %d out\n", tokensIn, tokensOut)
		}
	}
	return sb.String()
}

func wrapHTML(title, body string) []byte {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>Extraction run: %s</title>\n", title)
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}
