package ai

import (
	"context"
	"encoding/json"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/podsage/internal/pkg/errs"
	"go.uber.org/zap"
)

// JSONResult is the outcome of a structured generation call. Degraded is
// set when the model output never became parseable JSON and the caller's
// fallback value was used instead.
type JSONResult struct {
	Provider  string
	TokensIn  int
	TokensOut int
	Degraded  bool
}

// GenerateJSON runs prompt through gen and decodes the output into dst.
// Parse failures are handled in order: repair the raw text, then ask the
// model once at temperature zero to reformat its own output, then fall
// back to decoding fallbackJSON. A parse failure is never returned as an
// error; only provider unavailability is.
func GenerateJSON(ctx context.Context, gen IGenerator, prompt string, opts GenOptions, dst interface{}, fallbackJSON string) (*JSONResult, error) {
	opts.JSONOutput = true
	res, err := gen.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, errs.ErrGenerationUnavailable
	}
	out := &JSONResult{
		Provider:  res.Provider,
		TokensIn:  EstimateTokens(prompt),
		TokensOut: EstimateTokens(res.Text),
	}
	text := RepairJSON(res.Text)
	if json.Unmarshal([]byte(text), dst) == nil {
		return out, nil
	}

	logutil.GetLogger(ctx).Warn("model output not valid json, asking for reformat",
		zap.String("provider", res.Provider), zap.Int("len", len(res.Text)))
	zero := float32(0)
	retry, err := gen.Generate(ctx, buildReformatPrompt(res.Text), GenOptions{
		Temperature: &zero,
		MaxTokens:   opts.MaxTokens,
		JSONOutput:  true,
	})
	if err == nil {
		out.TokensIn += EstimateTokens(res.Text)
		out.TokensOut += EstimateTokens(retry.Text)
		text = RepairJSON(retry.Text)
		if json.Unmarshal([]byte(text), dst) == nil {
			return out, nil
		}
	}

	logutil.GetLogger(ctx).Error("model output unrecoverable, serving fallback shape",
		zap.String("provider", res.Provider))
	out.Degraded = true
	if err := json.Unmarshal([]byte(fallbackJSON), dst); err != nil {
		return nil, err
	}
	return out, nil
}

func buildReformatPrompt(raw string) string {
	return "The following text should be a single valid JSON object but is malformed. " +
		"Output the same content as strictly valid JSON. Output only the JSON object, nothing else.\n\n" + raw
}

// EstimateTokens approximates token usage for budgeting without a
// tokenizer dependency. Roughly four characters per token for English.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
