package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/podsage/internal/pkg/errs"
)

type scriptedGenerator struct {
	outputs []string
	calls   int
}

func (s *scriptedGenerator) Generate(ctx context.Context, prompt string, opts GenOptions) (*GenResult, error) {
	if s.calls >= len(s.outputs) {
		return nil, errors.New("no more outputs")
	}
	text := s.outputs[s.calls]
	s.calls++
	return &GenResult{Text: text, Provider: "scripted"}, nil
}

func TestGenerateJSONFirstTry(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{`{"answer": "yes"}`}}
	var dst struct {
		Answer string `json:"answer"`
	}
	res, err := GenerateJSON(context.Background(), gen, "q", GenOptions{}, &dst, `{}`)
	require.NoError(t, err)
	assert.Equal(t, "yes", dst.Answer)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerateJSONRepairsWithoutRetry(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"```json\n{\"answer\": \"a\nb\"}\n```"}}
	var dst struct {
		Answer string `json:"answer"`
	}
	res, err := GenerateJSON(context.Background(), gen, "q", GenOptions{}, &dst, `{}`)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", dst.Answer)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerateJSONReformatRetry(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		`{"answer": [unquoted}`,
		`{"answer": "fixed"}`,
	}}
	var dst struct {
		Answer string `json:"answer"`
	}
	res, err := GenerateJSON(context.Background(), gen, "q", GenOptions{}, &dst, `{}`)
	require.NoError(t, err)
	assert.Equal(t, "fixed", dst.Answer)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, gen.calls)
}

func TestGenerateJSONDegradedFallback(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		`{"answer": [unquoted}`,
		`still not json {`,
	}}
	var dst struct {
		Answer string `json:"answer"`
		Items  []int  `json:"items"`
	}
	res, err := GenerateJSON(context.Background(), gen, "q", GenOptions{}, &dst, `{"answer": "", "items": []}`)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, "", dst.Answer)
	assert.NotNil(t, dst.Items)
}

func TestGenerateJSONUnavailable(t *testing.T) {
	gen := &scriptedGenerator{outputs: nil}
	var dst struct{}
	_, err := GenerateJSON(context.Background(), gen, "q", GenOptions{}, &dst, `{}`)
	assert.ErrorIs(t, err, errs.ErrGenerationUnavailable)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 3, EstimateTokens("twelve chars"))
}
