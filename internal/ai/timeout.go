package ai

import (
	"context"
	"time"
)

type timeoutGenerator struct {
	inner IGenerator
	d     time.Duration
}

// WithTimeout bounds each provider call. A fallback chain gets the bound
// applied per entry, so a primary that hangs until its deadline still
// leaves the fallbacks a full budget of their own.
func WithTimeout(inner IGenerator, d time.Duration) IGenerator {
	if d <= 0 {
		return inner
	}
	if g, ok := inner.(*groupGenerator); ok {
		items := make([]GeneratorEntry, len(g.items))
		for i, item := range g.items {
			if item.Generator != nil {
				item.Generator = &timeoutGenerator{inner: item.Generator, d: d}
			}
			items[i] = item
		}
		return &groupGenerator{items: items}
	}
	return &timeoutGenerator{inner: inner, d: d}
}

func (g *timeoutGenerator) Generate(ctx context.Context, prompt string, opts GenOptions) (*GenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.d)
	defer cancel()
	return g.inner.Generate(ctx, prompt, opts)
}

type timeoutEmbedder struct {
	inner IEmbedder
	d     time.Duration
}

// WithEmbedTimeout mirrors WithTimeout for embedders.
func WithEmbedTimeout(inner IEmbedder, d time.Duration) IEmbedder {
	if d <= 0 {
		return inner
	}
	if g, ok := inner.(*groupEmbedder); ok {
		items := make([]EmbedderEntry, len(g.items))
		for i, item := range g.items {
			if item.Embedder != nil {
				item.Embedder = &timeoutEmbedder{inner: item.Embedder, d: d}
			}
			items[i] = item
		}
		return &groupEmbedder{items: items}
	}
	return &timeoutEmbedder{inner: inner, d: d}
}

func (e *timeoutEmbedder) Embed(ctx context.Context, input string, taskType string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.d)
	defer cancel()
	return e.inner.Embed(ctx, input, taskType)
}

func (e *timeoutEmbedder) ModelName() string {
	return e.inner.ModelName()
}
