package ai

import (
	"fmt"
)

// ChainEntry is one provider in an ordered fallback chain, as it appears
// in configuration.
type ChainEntry struct {
	Provider string
	Model    string
	Data     interface{}
}

// BuildGenerator turns an ordered config list into a fallback generator
// chain. The first entry is the primary.
func BuildGenerator(entries []ChainEntry) (IGenerator, error) {
	items := make([]GeneratorEntry, 0, len(entries))
	for _, ent := range entries {
		p, err := NewProvider(ent.Provider, ent.Data)
		if err != nil {
			return nil, fmt.Errorf("build generator %s: %w", ent.Provider, err)
		}
		if ent.Model == "" {
			return nil, fmt.Errorf("build generator %s: model is required", ent.Provider)
		}
		items = append(items, GeneratorEntry{
			Name:      ent.Provider + ":" + ent.Model,
			Generator: NewGenerator(p, ent.Model),
		})
	}
	gen := NewGroupGenerator(items)
	if gen == nil {
		return nil, fmt.Errorf("no generation providers configured")
	}
	return gen, nil
}

// BuildEmbedder turns an ordered config list into a fallback embedder chain.
func BuildEmbedder(entries []ChainEntry) (IEmbedder, error) {
	items := make([]EmbedderEntry, 0, len(entries))
	for _, ent := range entries {
		p, err := NewEmbedProvider(ent.Provider, ent.Data)
		if err != nil {
			return nil, fmt.Errorf("build embedder %s: %w", ent.Provider, err)
		}
		if ent.Model == "" {
			return nil, fmt.Errorf("build embedder %s: model is required", ent.Provider)
		}
		items = append(items, EmbedderEntry{
			Name:     ent.Provider + ":" + ent.Model,
			Embedder: NewEmbedder(p, ent.Model),
		})
	}
	emb := NewGroupEmbedder(items)
	if emb == nil {
		return nil, fmt.Errorf("no embedding providers configured")
	}
	return emb, nil
}
