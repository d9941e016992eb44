package sampler

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/xxxsen/podsage/internal/model"
)

const noKeywordBucket = "__no_keyword__"

// NormalizeKeyword lowercases a label and collapses whitespace so that
// cosmetic variants land in the same bucket.
func NormalizeKeyword(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// ExtractKeywordLabels pulls display labels out of an episode's keywords
// JSON, which ingestion writes in whatever shape the source feed had:
// a plain array of strings, objects with name/label/topic style keys, or
// nested combinations. Labels are deduplicated case-insensitively and
// capped at ten.
func ExtractKeywordLabels(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	var out []string
	var visit func(node interface{})
	visit = func(node interface{}) {
		if len(out) >= 24 {
			return
		}
		switch v := node.(type) {
		case string:
			if clean := strings.TrimSpace(v); clean != "" {
				out = append(out, clean)
			}
		case []interface{}:
			for _, item := range v {
				visit(item)
			}
		case map[string]interface{}:
			for key, val := range v {
				if isLabelKey(key) {
					if s, ok := val.(string); ok {
						if clean := strings.TrimSpace(s); clean != "" {
							out = append(out, clean)
						}
						continue
					}
				}
				switch val.(type) {
				case []interface{}, map[string]interface{}:
					visit(val)
				}
			}
		}
	}
	visit(value)

	seen := map[string]bool{}
	var normalized []string
	for _, label := range out {
		key := NormalizeKeyword(label)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		normalized = append(normalized, label)
		if len(normalized) >= 10 {
			break
		}
	}
	return normalized
}

func isLabelKey(key string) bool {
	switch key {
	case "name", "label", "keyword", "topic", "value", "title":
		return true
	}
	return false
}

// TakeDiverse picks up to target chunks spread across keyword buckets,
// episodes, and guests, so no single episode or guest dominates the
// evidence fed to extraction. Deterministic for a given input order.
//
// Pass 1 round-robins over keyword buckets (largest first), each time
// taking the chunk whose episode and guest are least represented so far.
// Pass 2 tops up from the leftover rows in input order, skipping rows
// from already saturated episode/guest pairs until the shortfall is
// nearly closed.
func TakeDiverse(input []*model.Chunk, target int, episodeKeywords map[string][]string) []*model.Chunk {
	if len(input) <= target {
		return input
	}

	byKeyword := map[string][]*model.Chunk{}
	var bucketOrder []string
	addToBucket := func(key string, row *model.Chunk) {
		if _, ok := byKeyword[key]; !ok {
			bucketOrder = append(bucketOrder, key)
		}
		byKeyword[key] = append(byKeyword[key], row)
	}
	for _, row := range input {
		labels := episodeKeywords[row.EpisodeID]
		if row.EpisodeID == "" || len(labels) == 0 {
			addToBucket(noKeywordBucket, row)
			continue
		}
		if len(labels) > 3 {
			labels = labels[:3]
		}
		for _, label := range labels {
			key := NormalizeKeyword(label)
			if key == "" {
				key = noKeywordBucket
			}
			addToBucket(key, row)
		}
	}
	sort.SliceStable(bucketOrder, func(i, j int) bool {
		return len(byKeyword[bucketOrder[i]]) > len(byKeyword[bucketOrder[j]])
	})

	out := make([]*model.Chunk, 0, target)
	used := map[string]bool{}
	episodeCounts := map[string]int{}
	guestCounts := map[string]int{}
	pick := func(row *model.Chunk) {
		out = append(out, row)
		used[row.ChunkID] = true
		episodeCounts[row.EpisodeID]++
		guestCounts[row.GuestID]++
	}

	cursor := 0
	roundsWithoutPick := 0
	for len(out) < target && len(bucketOrder) > 0 && roundsWithoutPick < len(bucketOrder)*2 {
		pool := byKeyword[bucketOrder[cursor%len(bucketOrder)]]
		bestIdx := -1
		bestScore := math.MaxInt
		for i, row := range pool {
			if used[row.ChunkID] {
				continue
			}
			score := episodeCounts[row.EpisodeID]*10 + guestCounts[row.GuestID]
			if score < bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx >= 0 {
			pick(pool[bestIdx])
			roundsWithoutPick = 0
		} else {
			roundsWithoutPick++
		}
		cursor++
	}
	if len(out) >= target {
		return out[:target]
	}

	for _, row := range input {
		if used[row.ChunkID] {
			continue
		}
		saturated := episodeCounts[row.EpisodeID] > 4 && guestCounts[row.GuestID] > 3
		if saturated && len(out) < target-10 {
			continue
		}
		pick(row)
		if len(out) >= target {
			break
		}
	}
	return out
}
