package rag

import (
	"fmt"
	"slices"
	"sort"
)

type contribution struct {
	rank     int
	provider Provider
	category string
}

type fusionEntry struct {
	chunk         Chunk
	contributions []contribution
	vectorScore   float64
	forced        bool
}

// Fuse merges ranked lists with reciprocal rank fusion, then applies the category-forced boost and
// the strongest applicable domain boost. The result holds one entry per chunk id, sorted by fused
// score with ties broken by best source rank and then chunk id.
func Fuse(lists [][]SearchResult, q Query, p Params) []FusedResult {
	entries := make(map[string]*fusionEntry)
	for _, list := range lists {
		for _, r := range list {
			e, ok := entries[r.Chunk.ID]
			if !ok {
				e = &fusionEntry{chunk: r.Chunk}
				entries[r.Chunk.ID] = e
			}
			e.contributions = append(e.contributions, contribution{rank: r.Rank, provider: r.Provider, category: r.Category})
			if r.VectorScore > e.vectorScore {
				e.vectorScore = r.VectorScore
			}
			if r.Forced() {
				e.forced = true
			}
		}
	}

	activeRules := matchingDomainRules(q.Original, p.DomainBoosts)

	fused := make([]FusedResult, 0, len(entries))
	bestRank := make(map[string]int, len(entries))
	for id, e := range entries {
		// Sum in a canonical order so the float result does not depend on list order.
		sort.Slice(e.contributions, func(i, j int) bool {
			a, b := e.contributions[i], e.contributions[j]
			if a.rank != b.rank {
				return a.rank < b.rank
			}
			if a.provider != b.provider {
				return a.provider < b.provider
			}
			return a.category < b.category
		})

		var rrf float64
		for _, c := range e.contributions {
			rrf += 1.0 / (p.RRFK + float64(c.rank))
		}

		score := rrf
		var boosts []Boost
		if e.forced && p.CategoryBoost > 1 {
			score *= p.CategoryBoost
			boosts = append(boosts, Boost{Name: "category_forced", Multiplier: p.CategoryBoost})
		}
		if rule, ok := strongestDomainBoost(e.chunk, activeRules); ok {
			score *= rule.Multiplier
			boosts = append(boosts, Boost{Name: fmt.Sprintf("domain:%s", rule.Name), Multiplier: rule.Multiplier})
		}

		fused = append(fused, FusedResult{
			Chunk:         e.chunk,
			RRFScore:      rrf,
			FusedScore:    score,
			VectorScore:   e.vectorScore,
			Contributions: len(e.contributions),
			Forced:        e.forced,
			Boosts:        boosts,
			Score:         score,
		})
		bestRank[id] = e.contributions[0].rank
	}

	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if bestRank[a.Chunk.ID] != bestRank[b.Chunk.ID] {
			return bestRank[a.Chunk.ID] < bestRank[b.Chunk.ID]
		}
		return a.Chunk.ID < b.Chunk.ID
	})
	for i := range fused {
		fused[i].OriginalRank = i + 1
	}
	return fused
}

// matchingDomainRules returns the rules whose query patterns match the original query.
func matchingDomainRules(query string, rules []DomainBoostRule) []DomainBoostRule {
	var active []DomainBoostRule
	for _, rule := range rules {
		for _, re := range rule.QueryPatterns {
			if re.MatchString(query) {
				active = append(active, rule)
				break
			}
		}
	}
	return active
}

// strongestDomainBoost picks the largest multiplier among active rules that match the chunk.
// Multipliers never stack.
func strongestDomainBoost(chunk Chunk, active []DomainBoostRule) (DomainBoostRule, bool) {
	var best DomainBoostRule
	found := false
	for _, rule := range active {
		if !chunkMatchesRule(chunk, rule) {
			continue
		}
		if !found || rule.Multiplier > best.Multiplier {
			best = rule
			found = true
		}
	}
	return best, found
}

func chunkMatchesRule(chunk Chunk, rule DomainBoostRule) bool {
	if len(rule.ChunkPatterns) == 0 && len(rule.Categories) == 0 {
		return true
	}
	if slices.Contains(rule.Categories, chunk.Category) {
		return true
	}
	for _, re := range rule.ChunkPatterns {
		if re.MatchString(chunk.Text) || re.MatchString(chunk.Title) {
			return true
		}
	}
	return false
}
