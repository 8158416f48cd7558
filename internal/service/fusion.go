package service

import (
	"sort"

	"github.com/xxxsen/docsearch/internal/model"
)

const (
	rrfK = 60
	// hybrid legs fetch this many candidates per requested page slot
	fetchMultiplier = 5
	// rank given to a document missing from one leg, on top of fetchLimit
	missingRankOffset = 100
)

func fetchLimit(pageSize int) int {
	return pageSize * fetchMultiplier
}

// fuseRRF merges two ranked lists with reciprocal rank fusion. Lists are in
// rank order; a document absent from a list takes rank fetchLimit+100. The
// result is the union ordered by fused score desc, then document id asc.
// Leg scores and lexical highlights are carried over untouched.
func fuseRRF(lexical, semantic []model.RankedResult, weight float64, limit int) []model.RankedResult {
	missing := limit + missingRankOffset
	type entry struct {
		lexRank int
		semRank int
		lex     *model.RankedResult
		sem     *model.RankedResult
	}
	entries := make(map[string]*entry, len(lexical)+len(semantic))
	get := func(id string) *entry {
		e, ok := entries[id]
		if !ok {
			e = &entry{lexRank: missing, semRank: missing}
			entries[id] = e
		}
		return e
	}
	for i := range lexical {
		e := get(lexical[i].DocumentID)
		e.lexRank = i + 1
		e.lex = &lexical[i]
	}
	for i := range semantic {
		e := get(semantic[i].DocumentID)
		e.semRank = i + 1
		e.sem = &semantic[i]
	}

	out := make([]model.RankedResult, 0, len(entries))
	for id, e := range entries {
		fused := (1-weight)/float64(rrfK+e.lexRank) + weight/float64(rrfK+e.semRank)
		item := model.RankedResult{
			DocumentID: id,
			FusedScore: &fused,
		}
		if e.lex != nil {
			item.LexicalScore = e.lex.LexicalScore
			item.Highlights = e.lex.Highlights
		}
		if e.sem != nil {
			item.SemanticScore = e.sem.SemanticScore
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].FusedScore != *out[j].FusedScore {
			return *out[i].FusedScore > *out[j].FusedScore
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

// paginate slices a fully ranked list. Pages past the end are empty.
func paginate(items []model.RankedResult, page, pageSize int) []model.RankedResult {
	offset := model.PageOffset(page, pageSize)
	if offset >= len(items) {
		return []model.RankedResult{}
	}
	end := offset + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
