package model

import (
	"strings"
	"time"

	appErr "github.com/xxxsen/docsearch/internal/pkg/errors"
)

type SearchMode string

const (
	SearchModeLexical  SearchMode = "lexical"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeHybrid   SearchMode = "hybrid"
)

const (
	DefaultPage           = 1
	DefaultPageSize       = 20
	MaxPageSize           = 100
	DefaultSemanticWeight = 0.5
	MaxQueryChars         = 1000
)

func (m SearchMode) Valid() bool {
	switch m {
	case SearchModeLexical, SearchModeSemantic, SearchModeHybrid:
		return true
	}
	return false
}

type SearchFilters struct {
	Sources       []string   `json:"sources,omitempty"`
	PublishedFrom *time.Time `json:"published_from,omitempty"`
	PublishedTo   *time.Time `json:"published_to,omitempty"`
	IngestedFrom  *time.Time `json:"ingested_from,omitempty"`
	IngestedTo    *time.Time `json:"ingested_to,omitempty"`
	HasEmbedding  *bool      `json:"has_embedding,omitempty"`
	Journals      []string   `json:"journals,omitempty"`
	Keywords      []string   `json:"keywords,omitempty"`
	MinScore      *float64   `json:"min_score,omitempty"`
	MaxScore      *float64   `json:"max_score,omitempty"`
	HasScore      *bool      `json:"has_score,omitempty"`
}

func (f *SearchFilters) Validate() error {
	for _, v := range []*float64{f.MinScore, f.MaxScore} {
		if v != nil && (*v < 0 || *v > 10) {
			return appErr.ErrInvalid
		}
	}
	if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
		return appErr.ErrInvalid
	}
	if f.PublishedFrom != nil && f.PublishedTo != nil && f.PublishedFrom.After(*f.PublishedTo) {
		return appErr.ErrInvalid
	}
	if f.IngestedFrom != nil && f.IngestedTo != nil && f.IngestedFrom.After(*f.IngestedTo) {
		return appErr.ErrInvalid
	}
	return nil
}

type SearchRequest struct {
	Query             string        `json:"query"`
	Mode              SearchMode    `json:"mode"`
	Filters           SearchFilters `json:"filters"`
	Page              int           `json:"page"`
	PageSize          int           `json:"page_size"`
	SemanticWeight    *float64      `json:"semantic_weight,omitempty"`
	MinSimilarity     *float64      `json:"min_similarity,omitempty"`
	IncludeHighlights bool          `json:"include_highlights"`
}

// Normalize fills the zero values with defaults. It does not validate.
func (r *SearchRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	if r.Mode == "" {
		r.Mode = SearchModeHybrid
	}
	if r.Page == 0 {
		r.Page = DefaultPage
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
}

func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return appErr.ErrInvalid
	}
	if !r.Mode.Valid() {
		return appErr.ErrInvalid
	}
	if r.Page < 1 || r.PageSize < 1 || r.PageSize > MaxPageSize {
		return appErr.ErrInvalid
	}
	if r.SemanticWeight != nil && (*r.SemanticWeight < 0 || *r.SemanticWeight > 1) {
		return appErr.ErrInvalid
	}
	if r.MinSimilarity != nil && (*r.MinSimilarity < 0 || *r.MinSimilarity > 1) {
		return appErr.ErrInvalid
	}
	return r.Filters.Validate()
}

func (r *SearchRequest) Weight() float64 {
	if r.SemanticWeight == nil {
		return DefaultSemanticWeight
	}
	return *r.SemanticWeight
}

type Highlight struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

type RankedResult struct {
	DocumentID    string      `json:"document_id"`
	LexicalScore  *float64    `json:"lexical_score"`
	SemanticScore *float64    `json:"semantic_score"`
	FusedScore    *float64    `json:"fused_score"`
	Highlights    []Highlight `json:"highlights,omitempty"`
}

type SearchResponse struct {
	Items        []RankedResult `json:"items"`
	Total        int            `json:"total"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	Pages        int            `json:"pages"`
	Query        string         `json:"query"`
	Mode         SearchMode     `json:"mode"`
	SearchTimeMs int64          `json:"search_time_ms"`
}

// PageCount returns ceil(total/pageSize), 0 when there is nothing to page.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// PageOffset converts a 1-based page into a row offset.
func PageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
