package model

import "time"

// EmbeddingDimension is the fixed length of every stored and query embedding.
const EmbeddingDimension = 1536

const (
	SourceArxiv           = "arxiv"
	SourcePubmed          = "pubmed"
	SourceCrossref        = "crossref"
	SourceSemanticScholar = "semantic_scholar"
	SourceManual          = "manual"
)

type Document struct {
	ID              string     `json:"id"`
	OrganizationID  *string    `json:"organization_id,omitempty"`
	Title           string     `json:"title"`
	Abstract        string     `json:"abstract,omitempty"`
	Source          string     `json:"source"`
	Journal         string     `json:"journal,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	CitationCount   int        `json:"citation_count"`
	Embedding       []float32  `json:"-"`
	HasEmbedding    bool       `json:"has_embedding"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsGlobal reports whether the document belongs to the shared catalog.
func (d *Document) IsGlobal() bool {
	return d.OrganizationID == nil
}
