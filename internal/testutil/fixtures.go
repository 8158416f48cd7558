package testutil

import (
	"time"

	"github.com/xxxsen/docsearch/internal/model"
)

// Vector returns a full-dimension embedding whose leading components are head
// and the rest zero.
func Vector(head ...float32) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	copy(v, head)
	return v
}

func StrPtr(s string) *string {
	return &s
}

// Doc builds a global document created at base + age minutes.
func Doc(id, title string, ageMinutes int) *model.Document {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &model.Document{
		ID:        id,
		Title:     title,
		Source:    model.SourceArxiv,
		CreatedAt: base.Add(time.Duration(ageMinutes) * time.Minute),
	}
}

// GenomicsCorpus is the three-document fixture used across ranking tests:
// a strong title match, a weaker one, and an unrelated document. Semantic
// order is deliberately the reverse of lexical order.
func GenomicsCorpus() []*model.Document {
	a := Doc("doc-a", "Deep Learning for Genomics", 1)
	a.Embedding = Vector(0.2, 1)
	b := Doc("doc-b", "Genomics review", 2)
	b.Embedding = Vector(0.6, 1)
	c := Doc("doc-c", "Ocean tides", 3)
	c.Embedding = Vector(1, 0)
	return []*model.Document{a, b, c}
}

// GenomicsQueryVector is closest to doc-c, then doc-b, then doc-a.
func GenomicsQueryVector() []float32 {
	return Vector(1, 0.3)
}

const GenomicsQuery = "genomics deep learning"
