// Package filter turns SearchFilters into a fixed set of predicates. Each
// predicate renders itself both as a SQL clause for stores that push
// filtering down and as an in-process match for stores that emulate it.
package filter

import (
	"time"

	"github.com/lib/pq"
	"github.com/xxxsen/docsearch/internal/model"
	"github.com/xxxsen/docsearch/internal/pkg/dbutil"
)

// Candidate is a document together with the latest score summary visible in
// the caller's scope. Score is nil when the document has never been scored.
type Candidate struct {
	Doc   *model.Document
	Score *model.ScoreSummary
}

// Predicate clauses use '?' placeholders against the aliases d (documents)
// and s (latest score summary).
type Predicate interface {
	Clause() (string, []interface{})
	Match(c Candidate) bool
}

type predicate struct {
	sql    string
	args   []interface{}
	match  func(c Candidate) bool
	scores bool
}

func (p *predicate) Clause() (string, []interface{}) {
	return p.sql, p.args
}

func (p *predicate) Match(c Candidate) bool {
	return p.match(c)
}

func usesScores(p Predicate) bool {
	if v, ok := p.(*predicate); ok {
		return v.scores
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func Sources(sources []string) Predicate {
	return &predicate{
		sql:  "d.source = ANY(?)",
		args: []interface{}{pq.Array(sources)},
		match: func(c Candidate) bool {
			return contains(sources, c.Doc.Source)
		},
	}
}

func Journals(journals []string) Predicate {
	return &predicate{
		sql:  "d.journal = ANY(?)",
		args: []interface{}{pq.Array(journals)},
		match: func(c Candidate) bool {
			return contains(journals, c.Doc.Journal)
		},
	}
}

// Keywords matches documents carrying at least one of the keywords.
func Keywords(keywords []string) Predicate {
	return &predicate{
		sql:  "d.keywords && ?",
		args: []interface{}{pq.Array(keywords)},
		match: func(c Candidate) bool {
			for _, kw := range c.Doc.Keywords {
				if contains(keywords, kw) {
					return true
				}
			}
			return false
		},
	}
}

func PublishedFrom(t time.Time) Predicate {
	return &predicate{
		sql:  "d.publication_date >= ?",
		args: []interface{}{t},
		match: func(c Candidate) bool {
			return c.Doc.PublicationDate != nil && !c.Doc.PublicationDate.Before(t)
		},
	}
}

func PublishedTo(t time.Time) Predicate {
	return &predicate{
		sql:  "d.publication_date <= ?",
		args: []interface{}{t},
		match: func(c Candidate) bool {
			return c.Doc.PublicationDate != nil && !c.Doc.PublicationDate.After(t)
		},
	}
}

func IngestedFrom(t time.Time) Predicate {
	return &predicate{
		sql:  "d.created_at >= ?",
		args: []interface{}{t},
		match: func(c Candidate) bool {
			return !c.Doc.CreatedAt.Before(t)
		},
	}
}

func IngestedTo(t time.Time) Predicate {
	return &predicate{
		sql:  "d.created_at <= ?",
		args: []interface{}{t},
		match: func(c Candidate) bool {
			return !c.Doc.CreatedAt.After(t)
		},
	}
}

func HasEmbedding(v bool) Predicate {
	return &predicate{
		sql:  "d.has_embedding = ?",
		args: []interface{}{v},
		match: func(c Candidate) bool {
			return c.Doc.HasEmbedding == v
		},
	}
}

// RequireEmbedding restricts candidates to documents with a stored vector.
// The semantic leg always adds it.
func RequireEmbedding() Predicate {
	return &predicate{
		sql: "d.embedding IS NOT NULL",
		match: func(c Candidate) bool {
			return c.Doc.Embedding != nil
		},
	}
}

func ExcludeID(id string) Predicate {
	return &predicate{
		sql:  "d.id <> ?",
		args: []interface{}{id},
		match: func(c Candidate) bool {
			return c.Doc.ID != id
		},
	}
}

// MinScore and MaxScore are inclusive. Unscored documents never satisfy
// either bound.
func MinScore(v float64) Predicate {
	return &predicate{
		sql:    "s.overall_score >= ?",
		args:   []interface{}{v},
		scores: true,
		match: func(c Candidate) bool {
			return c.Score != nil && c.Score.OverallScore >= v
		},
	}
}

func MaxScore(v float64) Predicate {
	return &predicate{
		sql:    "s.overall_score <= ?",
		args:   []interface{}{v},
		scores: true,
		match: func(c Candidate) bool {
			return c.Score != nil && c.Score.OverallScore <= v
		},
	}
}

func HasScore(v bool) Predicate {
	sql := "s.document_id IS NULL"
	if v {
		sql = "s.document_id IS NOT NULL"
	}
	return &predicate{
		sql:    sql,
		scores: true,
		match: func(c Candidate) bool {
			return (c.Score != nil) == v
		},
	}
}

// Set is an immutable conjunction of predicates.
type Set struct {
	preds       []Predicate
	needsScores bool
}

// Compile builds every predicate implied by f up front, followed by extra.
func Compile(f model.SearchFilters, extra ...Predicate) Set {
	preds := make([]Predicate, 0, 12+len(extra))
	if len(f.Sources) > 0 {
		preds = append(preds, Sources(f.Sources))
	}
	if f.PublishedFrom != nil {
		preds = append(preds, PublishedFrom(*f.PublishedFrom))
	}
	if f.PublishedTo != nil {
		preds = append(preds, PublishedTo(*f.PublishedTo))
	}
	if f.IngestedFrom != nil {
		preds = append(preds, IngestedFrom(*f.IngestedFrom))
	}
	if f.IngestedTo != nil {
		preds = append(preds, IngestedTo(*f.IngestedTo))
	}
	if f.HasEmbedding != nil {
		preds = append(preds, HasEmbedding(*f.HasEmbedding))
	}
	if len(f.Journals) > 0 {
		preds = append(preds, Journals(f.Journals))
	}
	if len(f.Keywords) > 0 {
		preds = append(preds, Keywords(f.Keywords))
	}
	if f.MinScore != nil {
		preds = append(preds, MinScore(*f.MinScore))
	}
	if f.MaxScore != nil {
		preds = append(preds, MaxScore(*f.MaxScore))
	}
	if f.HasScore != nil {
		preds = append(preds, HasScore(*f.HasScore))
	}
	return newSet(append(preds, extra...))
}

func newSet(preds []Predicate) Set {
	set := Set{preds: preds}
	for _, p := range preds {
		if usesScores(p) {
			set.needsScores = true
			break
		}
	}
	return set
}

// With returns a copy of s extended by extra.
func (s Set) With(extra ...Predicate) Set {
	preds := make([]Predicate, 0, len(s.preds)+len(extra))
	preds = append(preds, s.preds...)
	return newSet(append(preds, extra...))
}

func (s Set) Empty() bool {
	return len(s.preds) == 0
}

func (s Set) Len() int {
	return len(s.preds)
}

// NeedsScores reports whether the latest-summary relation has to be joined.
func (s Set) NeedsScores() bool {
	return s.needsScores
}

func (s Set) Match(c Candidate) bool {
	for _, p := range s.preds {
		if !p.Match(c) {
			return false
		}
	}
	return true
}

// Where renders the conjunction. An empty set yields "" and no args.
func (s Set) Where() (string, []interface{}) {
	clauses := make([]string, 0, len(s.preds))
	args := make([]interface{}, 0, len(s.preds))
	for _, p := range s.preds {
		sql, a := p.Clause()
		clauses = append(clauses, sql)
		args = append(args, a...)
	}
	return dbutil.JoinAnd(clauses), args
}
