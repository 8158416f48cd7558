// Package lexical implements the keyword side of ranking: fuzzy trigram
// relevance of a query against a document's title and abstract, the
// eligibility cutoff, and highlight extraction.
package lexical

const (
	TitleWeight    = 0.7
	AbstractWeight = 0.3

	// EligibilityThreshold must be strictly exceeded by the title or the
	// abstract similarity for a document to be a lexical candidate.
	EligibilityThreshold = 0.1
)

type Scores struct {
	Title    float64
	Abstract float64
	Combined float64
}

// Eligible is a hard cutoff, not a sort key.
func Eligible(titleSim, abstractSim float64) bool {
	return titleSim > EligibilityThreshold || abstractSim > EligibilityThreshold
}

func Combine(titleSim, abstractSim float64) float64 {
	return TitleWeight*titleSim + AbstractWeight*abstractSim
}

// Score computes the per-field similarities and the composite score. An
// empty abstract contributes 0.
func Score(title, abstract, query string) Scores {
	s := Scores{Title: Similarity(title, query)}
	if abstract != "" {
		s.Abstract = Similarity(abstract, query)
	}
	s.Combined = Combine(s.Title, s.Abstract)
	return s
}

func (s Scores) Eligible() bool {
	return Eligible(s.Title, s.Abstract)
}
