package model

import "time"

type ScoreSummary struct {
	ID              int64     `json:"id"`
	DocumentID      string    `json:"document_id"`
	OrganizationID  *string   `json:"organization_id,omitempty"`
	OverallScore    float64   `json:"overall_score"`
	Methodology     float64   `json:"methodology"`
	Reproducibility float64   `json:"reproducibility"`
	Novelty         float64   `json:"novelty"`
	Clarity         float64   `json:"clarity"`
	Impact          float64   `json:"impact"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewerThan orders summaries by creation time, then id.
func (s *ScoreSummary) NewerThan(other *ScoreSummary) bool {
	if other == nil {
		return true
	}
	if !s.CreatedAt.Equal(other.CreatedAt) {
		return s.CreatedAt.After(other.CreatedAt)
	}
	return s.ID > other.ID
}
