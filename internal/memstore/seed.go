package memstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/docsearch/internal/model"
)

type seedClaim struct {
	OrganizationID string `json:"organization_id"`
	DocumentID     string `json:"document_id"`
}

type seedFile struct {
	Documents      []*model.Document     `json:"documents"`
	Claims         []seedClaim           `json:"claims"`
	ScoreSummaries []*model.ScoreSummary `json:"score_summaries"`
}

// LoadFile seeds the store from a JSON file holding documents, tenant
// claims and score summaries. Embeddings are not part of the file; run a
// backfill afterwards.
func (s *Store) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	for _, doc := range seed.Documents {
		doc.Embedding = nil
		if err := s.PutDocument(doc); err != nil {
			return err
		}
	}
	for _, c := range seed.Claims {
		s.Claim(c.OrganizationID, c.DocumentID)
	}
	for _, sum := range seed.ScoreSummaries {
		s.AddScoreSummary(sum)
	}
	return nil
}
