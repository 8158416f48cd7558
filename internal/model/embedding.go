package model

type SimilarDocument struct {
	DocumentID string  `json:"document_id"`
	Similarity float64 `json:"similarity"`
}

type SimilarResponse struct {
	ReferenceID string            `json:"reference_id"`
	Items       []SimilarDocument `json:"items"`
	TotalFound  int               `json:"total_found"`
}

type BackfillResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

type EmbeddingStats struct {
	Total            int     `json:"total"`
	WithEmbedding    int     `json:"with_embedding"`
	WithoutEmbedding int     `json:"without_embedding"`
	CoveragePercent  float64 `json:"coverage_percent"`
}

type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
