package model

import "time"

type SearchEvent struct {
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Query          string     `json:"query"`
	Mode           SearchMode `json:"mode"`
	ResultCount    int        `json:"result_count"`
	ElapsedMs      int64      `json:"elapsed_ms"`
	CreatedAt      time.Time  `json:"created_at"`
}
