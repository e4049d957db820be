package main

import "github.com/fairtrace/provenance/pkg/ledger"

type stakeholderResponse struct {
	Principal  string `json:"principal"`
	Authorized bool   `json:"authorized"`
	Role       string `json:"role,omitempty"`
}

type provenanceResponse struct {
	Product *ledger.Product         `json:"product"`
	Journey []ledger.TrackingRecord `json:"journey"`
}

type stageInfo struct {
	Stage   ledger.Stage   `json:"stage"`
	Ordinal int            `json:"ordinal"`
	Next    []ledger.Stage `json:"next"`
}

type statsResponse struct {
	Admin        string `json:"admin"`
	ProductCount uint64 `json:"productCount"`
}

type auditEvent struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	EventType  string         `json:"eventType"`
	Actor      string         `json:"actor,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Handle     string         `json:"handle,omitempty"`
	Action     string         `json:"action,omitempty"`
	Outcome    string         `json:"outcome"`
	StatusCode int            `json:"statusCode,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

type auditListResponse struct {
	Events        []auditEvent `json:"events"`
	NextPageToken string       `json:"nextPageToken"`
	TotalSize     int          `json:"totalSize"`
}
