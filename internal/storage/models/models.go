package models

import "time"

// RunRecord is the persisted summary of one correlation run.
type RunRecord struct {
	ID                    string
	EvidenceCount         int
	WorkStoriesCreated    int
	RelationshipsDetected int
	AvgConfidenceScore    float64
	CorrelationCoverage   float64
	ConfidenceThreshold   float64
	Success               bool
	Message               string
	ProcessingTimeMS      int
	CreatedAt             time.Time
}

// CostLedgerRow mirrors the single-row semantic spend table.
type CostLedgerRow struct {
	Month     string
	Spend     float64
	UpdatedAt time.Time
}
