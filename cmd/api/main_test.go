package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/worklens/backend/internal/correlation"
	"github.com/worklens/backend/pkg/config"
)

func TestThresholdsFromConfigDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	got := thresholdsFromConfig(cfg.Correlation)
	if diff := cmp.Diff(correlation.DefaultThresholds(), got); diff != "" {
		t.Errorf("config defaults drifted from the pipeline defaults (-want +got):\n%s", diff)
	}
}

func TestThresholdsFromConfigOverrides(t *testing.T) {
	section := config.CorrelationConfig{
		IssueKeyConfidence:    0.95,
		GroupingConfidenceMin: 0.6,
		OrphanWindowDays:      14,
	}

	got := thresholdsFromConfig(section)
	if got.IssueKeyConfidence != 0.95 {
		t.Errorf("IssueKeyConfidence = %v, want 0.95", got.IssueKeyConfidence)
	}
	if got.GroupingConfidenceMin != 0.6 {
		t.Errorf("GroupingConfidenceMin = %v, want 0.6", got.GroupingConfidenceMin)
	}
	if got.OrphanWindowDays != 14 {
		t.Errorf("OrphanWindowDays = %v, want 14", got.OrphanWindowDays)
	}
}
