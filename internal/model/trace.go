package model

import (
	"encoding/json"
	"time"
)

// Tier classifies a ranked candidate.
type Tier string

const (
	TierTop        Tier = "top"
	TierAcceptable Tier = "acceptable"
	TierNearMiss   Tier = "near_miss"
	TierExcluded   Tier = "excluded"
)

// ScoreBreakdown holds the four subscores and the penalties that produced
// a composite score.
type ScoreBreakdown struct {
	BEP          float64 `json:"bep"`
	Efficiency   float64 `json:"efficiency"`
	HeadMargin   float64 `json:"head_margin"`
	NPSH         float64 `json:"npsh"`
	TrimPenalty  float64 `json:"trim_penalty"`
	SpeedPenalty float64 `json:"speed_penalty"`
	Composite    float64 `json:"composite"`
}

// RankedCandidate is one element of the pump_rankings array: a pump with
// its final score, tier and operating condition, or the reason it was
// rejected.
type RankedCandidate struct {
	PumpCode        string         `json:"pump_code"`
	Score           float64        `json:"score"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	Tier            Tier           `json:"tier"`
	ImpellerMM      float64        `json:"impeller_mm,omitempty"`
	TrimPct         float64        `json:"trim_pct"`
	SpeedRPM        float64        `json:"speed_rpm,omitempty"`
	HeadM           float64        `json:"head_m,omitempty"`
	EfficiencyPct   float64        `json:"efficiency_pct,omitempty"`
	NPSHMarginM     float64        `json:"npsh_margin_m"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
}

// DecisionTrace is the immutable audit record of one selection run.
// Created once after ranking completes; never mutated.
type DecisionTrace struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id,omitempty"`
	DutyFlow  float64 `json:"duty_flow_m3h"`
	DutyHead  float64 `json:"duty_head_m"`
	NPSHaM    float64 `json:"npsha_m"`

	// SnapshotJSON is a deep copy of the resolved config snapshot, so the
	// trace stays explainable after the live configuration moves on.
	SnapshotJSON       json.RawMessage   `json:"config_snapshot"`
	CorrectionsApplied []string          `json:"corrections_applied,omitempty"`
	Rankings           []RankedCandidate `json:"pump_rankings"`
	SelectedPump       string            `json:"selected_pump,omitempty"`
	Rationale          string            `json:"rationale,omitempty"`
	ElapsedMS          int64             `json:"elapsed_ms"`
	Warnings           []string          `json:"warnings,omitempty"`
	Partial            bool              `json:"partial"`
	CreatedAt          time.Time         `json:"created_at"`
}
