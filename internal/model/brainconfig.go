package model

import "time"

// BrainConfigStatus tracks the approval lifecycle of an override bundle.
type BrainConfigStatus string

const (
	BrainConfigDraft    BrainConfigStatus = "draft"
	BrainConfigApproved BrainConfigStatus = "approved"
	BrainConfigRetired  BrainConfigStatus = "retired"
)

// BrainConfiguration is a versioned, approvable bundle of overrides layered
// on top of the active profile and the engineering constant table. At most
// one configuration is simultaneously production and active; the resolver
// ignores everything else.
type BrainConfiguration struct {
	ID         string            `json:"id"`
	Version    int               `json:"version"`
	Status     BrainConfigStatus `json:"status"`
	Production bool              `json:"production"`
	Active     bool              `json:"active"`

	// ScoringOverrides replace profile fields by key, e.g. "weights.bep"
	// or "max_acceptable_trim_pct".
	ScoringOverrides map[string]float64 `json:"scoring_overrides,omitempty"`

	// ConstantOverrides replace engineering constants by name. Locked
	// constants are refused at resolve time.
	ConstantOverrides map[string]float64 `json:"constant_overrides,omitempty"`

	// LogicFlags toggle optional behavior, e.g. "allow_near_miss_npsh",
	// "log_excluded".
	LogicFlags map[string]bool `json:"logic_flags,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ApprovedBy string    `json:"approved_by,omitempty"`
}

// CorrectionStatus tracks the vetting lifecycle of a data correction.
type CorrectionStatus string

const (
	CorrectionProposed    CorrectionStatus = "proposed"
	CorrectionApproved    CorrectionStatus = "approved"
	CorrectionActivated   CorrectionStatus = "activated"
	CorrectionDeactivated CorrectionStatus = "deactivated"
	CorrectionExpired     CorrectionStatus = "expired"
)

// DataCorrection is a field-level override for one pump, substituting a
// vetted value for the raw catalog value before interpolation.
type DataCorrection struct {
	ID             string           `json:"id"`
	PumpCode       string           `json:"pump_code"`
	FieldPath      string           `json:"field_path"`
	CorrectedValue float64          `json:"corrected_value"`
	Justification  string           `json:"justification"`
	Confidence     float64          `json:"confidence"`
	Status         CorrectionStatus `json:"status"`
	EffectiveFrom  time.Time        `json:"effective_from"`
	EffectiveTo    *time.Time       `json:"effective_to,omitempty"`
}

// AppliesAt reports whether the correction is active and time-valid at t.
func (c DataCorrection) AppliesAt(t time.Time) bool {
	if c.Status != CorrectionActivated {
		return false
	}
	if t.Before(c.EffectiveFrom) {
		return false
	}
	if c.EffectiveTo != nil && !t.Before(*c.EffectiveTo) {
		return false
	}
	return true
}
