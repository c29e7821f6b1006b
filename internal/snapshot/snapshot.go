// Package snapshot resolves the layered run configuration — active profile,
// production brain configuration, vetted data corrections — into one
// immutable value object consumed by a single selection run.
package snapshot

import (
	"encoding/json"
	"time"

	"github.com/apexflow/pumpselect/internal/model"
)

// Snapshot is the immutable per-run configuration. Downstream components
// read only this, never live tables, so an admin edit mid-run is never
// observed.
type Snapshot struct {
	Profile       model.ApplicationProfile `json:"profile"`
	Constants     model.ConstantSet        `json:"constants"`
	LogicFlags    map[string]bool          `json:"logic_flags,omitempty"`
	BrainConfigID string                   `json:"brain_config_id,omitempty"`
	ResolvedAt    time.Time                `json:"resolved_at"`

	corrections map[string][]model.DataCorrection
}

// CorrectionsFor returns the active, time-valid corrections for one pump.
func (s *Snapshot) CorrectionsFor(pumpCode string) []model.DataCorrection {
	return s.corrections[pumpCode]
}

// Flag reads a logic flag, defaulting to false.
func (s *Snapshot) Flag(name string) bool {
	return s.LogicFlags[name]
}

// JSON returns a deep copy of the snapshot for trace embedding.
func (s *Snapshot) JSON() json.RawMessage {
	type traceView struct {
		Profile       model.ApplicationProfile          `json:"profile"`
		Constants     model.ConstantSet                 `json:"constants"`
		LogicFlags    map[string]bool                   `json:"logic_flags,omitempty"`
		BrainConfigID string                            `json:"brain_config_id,omitempty"`
		ResolvedAt    time.Time                         `json:"resolved_at"`
		Corrections   map[string][]model.DataCorrection `json:"corrections,omitempty"`
	}
	raw, err := json.Marshal(traceView{
		Profile:       s.Profile,
		Constants:     s.Constants,
		LogicFlags:    s.LogicFlags,
		BrainConfigID: s.BrainConfigID,
		ResolvedAt:    s.ResolvedAt,
		Corrections:   s.corrections,
	})
	if err != nil {
		// Every field is a plain value type; marshal cannot fail on real data.
		return json.RawMessage(`{}`)
	}
	return raw
}

// Logic flag names recognized by the engine.
const (
	FlagAllowNearMissNPSH = "allow_near_miss_npsh"
	FlagLogExcluded       = "log_excluded"
)
