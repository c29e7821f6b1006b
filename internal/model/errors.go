package model

import "github.com/rotisserie/eris"

// Run-fatal configuration errors. Only these abort a selection run; every
// other failure is isolated to the candidate that raised it.
var (
	ErrNoActiveProfile = eris.New("model: no active application profile")
	ErrWeightsInvalid  = eris.New("model: profile weights do not sum to 100")
)

// Per-candidate failures. Each rejects or skips a single pump and carries a
// human-readable reason into the decision trace.
var (
	ErrCurveData       = eris.New("model: malformed curve data")
	ErrOutOfRange      = eris.New("model: flow outside interpolable range")
	ErrTrimOutOfRange  = eris.New("model: required trim outside allowed range")
	ErrSpeedOutOfRange = eris.New("model: required speed outside allowed range")
	ErrNPSHViolation   = eris.New("model: insufficient NPSH margin")
	ErrOutOfEnvelope   = eris.New("model: duty point outside pump envelope")
	ErrTraceNotFound   = eris.New("model: decision trace not found")
)

// IsConfigurationError reports whether err aborts the whole run rather than
// a single candidate.
func IsConfigurationError(err error) bool {
	return eris.Is(err, ErrNoActiveProfile) || eris.Is(err, ErrWeightsInvalid)
}
