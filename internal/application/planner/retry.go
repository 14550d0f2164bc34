package planner

// maxAttempts bounds the fill pipeline: one primary attempt plus at most one
// variety retry. The retry fully discards and rebuilds; there is no
// cell-level carry-over between attempts.
const maxAttempts = 2

// attemptOutcome classifies one pass of the fill pipeline.
type attemptOutcome int

const (
	// outcomeSatisfied: plan complete and variety targets met.
	outcomeSatisfied attemptOutcome = iota
	// outcomeVarietyShortfall: plan complete but under the variety targets.
	outcomeVarietyShortfall
	// outcomeTransient: the generative or downstream call failed in a way a
	// fuller second pass may survive.
	outcomeTransient
	// outcomeStructural: inputs must change; retrying cannot help
	// (insufficient candidates, config, coverage, budget).
	outcomeStructural
)

// shouldRetry is the pure decision function of the bounded-retry state
// machine {Attempt(n), Success, Fail}. Testable without the pipeline.
func shouldRetry(outcome attemptOutcome, attempt int) bool {
	if attempt >= maxAttempts {
		return false
	}
	switch outcome {
	case outcomeVarietyShortfall, outcomeTransient:
		return true
	default:
		return false
	}
}
