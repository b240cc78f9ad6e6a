// Package reliability tracks how well extraction is working per slot. The
// engine itself never skips a slot; it keeps reprompting and exposes these
// signals so the host can decide when to force-skip.
package reliability

const (
	// NeutralScore is where every slot starts.
	NeutralScore = 0.5
	// AcceptWeight is the score increment for an accepted extraction.
	AcceptWeight = 0.05
)

// UpdateScore moves a slot's reliability score after one extraction
// attempt. Misses degrade the score 2x faster than accepts build it.
func UpdateScore(current float64, accepted bool) float64 {
	if accepted {
		return clamp(current + AcceptWeight)
	}
	return clamp(current - AcceptWeight*2.0)
}

func clamp(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
