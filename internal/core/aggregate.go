package core

// Weights maps each flag severity to its score contribution.
type Weights struct {
	Info     float64
	Low      float64
	Medium   float64
	High     float64
	Critical float64
}

// DefaultWeights returns the standard severity weighting.
func DefaultWeights() Weights {
	return Weights{
		Info:     0.05,
		Low:      0.15,
		Medium:   0.35,
		High:     0.6,
		Critical: 1.0,
	}
}

// For returns the contribution for one severity.
func (w Weights) For(s Severity) float64 {
	switch s {
	case SeverityInfo:
		return w.Info
	case SeverityLow:
		return w.Low
	case SeverityMedium:
		return w.Medium
	case SeverityHigh:
		return w.High
	case SeverityCritical:
		return w.Critical
	default:
		return 0
	}
}

// Aggregator merges detector flags into a score, level and verdict.
// It is pure: identical inputs always produce identical outputs.
type Aggregator struct {
	weights Weights
}

// NewAggregator creates an aggregator with the given severity weights.
func NewAggregator(weights Weights) *Aggregator {
	return &Aggregator{weights: weights}
}

// Score computes the aggregate risk score for a set of flags: the
// maximum single contribution plus a diminished sum of the rest,
// capped at 1.0. One severe finding outweighs many trivial ones while
// volume still matters.
func (a *Aggregator) Score(flags []ScanFlag) float64 {
	if len(flags) == 0 {
		return 0
	}
	var max, sum float64
	for _, f := range flags {
		c := a.weights.For(f.Severity)
		sum += c
		if c > max {
			max = c
		}
	}
	score := max + 0.1*(sum-max)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// hasCritical reports whether any flag carries critical severity.
func hasCritical(flags []ScanFlag) bool {
	for _, f := range flags {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Evaluate maps flags to the final (score, level, verdict) triple.
// A single critical flag forces verdict malicious and level critical
// regardless of the computed score.
func (a *Aggregator) Evaluate(flags []ScanFlag) (float64, RiskLevel, Verdict) {
	score := a.Score(flags)
	if hasCritical(flags) {
		return score, RiskCritical, VerdictMalicious
	}

	var verdict Verdict
	var level RiskLevel
	switch {
	case score < 0.3:
		verdict, level = VerdictClean, RiskLow
	case score < 0.6:
		verdict, level = VerdictSuspicious, RiskMedium
	case score < 0.85:
		verdict, level = VerdictMalicious, RiskHigh
	default:
		verdict, level = VerdictMalicious, RiskCritical
	}
	return score, level, verdict
}
