package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func flagsOf(severities ...Severity) []ScanFlag {
	flags := make([]ScanFlag, 0, len(severities))
	for _, s := range severities {
		flags = append(flags, ScanFlag{Kind: FlagUrgencyManipulation, Severity: s})
	}
	return flags
}

func TestScore(t *testing.T) {
	agg := NewAggregator(DefaultWeights())

	tests := []struct {
		name     string
		flags    []ScanFlag
		expected float64
	}{
		{
			name:     "No flags",
			flags:    nil,
			expected: 0,
		},
		{
			name:     "Single medium flag",
			flags:    flagsOf(SeverityMedium),
			expected: 0.35,
		},
		{
			name:     "High plus medium",
			flags:    flagsOf(SeverityHigh, SeverityMedium),
			expected: 0.6 + 0.1*0.35,
		},
		{
			name:     "Max dominates order-independently",
			flags:    flagsOf(SeverityMedium, SeverityHigh),
			expected: 0.6 + 0.1*0.35,
		},
		{
			name:     "Many low flags stay below one high",
			flags:    flagsOf(SeverityLow, SeverityLow, SeverityLow, SeverityLow),
			expected: 0.15 + 0.1*0.45,
		},
		{
			name:     "Capped at 1.0",
			flags:    flagsOf(SeverityCritical, SeverityCritical, SeverityCritical, SeverityCritical, SeverityCritical),
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, agg.Score(tt.flags), 1e-9)
		})
	}
}

func TestEvaluate(t *testing.T) {
	agg := NewAggregator(DefaultWeights())

	tests := []struct {
		name    string
		flags   []ScanFlag
		level   RiskLevel
		verdict Verdict
	}{
		{
			name:    "No flags is clean",
			flags:   nil,
			level:   RiskLow,
			verdict: VerdictClean,
		},
		{
			name:    "Single info flag is clean",
			flags:   flagsOf(SeverityInfo),
			level:   RiskLow,
			verdict: VerdictClean,
		},
		{
			name:    "Single medium flag is suspicious",
			flags:   flagsOf(SeverityMedium),
			level:   RiskMedium,
			verdict: VerdictSuspicious,
		},
		{
			name:    "Single high flag is malicious",
			flags:   flagsOf(SeverityHigh),
			level:   RiskHigh,
			verdict: VerdictMalicious,
		},
		{
			name:    "Accumulated high flags reach critical level",
			flags:   flagsOf(SeverityHigh, SeverityHigh, SeverityHigh, SeverityHigh, SeverityHigh, SeverityHigh),
			level:   RiskCritical,
			verdict: VerdictMalicious,
		},
		{
			name:    "Critical flag forces malicious",
			flags:   flagsOf(SeverityCritical),
			level:   RiskCritical,
			verdict: VerdictMalicious,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, level, verdict := agg.Evaluate(tt.flags)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.verdict, verdict)
			assert.InDelta(t, agg.Score(tt.flags), score, 1e-9)
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	agg := NewAggregator(DefaultWeights())
	flags := flagsOf(SeverityHigh, SeverityMedium, SeverityLow)

	s1, l1, v1 := agg.Evaluate(flags)
	for i := 0; i < 100; i++ {
		s2, l2, v2 := agg.Evaluate(flags)
		assert.Equal(t, s1, s2)
		assert.Equal(t, l1, l2)
		assert.Equal(t, v1, v2)
	}
}
