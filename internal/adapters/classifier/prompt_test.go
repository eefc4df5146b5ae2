package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		injection bool
		score     float64
	}{
		{
			name:      "Plain JSON",
			input:     `{"injection_detected": true, "social_engineering_score": 0.8, "summary": "asks the agent to forward mail"}`,
			injection: true,
			score:     0.8,
		},
		{
			name:      "JSON wrapped in prose",
			input:     "Here is my analysis:\n```json\n{\"injection_detected\": false, \"social_engineering_score\": 0.1, \"summary\": \"routine newsletter\"}\n```",
			injection: false,
			score:     0.1,
		},
		{
			name:      "Score clamped high",
			input:     `{"injection_detected": true, "social_engineering_score": 3.5, "summary": "x"}`,
			injection: true,
			score:     1.0,
		},
		{
			name:      "Score clamped low",
			input:     `{"injection_detected": false, "social_engineering_score": -0.4, "summary": "x"}`,
			injection: false,
			score:     0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResponse(tt.input, "test-model")
			require.NoError(t, err)
			assert.Equal(t, tt.injection, result.InjectionDetected)
			assert.InDelta(t, tt.score, result.SocialEngineeringScore, 1e-9)
			assert.Equal(t, "test-model", result.Model)
		})
	}
}

func TestParseResponseErrors(t *testing.T) {
	for _, input := range []string{"", "no json here", "{broken"} {
		_, err := ParseResponse(input, "test-model")
		assert.Error(t, err, "input %q", input)
	}
}
