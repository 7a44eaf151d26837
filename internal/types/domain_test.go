package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskLevelForScore_Breakpoints(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  RiskLevel
	}{
		{"zero", 0, RiskLow},
		{"just below moderate", 9.999, RiskLow},
		{"moderate lower bound", 10, RiskModerate},
		{"just below high", 19.999, RiskModerate},
		{"high lower bound", 20, RiskHigh},
		{"just below very high", 29.999, RiskHigh},
		{"very high lower bound", 30, RiskVeryHigh},
		{"max", 100, RiskVeryHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RiskLevelForScore(tt.score))
		})
	}
}

func TestRoundCoord(t *testing.T) {
	assert.InDelta(t, 40.71, RoundCoord(40.7128), 1e-9)
	assert.InDelta(t, -74.01, RoundCoord(-74.0060), 1e-9)
	assert.InDelta(t, 0.0, RoundCoord(0.0049), 1e-9)
	assert.InDelta(t, 0.01, RoundCoord(0.005), 1e-9)
}

func TestDefaultThresholds_CopyOnEveryCall(t *testing.T) {
	a := DefaultThresholds()
	a[ConditionVeryHot] = ConditionThreshold{
		Category: ConditionVeryHot, Value: 99, Operator: CompareGreater,
	}

	b := DefaultThresholds()
	assert.Equal(t, DefaultHotThresholdC, b[ConditionVeryHot].Value,
		"mutating one returned set must not leak into the defaults")
}

func TestThresholdSet_MergeDoesNotMutateReceiver(t *testing.T) {
	base := DefaultThresholds()
	overrides := ThresholdSet{
		ConditionVeryWindy: {Category: ConditionVeryWindy, Value: 20, Operator: CompareGreater},
	}

	merged := base.Merge(overrides)

	require.Equal(t, 20.0, merged[ConditionVeryWindy].Value)
	assert.Equal(t, DefaultWindyThresholdMS, base[ConditionVeryWindy].Value)
	// Untouched categories carry through.
	assert.Equal(t, DefaultWetThresholdMM, merged[ConditionVeryWet].Value)
}

func TestConditionCategory_Valid(t *testing.T) {
	for _, c := range AllCategories() {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, ConditionCategory("very_sunny").Valid())
}
