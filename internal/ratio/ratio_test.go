package ratio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name     string
		num, den core.Value
		want     core.Value
	}{
		{"zero denominator", int64(50), int64(0), nil},
		{"zero over zero", int64(0), int64(0), nil},
		{"null denominator", int64(5), nil, nil},
		{"null numerator", nil, int64(5), nil},
		{"basic", int64(25), int64(200), 12.5},
		{"float inputs", 1.0, 3.0, 33.33},
		{"negative", int64(-1), int64(8), -12.5},
		{"non numeric", "a", int64(2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ratio(tt.num, tt.den, 100, 2))
		})
	}
}

func TestGrowth(t *testing.T) {
	assert.Equal(t, 10.0, Growth(110.0, 100.0))
	assert.Equal(t, -50.0, Growth(int64(50), int64(100)))
	assert.Nil(t, Growth(110.0, nil))
	assert.Nil(t, Growth(110.0, 0.0))
	assert.Nil(t, Growth(nil, 100.0))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 69.0, Round(36+27+6, 2))
	assert.Equal(t, 2.13, Round(2.125, 2))
	assert.Equal(t, -2.13, Round(-2.125, 2))
	assert.Equal(t, 0.0, Round(-0.0001, 2))
	assert.Equal(t, 3.0, Round(2.5, 0))
}
