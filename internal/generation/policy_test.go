package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlideCeiling(t *testing.T) {
	cases := []struct {
		name    string
		planned int
		factor  float64
		tierMax int
		want    int
	}{
		{name: "quarter headroom", planned: 4, factor: 1.25, tierMax: 15, want: 5},
		{name: "fractional headroom floors", planned: 6, factor: 1.25, tierMax: 15, want: 7},
		{name: "no headroom", planned: 4, factor: 1.0, tierMax: 15, want: 4},
		{name: "tier maximum caps", planned: 28, factor: 1.25, tierMax: 30, want: 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, slideCeiling(tc.planned, tc.factor, tc.tierMax))
		})
	}
}

func TestLayoutPolicy(t *testing.T) {
	assert.True(t, needsLayoutChoice("chart"))
	assert.True(t, needsLayoutChoice("table"))
	assert.False(t, needsLayoutChoice("content"))

	assert.Equal(t, "bar", defaultLayout("chart"))
	assert.Equal(t, "comparison", defaultLayout("table"))
	assert.Empty(t, defaultLayout("content"))
}
