package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangesOverlap(t *testing.T) {
	a := memRange{Begin: 0, End: 10}
	assert.True(t, rangesOverlap(a, memRange{Begin: 5, End: 15}))
	assert.True(t, rangesOverlap(a, memRange{Begin: 0, End: 10}))
	assert.False(t, rangesOverlap(a, memRange{Begin: 10, End: 20}), "half-open ranges touch without overlap")
	assert.False(t, rangesOverlap(a, memRange{Begin: 20, End: 30}))
	assert.False(t, rangesOverlap(memRange{Begin: 10, End: 20}, a))
}

func TestSubtractRange(t *testing.T) {
	tests := []struct {
		name   string
		sub    memRange
		ranges []memRange
		want   []memRange
	}{
		{
			name:   "covers entirely",
			sub:    memRange{0, 100},
			ranges: []memRange{{10, 20}},
			want:   nil,
		},
		{
			name:   "clips low side",
			sub:    memRange{0, 15},
			ranges: []memRange{{10, 20}},
			want:   []memRange{{15, 20}},
		},
		{
			name:   "clips high side",
			sub:    memRange{15, 30},
			ranges: []memRange{{10, 20}},
			want:   []memRange{{10, 15}},
		},
		{
			name:   "splits",
			sub:    memRange{12, 18},
			ranges: []memRange{{10, 20}},
			want:   []memRange{{18, 20}, {10, 12}},
		},
		{
			name:   "disjoint untouched",
			sub:    memRange{30, 40},
			ranges: []memRange{{10, 20}},
			want:   []memRange{{10, 20}},
		},
		{
			name:   "multiple pieces",
			sub:    memRange{5, 25},
			ranges: []memRange{{0, 10}, {20, 30}, {40, 50}},
			want:   []memRange{{0, 5}, {25, 30}, {40, 50}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := subtractRange(test.sub, test.ranges)
			assert.ElementsMatch(t, test.want, got)
		})
	}
}

func TestRangeOverlapsAny(t *testing.T) {
	list := []memRange{{0, 10}, {20, 30}}
	assert.True(t, rangeOverlapsAny(memRange{5, 25}, list))
	assert.False(t, rangeOverlapsAny(memRange{10, 20}, list))
	assert.False(t, rangeOverlapsAny(memRange{5, 8}, nil))
}
