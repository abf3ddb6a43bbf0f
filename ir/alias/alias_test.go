package alias

import (
	"testing"

	"github.com/gomlx/tilesched/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func info(base string, offset int64, size uint64) Info {
	return Info{
		BaseRef: base,
		Access:  []ir.Affine{ir.ConstAffine(offset)},
		Shape:   ir.MakeShape("f32", size),
		Extents: []Extent{{Min: offset, Max: offset + int64(size) - 1}},
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, KindNone, Compare(info("a", 0, 8), info("b", 0, 8)), "different bases never alias")
	assert.Equal(t, KindExact, Compare(info("a", 0, 8), info("a", 0, 8)))
	assert.Equal(t, KindPartial, Compare(info("a", 0, 8), info("a", 4, 8)))
	assert.Equal(t, KindNone, Compare(info("a", 0, 8), info("a", 8, 8)), "disjoint extents")

	// Same extents but different shapes: overlapping, not exact.
	odd := info("a", 0, 8)
	odd.Shape = ir.MakeShape("f32", 2, 4)
	assert.Equal(t, KindPartial, Compare(info("a", 0, 8), odd))

	// Incomparable ranks are conservatively partial.
	flat := info("a", 0, 8)
	flat.Extents = nil
	assert.Equal(t, KindPartial, Compare(info("a", 0, 8), flat))
}

func TestExtentOverlaps(t *testing.T) {
	assert.True(t, Extent{0, 7}.Overlaps(Extent{7, 10}), "extents are inclusive")
	assert.False(t, Extent{0, 7}.Overlaps(Extent{8, 10}))
}

func TestNewMap(t *testing.T) {
	b := ir.NewBlock("main")
	b.AddRef(&ir.Refinement{
		Dir:    ir.DirIn,
		Into:   "A",
		Access: []ir.Affine{ir.ConstAffine(2)},
		Shape:  ir.MakeShape("f32", 8),
	})
	b.AddRef(&ir.Refinement{Dir: ir.DirOut, From: "P", Into: "B", Shape: ir.MakeShape("f32", 4)})

	m := NewMap(b)
	require.Len(t, m, 2)
	assert.Equal(t, "A", m["A"].BaseRef)
	assert.Equal(t, []Extent{{Min: 2, Max: 9}}, m["A"].Extents)
	assert.Equal(t, "P", m["B"].BaseRef, "refs with a parent refine that parent's buffer")
	assert.Equal(t, []Extent{{Min: 0, Max: 3}}, m["B"].Extents)

	// Distinct roots never alias under the default map.
	assert.Equal(t, KindNone, Compare(m["A"], m["B"]))
}
