package schedule

import (
	"testing"

	"github.com/gomlx/tilesched/ir"
	"github.com/gomlx/tilesched/ir/alias"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRefInfo(name string, elems uint64) *refInfo {
	ref := &ir.Refinement{
		Dir:      ir.DirIn,
		Into:     name,
		Shape:    ir.MakeShape("f32", elems),
		Location: ir.Location{Name: "RAM"},
	}
	return newRefInfo(ref, alias.NewInfo(ref))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), alignUp(uint64(0), uint64(4)))
	assert.Equal(t, uint64(4), alignUp(uint64(1), uint64(4)))
	assert.Equal(t, uint64(4), alignUp(uint64(4), uint64(4)))
	assert.Equal(t, uint64(8), alignUp(uint64(5), uint64(4)))
}

func TestTryPlaceInRangesBestWaste(t *testing.T) {
	s := &scheduler{memBytes: 1024}
	ri := testRefInfo("A", 16) // 64 bytes

	plan := newPlacementPlan()
	placements := makeFullPlacements([]ioRecord{{ri: ri, dir: ir.DirIn, interiorShape: ri.exteriorCacheShape}})

	// Two candidate holes: 128 bytes at 0 and 64 bytes at 512. The
	// tighter fit wins.
	ranges := []memRange{{0, 128}, {512, 576}}
	require.True(t, s.tryPlaceInRanges(plan, placements, ranges))

	planned := plan.byKey[fullKeyID(ri)]
	require.NotNil(t, planned)
	assert.Equal(t, memRange{512, 576}, planned.p.rng)
}

func TestTryPlaceInRangesFailsWhenNoHoleFits(t *testing.T) {
	s := &scheduler{memBytes: 1024}
	ri := testRefInfo("A", 64) // 256 bytes
	plan := newPlacementPlan()
	placements := makeFullPlacements([]ioRecord{{ri: ri, dir: ir.DirIn, interiorShape: ri.exteriorCacheShape}})
	assert.False(t, s.tryPlaceInRanges(plan, placements, []memRange{{0, 128}}))
}

func TestTryPlaceInRangesMergesDirections(t *testing.T) {
	s := &scheduler{memBytes: 1024}
	ri := testRefInfo("A", 16)
	plan := newPlacementPlan()
	io := ioRecord{ri: ri, dir: ir.DirIn, interiorShape: ri.exteriorCacheShape}
	ioOut := io
	ioOut.dir = ir.DirOut
	placements := makeFullPlacements([]ioRecord{io, ioOut})

	require.True(t, s.tryPlaceInRanges(plan, placements, []memRange{{0, 1024}}))
	assert.Len(t, plan.order, 1)
	assert.Equal(t, ir.DirInOut, plan.byKey[fullKeyID(ri)].p.dir)
}

func TestFallbackPlanAlignsAndChecksCapacity(t *testing.T) {
	s := &scheduler{memBytes: 1024, alignment: 64}
	a := testRefInfo("A", 10) // 40 bytes, aligns to 64
	b := testRefInfo("B", 10)

	ios := []ioRecord{
		{ri: a, dir: ir.DirIn, interiorShape: a.exteriorCacheShape},
		{ri: b, dir: ir.DirIn, interiorShape: b.exteriorCacheShape},
	}
	plan := s.tryMakeFallbackPlan(makeFullPlacements(ios))
	require.NotNil(t, plan)
	assert.Equal(t, memRange{0, 40}, plan.byKey[fullKeyID(a)].p.rng)
	assert.Equal(t, memRange{64, 104}, plan.byKey[fullKeyID(b)].p.rng)

	// Shrink capacity below the aligned total: the plan must fail.
	s.memBytes = 100
	assert.Nil(t, s.tryMakeFallbackPlan(makeFullPlacements(ios)))
}
