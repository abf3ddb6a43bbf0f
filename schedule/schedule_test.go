/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package schedule

import (
	"testing"

	"github.com/gomlx/tilesched/ir"
	"github.com/gomlx/tilesched/ir/alias"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ramLoc   = ir.Location{Name: "RAM"}
	testOpts = Options{
		MemLoc:  ir.Location{Name: "CACHE"},
		MemKiB:  1,
		XferLoc: ir.Location{Name: "DMA"},
	}
)

// ramRef builds a backing refinement of the given direction holding elems
// float32 values (so elems*4 bytes).
func ramRef(name string, dir ir.RefDir, elems uint64) *ir.Refinement {
	return &ir.Refinement{
		Dir:      dir,
		Into:     name,
		Shape:    ir.MakeShape("f32", elems),
		Location: ramLoc,
	}
}

// stmtOps flattens the block's statement list.
func stmtOps(b *ir.Block) []ir.Statement {
	var ops []ir.Statement
	for s := range b.Stmts.All {
		ops = append(ops, s.Op)
	}
	return ops
}

// stmtNames renders each statement as a short tag: sub-blocks by name,
// loads and stores by their operands.
func stmtNames(b *ir.Block) []string {
	var names []string
	for s := range b.Stmts.All {
		switch op := s.Op.(type) {
		case *ir.Block:
			names = append(names, op.Name)
		case *ir.Load:
			names = append(names, "load:"+op.From)
		case *ir.Store:
			names = append(names, "store:"+op.Into)
		case *ir.Special:
			names = append(names, "special:"+op.Name)
		default:
			names = append(names, "other")
		}
	}
	return names
}

// depNames maps a statement's deps to their tags.
func depNames(b *ir.Block, of ir.Statement) []string {
	tags := make(map[*ir.Stmt]string)
	for s := range b.Stmts.All {
		switch op := s.Op.(type) {
		case *ir.Block:
			tags[s] = op.Name
		case *ir.Load:
			tags[s] = "load:" + op.From
		case *ir.Store:
			tags[s] = "store:" + op.Into
		default:
			tags[s] = "other"
		}
	}
	var names []string
	for _, dep := range of.Attrs().Deps {
		names = append(names, tags[dep])
	}
	return names
}

func refNames(b *ir.Block) []string {
	names := make([]string, len(b.Refs))
	for i, ref := range b.Refs {
		names[i] = ref.Into
	}
	return names
}

func TestScheduleLoadStorePair(t *testing.T) {
	// One Load and one Store, everything fits: one swap-in for the input,
	// one swap-out for the output, no eviction traffic.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 64))  // 256 bytes
	block.AddRef(ramRef("B", ir.DirOut, 64)) // 256 bytes
	block.Stmts.PushBack(ir.NewLoad("A", "x"))
	block.Stmts.PushBack(ir.NewStore("x", "B"))

	require.NoError(t, Schedule(alias.NewMap(block), block, testOpts))

	assert.Equal(t, []string{"swap_in_A^0", "load:A^0", "store:B^0", "swap_out_B^0"}, stmtNames(block))
	assert.Equal(t, []string{"A", "A^0", "B", "B^0"}, refNames(block))

	ops := stmtOps(block)
	load, store := ops[1].(*ir.Load), ops[2].(*ir.Store)
	assert.Equal(t, "A^0", load.From)
	assert.Equal(t, "B^0", store.Into)

	// The cache-entry refinements carry no direction and live in cache.
	for _, name := range []string{"A^0", "B^0"} {
		ref := block.RefByInto(name)
		require.NotNil(t, ref)
		assert.Equal(t, ir.DirNone, ref.Dir)
		assert.Empty(t, ref.From)
		assert.Equal(t, "CACHE", ref.Location.Name)
	}

	// Load waits for the swap-in; the store reuses the load's bytes, so it
	// waits for the load; the swap-out waits for the store.
	assert.Equal(t, []string{"swap_in_A^0"}, depNames(block, load))
	assert.Equal(t, []string{"load:A^0"}, depNames(block, store))
	assert.Equal(t, []string{"store:B^0"}, depNames(block, ops[3]))
	assert.Empty(t, ops[0].Attrs().Deps)
}

func TestScheduleOutOnlySingleWriter(t *testing.T) {
	// A write-only output needs exactly one swap-out and no swap-in.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("B", ir.DirOut, 64))
	block.Stmts.PushBack(ir.NewStore("x", "B"))

	require.NoError(t, Schedule(alias.NewMap(block), block, testOpts))

	assert.Equal(t, []string{"store:B^0", "swap_out_B^0"}, stmtNames(block))
	assert.Equal(t, []string{"B", "B^0"}, refNames(block))
	ops := stmtOps(block)
	assert.Equal(t, []string{"store:B^0"}, depNames(block, ops[1]))
}

func TestScheduleReuseAcrossTwoReads(t *testing.T) {
	// Two reads of the same value with no intervening write share one
	// cache entry and one swap-in.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 64))
	block.Stmts.PushBack(ir.NewLoad("A", "x"))
	block.Stmts.PushBack(ir.NewLoad("A", "y"))

	require.NoError(t, Schedule(alias.NewMap(block), block, testOpts))

	assert.Equal(t, []string{"swap_in_A^0", "load:A^0", "load:A^0"}, stmtNames(block))
	assert.Equal(t, []string{"A", "A^0"}, refNames(block))
	ops := stmtOps(block)
	assert.Equal(t, []string{"swap_in_A^0"}, depNames(block, ops[1]))
	assert.Equal(t, []string{"swap_in_A^0"}, depNames(block, ops[2]))
}

func TestScheduleCapacityReuseViaAntiDependency(t *testing.T) {
	// Three refs of 512 bytes against a 1 KiB cache: the output's bytes
	// are reclaimed for the inputs, ordered by anti-dependencies rather
	// than extra swaps.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 128))
	block.AddRef(ramRef("B", ir.DirIn, 128))
	block.AddRef(ramRef("C", ir.DirOut, 128))
	block.Stmts.PushBack(ir.NewLoad("A", "x"))
	block.Stmts.PushBack(ir.NewLoad("B", "y"))
	block.Stmts.PushBack(ir.NewStore("z", "C"))

	require.NoError(t, Schedule(alias.NewMap(block), block, testOpts))

	assert.Equal(t,
		[]string{"swap_in_A^0", "load:A^0", "swap_in_B^0", "load:B^0", "store:C^0", "swap_out_C^0"},
		stmtNames(block))

	// C^0 reuses B^0's bytes, so the store waits for the load of B.
	ops := stmtOps(block)
	assert.Equal(t, []string{"load:B^0"}, depNames(block, ops[4]))
}

func TestScheduleEvictionForcesSwapIn(t *testing.T) {
	// Three read-only refs of 512 bytes against a 1 KiB cache: the
	// no-swap rungs cannot fit the third, so its entry evicts one of the
	// still-unwritten inputs, which is re-materialized by a swap-in.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 128))
	block.AddRef(ramRef("B", ir.DirIn, 128))
	block.AddRef(ramRef("C", ir.DirIn, 128))
	block.Stmts.PushBack(ir.NewLoad("A", "x"))
	block.Stmts.PushBack(ir.NewLoad("B", "y"))
	block.Stmts.PushBack(ir.NewLoad("C", "z"))

	require.NoError(t, Schedule(alias.NewMap(block), block, testOpts))

	assert.Equal(t,
		[]string{"swap_in_A^0", "load:A^0", "swap_in_C^0", "swap_in_B^0", "load:B^0", "load:C^0"},
		stmtNames(block))

	ops := stmtOps(block)
	loadC := ops[5]
	assert.Equal(t, []string{"swap_in_C^0"}, depNames(block, loadC))
	// The re-materializing swap-in must wait until A's load has vacated
	// the bytes.
	assert.Equal(t, []string{"load:A^0"}, depNames(block, ops[2]))
}

func TestScheduleResourceExhausted(t *testing.T) {
	// Two refs that each fill the whole cache, required simultaneously:
	// every strategy fails.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 256)) // 1024 bytes each
	block.AddRef(ramRef("B", ir.DirIn, 256))
	block.Stmts.PushBack(&ir.Special{Name: "concat", Inputs: []string{"A", "B"}, Outputs: nil})

	err := Schedule(alias.NewMap(block), block, testOpts)
	require.Error(t, err)
	var exhausted *ResourceExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, "main", exhausted.Block)
	assert.Equal(t, []string{"A", "B"}, exhausted.Refs)
	assert.Contains(t, err.Error(), "A, B")
}

func TestScheduleAliasedWriteInvalidatesReader(t *testing.T) {
	// Ap reads memory that partially aliases A, after A is written. The
	// scan sees the store first; writing A invalidates Ap's cache entry,
	// so a swap-in re-reads Ap after the store -- and that swap-in waits
	// for A's swap-out to land in backing memory.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirOut, 64))
	block.AddRef(ramRef("Ap", ir.DirIn, 64))
	block.Stmts.PushBack(ir.NewStore("x", "A"))
	block.Stmts.PushBack(ir.NewLoad("Ap", "y"))

	shape := ir.MakeShape("f32", 64)
	aliasMap := alias.Map{
		"A": {
			BaseRef: "base",
			Access:  []ir.Affine{ir.ConstAffine(0)},
			Shape:   shape,
			Extents: []alias.Extent{{Min: 0, Max: 63}},
		},
		"Ap": {
			BaseRef: "base",
			Access:  []ir.Affine{ir.ConstAffine(32)},
			Shape:   shape,
			Extents: []alias.Extent{{Min: 32, Max: 95}},
		},
	}
	require.Equal(t, alias.KindPartial, alias.Compare(aliasMap["A"], aliasMap["Ap"]))

	require.NoError(t, Schedule(aliasMap, block, testOpts))

	assert.Equal(t,
		[]string{"store:A^0", "swap_out_A^0", "swap_in_Ap^0", "load:Ap^0"},
		stmtNames(block))

	ops := stmtOps(block)
	assert.Equal(t, []string{"store:A^0"}, depNames(block, ops[1]))
	assert.Equal(t, []string{"swap_out_A^0"}, depNames(block, ops[2]))
	assert.Equal(t, []string{"swap_in_Ap^0"}, depNames(block, ops[3]))
}

func TestScheduleInternalPlacement(t *testing.T) {
	// A sub-block touches only a 512-byte tile of a 2 KiB ref: nothing
	// fits whole, so the tile is cached inside the sub-block, bridged to
	// the backing ref by a generated storage refinement and a slice-read
	// transfer.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 512)) // 2048 bytes, exceeds cache

	tile := ir.NewBlock("tile")
	tile.Idxs = []ir.Index{{Name: "j", Range: 4}}
	access := ir.NewAffine("j") // element offset scales with j
	tile.AddRef(&ir.Refinement{
		Dir:      ir.DirIn,
		From:     "A",
		Into:     "a_tile",
		Access:   []ir.Affine{access},
		Shape:    ir.MakeShape("f32", 128), // 512 bytes
		Location: ramLoc,
	})
	block.Stmts.PushBack(tile)

	require.NoError(t, Schedule(alias.NewMap(block), block, testOpts))

	// The backing ref survives alongside the tile-sized cache entry.
	assert.Equal(t, []string{"A", "A^0"}, refNames(block))
	cacheRef := block.RefByInto("A^0")
	require.NotNil(t, cacheRef)
	assert.Equal(t, ir.DirNone, cacheRef.Dir)
	assert.Equal(t, uint64(512), cacheRef.Shape.ByteSize())

	// The sub-block gained the bridge refinement and a leading
	// slice-read transfer; its own view now points at the cache entry.
	storage := tile.RefByInto("A_storage")
	require.NotNil(t, storage)
	assert.Equal(t, "A", storage.From)

	aTile := tile.RefByInto("a_tile")
	require.NotNil(t, aTile)
	assert.Equal(t, "A^0", aTile.From)
	assert.Equal(t, "CACHE", aTile.Location.Name)
	assert.True(t, aTile.Access[0].IsZero())

	first, ok := stmtOps(tile)[0].(*ir.Block)
	require.True(t, ok)
	assert.Equal(t, "read_slice_of_A", first.Name)
	src := first.RefByInto("src")
	require.NotNil(t, src)
	assert.Equal(t, "A_storage", src.From)
	// The transfer walks the tile with i0 and offsets it by the original
	// access affine.
	assert.Equal(t, int64(1), src.Access[0].Coefficient("i0"))
	assert.Equal(t, int64(1), src.Access[0].Coefficient("j"))
}

func TestScheduleExactAliasedWritersRejected(t *testing.T) {
	// Two refinements writing the same base with exact aliasing cannot
	// share final-write tracking; the block is rejected up front.
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirOut, 64))
	block.AddRef(ramRef("B", ir.DirOut, 64))
	block.Stmts.PushBack(ir.NewStore("x", "A"))
	block.Stmts.PushBack(ir.NewStore("y", "B"))

	shape := ir.MakeShape("f32", 64)
	info := alias.Info{
		BaseRef: "base",
		Access:  []ir.Affine{ir.ConstAffine(0)},
		Shape:   shape,
		Extents: []alias.Extent{{Min: 0, Max: 63}},
	}
	aliasMap := alias.Map{"A": info, "B": info}

	err := Schedule(aliasMap, block, testOpts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exact aliasing")
}

func TestScheduleMissingAliasInfo(t *testing.T) {
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 4))
	block.Stmts.PushBack(ir.NewLoad("A", "x"))

	err := Schedule(alias.Map{}, block, testOpts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no alias info for refinement "A"`)
}

func TestScheduleDepsAreTransitivelyMinimal(t *testing.T) {
	block := ir.NewBlock("main")
	block.AddRef(ramRef("A", ir.DirIn, 64))
	block.AddRef(ramRef("B", ir.DirOut, 64))
	block.Stmts.PushBack(ir.NewLoad("A", "x"))
	block.Stmts.PushBack(ir.NewStore("x", "B"))

	require.NoError(t, Schedule(alias.NewMap(block), block, testOpts))

	// Collect transitive deps forward and check no direct dep is implied
	// by another.
	tdeps := make(map[*ir.Stmt]map[*ir.Stmt]bool)
	for s := range block.Stmts.All {
		closure := make(map[*ir.Stmt]bool)
		for _, dep := range s.Op.Attrs().Deps {
			for inner := range tdeps[dep] {
				closure[inner] = true
			}
		}
		for _, dep := range s.Op.Attrs().Deps {
			assert.Falsef(t, closure[dep], "dep of %T already implied transitively", s.Op)
			closure[dep] = true
		}
		tdeps[s] = closure
	}
}
