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
	"fmt"
	"slices"

	"github.com/gomlx/tilesched/ir"
)

// cacheLocFor is the cache-side locality of a ref: MemLoc, with the unit
// overridden by the ref's cache unit when one is set.
func (s *scheduler) cacheLocFor(ri *refInfo) ir.Location {
	loc := s.memLoc
	if ri.ref.CacheUnit != nil {
		loc.Unit = *ri.ref.CacheUnit
	}
	return loc
}

// scheduleSwapIn inserts, just before si, a transfer block copying the
// entry's backing ref into the entry. The swap-in becomes a writer of the
// entry and a swap-in reader of its source; every known reader of the
// entry picks up a dependency on it. Dependencies *of* the swap-in are the
// caller's business -- and usually unnecessary: a swap-in targeting memory
// being reused will be depended on by all accessors of the entry
// overlapping it.
func (s *scheduler) scheduleSwapIn(si *ir.Stmt, ent *cacheEntry) *ir.Stmt {
	src := ent.source
	src.used = true

	swapBlock := ir.NewBlock("swap_in_" + ent.name)
	swapBlock.Location = s.xferLoc
	swapBlock.Idxs = slices.Clone(src.swapIdxs)
	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirIn,
		From:     src.ref.Into,
		Into:     "src",
		Access:   slicesCloneAffines(src.refSwapAccess),
		Shape:    src.refSwapShape.Clone(),
		Location: src.ref.Location,
		IsConst:  src.ref.IsConst,
	})
	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirOut,
		From:     ent.name,
		Into:     "dst",
		Access:   slicesCloneAffines(src.cacheSwapAccess),
		Shape:    src.cacheSwapShape.Clone(),
		Location: s.cacheLocFor(src),
		IsConst:  src.ref.IsConst,
	})
	swapBlock.Stmts.PushBack(ir.NewLoad("src", "$X"))
	swapBlock.Stmts.PushBack(ir.NewStore("$X", "dst"))

	swapInIt := s.block.Stmts.InsertBefore(swapBlock, si)
	ent.writers[swapBlock] = src.aliasInfo
	src.swapInReaders[swapBlock] = struct{}{}
	for reader := range ent.readers {
		attrs := reader.Attrs()
		attrs.Deps = append(attrs.Deps, swapInIt)
	}
	ent.sawEarliestWriter = true
	return swapInIt
}

// scheduleSwapOut inserts, just before si, a transfer block copying the
// entry back to its backing ref, and makes every pending swap-in reader of
// the backing memory wait for it. It records that the ref's runtime-final
// write has been covered. Dependencies of the swap-out are the caller's
// business.
func (s *scheduler) scheduleSwapOut(si *ir.Stmt, ent *cacheEntry, swapInReaders map[ir.Statement]struct{}) *ir.Stmt {
	src := ent.source
	src.used = true

	swapBlock := ir.NewBlock("swap_out_" + ent.name)
	swapBlock.Location = s.xferLoc
	swapBlock.Idxs = slices.Clone(src.swapIdxs)
	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirIn,
		From:     ent.name,
		Into:     "src",
		Access:   slicesCloneAffines(src.cacheSwapAccess),
		Shape:    src.cacheSwapShape.Clone(),
		Location: s.cacheLocFor(src),
		IsConst:  src.ref.IsConst,
	})
	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirOut,
		From:     src.ref.Into,
		Into:     "dst",
		Access:   slicesCloneAffines(src.refSwapAccess),
		Shape:    src.refSwapShape.Clone(),
		Location: src.ref.Location,
		IsConst:  src.ref.IsConst,
	})
	swapBlock.Stmts.PushBack(ir.NewLoad("src", "$X"))
	swapBlock.Stmts.PushBack(ir.NewStore("$X", "dst"))

	swapOutIt := s.block.Stmts.InsertBefore(swapBlock, si)
	for reader := range swapInReaders {
		attrs := reader.Attrs()
		attrs.Deps = append(attrs.Deps, swapOutIt)
	}
	src.sawFinalWrite = true
	return swapOutIt
}

// subblockSwapIdxs builds the index set of a sub-block swap: one unit-size
// index per free variable of the access affines (binding it to the outer
// index of the same name), then one tile index per axis sized by the
// entry's cache dims. It returns the tile index names.
func subblockSwapIdxs(swapBlock *ir.Block, ent *cacheEntry, access []ir.Affine) []string {
	seen := make(map[string]struct{})
	for _, acc := range access {
		for _, name := range acc.TermNames() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			swapBlock.Idxs = append(swapBlock.Idxs, ir.Index{Name: name, Range: 1, Affine: ir.NewAffine(name)})
		}
	}
	tileIdxs := make([]string, len(access))
	for i := range access {
		name := swapBlock.UniqueIdxName(fmt.Sprintf("i%d", i))
		swapBlock.Idxs = append(swapBlock.Idxs, ir.Index{Name: name, Range: ent.shape.Dims[i].Size})
		tileIdxs[i] = name
	}
	return tileIdxs
}

// addSubblockSwapIn prepends to block a transfer reading the entry's slice
// of the backing ref into the internal entry.
func (s *scheduler) addSubblockSwapIn(block *ir.Block, ent *cacheEntry, backingRefName string, access []ir.Affine) {
	src := ent.source
	swapBlock := ir.NewBlock("read_slice_of_" + src.name)
	swapBlock.Location = s.xferLoc
	tileIdxs := subblockSwapIdxs(swapBlock, ent, access)

	srcAccess := make([]ir.Affine, len(access))
	dstAccess := make([]ir.Affine, len(access))
	for i, name := range tileIdxs {
		srcAccess[i] = ir.NewAffine(name).Add(access[i])
		dstAccess[i] = ir.NewAffine(name)
	}

	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirIn,
		From:     backingRefName,
		Into:     "src",
		Access:   srcAccess,
		Shape:    src.refSwapShape.Clone(),
		Location: src.ref.Location,
		IsConst:  src.ref.IsConst,
	})
	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirOut,
		From:     ent.interiorName,
		Into:     "dst",
		Access:   dstAccess,
		Shape:    src.cacheSwapShape.Clone(),
		Location: s.cacheLocFor(src),
		IsConst:  src.ref.IsConst,
	})
	swapBlock.Stmts.PushBack(ir.NewLoad("src", "$X"))
	swapBlock.Stmts.PushBack(ir.NewStore("$X", "dst"))

	block.Stmts.PushFront(swapBlock)
}

// addSubblockSwapOut appends to block a transfer writing the internal
// entry back to the entry's slice of the backing ref.
func (s *scheduler) addSubblockSwapOut(block *ir.Block, ent *cacheEntry, backingRefName string, access []ir.Affine) {
	src := ent.source
	swapBlock := ir.NewBlock("write_slice_of_" + src.name)
	swapBlock.Location = s.xferLoc
	tileIdxs := subblockSwapIdxs(swapBlock, ent, access)

	srcAccess := make([]ir.Affine, len(access))
	dstAccess := make([]ir.Affine, len(access))
	for i, name := range tileIdxs {
		srcAccess[i] = ir.NewAffine(name)
		dstAccess[i] = ir.NewAffine(name).Add(access[i])
	}

	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirIn,
		From:     ent.interiorName,
		Into:     "src",
		Access:   srcAccess,
		Shape:    src.cacheSwapShape.Clone(),
		Location: s.cacheLocFor(src),
		IsConst:  src.ref.IsConst,
	})
	swapBlock.AddRef(&ir.Refinement{
		Dir:      ir.DirOut,
		From:     backingRefName,
		Into:     "dst",
		Access:   dstAccess,
		Shape:    src.refSwapShape.Clone(),
		Location: src.ref.Location,
		IsConst:  src.ref.IsConst,
	})
	swapBlock.Stmts.PushBack(ir.NewLoad("src", "$X"))
	swapBlock.Stmts.PushBack(ir.NewStore("$X", "dst"))

	block.Stmts.PushBack(swapBlock)
}
