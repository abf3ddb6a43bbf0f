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

	"github.com/gomlx/tilesched/ir"
	"github.com/gomlx/tilesched/ir/alias"
	"github.com/gomlx/tilesched/types/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// refInfo tracks the scheduling state of one backing refinement across the
// scan.
type refInfo struct {
	// ref is a private copy of the backing refinement: the scheduler
	// rebuilds the block's refinement vector at the end of the pass, so it
	// cannot hold pointers into it.
	ref *ir.Refinement

	// aliasInfo summarizes the accesses this ref can make on its base.
	aliasInfo alias.Info

	// exteriorCacheShape is the ref's shape restrided to dense packing --
	// the shape of its data while resident in cache and shared across
	// sub-statements.
	exteriorCacheShape ir.TensorShape

	// Shapes, accesses and indices used to build whole-ref swap blocks:
	// one index per axis, 1-sized tiles on both sides.
	refSwapShape    ir.TensorShape
	cacheSwapShape  ir.TensorShape
	refSwapAccess   []ir.Affine
	cacheSwapAccess []ir.Affine
	swapIdxs        []ir.Index

	// size is the ref's byte footprint when cached.
	size uint64

	// used becomes sticky-true once any swap refers to the backing
	// refinement. Unused refinements are pruned from the output block.
	used bool

	// sawFinalWrite is set by the first swap-out (in scheduling order,
	// i.e. the runtime-last write) emitted for this ref. Later (runtime-
	// earlier) writes may elide their swap-outs.
	sawFinalWrite bool

	// cacheEntry is where the runtime-future of the scan position expects
	// to find this ref's value, or nil.
	cacheEntry *cacheEntry

	// swapInReaders are the swap-in statements that read this ref's
	// backing memory; a swap-out of the ref must complete before any of
	// them run.
	swapInReaders map[ir.Statement]struct{}

	// nextCacheEntry numbers this ref's cache entries.
	nextCacheEntry int

	// aliases is the group of refInfos sharing this ref's base buffer
	// (including this one).
	aliases *[]*refInfo

	// earliestWriter is the first statement in runtime order that writes
	// this ref, or nil if the block never writes it.
	earliestWriter ir.Statement

	// name is the ref's block-local name.
	name string
}

func newRefInfo(ref *ir.Refinement, aliasInfo alias.Info) *refInfo {
	ri := &refInfo{
		ref:           ref.Clone(),
		aliasInfo:     aliasInfo,
		name:          ref.Into,
		swapInReaders: make(map[ir.Statement]struct{}),
	}
	ri.exteriorCacheShape = ref.Shape.WithNaturalStrides()
	ri.size = ri.exteriorCacheShape.ByteSize()

	sizes := ri.exteriorCacheShape.Sizes()
	for i, size := range sizes {
		idxName := fmt.Sprintf("i%d", i)
		ri.swapIdxs = append(ri.swapIdxs, ir.Index{Name: idxName, Range: size})
		ri.refSwapAccess = append(ri.refSwapAccess, ir.NewAffine(idxName))
		ri.cacheSwapAccess = append(ri.cacheSwapAccess, ir.NewAffine(idxName))
	}

	// Swap blocks copy element-by-element: both sides use 1-sized tiles.
	ri.refSwapShape = ref.Shape.Clone()
	ri.cacheSwapShape = ri.exteriorCacheShape.Clone()
	for i := range sizes {
		ri.refSwapShape.Dims[i].Size = 1
		ri.cacheSwapShape.Dims[i].Size = 1
	}

	klog.V(2).Infof("created refInfo %s shape=%s size=%d", ri.name, ri.exteriorCacheShape, ri.size)
	return ri
}

// buildRefInfoMap creates one refInfo per block refinement, records each
// ref's earliest (runtime order) writer and groups refs by base buffer.
func (s *scheduler) buildRefInfoMap(aliasMap alias.Map) error {
	s.riMap = make(map[string]*refInfo, len(s.block.Refs))
	for _, ref := range s.block.Refs {
		info, ok := aliasMap[ref.Into]
		if !ok {
			return errors.Errorf("no alias info for refinement %q of block %q", ref.Into, s.block.Name)
		}
		s.riMap[ref.Into] = newRefInfo(ref, info)
	}

	for stmt := range s.block.Stmts.All {
		for _, written := range stmt.Op.BufferWrites() {
			ri, ok := s.riMap[written]
			if !ok {
				return errors.Errorf("statement writes unknown refinement %q in block %q", written, s.block.Name)
			}
			if ri.earliestWriter == nil {
				ri.earliestWriter = stmt.Op
			}
		}
	}

	s.baseRefAliases = make(map[string]*[]*refInfo)
	for _, name := range xslices.SortedKeys(s.riMap) {
		ri := s.riMap[name]
		group, ok := s.baseRefAliases[ri.aliasInfo.BaseRef]
		if !ok {
			group = &[]*refInfo{}
			s.baseRefAliases[ri.aliasInfo.BaseRef] = group
		}
		*group = append(*group, ri)
		ri.aliases = group
	}

	// Two distinct refinements writing the same base with exact aliasing
	// would need to share final-write elision state, which is tracked
	// per refinement. Reject such blocks rather than emit a double or
	// missing swap-out.
	for _, group := range s.baseRefAliases {
		for i, a := range *group {
			if a.earliestWriter == nil {
				continue
			}
			for _, b := range (*group)[i+1:] {
				if b.earliestWriter == nil {
					continue
				}
				if alias.Compare(a.aliasInfo, b.aliasInfo) == alias.KindExact {
					return errors.Errorf(
						"refinements %q and %q of block %q write the same memory with exact aliasing; "+
							"merge them into a single refinement before scheduling",
						a.name, b.name, s.block.Name)
				}
			}
		}
	}
	return nil
}
