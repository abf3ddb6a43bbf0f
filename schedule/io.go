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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tilesched/ir"
)

// ioRecord is one unit of buffer IO performed by a statement.
type ioRecord struct {
	ri  *refInfo
	dir ir.RefDir

	// interiorShape is the shape the statement accesses. For Block
	// statements this is the sub-refinement's shape restrided to dense
	// packing; for everything else the ref's exterior cache shape.
	interiorShape ir.TensorShape

	// interiorName is the sub-refinement's name (Block statements only).
	interiorName string

	// access holds the sub-refinement's access affines (Block statements
	// only).
	access []ir.Affine
}

// binder rewrites a statement's refinement references to the cache-entry
// names chosen by placement. It captures pointers into the statement, so
// it must be applied before the next statement is scheduled (while the
// refInfo cacheEntry pointers still describe this statement).
type binder struct {
	// nameUpdates rewrites plain name fields (Load.From, Store.Into,
	// Special inputs/outputs).
	nameUpdates []nameUpdate

	// refUpdates rewrites a Block statement's refinements.
	refUpdates []refUpdate
	block      *ir.Block

	memLoc ir.Location
}

type nameUpdate struct {
	field *string
	ri    *refInfo
}

type refUpdate struct {
	ref *ir.Refinement
	ri  *refInfo
}

// apply performs the captured rewrites.
func (b *binder) apply() {
	for _, update := range b.nameUpdates {
		*update.field = update.ri.cacheEntry.name
	}
	for _, update := range b.refUpdates {
		ref, ri := update.ref, update.ri
		ref.From = ri.cacheEntry.name
		ref.Location = b.memLoc
		if ri.ref.CacheUnit != nil {
			ref.Location.Unit = *ri.ref.CacheUnit
		}
		if ri.cacheEntry.isInternal {
			// The sub-block sees only its own slice, freshly packed.
			ref.Shape = ri.cacheEntry.shape.Clone()
			for i := range ref.Access {
				ref.Access[i] = ir.Affine{}
			}
		} else {
			for i := range ref.Shape.Dims {
				ref.Shape.Dims[i].Stride = ri.exteriorCacheShape.Dims[i].Stride
			}
		}
		ir.FixupRefs(b.block, ref.Into)
	}
}

// gatherIO lists the buffer IO a statement performs and builds the binder
// that will rewrite its references once placement is decided.
func (s *scheduler) gatherIO(stmt ir.Statement) ([]ioRecord, binder) {
	switch op := stmt.(type) {
	case *ir.Load:
		ri := s.refInfoFor(op.From)
		return []ioRecord{{ri: ri, dir: ir.DirIn, interiorShape: ri.exteriorCacheShape}},
			binder{nameUpdates: []nameUpdate{{&op.From, ri}}}

	case *ir.Store:
		ri := s.refInfoFor(op.Into)
		return []ioRecord{{ri: ri, dir: ir.DirOut, interiorShape: ri.exteriorCacheShape}},
			binder{nameUpdates: []nameUpdate{{&op.Into, ri}}}

	case *ir.Special:
		// A special may access one tensor as both input and output; the
		// IO set unions directions per distinct ref.
		var ios []ioRecord
		var updates []nameUpdate
		ioByRef := make(map[*refInfo]int)
		addAccess := func(name *string, dir ir.RefDir) {
			ri := s.refInfoFor(*name)
			updates = append(updates, nameUpdate{name, ri})
			if idx, ok := ioByRef[ri]; ok {
				ios[idx].dir = ir.UnionDir(ios[idx].dir, dir)
				return
			}
			ioByRef[ri] = len(ios)
			ios = append(ios, ioRecord{ri: ri, dir: dir, interiorShape: ri.exteriorCacheShape})
		}
		for i := range op.Inputs {
			addAccess(&op.Inputs[i], ir.DirIn)
		}
		for i := range op.Outputs {
			addAccess(&op.Outputs[i], ir.DirOut)
		}
		return ios, binder{nameUpdates: updates}

	case *ir.Block:
		var ios []ioRecord
		var updates []refUpdate
		for _, ref := range op.Refs {
			if ref.Dir == ir.DirNone {
				continue
			}
			ri := s.refInfoFor(ref.From)
			updates = append(updates, refUpdate{ref, ri})
			ios = append(ios, ioRecord{
				ri:            ri,
				dir:           ref.Dir,
				interiorShape: ref.Shape.WithNaturalStrides(),
				interiorName:  ref.Into,
				access:        ref.Access,
			})
		}
		return ios, binder{refUpdates: updates, block: op, memLoc: s.memLoc}

	case *ir.Constant, *ir.Intrinsic:
		return nil, binder{}

	default:
		exceptions.Panicf("schedule: unknown statement type %T in block %q", stmt, s.block.Name)
		panic("unreachable")
	}
}

func (s *scheduler) refInfoFor(name string) *refInfo {
	ri, ok := s.riMap[name]
	if !ok {
		exceptions.Panicf("schedule: statement refers to unknown refinement %q in block %q", name, s.block.Name)
	}
	return ri
}
