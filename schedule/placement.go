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
	"slices"
	"strings"

	"github.com/gomlx/tilesched/ir"
	"github.com/gomlx/tilesched/types/xslices"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// placement is one proposed assignment of a statement's IO to cache bytes.
type placement struct {
	// dir is what the statement does with the placement.
	dir ir.RefDir

	// size in bytes; equals rng.Size() once rng is assigned.
	size uint64

	// rng is where the placement goes.
	rng memRange

	// entry is filled in when the plan is applied, or points at the live
	// entry being reused.
	entry *cacheEntry

	// isInternal marks a sub-statement-scoped placement of a partial
	// tile; external placements may be reused between statements.
	isInternal bool

	// interiorName is the name the sub-block uses for an internal
	// placement.
	interiorName string
}

// placementKey identifies a placement within a plan: the ref being placed,
// the shape it is cached with, and (for internal placements) the access it
// is cached under.
type placementKey struct {
	ri         *refInfo
	cacheShape ir.TensorShape
	access     []ir.Affine
}

// planKeyID is the comparable form of a placementKey.
type planKeyID struct {
	ri     *refInfo
	shape  string
	access string
}

func (k placementKey) id() planKeyID {
	id := planKeyID{ri: k.ri, shape: k.cacheShape.String()}
	if len(k.access) > 0 {
		parts := xslices.Map(k.access, func(a ir.Affine) string { return a.String() })
		id.access = strings.Join(parts, ";")
	}
	return id
}

// fullKeyID is the id of a whole-ref placement of ri (exterior shape, no
// access) -- the form under which reusable entries appear in plans.
func fullKeyID(ri *refInfo) planKeyID {
	return placementKey{ri: ri, cacheShape: ri.exteriorCacheShape}.id()
}

// plannedPlacement pairs a key with its placement inside a plan.
type plannedPlacement struct {
	key placementKey
	p   placement
}

// placementPlan maps placement keys to placements, preserving insertion
// order so plan application is deterministic.
type placementPlan struct {
	order []planKeyID
	byKey map[planKeyID]*plannedPlacement
}

func newPlacementPlan() *placementPlan {
	return &placementPlan{byKey: make(map[planKeyID]*plannedPlacement)}
}

func (pp *placementPlan) clone() *placementPlan {
	out := &placementPlan{
		order: slices.Clone(pp.order),
		byKey: make(map[planKeyID]*plannedPlacement, len(pp.byKey)),
	}
	for id, planned := range pp.byKey {
		copied := *planned
		out.byKey[id] = &copied
	}
	return out
}

// getOrInsert adds the placement under its key, or returns the existing
// one. The returned bool reports whether an insertion happened.
func (pp *placementPlan) getOrInsert(key placementKey, p placement) (*plannedPlacement, bool) {
	id := key.id()
	if existing, ok := pp.byKey[id]; ok {
		return existing, false
	}
	planned := &plannedPlacement{key: key, p: p}
	pp.byKey[id] = planned
	pp.order = append(pp.order, id)
	return planned, true
}

func (pp *placementPlan) contains(id planKeyID) bool {
	_, ok := pp.byKey[id]
	return ok
}

// all iterates the plan in insertion order.
func (pp *placementPlan) all(yield func(*plannedPlacement) bool) {
	for _, id := range pp.order {
		if !yield(pp.byKey[id]) {
			return
		}
	}
}

// unitTodo is the list of IOs needing fresh placements in one unit.
type unitTodo struct {
	unit string
	ios  []ioRecord
}

// gatherPlacementState partitions a statement's IO into a prototype plan
// holding placements for refs that already have a live, still-valid cache
// entry, and the per-unit lists of IOs still needing placement (largest
// first, ref name as tiebreaker).
func (s *scheduler) gatherPlacementState(ios []ioRecord) (*placementPlan, []unitTodo) {
	plan := newPlacementPlan()
	var todoOrder []*refInfo
	todoIOs := make(map[*refInfo]ioRecord)

	for _, io := range ios {
		klog.V(2).Infof("  planning IO for ref %s dir=%s", io.ri.name, io.dir)
		key := placementKey{ri: io.ri, cacheShape: io.ri.exteriorCacheShape}
		if existing, ok := plan.byKey[key.id()]; ok {
			existing.p.dir = ir.UnionDir(existing.p.dir, io.dir)
			continue
		}

		// A live entry that has not yet seen its earliest writer will
		// still hold the value at this runtime position: reuse it.
		if ent := io.ri.cacheEntry; ent != nil && !ent.sawEarliestWriter {
			plan.getOrInsert(key, placement{dir: io.dir, size: ent.rng.Size(), rng: ent.rng, entry: ent})
			continue
		}

		// Keep the first IO's interior shape and access so the partial
		// rungs can place the tile; later IOs of the ref merge direction.
		if todo, ok := todoIOs[io.ri]; ok {
			todo.dir = ir.UnionDir(todo.dir, io.dir)
			todoIOs[io.ri] = todo
			continue
		}
		todoOrder = append(todoOrder, io.ri)
		todoIOs[io.ri] = io
	}

	byUnit := make(map[string][]ioRecord)
	for _, ri := range todoOrder {
		unit := ri.ref.Location.Unit.String()
		byUnit[unit] = append(byUnit[unit], todoIOs[ri])
	}
	var todos []unitTodo
	for _, unit := range xslices.SortedKeys(byUnit) {
		unitIOs := byUnit[unit]
		slices.SortFunc(unitIOs, func(lhs, rhs ioRecord) int {
			switch {
			case lhs.ri.size > rhs.ri.size:
				return -1
			case lhs.ri.size < rhs.ri.size:
				return 1
			}
			return strings.Compare(lhs.ri.name, rhs.ri.name)
		})
		todos = append(todos, unitTodo{unit: unit, ios: unitIOs})
	}
	return plan, todos
}

// makeFullPlacements proposes whole-ref placements for the IOs.
func makeFullPlacements(ios []ioRecord) []plannedPlacement {
	result := make([]plannedPlacement, 0, len(ios))
	for _, io := range ios {
		result = append(result, plannedPlacement{
			key: placementKey{ri: io.ri, cacheShape: io.ri.exteriorCacheShape},
			p:   placement{dir: io.dir, size: io.ri.size},
		})
	}
	return result
}

// makePartialPlacements proposes interior-shape placements: when a Block
// accesses only a tile of the ref, cache just the tile, scoped to the
// sub-statement.
func makePartialPlacements(ios []ioRecord) []plannedPlacement {
	result := make([]plannedPlacement, 0, len(ios))
	for _, io := range ios {
		interiorSize := io.interiorShape.ByteSize()
		isInternal := interiorSize != io.ri.size
		klog.V(2).Infof("      %s interior=%s interiorSize=%d exteriorSize=%d isInternal=%v",
			io.ri.name, io.interiorShape, interiorSize, io.ri.size, isInternal)
		key := placementKey{ri: io.ri, cacheShape: io.interiorShape}
		if isInternal {
			key.access = io.access
		}
		result = append(result, plannedPlacement{
			key: key,
			p:   placement{dir: io.dir, size: interiorSize, isInternal: isInternal, interiorName: io.interiorName},
		})
	}
	return result
}

// tryMakePlan walks the strategy ladder and returns the first plan that
// fits, or nil.
func (s *scheduler) tryMakePlan(currentBlock *ir.Block, ios []ioRecord) *placementPlan {
	existing, todos := s.gatherPlacementState(ios)

	todoFulls := make(map[string][]plannedPlacement, len(todos))
	todoPartials := make(map[string][]plannedPlacement, len(todos))
	for _, todo := range todos {
		todoFulls[todo.unit] = makeFullPlacements(todo.ios)
		todoPartials[todo.unit] = makePartialPlacements(todo.ios)
	}

	if plan := s.tryMakePlacedPlan(existing, todos, todoFulls, false); plan != nil {
		klog.V(2).Infof("  made plan with full IO and no swaps")
		return plan
	}
	if plan := s.tryMakePlacedPlan(existing, todos, todoPartials, false); plan != nil {
		klog.V(2).Infof("  made plan with tile IO and no swaps")
		return plan
	}
	if plan := s.tryMakePlacedPlan(existing, todos, todoFulls, true); plan != nil {
		klog.V(2).Infof("  made plan with full IO and swaps")
		return plan
	}
	if plan := s.tryMakePlacedPlan(existing, todos, todoPartials, true); plan != nil {
		klog.V(2).Infof("  made plan with tile IO and swaps")
		return plan
	}
	if plan := s.tryMakeFallbackPlan(makeFullPlacements(ios)); plan != nil {
		klog.V(2).Infof("  made full-IO plan ignoring existing entries")
		return plan
	}
	if currentBlock != nil {
		if plan := s.tryMakeFallbackPlan(makePartialPlacements(ios)); plan != nil {
			klog.V(2).Infof("  made tile-IO plan ignoring existing entries")
			return plan
		}
	}
	klog.V(2).Infof("  failed to make plan")
	return nil
}

// tryMakePlacedPlan attempts to place the todos around the live entries.
// Without allowSwaps, memory of any active entry that would need a swap-in
// (it has not yet seen its earliest writer and is not itself required by
// this statement) is off-limits. With allowSwaps only memory of entries
// required by this statement is off-limits; colliding with anything else
// produces swap-ins at apply time.
func (s *scheduler) tryMakePlacedPlan(existing *placementPlan, todos []unitTodo,
	placements map[string][]plannedPlacement, allowSwaps bool) *placementPlan {
	plan := existing.clone()

	for _, todo := range todos {
		klog.V(2).Infof("      planning memory unit=%q", todo.unit)
		ranges := []memRange{{Begin: 0, End: s.memBytes}}
		for _, ent := range s.activeFor(todo.unit).entries {
			required := plan.contains(fullKeyID(ent.source))
			subtract := required
			if !allowSwaps {
				subtract = !(ent.sawEarliestWriter && !required)
			}
			if subtract {
				klog.V(3).Infof("      subtracting range %s used by %s", ent.rng, ent.name)
				ranges = subtractRange(ent.rng, ranges)
			}
		}
		if !s.tryPlaceInRanges(plan, placements[todo.unit], ranges) {
			return nil
		}
	}
	return plan
}

// tryPlaceInRanges assigns each placement, largest first, to the free
// range leaving the least waste (best-waste first-fit). Placements whose
// key is already in the plan only merge their direction.
func (s *scheduler) tryPlaceInRanges(plan *placementPlan, placements []plannedPlacement, ranges []memRange) bool {
	for _, candidate := range placements {
		planned, inserted := plan.getOrInsert(candidate.key, candidate.p)
		if !inserted {
			planned.p.dir = ir.UnionDir(planned.p.dir, candidate.p.dir)
			continue
		}
		size := candidate.p.size
		bestIdx := -1
		bestWaste := s.memBytes
		for i, r := range ranges {
			if r.Size() < size {
				continue
			}
			waste := r.Size() - size
			if bestIdx >= 0 && bestWaste <= waste {
				continue
			}
			bestIdx = i
			bestWaste = waste
		}
		if bestIdx < 0 {
			return false
		}
		assigned := memRange{Begin: ranges[bestIdx].Begin, End: ranges[bestIdx].Begin + size}
		ranges = subtractRange(assigned, ranges)
		planned.p.rng = assigned
	}
	return true
}

// tryMakeFallbackPlan places everything sequentially per unit, ignoring
// live entries entirely. It succeeds iff the statement's refs
// simultaneously fit, which makes it the plan of last resort: every
// collision with live state becomes a swap.
func (s *scheduler) tryMakeFallbackPlan(placements []plannedPlacement) *placementPlan {
	plan := newPlacementPlan()
	offsets := make(map[string]uint64)

	for _, candidate := range placements {
		planned, inserted := plan.getOrInsert(candidate.key, candidate.p)
		if !inserted {
			planned.p.dir = ir.UnionDir(planned.p.dir, candidate.p.dir)
			continue
		}
		unit := candidate.key.ri.ref.Location.Unit.String()
		offset := offsets[unit]
		planned.p.rng = memRange{Begin: offset, End: offset + candidate.p.size}
		offsets[unit] = offset + alignUp(candidate.p.size, s.alignment)
		klog.V(2).Infof("      placed %s at %s, next=%d", candidate.key.ri.name, planned.p.rng, offsets[unit])
	}

	for _, offset := range offsets {
		if offset > s.memBytes {
			return nil
		}
	}
	return plan
}

// alignUp rounds v up to the next multiple of alignment.
func alignUp[T constraints.Unsigned](v, alignment T) T {
	return (v + alignment - 1) / alignment * alignment
}
