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

// Package schedule rewrites a block of the tiled tensor IR so that every
// statement works out of a bounded scratch memory ("cache") instead of the
// tensors' backing storage, inserting swap-in and swap-out transfer blocks
// where data has to move.
//
// The pass is a single linear scan of the block's statements in *reverse*
// order: statements ahead of the scan are in the runtime past, statements
// behind it in the runtime future. At the top of the loop the scheduler's
// state describes what the runtime future expects to find in cache; the
// scheduler's job is to extend that state to cover the statement under
// consideration, swapping values in and out so the already-scheduled
// future keeps its invariants.
//
// Scanning in reverse means data movement is initiated as early in runtime
// terms as possible, and it keeps the bookkeeping simpler: the data
// structures only ever track the desired runtime-future state instead of
// fixing up an already-emitted past.
//
// Schedule mutates the block in place. It requires exclusive access to the
// block for the duration of the call and holds no state between calls.
// A block must be scheduled at most once: re-running the pass on its own
// output is a precondition violation (the emitted cache-entry refinements
// carry no direction and would simply be ignored).
package schedule

import (
	"github.com/gomlx/tilesched/ir"
	"github.com/gomlx/tilesched/ir/alias"
	"github.com/gomlx/tilesched/types/xslices"
	"k8s.io/klog/v2"
)

// defaultAlignment is used for fallback-plan strides when Options leaves
// Alignment zero.
const defaultAlignment = 4

// Options configures a scheduling pass.
type Options struct {
	// MemLoc is the locality stamped onto cache-entry refinements and the
	// cache side of swap blocks.
	MemLoc ir.Location

	// MemKiB is the cache capacity in KiB, per unit.
	MemKiB uint64

	// Alignment in bytes for fallback-plan placement strides. Zero means
	// the default of 4.
	Alignment uint64

	// XferLoc is the locality stamped on generated swap blocks.
	XferLoc ir.Location
}

// Schedule rewrites block so its statements run out of cache memory, using
// aliasMap to reason about refinements that may share storage. On success
// the block's statements refer to generated cache-entry refinements, swap
// blocks cover all needed transfers, and statement deps carry the
// transitively-minimal execution order.
//
// The only operational failure is a *ResourceExhaustedError, returned when
// some statement's refinements cannot simultaneously fit in cache.
func Schedule(aliasMap alias.Map, block *ir.Block, opts Options) error {
	alignment := opts.Alignment
	if alignment == 0 {
		alignment = defaultAlignment
	}
	s := &scheduler{
		block:     block,
		memLoc:    opts.MemLoc,
		memBytes:  opts.MemKiB * 1024,
		alignment: alignment,
		xferLoc:   opts.XferLoc,
		active:    make(map[string]*activeEntries),
	}
	if err := s.buildRefInfoMap(aliasMap); err != nil {
		return err
	}
	return s.run()
}

// scheduler holds the state of one pass.
type scheduler struct {
	block     *ir.Block
	memLoc    ir.Location
	memBytes  uint64
	alignment uint64
	xferLoc   ir.Location

	// riMap indexes scheduling state by refinement name.
	riMap map[string]*refInfo

	// baseRefAliases groups refInfos by base buffer.
	baseRefAliases map[string]*[]*refInfo

	// cacheEntries lists every entry created by the pass, in creation
	// order. They become refinements on the block at the end.
	cacheEntries []*cacheEntry

	// active indexes, per unit, the cache entries the runtime future
	// expects to have available, ordered by starting offset. It is how
	// the planner finds holes. Entries may overlap and a backing ref may
	// appear several times; entries valid for the *current* statement are
	// found via riMap, not here. An entry leaves the index once
	// later-created entries fully cover its range: the covering entries
	// have already picked up the dependencies the covered one would
	// impose.
	active map[string]*activeEntries
}

func (s *scheduler) activeFor(unit string) *activeEntries {
	entries, ok := s.active[unit]
	if !ok {
		entries = &activeEntries{}
		s.active[unit] = entries
	}
	return entries
}

// run drives the reverse scan and the post-loop finalization.
func (s *scheduler) run() error {
	for si := s.block.Stmts.Back(); si != nil; si = si.Prev() {
		// siNext is the insertion cursor for statements that must follow
		// the current one at runtime; swap scheduling moves it.
		siNext := si.Next()

		currentBlock, _ := si.Op.(*ir.Block)
		if klog.V(2).Enabled() {
			if currentBlock != nil {
				klog.V(2).Infof("scheduling block %q", currentBlock.Name)
			} else {
				klog.V(2).Infof("scheduling statement %T", si.Op)
			}
		}

		ios, b := s.gatherIO(si.Op)

		// Writing a ref invalidates any live cache entry of an aliased
		// ref: the runtime future must re-read it from backing memory, so
		// swap it in right after this statement. While here, collect the
		// swap-in readers of everything aliased -- a swap-out of this
		// write must precede them all.
		pendingSwapInReaders := make(map[*refInfo]map[ir.Statement]struct{})
		for _, io := range ios {
			if !ir.IsWriteDir(io.dir) {
				continue
			}
			ri := io.ri
			readers, ok := pendingSwapInReaders[ri]
			if !ok {
				readers = make(map[ir.Statement]struct{})
				pendingSwapInReaders[ri] = readers
			}
			for _, aliasRI := range *ri.aliases {
				if aliasRI != ri && alias.Compare(ri.aliasInfo, aliasRI.aliasInfo) == alias.KindNone {
					continue
				}
				if aliasRI != ri && aliasRI.cacheEntry != nil {
					siNext = s.scheduleSwapIn(siNext, aliasRI.cacheEntry)
					aliasRI.cacheEntry = nil
				}
				for reader := range aliasRI.swapInReaders {
					readers[reader] = struct{}{}
				}
			}
		}

		plan := s.tryMakePlan(currentBlock, ios)
		if plan == nil {
			return s.resourceExhausted(currentBlock, ios)
		}

		// Apply the plan. For each placement: bind it to a cache entry
		// (creating one if the future established none), wire dependency
		// tracking, decide swap-outs, and resolve collisions with
		// runtime-future entries occupying the same bytes.
		addedEntries := make(map[string][]*cacheEntry)
		var addedRefs []*ir.Refinement
		internalBackingRefNames := make(map[*refInfo]string)

		for planned := range plan.all {
			ri := planned.key.ri
			klog.V(2).Infof("applying placement for %s", ri.name)
			p := &planned.p

			ent := p.entry
			isNewEntry := ent == nil
			if isNewEntry {
				ent = newCacheEntry(planned.key, p)
				s.cacheEntries = append(s.cacheEntries, ent)
				klog.V(2).Infof("created cache entry %s at %s unit=%q shape=%s internal=%v",
					ent.name, ent.rng, ent.source.ref.Location.Unit, ent.shape, ent.isInternal)
				p.entry = ent
				ri.cacheEntry = ent
			}

			// reuseDep is what colliding future entries must wait for; a
			// swap-out moves it past the swap.
			reuseDep := si

			if p.isInternal {
				// The entry holds a partial tile scoped to the sub-block:
				// bridge the backing ref into the block once, then swap the
				// tile in and out inside it.
				backingName, ok := internalBackingRefNames[ri]
				if !ok {
					backingName = currentBlock.UniqueRefName(ri.name + "_storage")
					internalBackingRefNames[ri] = backingName
					// The bridge refines the backing ref directly, so the
					// backing ref must survive on the scheduled block.
					ri.used = true
					addedRefs = append(addedRefs, &ir.Refinement{
						Dir:      p.dir,
						From:     ent.source.ref.Into,
						Into:     backingName,
						Access:   slicesCloneAffines(ent.source.aliasInfo.Access),
						Shape:    ent.source.aliasInfo.Shape.Clone(),
						Location: ent.source.ref.Location,
						IsConst:  ent.source.ref.IsConst,
					})
				}
				if ir.IsReadDir(p.dir) {
					s.addSubblockSwapIn(currentBlock, ent, backingName, planned.key.access)
				}
				if ir.IsWriteDir(p.dir) {
					s.addSubblockSwapOut(currentBlock, ent, backingName, planned.key.access)
				}
			} else {
				if ir.IsWriteDir(p.dir) {
					// Runtime-future readers of these bytes must finish
					// before this statement overwrites them.
					for reader, readerInfo := range ent.readers {
						if alias.Compare(ri.aliasInfo, readerInfo) != alias.KindNone {
							attrs := reader.Attrs()
							attrs.Deps = append(attrs.Deps, si)
						}
					}
					ent.writers[si.Op] = ri.aliasInfo
					if si.Op == ent.source.earliestWriter {
						ent.sawEarliestWriter = true
					}
				}
				if ir.IsReadDir(p.dir) {
					ent.readers[si.Op] = ri.aliasInfo
				}
				ent.firstAccessor = si

				// Swap out iff this write must reach backing memory: the
				// ref leaves the block as out/inout and its runtime-last
				// write has no swap-out yet, or swap-ins of aliased reads
				// are waiting on the backing bytes.
				if ir.IsWriteDir(p.dir) &&
					((ir.IsWriteDir(ri.ref.Dir) && !ri.sawFinalWrite) || len(pendingSwapInReaders[ri]) > 0) {
					klog.V(2).Infof("  adding swap-out for %s at %s", ent.name, ent.rng)
					swapOut := s.scheduleSwapOut(si.Next(), ent, pendingSwapInReaders[ri])
					attrs := swapOut.Op.Attrs()
					attrs.Deps = append(attrs.Deps, si)
					reuseDep = swapOut
				}
			}

			// Resolve collisions with runtime-future entries whose bytes
			// this entry now occupies.
			activeList := s.activeFor(ent.source.ref.Location.Unit.String())
			for _, futureEnt := range slicesSnapshot(activeList.entries) {
				if futureEnt == ent || !rangeOverlapsAny(ent.rng, futureEnt.uncoveredRanges) {
					continue
				}

				if isNewEntry {
					klog.V(2).Infof("new entry %s at %s collides with %s at %s",
						ent.name, ent.rng, futureEnt.name, futureEnt.rng)
					if !futureEnt.sawEarliestWriter {
						// The future entry's value comes from the runtime
						// past; re-materialize it after this statement (and
						// after any swap-out of these bytes).
						klog.V(2).Infof("  adding swap-in for %s at %s", futureEnt.name, futureEnt.rng)
						s.scheduleSwapIn(reuseDep.Next(), futureEnt)
					}
					for writer := range futureEnt.writers {
						attrs := writer.Attrs()
						attrs.Deps = append(attrs.Deps, reuseDep)
					}
					futureEnt.uncoveredRanges = subtractRange(ent.rng, futureEnt.uncoveredRanges)
					if len(futureEnt.uncoveredRanges) == 0 {
						klog.V(2).Infof("  entry %s fully covered; leaving active index", futureEnt.name)
						activeList.remove(futureEnt)
						if futureEnt.source.cacheEntry == futureEnt {
							futureEnt.source.cacheEntry = nil
						}
					}
				}

				for writer := range futureEnt.writers {
					attrs := writer.Attrs()
					attrs.Deps = append(attrs.Deps, reuseDep)
				}
			}

			if isNewEntry && !p.isInternal {
				unit := ent.source.ref.Location.Unit.String()
				addedEntries[unit] = append(addedEntries[unit], ent)
			}
		}

		for _, unit := range xslices.SortedKeys(addedEntries) {
			s.activeFor(unit).splice(addedEntries[unit])
		}

		b.apply()
		if currentBlock != nil && len(addedRefs) > 0 {
			currentBlock.Refs = append(currentBlock.Refs, addedRefs...)
		}

		// Internal entries are single-statement: hide them from
		// earlier-scheduled statements.
		for planned := range plan.all {
			ri := planned.key.ri
			if ri.cacheEntry != nil && ri.cacheEntry.isInternal {
				ri.cacheEntry = nil
			}
		}
	}

	s.finish()
	return nil
}

// finish inserts the input swap-ins, converts cache entries into block
// refinements, restores used backing refinements and minimizes deps.
func (s *scheduler) finish() {
	// Entries still live without any writer hold program inputs: swap
	// each in right before its first accessor. They have no incoming
	// deps, so a runtime may issue them in any order; placing each just
	// before first use tends to queue transfers in a compute-friendly
	// order anyway.
	for _, unit := range xslices.SortedKeys(s.active) {
		for _, ent := range s.active[unit].entries {
			if ent.source.earliestWriter == nil {
				klog.V(2).Infof("  adding input swap-in for %s", ent.name)
				s.scheduleSwapIn(ent.firstAccessor, ent)
			}
		}
	}

	// The block's refinement vector is rebuilt from scratch: one
	// refinement per cache entry plus the used backing refinements.
	s.block.Refs = nil
	for _, ent := range s.cacheEntries {
		ref := s.block.RefByInto(ent.name)
		if ref == nil {
			ref = s.block.AddRef(ent.source.ref.Clone())
		}
		ref.Dir = ir.DirNone
		ref.From = ""
		ref.Into = ent.name
		ref.Shape = ent.shape.Clone()
		ref.Location = s.memLoc
		if ent.source.ref.CacheUnit != nil {
			ref.Location.Unit = *ent.source.ref.CacheUnit
		}
		ref.IsConst = ent.source.ref.IsConst
		ref.Offset = ent.rng.Begin
	}

	// Backing refinements touched by swaps go back onto the block;
	// everything unused is pruned.
	for _, name := range xslices.SortedKeys(s.riMap) {
		ri := s.riMap[name]
		if !ri.used {
			continue
		}
		if ref := s.block.RefByInto(ri.ref.Into); ref != nil {
			*ref = *ri.ref
		} else {
			s.block.AddRef(ri.ref)
		}
	}

	s.rebuildTransitiveDeps()

	// Refinement order carries no meaning; sort by name so output is
	// reproducible.
	slicesSortRefs(s.block.Refs)
}
