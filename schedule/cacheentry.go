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
	"github.com/gomlx/tilesched/ir/alias"
)

// cacheEntry is one local instantiation of a value in cache. A value that
// is swapped out and back in gets a fresh entry, so a single backing ref
// may own several entries over the schedule.
type cacheEntry struct {
	// source is the backing refinement's scheduling state.
	source *refInfo

	// name is the entry's refinement name, "<ref>^<n>".
	name string

	// rng is the byte range the entry occupies in its unit.
	rng memRange

	// shape of the cached data. For internal entries this is the shape
	// interior to the sub-statement using it; otherwise the exterior
	// cache shape.
	shape ir.TensorShape

	// isInternal marks entries scoped to a single sub-statement; they are
	// never reused across statements.
	isInternal bool

	// interiorName is the name the owning sub-block uses for an internal
	// entry.
	interiorName string

	// firstAccessor is the first statement in runtime order that touches
	// the entry. Input swap-ins are inserted right before it.
	firstAccessor *ir.Stmt

	// writers and readers track the runtime-future accessors of the
	// entry's memory, with the alias summary each used.
	writers map[ir.Statement]alias.Info
	readers map[ir.Statement]alias.Info

	// sawEarliestWriter is set once the runtime-first writer of the entry
	// has been scheduled: from then on nothing in the runtime-past reads
	// the entry, so covering its memory needs no swap-in.
	sawEarliestWriter bool

	// uncoveredRanges is the portion of rng not yet shadowed by
	// later-scheduled (runtime-earlier) entries. When it empties the
	// entry stops constraining placement and leaves the active index.
	uncoveredRanges []memRange
}

func newCacheEntry(key placementKey, p *placement) *cacheEntry {
	ri := key.ri
	ent := &cacheEntry{
		source:       ri,
		name:         fmt.Sprintf("%s^%d", ri.name, ri.nextCacheEntry),
		rng:          p.rng,
		shape:        key.cacheShape,
		isInternal:   p.isInternal,
		interiorName: p.interiorName,
		writers:      make(map[ir.Statement]alias.Info),
		readers:      make(map[ir.Statement]alias.Info),
	}
	ri.nextCacheEntry++
	ent.uncoveredRanges = []memRange{ent.rng}
	return ent
}

// activeEntries is the per-unit index of live cache entries, ordered by
// range begin. Every member has non-empty uncoveredRanges.
type activeEntries struct {
	entries []*cacheEntry
}

// remove drops the entry from the index.
func (a *activeEntries) remove(ent *cacheEntry) {
	for i, e := range a.entries {
		if e == ent {
			a.entries = slices.Delete(a.entries, i, i+1)
			return
		}
	}
}

// splice merges newly created entries into the index and restores the
// order by range begin.
func (a *activeEntries) splice(added []*cacheEntry) {
	a.entries = append(a.entries, added...)
	slices.SortStableFunc(a.entries, func(lhs, rhs *cacheEntry) int {
		switch {
		case lhs.rng.Begin < rhs.rng.Begin:
			return -1
		case lhs.rng.Begin > rhs.rng.Begin:
			return 1
		}
		return 0
	})
}
