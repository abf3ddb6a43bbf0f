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

// Package alias summarizes which refinements of a block may touch the same
// memory.
//
// Each refinement gets an Info: the identity of the base buffer it refines
// plus the per-axis extents its accesses can reach. Compare is a ternary
// relation over two Infos -- KindNone means provably disjoint, which
// licenses scheduling the two refinements independently.
package alias

import (
	"github.com/gomlx/tilesched/ir"
)

// Kind is the result of comparing two refinements' access summaries.
type Kind int

//go:generate go tool enumer -type=Kind -trimprefix=Kind -transform=snake -text -yaml -output=gen_kind_enumer.go alias.go

const (
	// KindNone means the two refinements are provably disjoint.
	KindNone Kind = iota

	// KindPartial means the two refinements may overlap.
	KindPartial

	// KindExact means the two refinements cover exactly the same memory.
	KindExact
)

// Extent is the inclusive interval of element offsets an access can reach
// along one axis.
type Extent struct {
	Min int64
	Max int64
}

// Overlaps reports whether the two extents intersect.
func (e Extent) Overlaps(o Extent) bool { return e.Min <= o.Max && o.Min <= e.Max }

// Info summarizes one refinement's possible accesses: the base buffer it
// refines, its access affines, its shape, and the extents the accesses can
// reach per axis.
type Info struct {
	BaseRef string
	Access  []ir.Affine
	Shape   ir.TensorShape
	Extents []Extent
}

// Map indexes alias summaries by refinement name.
type Map map[string]Info

// Compare returns the aliasing relation between the two summaries.
func Compare(a, b Info) Kind {
	if a.BaseRef != b.BaseRef {
		return KindNone
	}
	if accessesEqual(a.Access, b.Access) && a.Shape.Equal(b.Shape) {
		return KindExact
	}
	if len(a.Extents) != len(b.Extents) {
		// Incomparable views of the same base: assume they may touch.
		return KindPartial
	}
	for i, extent := range a.Extents {
		if !extent.Overlaps(b.Extents[i]) {
			return KindNone
		}
	}
	return KindPartial
}

func accessesEqual(a, b []ir.Affine) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// NewInfo builds the summary for a refinement standing alone: its base is
// the refinement it refines (From), or itself for a root, and its extents span from each access affine's constant offset to
// the end of the axis. Index terms are assumed to range over non-negative
// values bounded by the axis size.
func NewInfo(ref *ir.Refinement) Info {
	info := Info{
		BaseRef: baseName(ref),
		Access:  ref.Access,
		Shape:   ref.Shape,
	}
	for i, dim := range ref.Shape.Dims {
		var base int64
		if i < len(ref.Access) {
			base = ref.Access[i].Constant()
		}
		if dim.Size == 0 {
			info.Extents = append(info.Extents, Extent{Min: base, Max: base})
			continue
		}
		info.Extents = append(info.Extents, Extent{Min: base, Max: base + int64(dim.Size) - 1})
	}
	return info
}

func baseName(ref *ir.Refinement) string {
	if ref.From != "" {
		return ref.From
	}
	return ref.Into
}

// NewMap builds the alias map for a block, treating each refinement root as
// its own base buffer. Callers with deeper knowledge of the surrounding
// program can substitute their own summaries.
func NewMap(b *ir.Block) Map {
	m := make(Map, len(b.Refs))
	for _, ref := range b.Refs {
		m[ref.Into] = NewInfo(ref)
	}
	return m
}
