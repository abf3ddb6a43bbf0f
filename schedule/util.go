package schedule

import (
	"slices"
	"strings"

	"github.com/gomlx/tilesched/ir"
)

// slicesCloneAffines returns a copy of the affine slice (affines themselves
// are immutable values).
func slicesCloneAffines(access []ir.Affine) []ir.Affine {
	return slices.Clone(access)
}

// slicesSnapshot copies a slice so it can be iterated while the original is
// mutated.
func slicesSnapshot[T any](s []T) []T {
	return slices.Clone(s)
}

// slicesSortRefs orders refinements by name.
func slicesSortRefs(refs []*ir.Refinement) {
	slices.SortFunc(refs, func(lhs, rhs *ir.Refinement) int {
		return strings.Compare(lhs.Into, rhs.Into)
	})
}
