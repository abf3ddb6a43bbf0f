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

	"github.com/gomlx/tilesched/ir"
)

// rebuildTransitiveDeps replaces every statement's deps with the
// transitively-minimal equivalent: scheduling emits conservative (and
// sometimes duplicated) edges, so a forward sweep computes each
// statement's transitive dependency set and drops direct deps already
// implied by another. The surviving deps are ordered by statement
// position.
func (s *scheduler) rebuildTransitiveDeps() {
	position := make(map[*ir.Stmt]int, s.block.Stmts.Len())
	i := 0
	for si := range s.block.Stmts.All {
		position[si] = i
		i++
	}

	tdeps := make(map[*ir.Stmt]map[*ir.Stmt]struct{}, s.block.Stmts.Len())
	for si := range s.block.Stmts.All {
		attrs := si.Op.Attrs()
		stmtDeps := make(map[*ir.Stmt]struct{}, len(attrs.Deps))
		stmtTdeps := make(map[*ir.Stmt]struct{})
		for _, dep := range attrs.Deps {
			stmtDeps[dep] = struct{}{}
			for transitive := range tdeps[dep] {
				stmtTdeps[transitive] = struct{}{}
			}
		}

		attrs.Deps = attrs.Deps[:0]
		for dep := range stmtDeps {
			if _, implied := stmtTdeps[dep]; !implied {
				attrs.Deps = append(attrs.Deps, dep)
			}
		}
		slices.SortFunc(attrs.Deps, func(lhs, rhs *ir.Stmt) int {
			return position[lhs] - position[rhs]
		})

		for dep := range stmtDeps {
			stmtTdeps[dep] = struct{}{}
		}
		tdeps[si] = stmtTdeps
	}
}
