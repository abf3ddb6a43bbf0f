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

// Package ir defines the tiled tensor intermediate representation consumed
// by the scheduler: blocks of statements operating on tensor refinements.
//
// The main elements in the package are:
//
//   - Block: a container statement with loop indices (Index), tensor views
//     (Refinement) and an ordered list of sub-statements (StmtList). Blocks
//     nest: a sub-statement may itself be a Block refining its parent's
//     refinements.
//
//   - Statement: the interface implemented by the statement variants --
//     Load, Store, Constant, Special, Intrinsic and Block. Every statement
//     carries a list of dependency handles (deps) that encode the partial
//     execution order a runtime must respect.
//
//   - Refinement: a named, directed view of a tensor buffer, with a
//     TensorShape (per-axis size and stride), access offsets (Affine per
//     axis) and a memory Location.
//
//   - StmtList: a doubly-linked statement list whose element handles
//     (*Stmt) stay valid across insertions. Passes routinely hold handles
//     into the list while splicing new statements around them, so handle
//     stability is part of the contract.
//
// The package also provides YAML encoding of blocks (see MarshalBlock and
// UnmarshalBlock) and a pretty-printer (Block.String) used by tools and
// tests. Scheduling itself lives in the schedule package.
package ir

// Location names a memory locality: a memory space name plus a unit affine
// selecting a bank within it. Each distinct unit is a separate memory with
// its own capacity.
type Location struct {
	Name string `yaml:"name"`
	Unit Affine `yaml:"unit,omitempty"`
}

// Equal reports whether the two locations are the same locality.
func (l Location) Equal(o Location) bool {
	return l.Name == o.Name && l.Unit.Equal(o.Unit)
}

// String returns "NAME" or "NAME[unit]" when the unit is non-zero.
func (l Location) String() string {
	if l.Unit.IsZero() {
		return l.Name
	}
	return l.Name + "[" + l.Unit.String() + "]"
}

// Index is one loop index of a Block: a name, the number of iterations, and
// an optional affine binding the index to the enclosing block's indices.
type Index struct {
	Name   string `yaml:"name"`
	Range  uint64 `yaml:"range"`
	Affine Affine `yaml:"affine,omitempty"`
}
