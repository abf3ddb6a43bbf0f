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

package ir

import (
	"fmt"
)

// Block is the container statement: a named tile of work with loop indices,
// refinements bridging tensors in from the enclosing block, and an ordered
// list of sub-statements.
type Block struct {
	StmtAttrs `yaml:"-"`

	Name     string        `yaml:"name"`
	Comments []string      `yaml:"comments,omitempty"`
	Location Location      `yaml:"location,omitempty"`
	Idxs     []Index       `yaml:"idxs,omitempty"`
	Refs     []*Refinement `yaml:"refs,omitempty"`
	Stmts    *StmtList     `yaml:"-"`
}

// NewBlock returns an empty block with the given name.
func NewBlock(name string) *Block {
	return &Block{Name: name, Stmts: NewStmtList()}
}

// BufferReads returns the enclosing-block names (From) of refinements the
// block reads.
func (b *Block) BufferReads() []string {
	var reads []string
	for _, ref := range b.Refs {
		if IsReadDir(ref.Dir) {
			reads = append(reads, ref.From)
		}
	}
	return reads
}

// BufferWrites returns the enclosing-block names (From) of refinements the
// block writes.
func (b *Block) BufferWrites() []string {
	var writes []string
	for _, ref := range b.Refs {
		if IsWriteDir(ref.Dir) {
			writes = append(writes, ref.From)
		}
	}
	return writes
}

// RefByInto returns the refinement with the given Into name, or nil.
func (b *Block) RefByInto(name string) *Refinement {
	for _, ref := range b.Refs {
		if ref.Into == name {
			return ref
		}
	}
	return nil
}

// AddRef appends the refinement to the block.
func (b *Block) AddRef(ref *Refinement) *Refinement {
	b.Refs = append(b.Refs, ref)
	return ref
}

// UniqueRefName returns prefix if no refinement uses it yet, otherwise the
// first "prefix_N" not in use.
func (b *Block) UniqueRefName(prefix string) string {
	return uniqueName(prefix, func(name string) bool { return b.RefByInto(name) != nil })
}

// UniqueIdxName returns prefix if no index uses it yet, otherwise the first
// "prefix_N" not in use.
func (b *Block) UniqueIdxName(prefix string) string {
	return uniqueName(prefix, func(name string) bool {
		for _, idx := range b.Idxs {
			if idx.Name == name {
				return true
			}
		}
		return false
	})
}

func uniqueName(prefix string, taken func(string) bool) string {
	if !taken(prefix) {
		return prefix
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s_%d", prefix, i)
		if !taken(name) {
			return name
		}
	}
}

// FixupRefs propagates the location, constness and strides of the
// refinement named into down into sub-blocks that refine it, recursively.
// Call it after rebinding a refinement so nested views stay consistent.
func FixupRefs(b *Block, into string) {
	ref := b.RefByInto(into)
	if ref == nil {
		return
	}
	for s := range b.Stmts.All {
		inner, ok := s.Op.(*Block)
		if !ok {
			continue
		}
		for _, innerRef := range inner.Refs {
			if innerRef.From != into {
				continue
			}
			innerRef.Location = ref.Location
			innerRef.IsConst = ref.IsConst
			for i := range innerRef.Shape.Dims {
				if i < len(ref.Shape.Dims) {
					innerRef.Shape.Dims[i].Stride = ref.Shape.Dims[i].Stride
				}
			}
			FixupRefs(inner, innerRef.Into)
		}
	}
}
