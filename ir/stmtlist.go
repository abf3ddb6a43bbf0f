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

import "github.com/gomlx/exceptions"

// Stmt is an element of a StmtList: a handle to one statement. Handles stay
// valid across insertions into the list, so passes can hold a *Stmt (as a
// dependency target, an insertion cursor or a remembered position) while
// splicing new statements around it.
type Stmt struct {
	prev, next *Stmt
	list       *StmtList

	// Op is the statement held by this element.
	Op Statement
}

// Next returns the following element, or nil at the end of the list.
func (s *Stmt) Next() *Stmt {
	if n := s.next; s.list != nil && n != &s.list.root {
		return n
	}
	return nil
}

// Prev returns the preceding element, or nil at the front of the list.
func (s *Stmt) Prev() *Stmt {
	if p := s.prev; s.list != nil && p != &s.list.root {
		return p
	}
	return nil
}

// StmtList is a doubly-linked list of statements.
//
// Use NewStmtList: the zero value is not ready for use.
type StmtList struct {
	root Stmt
	len  int
}

// NewStmtList returns an empty statement list.
func NewStmtList() *StmtList {
	l := &StmtList{}
	l.root.prev = &l.root
	l.root.next = &l.root
	l.root.list = l
	return l
}

// Len returns the number of statements in the list.
func (l *StmtList) Len() int { return l.len }

// Front returns the first element, or nil if the list is empty.
func (l *StmtList) Front() *Stmt {
	if l.len == 0 {
		return nil
	}
	return l.root.next
}

// Back returns the last element, or nil if the list is empty.
func (l *StmtList) Back() *Stmt {
	if l.len == 0 {
		return nil
	}
	return l.root.prev
}

// PushBack appends the statement and returns its element.
func (l *StmtList) PushBack(op Statement) *Stmt { return l.insert(op, l.root.prev) }

// PushFront prepends the statement and returns its element.
func (l *StmtList) PushFront(op Statement) *Stmt { return l.insert(op, &l.root) }

// InsertBefore inserts the statement before the element at. A nil at means
// the end of the list, so InsertBefore(op, nil) == PushBack(op); this
// matches the use of a nil *Stmt as the one-past-the-end cursor.
func (l *StmtList) InsertBefore(op Statement, at *Stmt) *Stmt {
	if at == nil {
		return l.PushBack(op)
	}
	if at.list != l {
		exceptions.Panicf("ir.StmtList.InsertBefore: element belongs to a different list")
	}
	return l.insert(op, at.prev)
}

// insert places op after element pos.
func (l *StmtList) insert(op Statement, pos *Stmt) *Stmt {
	s := &Stmt{Op: op, list: l, prev: pos, next: pos.next}
	pos.next.prev = s
	pos.next = s
	l.len++
	return s
}

// All iterates the elements front to back. Insertions at or after the
// current element during iteration are visited.
func (l *StmtList) All(yield func(*Stmt) bool) {
	for s := l.Front(); s != nil; s = s.Next() {
		if !yield(s) {
			return
		}
	}
}
