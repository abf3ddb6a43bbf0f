package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listOps(l *StmtList) []Statement {
	var ops []Statement
	for s := range l.All {
		ops = append(ops, s.Op)
	}
	return ops
}

func TestStmtListBasics(t *testing.T) {
	l := NewStmtList()
	assert.Equal(t, 0, l.Len())
	assert.Nil(t, l.Front())
	assert.Nil(t, l.Back())

	first := l.PushBack(NewLoad("A", "x"))
	second := l.PushBack(NewStore("x", "B"))
	assert.Equal(t, 2, l.Len())
	assert.Same(t, first, l.Front())
	assert.Same(t, second, l.Back())
	assert.Same(t, second, first.Next())
	assert.Same(t, first, second.Prev())
	assert.Nil(t, second.Next())
	assert.Nil(t, first.Prev())
}

func TestStmtListInsertKeepsHandles(t *testing.T) {
	l := NewStmtList()
	load := l.PushBack(NewLoad("A", "x"))
	store := l.PushBack(NewStore("x", "B"))

	// Handles held across insertions keep pointing at their statements.
	inserted := l.InsertBefore(NewLoad("B", "y"), store)
	assert.Equal(t, 3, l.Len())
	assert.Same(t, inserted, load.Next())
	assert.Same(t, inserted, store.Prev())

	// A nil cursor means one-past-the-end.
	last := l.InsertBefore(NewStore("y", "C"), nil)
	assert.Same(t, last, l.Back())
	assert.Same(t, store, last.Prev())

	front := l.PushFront(NewLoad("C", "z"))
	assert.Same(t, front, l.Front())

	ops := listOps(l)
	require.Len(t, ops, 5)
	assert.Equal(t, "C", ops[0].(*Load).From)
	assert.Equal(t, "A", ops[1].(*Load).From)
	assert.Equal(t, "B", ops[2].(*Load).From)
	assert.Equal(t, "B", ops[3].(*Store).Into)
	assert.Equal(t, "C", ops[4].(*Store).Into)
}

func TestStmtListInsertBeforeForeignElementPanics(t *testing.T) {
	l1 := NewStmtList()
	l2 := NewStmtList()
	el := l1.PushBack(NewLoad("A", "x"))
	assert.Panics(t, func() { l2.InsertBefore(NewLoad("B", "y"), el) })
}
