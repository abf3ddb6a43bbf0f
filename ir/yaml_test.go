package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockYAMLRoundTrip(t *testing.T) {
	b := NewBlock("main")
	b.Location = Location{Name: "HOST"}
	b.AddRef(&Refinement{
		Dir:      DirIn,
		Into:     "A",
		Shape:    MakeShape("f32", 4, 8),
		Location: Location{Name: "RAM", Unit: NewAffine("bank")},
	})
	b.AddRef(&Refinement{Dir: DirOut, Into: "B", Shape: MakeShape("f32", 32), Location: Location{Name: "RAM"}})

	load := b.Stmts.PushBack(NewLoad("A", "x"))
	store := b.Stmts.PushBack(NewStore("x", "B"))
	store.Op.Attrs().Deps = append(store.Op.Attrs().Deps, load)

	inner := NewBlock("tile")
	inner.Idxs = []Index{{Name: "i", Range: 4, Affine: NewAffine("i")}}
	inner.AddRef(&Refinement{
		Dir:    DirIn,
		From:   "A",
		Into:   "a",
		Access: []Affine{NewAffine("i").AddConst(1)},
		Shape:  MakeShape("f32", 8),
	})
	inner.Stmts.PushBack(NewLoad("a", "v"))
	b.Stmts.PushBack(inner)

	data, err := MarshalBlock(b)
	require.NoError(t, err)

	decoded, err := UnmarshalBlock(data)
	require.NoError(t, err)

	assert.Equal(t, "main", decoded.Name)
	require.Len(t, decoded.Refs, 2)
	assert.True(t, decoded.Refs[0].Shape.Equal(b.Refs[0].Shape))
	assert.True(t, decoded.Refs[0].Location.Unit.Equal(NewAffine("bank")))

	var ops []Statement
	for s := range decoded.Stmts.All {
		ops = append(ops, s.Op)
	}
	require.Len(t, ops, 3)
	decodedLoad, ok := ops[0].(*Load)
	require.True(t, ok)
	assert.Equal(t, "A", decodedLoad.From)

	decodedStore, ok := ops[1].(*Store)
	require.True(t, ok)
	require.Len(t, decodedStore.Deps, 1)
	assert.Same(t, decoded.Stmts.Front(), decodedStore.Deps[0])

	decodedInner, ok := ops[2].(*Block)
	require.True(t, ok)
	assert.Equal(t, "tile", decodedInner.Name)
	require.Len(t, decodedInner.Refs, 1)
	assert.Equal(t, "i + 1", decodedInner.Refs[0].Access[0].String())
	assert.Equal(t, 1, decodedInner.Stmts.Len())
}

func TestUnmarshalBlockErrors(t *testing.T) {
	_, err := UnmarshalBlock([]byte("stmts:\n  - deps: [0]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no variant set")

	_, err = UnmarshalBlock([]byte("name: b\nstmts:\n  - load: {from: A, into: x}\n    deps: [7]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out-of-range dep")
}
