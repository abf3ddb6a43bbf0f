package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeByteSize(t *testing.T) {
	dense := MakeShape("f32", 4, 8)
	assert.Equal(t, []Dim{{4, 8}, {8, 1}}, dense.Dims)
	assert.Equal(t, uint64(32), dense.ElemCount())
	assert.Equal(t, uint64(128), dense.ByteSize())

	// Strided views span their holes.
	strided := TensorShape{Type: "u8", Dims: []Dim{{Size: 4, Stride: 16}, {Size: 8, Stride: 1}}}
	assert.Equal(t, uint64(3*16+7+1), strided.ElemCount())
	assert.Equal(t, uint64(56), strided.ByteSize())

	scalarish := MakeShape("f64")
	assert.Equal(t, uint64(8), scalarish.ByteSize())

	empty := MakeShape("f32", 0)
	assert.Equal(t, uint64(0), empty.ByteSize())
}

func TestShapeWithNaturalStrides(t *testing.T) {
	strided := TensorShape{Type: "f32", Dims: []Dim{{Size: 4, Stride: 100}, {Size: 8, Stride: 2}}}
	natural := strided.WithNaturalStrides()
	assert.Equal(t, []Dim{{4, 8}, {8, 1}}, natural.Dims)
	// The receiver is untouched.
	assert.Equal(t, []Dim{{4, 100}, {8, 2}}, strided.Dims)
}

func TestShapeString(t *testing.T) {
	s := MakeShape("f32", 4, 8)
	assert.Equal(t, "f32[4:8, 8:1]", s.String())

	parsed, err := ParseShape(s.String())
	require.NoError(t, err)
	assert.True(t, s.Equal(parsed))

	_, err = ParseShape("q99[2:1]")
	assert.Error(t, err)
	_, err = ParseShape("f32[2]")
	assert.Error(t, err)
}

func TestMakeShapeUnknownTypePanics(t *testing.T) {
	assert.Panics(t, func() { MakeShape("f128", 2) })
}
