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
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Dim is one axis of a TensorShape: its size in elements and its stride in
// elements of the underlying buffer.
type Dim struct {
	Size   uint64
	Stride uint64
}

// TensorShape is the shape of a tensor refinement: an element type plus a
// per-axis size and stride. Strides are in elements, not bytes, and need not
// be dense -- a refinement may view a strided window of its backing buffer.
type TensorShape struct {
	Type string
	Dims []Dim
}

// elemWidths maps element type names to their width in bytes.
var elemWidths = map[string]uint64{
	"bool": 1,
	"i8":   1, "i16": 2, "i32": 4, "i64": 8,
	"u8": 1, "u16": 2, "u32": 4, "u64": 8,
	"f16": 2, "f32": 4, "f64": 8,
}

// MakeShape returns a TensorShape with the given element type and sizes,
// with natural (dense row-major) strides.
func MakeShape(elemType string, sizes ...uint64) TensorShape {
	if _, ok := elemWidths[elemType]; !ok {
		exceptions.Panicf("ir.MakeShape: unknown element type %q", elemType)
	}
	s := TensorShape{Type: elemType, Dims: make([]Dim, len(sizes))}
	for i, size := range sizes {
		s.Dims[i].Size = size
	}
	return s.WithNaturalStrides()
}

// ElemWidth returns the width in bytes of the shape's element type.
func (s TensorShape) ElemWidth() uint64 {
	width, ok := elemWidths[s.Type]
	if !ok {
		exceptions.Panicf("ir.TensorShape: unknown element type %q", s.Type)
	}
	return width
}

// Rank returns the number of axes.
func (s TensorShape) Rank() int { return len(s.Dims) }

// Sizes returns the per-axis sizes.
func (s TensorShape) Sizes() []uint64 {
	sizes := make([]uint64, len(s.Dims))
	for i, dim := range s.Dims {
		sizes[i] = dim.Size
	}
	return sizes
}

// ElemCount returns the number of elements spanned by the shape: one plus
// the largest reachable element offset. For strided (non-dense) shapes this
// covers the holes as well.
func (s TensorShape) ElemCount() uint64 {
	var maxOffset uint64
	for _, dim := range s.Dims {
		if dim.Size == 0 {
			return 0
		}
		maxOffset += (dim.Size - 1) * dim.Stride
	}
	return maxOffset + 1
}

// ByteSize returns the byte footprint of the shape.
func (s TensorShape) ByteSize() uint64 { return s.ElemWidth() * s.ElemCount() }

// WithNaturalStrides returns a copy of the shape restrided to dense
// row-major packing: the innermost axis has stride 1.
func (s TensorShape) WithNaturalStrides() TensorShape {
	out := s.Clone()
	stride := uint64(1)
	for i := len(out.Dims) - 1; i >= 0; i-- {
		out.Dims[i].Stride = stride
		stride *= out.Dims[i].Size
	}
	return out
}

// Clone returns a deep copy of the shape.
func (s TensorShape) Clone() TensorShape {
	return TensorShape{Type: s.Type, Dims: slices.Clone(s.Dims)}
}

// Equal reports whether the two shapes have the same element type, sizes
// and strides.
func (s TensorShape) Equal(o TensorShape) bool {
	return s.Type == o.Type && slices.Equal(s.Dims, o.Dims)
}

// String returns the canonical form, e.g. "f32[4:8, 8:1]" for a 4x8 shape
// with strides 8 and 1.
func (s TensorShape) String() string {
	parts := make([]string, len(s.Dims))
	for i, dim := range s.Dims {
		parts[i] = fmt.Sprintf("%d:%d", dim.Size, dim.Stride)
	}
	return fmt.Sprintf("%s[%s]", s.Type, strings.Join(parts, ", "))
}

// ParseShape parses the canonical String form back into a TensorShape.
func ParseShape(text string) (TensorShape, error) {
	text = strings.TrimSpace(text)
	open := strings.Index(text, "[")
	if open < 0 || !strings.HasSuffix(text, "]") {
		return TensorShape{}, errors.Errorf("malformed shape %q", text)
	}
	elemType := text[:open]
	if _, ok := elemWidths[elemType]; !ok {
		return TensorShape{}, errors.Errorf("unknown element type %q in shape %q", elemType, text)
	}
	s := TensorShape{Type: elemType}
	inner := strings.TrimSpace(text[open+1 : len(text)-1])
	if inner == "" {
		return s, nil
	}
	for _, part := range strings.Split(inner, ",") {
		sizeStr, strideStr, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return TensorShape{}, errors.Errorf("malformed axis %q in shape %q", part, text)
		}
		size, err := strconv.ParseUint(strings.TrimSpace(sizeStr), 10, 64)
		if err != nil {
			return TensorShape{}, errors.Wrapf(err, "malformed size in shape %q", text)
		}
		stride, err := strconv.ParseUint(strings.TrimSpace(strideStr), 10, 64)
		if err != nil {
			return TensorShape{}, errors.Wrapf(err, "malformed stride in shape %q", text)
		}
		s.Dims = append(s.Dims, Dim{Size: size, Stride: stride})
	}
	return s, nil
}

// MarshalYAML encodes the shape as its canonical string form.
func (s TensorShape) MarshalYAML() (any, error) { return s.String(), nil }

// UnmarshalYAML decodes a shape from its canonical string form.
func (s *TensorShape) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	parsed, err := ParseShape(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
