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

// Package xslices provides generic slice and map helpers used across the
// project.
package xslices

import (
	"slices"

	"golang.org/x/exp/constraints"
)

// Map applies fn to each element of in and returns the resulting slice.
func Map[In, Out any](in []In, fn func(In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, element := range in {
		out[ii] = fn(element)
	}
	return
}

// At returns the element at the given position. Negative positions count
// from the end, so At(s, -1) is the last element.
func At[T any](s []T, pos int) T {
	if pos < 0 {
		pos = len(s) + pos
	}
	return s[pos]
}

// Last returns the last element of the slice.
func Last[T any](s []T) T { return At(s, -1) }

// SortedKeys returns the map's keys in sorted order. Convenient for
// deterministic iteration.
func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetToSortedSlice returns the elements of a set (a map to struct{}) in
// sorted order.
func SetToSortedSlice[K constraints.Ordered](set map[K]struct{}) []K {
	keys := make([]K, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
