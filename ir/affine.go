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

	"github.com/pkg/errors"
)

// Affine is a linear expression over index names plus an integer constant.
// It is an immutable value: all operations return a new Affine.
//
// The zero value is the constant 0.
//
// Affines identify access offsets and memory localities ("units"). Two
// affines are the same locality iff they are Equal, and the canonical
// String form can be used as a map key.
type Affine struct {
	constant int64
	terms    map[string]int64
}

// NewAffine returns the affine consisting of the single index name with
// coefficient 1.
func NewAffine(name string) Affine {
	return Affine{terms: map[string]int64{name: 1}}
}

// ConstAffine returns the affine for the constant c.
func ConstAffine(c int64) Affine { return Affine{constant: c} }

// IsConst reports whether the affine has no index terms.
func (a Affine) IsConst() bool { return len(a.terms) == 0 }

// IsZero reports whether the affine is the constant 0.
func (a Affine) IsZero() bool { return a.constant == 0 && len(a.terms) == 0 }

// Constant returns the constant part of the affine.
func (a Affine) Constant() int64 { return a.constant }

// Coefficient returns the coefficient of the given index name, or 0.
func (a Affine) Coefficient(name string) int64 { return a.terms[name] }

// TermNames returns the index names with non-zero coefficients, sorted.
func (a Affine) TermNames() []string {
	names := make([]string, 0, len(a.terms))
	for name := range a.terms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Add returns the sum of the two affines.
func (a Affine) Add(b Affine) Affine {
	sum := Affine{constant: a.constant + b.constant}
	if len(a.terms)+len(b.terms) > 0 {
		sum.terms = make(map[string]int64, len(a.terms)+len(b.terms))
	}
	for name, coef := range a.terms {
		sum.terms[name] = coef
	}
	for name, coef := range b.terms {
		newCoef := sum.terms[name] + coef
		if newCoef == 0 {
			delete(sum.terms, name)
		} else {
			sum.terms[name] = newCoef
		}
	}
	if len(sum.terms) == 0 {
		sum.terms = nil
	}
	return sum
}

// AddConst returns the affine with c added to its constant part.
func (a Affine) AddConst(c int64) Affine { return a.Add(ConstAffine(c)) }

// Equal reports whether the two affines have the same terms and constant.
func (a Affine) Equal(b Affine) bool {
	if a.constant != b.constant || len(a.terms) != len(b.terms) {
		return false
	}
	for name, coef := range a.terms {
		if b.terms[name] != coef {
			return false
		}
	}
	return true
}

// String returns a canonical form: terms sorted by index name, constant
// last, e.g. "2*i + j + 3". The constant 0 prints as "0".
func (a Affine) String() string {
	if a.IsZero() {
		return "0"
	}
	parts := make([]string, 0, len(a.terms)+1)
	for _, name := range a.TermNames() {
		coef := a.terms[name]
		if coef == 1 {
			parts = append(parts, name)
		} else {
			parts = append(parts, fmt.Sprintf("%d*%s", coef, name))
		}
	}
	if a.constant != 0 || len(parts) == 0 {
		parts = append(parts, strconv.FormatInt(a.constant, 10))
	}
	return strings.Join(parts, " + ")
}

// ParseAffine parses the canonical String form back into an Affine.
func ParseAffine(text string) (Affine, error) {
	result := Affine{}
	text = strings.TrimSpace(text)
	if text == "" {
		return result, errors.Errorf("cannot parse empty affine expression")
	}
	for _, part := range strings.Split(text, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Affine{}, errors.Errorf("malformed affine expression %q", text)
		}
		coef := int64(1)
		name := part
		if idx := strings.Index(part, "*"); idx >= 0 {
			c, err := strconv.ParseInt(strings.TrimSpace(part[:idx]), 10, 64)
			if err != nil {
				return Affine{}, errors.Wrapf(err, "malformed coefficient in affine term %q", part)
			}
			coef = c
			name = strings.TrimSpace(part[idx+1:])
		}
		if c, err := strconv.ParseInt(name, 10, 64); err == nil {
			result = result.AddConst(c * coef)
			continue
		}
		if name == "" {
			return Affine{}, errors.Errorf("malformed affine term %q in %q", part, text)
		}
		result = result.Add(Affine{terms: map[string]int64{name: coef}})
	}
	return result, nil
}

// MarshalYAML encodes the affine as its canonical string form.
func (a Affine) MarshalYAML() (any, error) { return a.String(), nil }

// UnmarshalYAML decodes an affine from its canonical string form.
func (a *Affine) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	parsed, err := ParseAffine(text)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
