package ir

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The YAML form of a block uses one key per statement variant and encodes
// deps as indices into the enclosing statement list.

type stmtYAML struct {
	Load      *Load      `yaml:"load,omitempty"`
	Store     *Store     `yaml:"store,omitempty"`
	Constant  *Constant  `yaml:"constant,omitempty"`
	Special   *Special   `yaml:"special,omitempty"`
	Intrinsic *Intrinsic `yaml:"intrinsic,omitempty"`
	Block     *blockYAML `yaml:"block,omitempty"`
	Deps      []int      `yaml:"deps,omitempty,flow"`
}

type blockYAML struct {
	Name     string        `yaml:"name"`
	Comments []string      `yaml:"comments,omitempty"`
	Location Location      `yaml:"location,omitempty"`
	Idxs     []Index       `yaml:"idxs,omitempty"`
	Refs     []*Refinement `yaml:"refs,omitempty"`
	Stmts    []stmtYAML    `yaml:"stmts,omitempty"`
}

// MarshalBlock encodes the block as YAML.
func MarshalBlock(b *Block) ([]byte, error) {
	encoded, err := blockToYAML(b)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(encoded)
}

// UnmarshalBlock decodes a block from its YAML form.
func UnmarshalBlock(data []byte) (*Block, error) {
	var encoded blockYAML
	if err := yaml.Unmarshal(data, &encoded); err != nil {
		return nil, errors.Wrap(err, "unmarshalling block YAML")
	}
	return blockFromYAML(&encoded)
}

func blockToYAML(b *Block) (*blockYAML, error) {
	out := &blockYAML{
		Name:     b.Name,
		Comments: b.Comments,
		Location: b.Location,
		Idxs:     b.Idxs,
		Refs:     b.Refs,
	}
	stmtIdx := make(map[*Stmt]int, b.Stmts.Len())
	i := 0
	for s := range b.Stmts.All {
		stmtIdx[s] = i
		i++
	}
	for s := range b.Stmts.All {
		var encoded stmtYAML
		for _, dep := range s.Op.Attrs().Deps {
			idx, ok := stmtIdx[dep]
			if !ok {
				return nil, errors.Errorf("statement in block %q depends on a statement outside the block", b.Name)
			}
			encoded.Deps = append(encoded.Deps, idx)
		}
		switch stmt := s.Op.(type) {
		case *Load:
			encoded.Load = stmt
		case *Store:
			encoded.Store = stmt
		case *Constant:
			encoded.Constant = stmt
		case *Special:
			encoded.Special = stmt
		case *Intrinsic:
			encoded.Intrinsic = stmt
		case *Block:
			inner, err := blockToYAML(stmt)
			if err != nil {
				return nil, err
			}
			encoded.Block = inner
		default:
			return nil, errors.Errorf("cannot marshal statement of type %T", s.Op)
		}
		out.Stmts = append(out.Stmts, encoded)
	}
	return out, nil
}

func blockFromYAML(encoded *blockYAML) (*Block, error) {
	b := NewBlock(encoded.Name)
	b.Comments = encoded.Comments
	b.Location = encoded.Location
	b.Idxs = encoded.Idxs
	b.Refs = encoded.Refs
	elements := make([]*Stmt, 0, len(encoded.Stmts))
	for i, stmt := range encoded.Stmts {
		var op Statement
		switch {
		case stmt.Load != nil:
			op = stmt.Load
		case stmt.Store != nil:
			op = stmt.Store
		case stmt.Constant != nil:
			op = stmt.Constant
		case stmt.Special != nil:
			op = stmt.Special
		case stmt.Intrinsic != nil:
			op = stmt.Intrinsic
		case stmt.Block != nil:
			inner, err := blockFromYAML(stmt.Block)
			if err != nil {
				return nil, err
			}
			op = inner
		default:
			return nil, errors.Errorf("statement %d of block %q has no variant set", i, encoded.Name)
		}
		elements = append(elements, b.Stmts.PushBack(op))
	}
	// Deps resolve only after every element exists.
	for i, stmt := range encoded.Stmts {
		for _, depIdx := range stmt.Deps {
			if depIdx < 0 || depIdx >= len(elements) {
				return nil, errors.Errorf("statement %d of block %q has out-of-range dep %d", i, encoded.Name, depIdx)
			}
			attrs := elements[i].Op.Attrs()
			attrs.Deps = append(attrs.Deps, elements[depIdx])
		}
	}
	return b, nil
}
