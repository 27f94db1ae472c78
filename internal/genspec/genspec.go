// Package genspec translates a structural schema into a generation spec: a
// tree of the same shape whose leaves name the kind of synthetic value to
// draw and whose arrays carry a concrete repetition count.
package genspec

import (
	"errors"
	"fmt"

	"github.com/breatheroute/takeoutfaker/internal/fake"
	"github.com/breatheroute/takeoutfaker/internal/schema"
)

// Translation errors.
var (
	ErrSchemaShape       = errors.New("unsupported schema node")
	ErrInvalidIterations = errors.New("invalid iteration count")
)

// DefaultIterations is the repetition count of arrays without an entry in
// the iteration table.
const DefaultIterations = 1

// Directive selects the value generated for a leaf: either a value kind
// drawn from the backend or a literal string emitted verbatim.
type Directive struct {
	Kind      fake.Kind
	Literal   string
	IsLiteral bool
}

// Value returns a directive drawing values of the given kind.
func Value(kind fake.Kind) Directive {
	return Directive{Kind: kind}
}

// Literal returns a directive emitting s verbatim.
func Literal(s string) Directive {
	return Directive{Literal: s, IsLiteral: true}
}

func (d Directive) String() string {
	if d.IsLiteral {
		return fmt.Sprintf("literal(%q)", d.Literal)
	}
	return string(d.Kind)
}

// NodeKind is the type of a generation spec node.
type NodeKind int

const (
	NodeLeaf NodeKind = iota
	NodeObject
	NodeArray
)

// Node is one node of a generation spec.
type Node struct {
	Kind      NodeKind
	Directive Directive        // NodeLeaf
	Fields    map[string]*Node // NodeObject
	Items     []*Node          // NodeArray, one node per element
}

// Tables holds the static configuration of a translation.
type Tables struct {
	// Overrides replaces the subtree under a property name with a directive.
	Overrides map[string]Directive

	// Iterations sets the element count of arrays held by a property name.
	Iterations map[string]int
}

// DefaultOverrides returns the overrides used for location history
// exports: company names for place names and small positive digits for
// confidence and accuracy values.
func DefaultOverrides() map[string]Directive {
	return map[string]Directive{
		"name":            Value(fake.KindCompany),
		"visitConfidence": Value(fake.KindDigit),
		"accuracyMeters":  Value(fake.KindDigit),
	}
}

// Translate builds the generation spec for root.
func Translate(root *schema.Node, tables Tables) (*Node, error) {
	for key, n := range tables.Iterations {
		if n <= 0 {
			return nil, fmt.Errorf("%w: %q has %d", ErrInvalidIterations, key, n)
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", ErrSchemaShape)
	}
	return translate(root, "", "$", tables)
}

// translateProperty handles one named property: an override wins over the
// property's own schema.
func translateProperty(key string, n *schema.Node, path string, tables Tables) (*Node, error) {
	if d, ok := tables.Overrides[key]; ok {
		return &Node{Kind: NodeLeaf, Directive: d}, nil
	}
	return translate(n, key, path, tables)
}

// translate converts n. parentKey is the name of the property holding n
// and selects the iteration count when n is an array.
func translate(n *schema.Node, parentKey, path string, tables Tables) (*Node, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing node at %s", ErrSchemaShape, path)
	}

	switch n.Kind {
	case schema.KindObject:
		fields := make(map[string]*Node, len(n.Properties))
		for key, child := range n.Properties {
			f, err := translateProperty(key, child, path+"."+key, tables)
			if err != nil {
				return nil, err
			}
			fields[key] = f
		}
		return &Node{Kind: NodeObject, Fields: fields}, nil

	case schema.KindArray:
		count, ok := tables.Iterations[parentKey]
		if !ok {
			count = DefaultIterations
		}
		if n.Items == nil {
			return &Node{Kind: NodeArray, Items: []*Node{}}, nil
		}
		items := make([]*Node, count)
		for i := range items {
			item, err := translate(n.Items, "", fmt.Sprintf("%s[%d]", path, i), tables)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return &Node{Kind: NodeArray, Items: items}, nil

	case schema.KindString:
		return &Node{Kind: NodeLeaf, Directive: Value(fake.KindString)}, nil
	case schema.KindNumber:
		return &Node{Kind: NodeLeaf, Directive: Value(fake.KindFloat)}, nil
	case schema.KindInteger:
		return &Node{Kind: NodeLeaf, Directive: Value(fake.KindInt)}, nil

	default:
		return nil, fmt.Errorf("%w: %q at %s", ErrSchemaShape, n.Kind, path)
	}
}
