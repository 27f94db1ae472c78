// Package schema describes the structural shape of a JSON document and
// infers it from sample documents.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Inference errors.
var (
	ErrConflictingTypes = errors.New("conflicting types")
	ErrUnsupportedValue = errors.New("unsupported value")
)

// Kind is the type of a schema node.
type Kind string

// Node kinds. Boolean and null are produced by inference but are not
// supported by the generators.
const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
)

// Node is one node of a structural schema tree.
type Node struct {
	Kind Kind

	// Properties holds the children of an object node.
	Properties map[string]*Node

	// Items describes the elements of an array node. Nil when only empty
	// arrays were observed.
	Items *Node
}

// Object returns an object node with the given properties.
func Object(properties map[string]*Node) *Node {
	if properties == nil {
		properties = map[string]*Node{}
	}
	return &Node{Kind: KindObject, Properties: properties}
}

// Array returns an array node with the given item schema.
func Array(items *Node) *Node {
	return &Node{Kind: KindArray, Items: items}
}

// String returns a string leaf.
func String() *Node { return &Node{Kind: KindString} }

// Number returns a number leaf.
func Number() *Node { return &Node{Kind: KindNumber} }

// Integer returns an integer leaf.
func Integer() *Node { return &Node{Kind: KindInteger} }

// Builder accumulates samples into one merged schema.
type Builder struct {
	root *Node
}

// Add merges the shape of a decoded JSON sample into the schema.
// Numbers should be decoded as json.Number so integers can be told apart
// from floats.
func (b *Builder) Add(sample any) error {
	n, err := infer(sample, "$")
	if err != nil {
		return err
	}
	merged, err := merge(b.root, n, "$")
	if err != nil {
		return err
	}
	b.root = merged
	return nil
}

// Root returns the merged schema, or nil if nothing was added.
func (b *Builder) Root() *Node {
	return b.root
}

// Decode reads one JSON document, keeping numbers as json.Number.
func Decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding sample: %w", err)
	}
	return v, nil
}

// Infer reads one JSON document and returns its schema.
func Infer(r io.Reader) (*Node, error) {
	v, err := Decode(r)
	if err != nil {
		return nil, err
	}
	var b Builder
	if err := b.Add(v); err != nil {
		return nil, err
	}
	return b.Root(), nil
}

func infer(v any, path string) (*Node, error) {
	switch val := v.(type) {
	case nil:
		return &Node{Kind: KindNull}, nil
	case bool:
		return &Node{Kind: KindBoolean}, nil
	case string:
		return String(), nil
	case json.Number:
		if strings.ContainsAny(val.String(), ".eE") {
			return Number(), nil
		}
		return Integer(), nil
	case float32, float64:
		return Number(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer(), nil
	case map[string]any:
		props := make(map[string]*Node, len(val))
		for k, child := range val {
			n, err := infer(child, path+"."+k)
			if err != nil {
				return nil, err
			}
			props[k] = n
		}
		return Object(props), nil
	case []any:
		var items *Node
		for i, child := range val {
			n, err := infer(child, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			if items, err = merge(items, n, path+"[]"); err != nil {
				return nil, err
			}
		}
		return Array(items), nil
	default:
		return nil, fmt.Errorf("%w: %T at %s", ErrUnsupportedValue, v, path)
	}
}

// merge combines two schemas describing the same position. Object
// properties are unioned, integer widens to number and null is absorbed by
// any other kind.
func merge(a, b *Node, path string) (*Node, error) {
	switch {
	case a == nil:
		return b, nil
	case b == nil:
		return a, nil
	case a.Kind == KindNull:
		return b, nil
	case b.Kind == KindNull:
		return a, nil
	}

	if a.Kind != b.Kind {
		if isNumeric(a.Kind) && isNumeric(b.Kind) {
			return Number(), nil
		}
		return nil, fmt.Errorf("%w: %s and %s at %s", ErrConflictingTypes, a.Kind, b.Kind, path)
	}

	switch a.Kind {
	case KindObject:
		props := make(map[string]*Node, len(a.Properties)+len(b.Properties))
		for k, n := range a.Properties {
			props[k] = n
		}
		for k, n := range b.Properties {
			m, err := merge(props[k], n, path+"."+k)
			if err != nil {
				return nil, err
			}
			props[k] = m
		}
		return Object(props), nil
	case KindArray:
		items, err := merge(a.Items, b.Items, path+"[]")
		if err != nil {
			return nil, err
		}
		return Array(items), nil
	default:
		return a, nil
	}
}

func isNumeric(k Kind) bool {
	return k == KindNumber || k == KindInteger
}
