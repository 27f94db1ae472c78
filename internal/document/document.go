// Package document materializes generation specs into concrete documents.
package document

import (
	"errors"
	"fmt"
	"sort"

	"github.com/breatheroute/takeoutfaker/internal/fake"
	"github.com/breatheroute/takeoutfaker/internal/genspec"
)

// Document errors.
var (
	ErrUnknownDirective = errors.New("unknown directive")
	ErrNotObject        = errors.New("document root is not an object")
	ErrNoTimeline       = errors.New("document has no timeline")
)

// TimelineKey is the property holding the timeline sequence.
const TimelineKey = "timelineObjects"

// Document is a generated JSON document: nested map[string]any and []any
// values with primitive leaves.
type Document map[string]any

// ValueSource draws primitive values by kind.
type ValueSource interface {
	Draw(kind fake.Kind) (any, error)
}

// Generate draws one document from spec. Array lengths and object keys
// follow spec exactly; every leaf gets a freshly drawn value.
func Generate(spec *genspec.Node, src ValueSource) (Document, error) {
	if spec == nil || spec.Kind != genspec.NodeObject {
		return nil, ErrNotObject
	}
	v, err := generate(spec, src, "$")
	if err != nil {
		return nil, err
	}
	return Document(v.(map[string]any)), nil
}

func generate(n *genspec.Node, src ValueSource, path string) (any, error) {
	switch n.Kind {
	case genspec.NodeObject:
		// Sorted keys keep the draw order, and so seeded output, stable.
		keys := make([]string, 0, len(n.Fields))
		for k := range n.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(n.Fields))
		for _, k := range keys {
			v, err := generate(n.Fields[k], src, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case genspec.NodeArray:
		out := make([]any, len(n.Items))
		for i, child := range n.Items {
			v, err := generate(child, src, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case genspec.NodeLeaf:
		if n.Directive.IsLiteral {
			return n.Directive.Literal, nil
		}
		v, err := src.Draw(n.Directive.Kind)
		if err != nil {
			if errors.Is(err, fake.ErrUnknownKind) {
				return nil, fmt.Errorf("%w: %s at %s: %w", ErrUnknownDirective, n.Directive, path, err)
			}
			return nil, fmt.Errorf("drawing %s at %s: %w", n.Directive, path, err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("%w: node kind %d at %s", ErrUnknownDirective, n.Kind, path)
	}
}

// Timeline returns the document's timeline sequence.
func (d Document) Timeline() ([]any, error) {
	v, ok := d[TimelineKey]
	if !ok {
		return nil, ErrNoTimeline
	}
	seq, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T", ErrNoTimeline, TimelineKey, v)
	}
	return seq, nil
}
