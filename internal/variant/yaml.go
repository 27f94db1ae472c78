package variant

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk layout of a variant table.
//
//	variants:
//	  - year: 2019
//	    places: 50
//	    entries: 500
//	    top_places: [0.4, 0.3, 0.05]
//	    fraction_at_place: 0.8
//	    activities:
//	      - {type: CYCLING, weight: 0.3}
type tableFile struct {
	Variants []Variant `yaml:"variants"`
}

// LoadTable reads a YAML variant table.
func LoadTable(r io.Reader) (Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f tableFile
	if err := dec.Decode(&f); err != nil {
		return Table{}, fmt.Errorf("decoding variant table: %w", err)
	}
	if len(f.Variants) == 0 {
		return Table{}, fmt.Errorf("%w: table has no variants", ErrInvalidVariant)
	}
	return NewTable(f.Variants...)
}
