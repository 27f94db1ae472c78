// Package variant holds the per-year generation parameters for synthetic
// location history exports.
package variant

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Variant configuration errors.
var (
	ErrUnknownVariant = errors.New("unknown variant")
	ErrInvalidVariant = errors.New("invalid variant")
)

// weightTolerance is the accepted deviation of a weight sum from 1.0.
const weightTolerance = 1e-9

// Activity is one entry of an activity-type distribution.
type Activity struct {
	// Type is the activity label written to activity segments (e.g. CYCLING).
	Type string `yaml:"type"`

	// Weight is the probability of the label being drawn.
	Weight float64 `yaml:"weight"`
}

// Variant holds the generation parameters for one year.
type Variant struct {
	// Year is the lookup key.
	Year int `yaml:"year"`

	// PlaceCount is the size of the place pool used by the variant.
	PlaceCount int `yaml:"places"`

	// EntryCount is the number of timeline entries per month.
	EntryCount int `yaml:"entries"`

	// TopPlaces are explicit weights for the first len(TopPlaces) places
	// of the pool. Remaining probability is spread over the other places.
	TopPlaces []float64 `yaml:"top_places"`

	// Activities is the activity-type distribution, in draw order.
	Activities []Activity `yaml:"activities"`

	// FractionAtPlace is the share of each timeline cycle spent at a place.
	// The remainder is spent in transit.
	FractionAtPlace float64 `yaml:"fraction_at_place"`
}

// ActivityTypes returns the activity labels in draw order.
func (v Variant) ActivityTypes() []string {
	types := make([]string, len(v.Activities))
	for i, a := range v.Activities {
		types[i] = a.Type
	}
	return types
}

// ActivityWeights returns the activity weights in draw order.
func (v Variant) ActivityWeights() []float64 {
	weights := make([]float64, len(v.Activities))
	for i, a := range v.Activities {
		weights[i] = a.Weight
	}
	return weights
}

// Validate checks the variant parameters for internal consistency.
func (v Variant) Validate() error {
	switch {
	case v.PlaceCount <= 0:
		return fmt.Errorf("%w: year %d: place count must be positive", ErrInvalidVariant, v.Year)
	case v.EntryCount <= 0:
		return fmt.Errorf("%w: year %d: entry count must be positive", ErrInvalidVariant, v.Year)
	case len(v.TopPlaces) > v.PlaceCount:
		return fmt.Errorf("%w: year %d: %d top places for a pool of %d",
			ErrInvalidVariant, v.Year, len(v.TopPlaces), v.PlaceCount)
	case v.FractionAtPlace < 0 || v.FractionAtPlace > 1:
		return fmt.Errorf("%w: year %d: fraction at place %v outside [0,1]",
			ErrInvalidVariant, v.Year, v.FractionAtPlace)
	case len(v.Activities) == 0:
		return fmt.Errorf("%w: year %d: no activities", ErrInvalidVariant, v.Year)
	}

	var top float64
	for _, w := range v.TopPlaces {
		if w < 0 {
			return fmt.Errorf("%w: year %d: negative top place weight", ErrInvalidVariant, v.Year)
		}
		top += w
	}
	if top > 1+weightTolerance {
		return fmt.Errorf("%w: year %d: top place weights sum to %v", ErrInvalidVariant, v.Year, top)
	}
	if len(v.TopPlaces) == v.PlaceCount && math.Abs(top-1) > weightTolerance {
		return fmt.Errorf("%w: year %d: top place weights cover the pool but sum to %v",
			ErrInvalidVariant, v.Year, top)
	}

	var activities float64
	for _, a := range v.Activities {
		if a.Type == "" || a.Weight < 0 {
			return fmt.Errorf("%w: year %d: invalid activity %+v", ErrInvalidVariant, v.Year, a)
		}
		activities += a.Weight
	}
	if math.Abs(activities-1) > weightTolerance {
		return fmt.Errorf("%w: year %d: activity weights sum to %v", ErrInvalidVariant, v.Year, activities)
	}
	return nil
}

// Table is an immutable lookup of variants keyed by year.
type Table struct {
	variants map[int]Variant
}

// NewTable builds a table from the given variants after validating each one.
func NewTable(variants ...Variant) (Table, error) {
	t := Table{variants: make(map[int]Variant, len(variants))}
	for _, v := range variants {
		if err := v.Validate(); err != nil {
			return Table{}, err
		}
		if _, dup := t.variants[v.Year]; dup {
			return Table{}, fmt.Errorf("%w: duplicate year %d", ErrInvalidVariant, v.Year)
		}
		t.variants[v.Year] = clone(v)
	}
	return t, nil
}

// DefaultTable returns the built-in variants for 2019, 2020 and 2021.
func DefaultTable() Table {
	commuter := []Activity{
		{Type: "CYCLING", Weight: 0.3},
		{Type: "WALKING", Weight: 0.2},
		{Type: "IN_VEHICLE", Weight: 0.3},
		{Type: "IN_TRAIN", Weight: 0.2},
	}

	t, err := NewTable(
		Variant{
			Year:            2019,
			PlaceCount:      50,
			EntryCount:      500,
			TopPlaces:       []float64{0.4, 0.3, 0.05},
			Activities:      commuter,
			FractionAtPlace: 0.8,
		},
		Variant{
			Year:            2020,
			PlaceCount:      50,
			EntryCount:      500,
			TopPlaces:       []float64{0.4, 0.3, 0.05},
			Activities:      commuter,
			FractionAtPlace: 0.8,
		},
		Variant{
			Year:       2021,
			PlaceCount: 20,
			EntryCount: 250,
			TopPlaces:  []float64{0.8, 0.03, 0.02},
			Activities: []Activity{
				{Type: "CYCLING", Weight: 0.4},
				{Type: "WALKING", Weight: 0.5},
				{Type: "IN_VEHICLE", Weight: 0.1},
			},
			FractionAtPlace: 0.95,
		},
	)
	if err != nil {
		panic("variant: invalid default table: " + err.Error())
	}
	return t
}

// Lookup returns the variant for the given year.
func (t Table) Lookup(year int) (Variant, error) {
	v, ok := t.variants[year]
	if !ok {
		return Variant{}, fmt.Errorf("%w: year %d", ErrUnknownVariant, year)
	}
	return clone(v), nil
}

// Years returns the configured years in ascending order.
func (t Table) Years() []int {
	years := make([]int, 0, len(t.variants))
	for y := range t.variants {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// MaxPlaceCount returns the largest place count among the variants of the
// given years, or of every variant when no year is given. Years without a
// variant are ignored.
func (t Table) MaxPlaceCount(years ...int) int {
	if len(years) == 0 {
		years = t.Years()
	}
	maxCount := 0
	for _, y := range years {
		if v, ok := t.variants[y]; ok && v.PlaceCount > maxCount {
			maxCount = v.PlaceCount
		}
	}
	return maxCount
}

// Len returns the number of variants in the table.
func (t Table) Len() int {
	return len(t.variants)
}

func clone(v Variant) Variant {
	v.TopPlaces = append([]float64(nil), v.TopPlaces...)
	v.Activities = append([]Activity(nil), v.Activities...)
	return v
}

// Key identifies one generated document.
type Key struct {
	Year  int
	Month time.Month
}

// String returns the key in export file naming form, e.g. 2020_JANUARY.
func (k Key) String() string {
	return fmt.Sprintf("%d_%s", k.Year, MonthName(k.Month))
}

// Start returns midnight UTC on the first day of the key's month.
func (k Key) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Keys enumerates year × month keys in chronological order.
func Keys(years []int) []Key {
	keys := make([]Key, 0, len(years)*12)
	for _, y := range years {
		for m := time.January; m <= time.December; m++ {
			keys = append(keys, Key{Year: y, Month: m})
		}
	}
	return keys
}

// MonthName returns the upper-case English month name used in export paths.
func MonthName(m time.Month) string {
	return strings.ToUpper(m.String())
}

// ParseMonth parses an upper-case month name as written by MonthName.
func ParseMonth(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if MonthName(m) == name {
			return m, true
		}
	}
	return 0, false
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
