// Package places synthesizes pools of fictitious named places clustered
// around one regional anchor, and the weight tables used to visit them.
package places

import (
	"errors"
	"fmt"

	"github.com/breatheroute/takeoutfaker/internal/fake"
	"github.com/breatheroute/takeoutfaker/internal/geo"
	"github.com/breatheroute/takeoutfaker/internal/weighted"
)

// Place pool errors.
var (
	ErrInvalidSize    = errors.New("invalid pool size")
	ErrInvalidWeights = errors.New("invalid place weights")
)

// DefaultRadius is the maximum offset, in degrees on each axis, of a place
// from the pool's anchor.
const DefaultRadius = 0.05

// DefaultCountry is the country the anchor is drawn from.
const DefaultCountry = "NL"

// Place is a synthetic named location.
type Place struct {
	ID      string
	Name    string
	Address string
	Lat     float64
	Lon     float64
}

// LatLng returns the place's coordinate.
func (p Place) LatLng() geo.LatLng {
	return geo.LatLng{Lat: p.Lat, Lon: p.Lon}
}

// Pool is an ordered, immutable set of places keyed by ID.
type Pool struct {
	anchor geo.LatLng
	radius float64
	ids    []string
	byID   map[string]Place
}

// Len returns the number of places.
func (p *Pool) Len() int {
	return len(p.ids)
}

// IDs returns the place identifiers in pool order.
func (p *Pool) IDs() []string {
	return append([]string(nil), p.ids...)
}

// Get returns the place with the given identifier.
func (p *Pool) Get(id string) (Place, bool) {
	place, ok := p.byID[id]
	return place, ok
}

// At returns the i-th place in pool order.
func (p *Pool) At(i int) Place {
	return p.byID[p.ids[i]]
}

// Anchor returns the coordinate the pool is clustered around.
func (p *Pool) Anchor() geo.LatLng {
	return p.anchor
}

// Radius returns the per-axis radius in degrees used to draw coordinates.
func (p *Pool) Radius() float64 {
	return p.radius
}

// Prefix returns a pool holding the first n places. Pools smaller than n
// are returned whole.
func (p *Pool) Prefix(n int) *Pool {
	if n >= len(p.ids) {
		return p
	}
	if n < 0 {
		n = 0
	}
	sub := &Pool{
		anchor: p.anchor,
		radius: p.radius,
		ids:    append([]string(nil), p.ids[:n]...),
		byID:   make(map[string]Place, n),
	}
	for _, id := range sub.ids {
		sub.byID[id] = p.byID[id]
	}
	return sub
}

// Source is the backend capability needed to synthesize places.
type Source interface {
	Anchor(country string) (geo.LatLng, error)
	UniqueCoordinate(center, radius float64) (float64, error)
	DrawUnique(kind fake.Kind) (any, error)
}

// Config holds parameters for pool synthesis.
type Config struct {
	// Size is the number of places. Must be positive.
	Size int

	// Country selects the anchor region.
	// Default: NL
	Country string

	// Radius is the per-axis offset bound in degrees.
	// Default: 0.05
	Radius float64
}

// Synthesize draws a pool of cfg.Size places. The anchor is drawn once;
// each place then draws, in order, latitude, longitude, name, address and
// identifier. Reproducibility follows the Source's seeding.
func Synthesize(src Source, cfg Config) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, cfg.Size)
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultRadius
	}

	anchor, err := src.Anchor(cfg.Country)
	if err != nil {
		return nil, fmt.Errorf("drawing anchor: %w", err)
	}

	pool := &Pool{
		anchor: anchor,
		radius: cfg.Radius,
		ids:    make([]string, 0, cfg.Size),
		byID:   make(map[string]Place, cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		place, err := drawPlace(src, anchor, cfg.Radius)
		if err != nil {
			return nil, fmt.Errorf("place %d of %d: %w", i+1, cfg.Size, err)
		}
		pool.ids = append(pool.ids, place.ID)
		pool.byID[place.ID] = place
	}

	return pool, nil
}

func drawPlace(src Source, anchor geo.LatLng, radius float64) (Place, error) {
	lat, err := src.UniqueCoordinate(anchor.Lat, radius)
	if err != nil {
		return Place{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := src.UniqueCoordinate(anchor.Lon, radius)
	if err != nil {
		return Place{}, fmt.Errorf("longitude: %w", err)
	}
	name, err := drawString(src, fake.KindCompany)
	if err != nil {
		return Place{}, fmt.Errorf("name: %w", err)
	}
	address, err := drawString(src, fake.KindAddress)
	if err != nil {
		return Place{}, fmt.Errorf("address: %w", err)
	}
	id, err := drawString(src, fake.KindPlaceID)
	if err != nil {
		return Place{}, fmt.Errorf("identifier: %w", err)
	}

	return Place{ID: id, Name: name, Address: address, Lat: lat, Lon: lon}, nil
}

func drawString(src Source, kind fake.Kind) (string, error) {
	v, err := src.DrawUnique(kind)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s value %v is %T, not string", kind, v, v)
	}
	return s, nil
}

// Weights builds the visit distribution over a pool: the first len(top)
// places get the explicit weights, the rest share the remaining mass
// uniformly.
func Weights(pool *Pool, top []float64) (*weighted.Table[string], error) {
	n := pool.Len()
	if len(top) > n {
		return nil, fmt.Errorf("%w: %d top weights for %d places", ErrInvalidWeights, len(top), n)
	}

	var topSum float64
	for _, w := range top {
		topSum += w
	}

	weights := make([]float64, n)
	copy(weights, top)
	if rest := n - len(top); rest > 0 {
		share := (1 - topSum) / float64(rest)
		for i := len(top); i < n; i++ {
			weights[i] = share
		}
	}

	table, err := weighted.NewTable(pool.ids, weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}
	return table, nil
}
