// Package trajectory rewrites a generated document's timeline into one
// continuous itinerary over a place pool.
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/breatheroute/takeoutfaker/internal/document"
	"github.com/breatheroute/takeoutfaker/internal/geo"
	"github.com/breatheroute/takeoutfaker/internal/places"
	"github.com/breatheroute/takeoutfaker/internal/variant"
	"github.com/breatheroute/takeoutfaker/internal/weighted"
)

// ErrInvalidParams is returned for unusable synthesis parameters.
var ErrInvalidParams = errors.New("invalid trajectory parameters")

// Timeline entry fields.
const (
	VisitKey         = "placeVisit"
	SegmentKey       = "activitySegment"
	DurationKey      = "duration"
	LocationKey      = "location"
	StartLocationKey = "startLocation"
	EndLocationKey   = "endLocation"
	StartKey         = "startTimestampMs"
	EndKey           = "endTimestampMs"
	PlaceIDKey       = "placeId"
	NameKey          = "name"
	AddressKey       = "address"
	LatitudeKey      = "latitudeE7"
	LongitudeKey     = "longitudeE7"
	ActivityTypeKey  = "activityType"
	DistanceKey      = "distance"
)

const millisPerDay = 24 * 60 * 60 * 1000

// Params holds the time budget and distributions of one variant month.
type Params struct {
	// Start is the first instant of the month being synthesized.
	Start time.Time

	// EntryCount divides the month into equal cycles.
	EntryCount int

	// FractionAtPlace is the share of a cycle consumed by a place visit;
	// an activity segment consumes the rest.
	FractionAtPlace float64

	// Activities is the activity-type distribution.
	Activities *weighted.Table[string]

	// Legacy reproduces the legacy fixture encoding: float
	// timestamps, unscaled latitude in both end location fields and the
	// activity type stored under the segment's duration.
	Legacy bool
}

// CycleMillis returns the length of one cycle in milliseconds.
func (p Params) CycleMillis() float64 {
	days := variant.DaysIn(p.Start.Year(), p.Start.Month())
	return float64(days) * millisPerDay / float64(p.EntryCount)
}

// VisitMillis returns the duration of a place visit in milliseconds.
func (p Params) VisitMillis() float64 {
	return p.FractionAtPlace * p.CycleMillis()
}

// SegmentMillis returns the duration of an activity segment in milliseconds.
func (p Params) SegmentMillis() float64 {
	return (1 - p.FractionAtPlace) * p.CycleMillis()
}

func (p Params) validate() error {
	switch {
	case p.EntryCount <= 0:
		return fmt.Errorf("%w: entry count %d", ErrInvalidParams, p.EntryCount)
	case p.FractionAtPlace < 0 || p.FractionAtPlace > 1:
		return fmt.Errorf("%w: fraction at place %v", ErrInvalidParams, p.FractionAtPlace)
	case p.Activities == nil:
		return fmt.Errorf("%w: no activity distribution", ErrInvalidParams)
	case p.Start.IsZero():
		return fmt.Errorf("%w: zero start time", ErrInvalidParams)
	}
	return nil
}

// Summary describes one synthesized timeline.
type Summary struct {
	Entries        int
	Visits         int
	Segments       int
	Skipped        int
	DistanceMeters float64
	Start          time.Time
	End            time.Time
}

// Synthesize rewrites every timeline entry of doc in order.
//
// The current location is threaded through the sequence: it starts at one
// weighted draw, every entry draws the next location from weights (visits
// included) and the drawn location becomes current for the following
// entry. A visit records the current location; a segment travels from the
// current to the drawn location. Entries holding neither are left as they
// are and consume no time.
func Synthesize(
	doc document.Document,
	pool *places.Pool,
	weights *weighted.Table[string],
	p Params,
	r weighted.Rand,
) (Summary, error) {
	if err := p.validate(); err != nil {
		return Summary{}, err
	}
	if pool == nil || weights == nil {
		return Summary{}, fmt.Errorf("%w: missing place pool or weights", ErrInvalidParams)
	}
	for i := 0; i < weights.Len(); i++ {
		if _, ok := pool.Get(weights.Item(i)); !ok {
			return Summary{}, fmt.Errorf("%w: weighted place %q not in pool", ErrInvalidParams, weights.Item(i))
		}
	}

	timeline, err := doc.Timeline()
	if err != nil {
		return Summary{}, err
	}

	s := &synthesizer{
		pool:    pool,
		weights: weights,
		params:  p,
		rand:    r,
		now:     float64(p.Start.UnixMilli()),
		visit:   p.VisitMillis(),
		segment: p.SegmentMillis(),
	}
	summary := Summary{Entries: len(timeline), Start: p.Start}

	current := s.draw()
	for _, e := range timeline {
		next := s.draw()

		entry, _ := e.(map[string]any)
		handled := false
		if v, ok := entry[VisitKey].(map[string]any); ok {
			s.writeVisit(v, current)
			summary.Visits++
			handled = true
		}
		if seg, ok := entry[SegmentKey].(map[string]any); ok {
			summary.DistanceMeters += s.writeSegment(seg, current, next)
			summary.Segments++
			handled = true
		}
		if !handled {
			summary.Skipped++
		}

		current = next
	}

	summary.End = time.UnixMilli(int64(math.Round(s.now))).In(p.Start.Location())
	return summary, nil
}

type synthesizer struct {
	pool    *places.Pool
	weights *weighted.Table[string]
	params  Params
	rand    weighted.Rand

	now     float64
	visit   float64
	segment float64
}

func (s *synthesizer) draw() places.Place {
	place, _ := s.pool.Get(s.weights.Pick(s.rand))
	return place
}

func (s *synthesizer) writeVisit(v map[string]any, at places.Place) {
	end := s.now + s.visit
	duration := child(v, DurationKey)
	duration[StartKey] = s.timestamp(s.now)
	duration[EndKey] = s.timestamp(end)

	location := child(v, LocationKey)
	location[AddressKey] = at.Address
	location[PlaceIDKey] = at.ID
	location[NameKey] = at.Name
	location[LatitudeKey] = s.e7(at.Lat)
	location[LongitudeKey] = s.e7(at.Lon)

	s.now = end
}

func (s *synthesizer) writeSegment(seg map[string]any, from, to places.Place) float64 {
	end := s.now + s.segment
	duration := child(seg, DurationKey)
	duration[StartKey] = s.timestamp(s.now)
	duration[EndKey] = s.timestamp(end)

	start := child(seg, StartLocationKey)
	start[LatitudeKey] = s.e7(from.Lat)
	start[LongitudeKey] = s.e7(from.Lon)

	finish := child(seg, EndLocationKey)
	if s.params.Legacy {
		finish[LatitudeKey] = to.Lat
		finish[LongitudeKey] = to.Lat
	} else {
		finish[LatitudeKey] = geo.E7(to.Lat)
		finish[LongitudeKey] = geo.E7(to.Lon)
	}

	activity := s.params.Activities.Pick(s.rand)
	if s.params.Legacy {
		duration[ActivityTypeKey] = activity
	} else {
		seg[ActivityTypeKey] = activity
	}

	distance := geo.Distance(from.LatLng(), to.LatLng())
	seg[DistanceKey] = distance

	s.now = end
	return distance
}

// e7 encodes a coordinate; legacy output keeps the unrounded float product.
func (s *synthesizer) e7(deg float64) any {
	if s.params.Legacy {
		return deg * 1e7
	}
	return geo.E7(deg)
}

func (s *synthesizer) timestamp(ms float64) any {
	if s.params.Legacy {
		return ms
	}
	return int64(math.Round(ms))
}

// child returns m[key] as an object, replacing a missing or non-object value.
func child(m map[string]any, key string) map[string]any {
	if c, ok := m[key].(map[string]any); ok {
		return c
	}
	c := make(map[string]any)
	m[key] = c
	return c
}
