package trajectory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/takeoutfaker/internal/document"
	"github.com/breatheroute/takeoutfaker/internal/fake"
	"github.com/breatheroute/takeoutfaker/internal/geo"
	"github.com/breatheroute/takeoutfaker/internal/places"
	"github.com/breatheroute/takeoutfaker/internal/trajectory"
	"github.com/breatheroute/takeoutfaker/internal/weighted"
)

// scriptedRand replays fixed uniform draws.
type scriptedRand struct {
	values []float64
	next   int
}

func (r *scriptedRand) Float64() float64 {
	v := r.values[r.next]
	r.next++
	return v
}

func seeded(seed uint64) *fake.Faker {
	return fake.New(fake.Options{Seed: &seed})
}

type fixture struct {
	pool       *places.Pool
	weights    *weighted.Table[string]
	activities *weighted.Table[string]
}

func newFixture(t *testing.T, size int, top []float64) fixture {
	t.Helper()

	pool, err := places.Synthesize(seeded(1), places.Config{Size: size})
	require.NoError(t, err)
	weights, err := places.Weights(pool, top)
	require.NoError(t, err)
	activities, err := weighted.NewTable(
		[]string{"CYCLING", "WALKING", "IN_VEHICLE", "IN_TRAIN"},
		[]float64{0.3, 0.2, 0.3, 0.2},
	)
	require.NoError(t, err)

	return fixture{pool: pool, weights: weights, activities: activities}
}

func (f fixture) params(start time.Time, entries int, fraction float64) trajectory.Params {
	return trajectory.Params{
		Start:           start,
		EntryCount:      entries,
		FractionAtPlace: fraction,
		Activities:      f.activities,
	}
}

func visitEntry() map[string]any {
	return map[string]any{
		trajectory.VisitKey: map[string]any{
			trajectory.DurationKey: map[string]any{trajectory.StartKey: "x", trajectory.EndKey: "y"},
			trajectory.LocationKey: map[string]any{trajectory.NameKey: "Acme"},
		},
	}
}

func segmentEntry() map[string]any {
	return map[string]any{
		trajectory.SegmentKey: map[string]any{
			trajectory.DurationKey:      map[string]any{},
			trajectory.StartLocationKey: map[string]any{},
			trajectory.EndLocationKey:   map[string]any{},
		},
	}
}

// alternating builds a timeline of visit, segment, visit, ...
func alternating(n int) document.Document {
	timeline := make([]any, n)
	for i := range timeline {
		if i%2 == 0 {
			timeline[i] = visitEntry()
		} else {
			timeline[i] = segmentEntry()
		}
	}
	return document.Document{document.TimelineKey: timeline}
}

func durationOf(entry map[string]any) (int64, int64) {
	for _, key := range []string{trajectory.VisitKey, trajectory.SegmentKey} {
		if v, ok := entry[key].(map[string]any); ok {
			d := v[trajectory.DurationKey].(map[string]any)
			return d[trajectory.StartKey].(int64), d[trajectory.EndKey].(int64)
		}
	}
	return 0, 0
}

// startLocation returns the E7 coordinate an entry starts at.
func startLocation(entry map[string]any) [2]int64 {
	if v, ok := entry[trajectory.VisitKey].(map[string]any); ok {
		loc := v[trajectory.LocationKey].(map[string]any)
		return [2]int64{loc[trajectory.LatitudeKey].(int64), loc[trajectory.LongitudeKey].(int64)}
	}
	seg := entry[trajectory.SegmentKey].(map[string]any)
	loc := seg[trajectory.StartLocationKey].(map[string]any)
	return [2]int64{loc[trajectory.LatitudeKey].(int64), loc[trajectory.LongitudeKey].(int64)}
}

func TestParams_Durations(t *testing.T) {
	p := trajectory.Params{
		Start:           time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		EntryCount:      500,
		FractionAtPlace: 0.8,
	}

	assert.InDelta(t, 5_356_800, p.CycleMillis(), 1e-6)
	assert.InDelta(t, 4_285_440, p.VisitMillis(), 1e-6)
	assert.InDelta(t, 1_071_360, p.SegmentMillis(), 1e-6)

	p.Start = time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC)
	p.EntryCount = 250
	assert.InDelta(t, 28*86_400_000.0/250, p.CycleMillis(), 1e-6)
}

func TestSynthesize_TimeBudget(t *testing.T) {
	f := newFixture(t, 50, []float64{0.4, 0.3, 0.05})
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	doc := alternating(500)

	summary, err := trajectory.Synthesize(doc, f.pool, f.weights, f.params(start, 500, 0.8), seeded(2))
	require.NoError(t, err)
	assert.Equal(t, 250, summary.Visits)
	assert.Equal(t, 250, summary.Segments)
	assert.Zero(t, summary.Skipped)

	timeline, err := doc.Timeline()
	require.NoError(t, err)

	var prevStart int64
	for i, e := range timeline {
		entry := e.(map[string]any)
		s, end := durationOf(entry)
		assert.GreaterOrEqual(t, s, prevStart, "entry %d", i)
		prevStart = s

		if i%2 == 0 {
			assert.Equal(t, int64(4_285_440), end-s)
		} else {
			assert.Equal(t, int64(1_071_360), end-s)
		}
	}

	first, _ := durationOf(timeline[0].(map[string]any))
	assert.Equal(t, start.UnixMilli(), first)

	// 250 full cycles cover exactly half of January.
	assert.Equal(t, start.Add(31*24*time.Hour/2), summary.End)
}

func TestSynthesize_LocationThreading(t *testing.T) {
	f := newFixture(t, 20, []float64{0.4, 0.3, 0.05})
	doc := alternating(101)

	_, err := trajectory.Synthesize(doc, f.pool, f.weights,
		f.params(time.Date(2019, time.June, 1, 0, 0, 0, 0, time.UTC), 101, 0.8), seeded(3))
	require.NoError(t, err)

	timeline, err := doc.Timeline()
	require.NoError(t, err)

	for i := 1; i+1 < len(timeline); i += 2 {
		seg := timeline[i].(map[string]any)[trajectory.SegmentKey].(map[string]any)
		end := seg[trajectory.EndLocationKey].(map[string]any)
		endLoc := [2]int64{end[trajectory.LatitudeKey].(int64), end[trajectory.LongitudeKey].(int64)}

		assert.Equal(t, endLoc, startLocation(timeline[i+1].(map[string]any)), "segment %d", i)
	}
}

func TestSynthesize_ScriptedDraws(t *testing.T) {
	f := newFixture(t, 3, []float64{0.5, 0.3, 0.2})
	p0, p1, p2 := f.pool.At(0), f.pool.At(1), f.pool.At(2)

	doc := document.Document{document.TimelineKey: []any{visitEntry(), segmentEntry()}}
	r := &scriptedRand{values: []float64{
		0.1,  // seed location: p0
		0.6,  // visit draws next: p1
		0.9,  // segment draws next: p2
		0.35, // activity: WALKING
	}}

	summary, err := trajectory.Synthesize(doc, f.pool, f.weights,
		f.params(time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC), 2, 0.5), r)
	require.NoError(t, err)
	assert.Equal(t, 4, r.next)

	visit := doc[document.TimelineKey].([]any)[0].(map[string]any)[trajectory.VisitKey].(map[string]any)
	loc := visit[trajectory.LocationKey].(map[string]any)
	assert.Equal(t, p0.ID, loc[trajectory.PlaceIDKey])
	assert.Equal(t, p0.Name, loc[trajectory.NameKey])
	assert.Equal(t, p0.Address, loc[trajectory.AddressKey])
	assert.Equal(t, geo.E7(p0.Lat), loc[trajectory.LatitudeKey])
	assert.Equal(t, geo.E7(p0.Lon), loc[trajectory.LongitudeKey])

	seg := doc[document.TimelineKey].([]any)[1].(map[string]any)[trajectory.SegmentKey].(map[string]any)
	start := seg[trajectory.StartLocationKey].(map[string]any)
	end := seg[trajectory.EndLocationKey].(map[string]any)
	assert.Equal(t, geo.E7(p1.Lat), start[trajectory.LatitudeKey])
	assert.Equal(t, geo.E7(p1.Lon), start[trajectory.LongitudeKey])
	assert.Equal(t, geo.E7(p2.Lat), end[trajectory.LatitudeKey])
	assert.Equal(t, geo.E7(p2.Lon), end[trajectory.LongitudeKey])
	assert.Equal(t, "WALKING", seg[trajectory.ActivityTypeKey])

	want := geo.Distance(p1.LatLng(), p2.LatLng())
	assert.InDelta(t, want, seg[trajectory.DistanceKey], 1e-9)
	assert.InDelta(t, want, summary.DistanceMeters, 1e-9)
}

func TestSynthesize_SamePlaceHasZeroDistance(t *testing.T) {
	f := newFixture(t, 2, []float64{1, 0})
	doc := document.Document{document.TimelineKey: []any{segmentEntry(), segmentEntry()}}

	summary, err := trajectory.Synthesize(doc, f.pool, f.weights,
		f.params(time.Date(2020, time.April, 1, 0, 0, 0, 0, time.UTC), 2, 0.8), seeded(4))
	require.NoError(t, err)
	assert.Zero(t, summary.DistanceMeters)
}

func TestSynthesize_DistancesBoundedByPool(t *testing.T) {
	f := newFixture(t, 50, []float64{0.4, 0.3, 0.05})
	doc := alternating(200)

	_, err := trajectory.Synthesize(doc, f.pool, f.weights,
		f.params(time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC), 200, 0.8), seeded(5))
	require.NoError(t, err)

	anchor, radius := f.pool.Anchor(), f.pool.Radius()
	bound := geo.Distance(
		geo.LatLng{Lat: anchor.Lat - radius, Lon: anchor.Lon - radius},
		geo.LatLng{Lat: anchor.Lat + radius, Lon: anchor.Lon + radius},
	) * 1.01
	for _, e := range doc[document.TimelineKey].([]any) {
		if seg, ok := e.(map[string]any)[trajectory.SegmentKey].(map[string]any); ok {
			d := seg[trajectory.DistanceKey].(float64)
			assert.GreaterOrEqual(t, d, 0.0)
			assert.Less(t, d, bound)
		}
	}
}

func TestSynthesize_MalformedEntriesPassThrough(t *testing.T) {
	f := newFixture(t, 5, []float64{0.4, 0.3, 0.05})
	malformed := map[string]any{"unknown": map[string]any{"k": "v"}}
	doc := document.Document{document.TimelineKey: []any{
		visitEntry(),
		malformed,
		"not an object",
		visitEntry(),
	}}

	summary, err := trajectory.Synthesize(doc, f.pool, f.weights,
		f.params(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), 4, 1), seeded(6))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Visits)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, map[string]any{"unknown": map[string]any{"k": "v"}}, malformed)

	timeline := doc[document.TimelineKey].([]any)
	_, firstEnd := durationOf(timeline[0].(map[string]any))
	secondStart, _ := durationOf(timeline[3].(map[string]any))
	assert.Equal(t, firstEnd, secondStart)
}

func TestSynthesize_EntryWithBothVariants(t *testing.T) {
	f := newFixture(t, 5, []float64{0.4, 0.3, 0.05})
	both := visitEntry()
	for k, v := range segmentEntry() {
		both[k] = v
	}
	doc := document.Document{document.TimelineKey: []any{both}}

	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	p := f.params(start, 1, 0.75)
	summary, err := trajectory.Synthesize(doc, f.pool, f.weights, p, seeded(7))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Visits)
	assert.Equal(t, 1, summary.Segments)

	visit := both[trajectory.VisitKey].(map[string]any)
	seg := both[trajectory.SegmentKey].(map[string]any)
	visitEnd := visit[trajectory.DurationKey].(map[string]any)[trajectory.EndKey]
	segStart := seg[trajectory.DurationKey].(map[string]any)[trajectory.StartKey]
	assert.Equal(t, visitEnd, segStart)

	loc := visit[trajectory.LocationKey].(map[string]any)
	segFrom := seg[trajectory.StartLocationKey].(map[string]any)
	assert.Equal(t, loc[trajectory.LatitudeKey], segFrom[trajectory.LatitudeKey])
	assert.Equal(t, start.Add(31*24*time.Hour), summary.End)
}

func TestSynthesize_CreatesMissingFields(t *testing.T) {
	f := newFixture(t, 5, []float64{0.4, 0.3, 0.05})
	doc := document.Document{document.TimelineKey: []any{
		map[string]any{trajectory.SegmentKey: map[string]any{trajectory.DurationKey: "bogus"}},
	}}

	_, err := trajectory.Synthesize(doc, f.pool, f.weights,
		f.params(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), 1, 0.5), seeded(8))
	require.NoError(t, err)

	seg := doc[document.TimelineKey].([]any)[0].(map[string]any)[trajectory.SegmentKey].(map[string]any)
	assert.IsType(t, map[string]any{}, seg[trajectory.DurationKey])
	assert.Contains(t, seg, trajectory.StartLocationKey)
	assert.Contains(t, seg, trajectory.EndLocationKey)
}

func TestSynthesize_Legacy(t *testing.T) {
	f := newFixture(t, 3, []float64{0.5, 0.3, 0.2})
	doc := document.Document{document.TimelineKey: []any{segmentEntry()}}
	r := &scriptedRand{values: []float64{0.1, 0.9, 0.0}}

	p := f.params(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), 1, 0.8)
	p.Legacy = true
	_, err := trajectory.Synthesize(doc, f.pool, f.weights, p, r)
	require.NoError(t, err)

	from, to := f.pool.At(0), f.pool.At(2)
	seg := doc[document.TimelineKey].([]any)[0].(map[string]any)[trajectory.SegmentKey].(map[string]any)
	start := seg[trajectory.StartLocationKey].(map[string]any)
	assert.Equal(t, from.Lat*1e7, start[trajectory.LatitudeKey])
	assert.Equal(t, from.Lon*1e7, start[trajectory.LongitudeKey])
	end := seg[trajectory.EndLocationKey].(map[string]any)
	assert.Equal(t, to.Lat, end[trajectory.LatitudeKey])
	assert.Equal(t, to.Lat, end[trajectory.LongitudeKey])

	duration := seg[trajectory.DurationKey].(map[string]any)
	assert.Equal(t, "CYCLING", duration[trajectory.ActivityTypeKey])
	assert.NotContains(t, seg, trajectory.ActivityTypeKey)
	assert.IsType(t, float64(0), duration[trajectory.StartKey])
}

func TestSynthesize_LegacyVisitCoordinates(t *testing.T) {
	f := newFixture(t, 3, []float64{0.5, 0.3, 0.2})
	doc := document.Document{document.TimelineKey: []any{visitEntry()}}
	r := &scriptedRand{values: []float64{0.1, 0.9}}

	p := f.params(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), 1, 0.8)
	p.Legacy = true
	_, err := trajectory.Synthesize(doc, f.pool, f.weights, p, r)
	require.NoError(t, err)

	at := f.pool.At(0)
	visit := doc[document.TimelineKey].([]any)[0].(map[string]any)[trajectory.VisitKey].(map[string]any)
	loc := visit[trajectory.LocationKey].(map[string]any)
	assert.Equal(t, at.Lat*1e7, loc[trajectory.LatitudeKey])
	assert.Equal(t, at.Lon*1e7, loc[trajectory.LongitudeKey])
	assert.IsType(t, float64(0), loc[trajectory.LatitudeKey])
}

func TestSynthesize_SeedReproducible(t *testing.T) {
	f := newFixture(t, 20, []float64{0.8, 0.03, 0.02})
	p := f.params(time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC), 30, 0.95)

	a, b := alternating(30), alternating(30)
	_, err := trajectory.Synthesize(a, f.pool, f.weights, p, seeded(10))
	require.NoError(t, err)
	_, err = trajectory.Synthesize(b, f.pool, f.weights, p, seeded(10))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSynthesize_Errors(t *testing.T) {
	f := newFixture(t, 5, []float64{0.4, 0.3, 0.05})
	otherPool, err := places.Synthesize(seeded(77), places.Config{Size: 5})
	require.NoError(t, err)
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		doc     document.Document
		pool    *places.Pool
		weights *weighted.Table[string]
		params  trajectory.Params
		want    error
	}{
		{
			name: "zero entries", doc: alternating(2), pool: f.pool, weights: f.weights,
			params: f.params(start, 0, 0.8), want: trajectory.ErrInvalidParams,
		},
		{
			name: "fraction out of range", doc: alternating(2), pool: f.pool, weights: f.weights,
			params: f.params(start, 2, 1.2), want: trajectory.ErrInvalidParams,
		},
		{
			name: "no activities", doc: alternating(2), pool: f.pool, weights: f.weights,
			params: trajectory.Params{Start: start, EntryCount: 2, FractionAtPlace: 0.8},
			want:   trajectory.ErrInvalidParams,
		},
		{
			name: "weights over another pool", doc: alternating(2), pool: otherPool, weights: f.weights,
			params: f.params(start, 2, 0.8), want: trajectory.ErrInvalidParams,
		},
		{
			name: "no timeline", doc: document.Document{}, pool: f.pool, weights: f.weights,
			params: f.params(start, 2, 0.8), want: document.ErrNoTimeline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := trajectory.Synthesize(tt.doc, tt.pool, tt.weights, tt.params, seeded(1))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
