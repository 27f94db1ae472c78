// Package generator runs a batch of monthly location history documents,
// one per variant year and month, over a worker pool.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/takeoutfaker/internal/document"
	"github.com/breatheroute/takeoutfaker/internal/fake"
	"github.com/breatheroute/takeoutfaker/internal/genspec"
	"github.com/breatheroute/takeoutfaker/internal/places"
	"github.com/breatheroute/takeoutfaker/internal/schema"
	"github.com/breatheroute/takeoutfaker/internal/trajectory"
	"github.com/breatheroute/takeoutfaker/internal/variant"
	"github.com/breatheroute/takeoutfaker/internal/weighted"
)

const tracerName = "github.com/breatheroute/takeoutfaker/internal/generator"

// DefaultConcurrency is the number of documents generated in parallel.
const DefaultConcurrency = 3

// ErrNoSample is returned when a job is configured without a sample schema.
var ErrNoSample = errors.New("no sample schema")

// JobConfig holds configuration for creating a Job.
type JobConfig struct {
	// Sample is the schema inferred from one or more real export documents.
	Sample *schema.Node

	// Table holds the variants. Default: variant.DefaultTable()
	Table variant.Table

	// Years selects the variants to generate. Default: every table year.
	Years []int

	// Overrides replaces the default field overrides when non-nil.
	Overrides map[string]genspec.Directive

	// Concurrency is the number of concurrent document workers.
	// Default: 3
	Concurrency int

	// Seed is the base seed of the run. Nil draws one, which is reported in
	// the Result so the run can be repeated.
	Seed *uint64

	// Country and Radius control place scattering.
	// Defaults: places.DefaultCountry and places.DefaultRadius
	Country string
	Radius  float64

	// Legacy reproduces the legacy fixture encoding.
	Legacy bool

	// FailFast cancels the remaining documents after the first failure.
	FailFast bool

	Logger  zerolog.Logger
	Metrics *Metrics
}

// Job generates the documents of a batch.
type Job struct {
	config  JobConfig
	logger  zerolog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewJob validates cfg and creates a Job.
func NewJob(cfg JobConfig) (*Job, error) {
	if cfg.Sample == nil {
		return nil, ErrNoSample
	}
	if cfg.Table.Len() == 0 {
		cfg.Table = variant.DefaultTable()
	}
	if len(cfg.Years) == 0 {
		cfg.Years = cfg.Table.Years()
	}
	for _, year := range cfg.Years {
		if _, err := cfg.Table.Lookup(year); err != nil {
			return nil, err
		}
	}
	if cfg.Overrides == nil {
		cfg.Overrides = genspec.DefaultOverrides()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Country == "" {
		cfg.Country = places.DefaultCountry
	}
	if cfg.Radius <= 0 {
		cfg.Radius = places.DefaultRadius
	}

	metrics := cfg.Metrics
	if metrics == nil {
		var err error
		if metrics, err = NewMetrics(); err != nil {
			return nil, fmt.Errorf("creating metrics: %w", err)
		}
	}

	return &Job{
		config:  cfg,
		logger:  cfg.Logger,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Result contains the outcome of one run.
type Result struct {
	RunID     string
	Seed      uint64
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// PlaceCount is the size of the shared place pool.
	PlaceCount int

	Documents map[variant.Key]document.Document
	Summaries map[variant.Key]trajectory.Summary
	Errors    []DocumentError
}

// Err joins every document error, or returns nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		errs[i] = r.Errors[i]
	}
	return errors.Join(errs...)
}

// Snapshot returns the run totals as log fields.
func (r *Result) Snapshot() map[string]interface{} {
	var entries, visits, segments int
	var distance float64
	for _, s := range r.Summaries {
		entries += s.Entries
		visits += s.Visits
		segments += s.Segments
		distance += s.DistanceMeters
	}
	return map[string]interface{}{
		"documents":  len(r.Documents),
		"failed":     len(r.Errors),
		"places":     r.PlaceCount,
		"entries":    entries,
		"visits":     visits,
		"segments":   segments,
		"distance_m": distance,
		"duration":   r.Duration.String(),
	}
}

// DocumentError records the failure of one monthly document.
type DocumentError struct {
	Key variant.Key
	Err error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e DocumentError) Unwrap() error {
	return e.Err
}

// plan is the read-only per-year input shared by that year's documents.
type plan struct {
	variant    variant.Variant
	spec       *genspec.Node
	pool       *places.Pool
	weights    *weighted.Table[string]
	activities *weighted.Table[string]
}

type task struct {
	key  variant.Key
	seed uint64
}

type taskResult struct {
	key      variant.Key
	doc      document.Document
	summary  trajectory.Summary
	duration time.Duration
	err      error
}

// Run generates every month of every configured year. Setup failures
// (place pool, translation) abort the run; per-document failures are
// collected in Result.Errors.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()

	seed := j.baseSeed()
	result := &Result{
		RunID:     uuid.NewString(),
		Seed:      seed,
		StartTime: startTime,
		Documents: make(map[variant.Key]document.Document),
		Summaries: make(map[variant.Key]trajectory.Summary),
	}
	logger := j.logger.With().
		Str("run_id", result.RunID).
		Str("seed", strconv.FormatUint(seed, 10)).
		Logger()

	plans, poolSize, err := j.prepare(seed)
	if err != nil {
		return nil, err
	}
	result.PlaceCount = poolSize

	keys := variant.Keys(j.config.Years)

	logger.Info().
		Ints("years", j.config.Years).
		Int("documents", len(keys)).
		Int("places", poolSize).
		Int("concurrency", j.config.Concurrency).
		Msg("starting generation run")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan task, len(keys))
	results := make(chan taskResult, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.worker(runCtx, plans, tasks, results)
		}()
	}

	// Ordinal seeds keep every document independent of scheduling.
	for i, key := range keys {
		tasks <- task{key: key, seed: seed + uint64(i) + 1}
	}
	close(tasks)

	go func() {
		wg.Wait()
		close(results)
	}()

	for tr := range results {
		if tr.err != nil {
			result.Errors = append(result.Errors, DocumentError{Key: tr.key, Err: tr.err})
			logger.Error().
				Err(tr.err).
				Stringer("document", tr.key).
				Msg("document generation failed")
			if j.config.FailFast {
				cancel()
			}
			continue
		}

		result.Documents[tr.key] = tr.doc
		result.Summaries[tr.key] = tr.summary
		logger.Debug().
			Stringer("document", tr.key).
			Int("visits", tr.summary.Visits).
			Int("segments", tr.summary.Segments).
			Float64("distance_m", tr.summary.DistanceMeters).
			Dur("duration", tr.duration).
			Msg("document generated")
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	logger.Info().
		Fields(result.Snapshot()).
		Msg("generation run completed")

	return result, nil
}

func (j *Job) baseSeed() uint64 {
	if j.config.Seed != nil {
		return *j.config.Seed
	}
	return rand.Uint64()
}

// prepare builds one place pool of the largest place count and gives each
// year a prefix of it.
func (j *Job) prepare(seed uint64) (map[int]*plan, int, error) {
	variants := make([]variant.Variant, 0, len(j.config.Years))
	for _, year := range j.config.Years {
		v, err := j.config.Table.Lookup(year)
		if err != nil {
			return nil, 0, err
		}
		variants = append(variants, v)
	}
	size := j.config.Table.MaxPlaceCount(j.config.Years...)

	poolSeed := seed
	master, err := places.Synthesize(fake.New(fake.Options{Seed: &poolSeed}), places.Config{
		Size:    size,
		Country: j.config.Country,
		Radius:  j.config.Radius,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("synthesizing place pool: %w", err)
	}

	plans := make(map[int]*plan, len(variants))
	for _, v := range variants {
		spec, err := genspec.Translate(j.config.Sample, genspec.Tables{
			Overrides:  j.config.Overrides,
			Iterations: map[string]int{document.TimelineKey: v.EntryCount},
		})
		if err != nil {
			return nil, 0, fmt.Errorf("translating sample for %d: %w", v.Year, err)
		}

		pool := master.Prefix(v.PlaceCount)
		weights, err := places.Weights(pool, v.TopPlaces)
		if err != nil {
			return nil, 0, fmt.Errorf("place weights for %d: %w", v.Year, err)
		}
		activities, err := weighted.NewTable(v.ActivityTypes(), v.ActivityWeights())
		if err != nil {
			return nil, 0, fmt.Errorf("activity weights for %d: %w", v.Year, err)
		}

		plans[v.Year] = &plan{
			variant:    v,
			spec:       spec,
			pool:       pool,
			weights:    weights,
			activities: activities,
		}
	}

	return plans, size, nil
}

func (j *Job) worker(ctx context.Context, plans map[int]*plan, tasks <-chan task, results chan<- taskResult) {
	for t := range tasks {
		select {
		case <-ctx.Done():
			results <- taskResult{key: t.key, err: ctx.Err()}
		default:
			results <- j.generate(ctx, plans[t.key.Year], t)
		}
	}
}

func (j *Job) generate(ctx context.Context, p *plan, t task) taskResult {
	ctx, span := j.tracer.Start(ctx, "generator.document",
		trace.WithAttributes(keyAttributes(t.key)...),
		trace.WithAttributes(attribute.String("variant.seed", strconv.FormatUint(t.seed, 10))),
	)
	defer span.End()

	start := time.Now()
	j.metrics.started(ctx, t.key)

	res := taskResult{key: t.key}
	res.doc, res.summary, res.err = j.synthesize(p, t)
	res.duration = time.Since(start)

	j.metrics.finished(ctx, t.key, res.duration, res.summary, res.err)

	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		return res
	}

	span.SetAttributes(
		attribute.Int("timeline.entries", res.summary.Entries),
		attribute.Int("timeline.visits", res.summary.Visits),
		attribute.Int("timeline.segments", res.summary.Segments),
		attribute.Float64("timeline.distance_m", res.summary.DistanceMeters),
	)
	return res
}

// synthesize draws the document skeleton and then its itinerary from one
// faker, so a document depends only on its seed.
func (j *Job) synthesize(p *plan, t task) (document.Document, trajectory.Summary, error) {
	seed := t.seed
	faker := fake.New(fake.Options{Seed: &seed})

	doc, err := document.Generate(p.spec, faker)
	if err != nil {
		return nil, trajectory.Summary{}, fmt.Errorf("generating document: %w", err)
	}

	summary, err := trajectory.Synthesize(doc, p.pool, p.weights, trajectory.Params{
		Start:           t.key.Start(),
		EntryCount:      p.variant.EntryCount,
		FractionAtPlace: p.variant.FractionAtPlace,
		Activities:      p.activities,
		Legacy:          j.config.Legacy,
	}, faker)
	if err != nil {
		return nil, trajectory.Summary{}, fmt.Errorf("synthesizing trajectory: %w", err)
	}

	return doc, summary, nil
}
