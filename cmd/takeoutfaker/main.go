// Command takeoutfaker writes a synthetic Google Takeout location history
// archive shaped after one or more real export documents.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/takeoutfaker/internal/archive"
	"github.com/breatheroute/takeoutfaker/internal/config"
	"github.com/breatheroute/takeoutfaker/internal/generator"
	"github.com/breatheroute/takeoutfaker/internal/schema"
	"github.com/breatheroute/takeoutfaker/internal/telemetry"
	"github.com/breatheroute/takeoutfaker/internal/variant"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

//go:embed sample/2020_JANUARY.json
var defaultSample []byte

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// options are the resolved command-line settings.
type options struct {
	config.Config
	samples stringList
}

func main() {
	const serviceName = telemetry.DefaultServiceName

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	opts, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	level, _ := opts.Level() //nolint:errcheck // validated by config.Load
	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting takeoutfaker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    opts.Environment,
		OTLPEndpoint:   opts.OTLPEndpoint,
		Enabled:        opts.OTelEnabled,
		SampleRatio:    opts.OTelSampleRatio,
		Batch: telemetry.Batch{
			Years:   opts.Years,
			Country: opts.Country,
			Legacy:  opts.Legacy,
			Seed:    opts.Seed,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	if tp.Exporting() {
		log.Info().
			Str("endpoint", opts.OTLPEndpoint).
			Float64("sample_ratio", opts.OTelSampleRatio).
			Msg("exporting telemetry")
	}

	code := run(ctx, log, opts)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown telemetry")
	}

	if code != 0 {
		os.Exit(code) //nolint:gocritic // telemetry already shut down
	}
}

func parseFlags(cfg config.Config, args []string) (options, error) {
	opts := options{Config: cfg}

	fs := flag.NewFlagSet("takeoutfaker", flag.ContinueOnError)
	fs.Var(&opts.samples, "sample", "sample export document (.json) or Takeout archive (.zip); repeatable")
	fs.StringVar(&opts.Output, "output", cfg.Output, "archive to write")
	fs.StringVar(&opts.VariantsFile, "variants", cfg.VariantsFile, "YAML variant table replacing the built-in one")
	years := fs.String("years", joinInts(cfg.Years), "comma-separated variant years (default: all)")
	seed := fs.String("seed", formatSeed(cfg.Seed), "base seed (default: random)")
	fs.IntVar(&opts.Concurrency, "concurrency", cfg.Concurrency, "documents generated in parallel")
	fs.StringVar(&opts.Country, "country", cfg.Country, "country the places are scattered in")
	fs.BoolVar(&opts.Legacy, "legacy", cfg.Legacy, "reproduce the legacy fixture encoding")
	fs.BoolVar(&opts.FailFast, "fail-fast", cfg.FailFast, "stop at the first failed document")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	var err error
	if opts.Years, err = parseInts(*years); err != nil {
		return options{}, fmt.Errorf("-years: %w", err)
	}
	if *seed != "" {
		v, err := strconv.ParseUint(*seed, 10, 64)
		if err != nil {
			return options{}, fmt.Errorf("-seed: %w", err)
		}
		opts.Seed = &v
	}
	if err := opts.Validate(); err != nil {
		return options{}, err
	}

	return opts, nil
}

func run(ctx context.Context, log zerolog.Logger, opts options) int {
	sample, err := loadSamples(opts.samples)
	if err != nil {
		log.Error().Err(err).Msg("failed to load sample")
		return 1
	}

	table, err := loadTable(opts.VariantsFile)
	if err != nil {
		log.Error().Err(err).Str("path", opts.VariantsFile).Msg("failed to load variant table")
		return 1
	}

	metrics, err := generator.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		return 1
	}

	job, err := generator.NewJob(generator.JobConfig{
		Sample:      sample,
		Table:       table,
		Years:       opts.Years,
		Concurrency: opts.Concurrency,
		Seed:        opts.Seed,
		Country:     opts.Country,
		Legacy:      opts.Legacy,
		FailFast:    opts.FailFast,
		Logger:      log,
		Metrics:     metrics,
	})
	if err != nil {
		log.Error().Err(err).Msg("invalid generation settings")
		return 1
	}

	result, err := job.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("generation failed")
		return 1
	}

	if err := writeArchive(opts.Output, result); err != nil {
		log.Error().Err(err).Str("output", opts.Output).Msg("failed to write archive")
		return 1
	}

	log.Info().
		Str("output", opts.Output).
		Str("run_id", result.RunID).
		Str("seed", strconv.FormatUint(result.Seed, 10)).
		Int("documents", len(result.Documents)).
		Msg("archive written")

	if err := result.Err(); err != nil {
		log.Error().Err(err).Int("failed", len(result.Errors)).Msg("some documents failed")
		return 1
	}
	return 0
}

// loadSamples merges every sample into one schema. With no samples the
// bundled January 2020 export is used.
func loadSamples(paths []string) (*schema.Node, error) {
	var b schema.Builder
	if len(paths) == 0 {
		v, err := schema.Decode(bytes.NewReader(defaultSample))
		if err != nil {
			return nil, err
		}
		if err := b.Add(v); err != nil {
			return nil, err
		}
		return b.Root(), nil
	}

	for _, path := range paths {
		if err := addSample(&b, path); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return b.Root(), nil
}

func addSample(b *schema.Builder, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		v, err := schema.Decode(f)
		if err != nil {
			return err
		}
		return b.Add(v)
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	docs, err := archive.Read(f, info.Size())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.New("archive holds no semantic location history")
	}
	for _, key := range archive.SortedKeys(docs) {
		if err := b.Add(map[string]any(docs[key])); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func loadTable(path string) (variant.Table, error) {
	if path == "" {
		return variant.DefaultTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return variant.Table{}, err
	}
	defer f.Close()
	return variant.LoadTable(f)
}

const archiveMode os.FileMode = 0o644

// writeArchive writes next to the destination and renames, so a failed
// run never leaves a truncated archive behind.
func writeArchive(path string, result *generator.Result) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".takeoutfaker-*.zip")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = archive.Write(tmp, result.Documents); err != nil {
		_ = tmp.Close()
		return err
	}
	// CreateTemp opens with 0600.
	if err = tmp.Chmod(archiveMode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func formatSeed(seed *uint64) string {
	if seed == nil {
		return ""
	}
	return strconv.FormatUint(*seed, 10)
}
