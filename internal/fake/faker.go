// Package fake is the random-value backend for synthetic exports. It draws
// primitive values (strings, numbers, Dutch company names and addresses,
// coordinates) from a seedable stream and can guarantee uniqueness of
// values within one Faker.
package fake

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/breatheroute/takeoutfaker/internal/geo"
)

// Backend errors.
var (
	ErrUnknownKind         = errors.New("unknown value kind")
	ErrUniquenessExhausted = errors.New("unique values exhausted")
	ErrUnknownCountry      = errors.New("unknown country code")
)

// errDuplicate marks a drawn value that was already handed out.
var errDuplicate = errors.New("duplicate value")

// DefaultMaxUniqueAttempts bounds the draws made for one unique value.
const DefaultMaxUniqueAttempts = 1000

// Kind names a kind of synthetic value.
type Kind string

// Supported value kinds.
const (
	KindString  Kind = "string"
	KindFloat   Kind = "float"
	KindInt     Kind = "int"
	KindDigit   Kind = "digit"
	KindCompany Kind = "company"
	KindAddress Kind = "address"
	KindUUID    Kind = "uuid"
	KindPlaceID Kind = "place_id"
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{
		KindString, KindFloat, KindInt, KindDigit,
		KindCompany, KindAddress, KindUUID, KindPlaceID,
	}
}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Options configures a Faker.
type Options struct {
	// Seed makes the value stream reproducible. Nil seeds randomly.
	Seed *uint64

	// MaxUniqueAttempts bounds the draws made for one unique value.
	// Default: 1000
	MaxUniqueAttempts uint64
}

// Faker draws synthetic values. A Faker is not safe for concurrent use;
// give each goroutine its own.
type Faker struct {
	rng               *rand.Rand
	maxUniqueAttempts uint64
	seen              map[string]map[any]struct{}
}

// New creates a Faker.
func New(opts Options) *Faker {
	if opts.MaxUniqueAttempts == 0 {
		opts.MaxUniqueAttempts = DefaultMaxUniqueAttempts
	}

	var seed uint64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = rand.Uint64()
	}

	return &Faker{
		rng:               rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		maxUniqueAttempts: opts.MaxUniqueAttempts,
		seen:              make(map[string]map[any]struct{}),
	}
}

// Float64 returns a uniform draw in [0, 1).
func (f *Faker) Float64() float64 {
	return f.rng.Float64()
}

// Draw returns a fresh value of the given kind.
func (f *Faker) Draw(kind Kind) (any, error) {
	switch kind {
	case KindString, KindPlaceID:
		return f.pystr(), nil
	case KindFloat:
		return f.pyfloat(), nil
	case KindInt:
		return f.rng.IntN(10000), nil
	case KindDigit:
		return 1 + f.rng.IntN(9), nil
	case KindCompany:
		return f.company(), nil
	case KindAddress:
		return f.address(), nil
	case KindUUID:
		id, err := uuid.NewRandomFromReader(randReader{f.rng})
		if err != nil {
			return nil, fmt.Errorf("drawing uuid: %w", err)
		}
		return id.String(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// DrawUnique returns a value of the given kind that this Faker has not
// returned from DrawUnique before.
func (f *Faker) DrawUnique(kind Kind) (any, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f.unique(string(kind), func() (any, error) {
		return f.Draw(kind)
	})
}

// Coordinate returns center plus a uniform offset in [-radius, radius],
// rounded to six decimals.
func (f *Faker) Coordinate(center, radius float64) float64 {
	v := center + (2*f.rng.Float64()-1)*radius
	return math.Round(v*1e6) / 1e6
}

// UniqueCoordinate is Coordinate with uniqueness per (center, radius).
func (f *Faker) UniqueCoordinate(center, radius float64) (float64, error) {
	key := "coordinate:" + strconv.FormatFloat(center, 'g', -1, 64) + ":" + strconv.FormatFloat(radius, 'g', -1, 64)
	v, err := f.unique(key, func() (any, error) {
		return f.Coordinate(center, radius), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Anchor returns a representative coordinate inside the given country.
func (f *Faker) Anchor(country string) (geo.LatLng, error) {
	candidates, ok := anchors[strings.ToUpper(country)]
	if !ok {
		return geo.LatLng{}, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}
	return candidates[f.rng.IntN(len(candidates))], nil
}

// unique retries draw until it yields a value not yet seen under key.
func (f *Faker) unique(key string, draw func() (any, error)) (any, error) {
	seen, ok := f.seen[key]
	if !ok {
		seen = make(map[any]struct{})
		f.seen[key] = seen
	}

	var value any
	operation := func() error {
		v, err := draw()
		if err != nil {
			return backoff.Permanent(err)
		}
		if _, dup := seen[v]; dup {
			return errDuplicate
		}
		value = v
		return nil
	}

	attempts := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, f.maxUniqueAttempts-1)
	if err := backoff.Retry(operation, attempts); err != nil {
		if errors.Is(err, errDuplicate) {
			return nil, fmt.Errorf("%w: %s after %d attempts", ErrUniquenessExhausted, key, f.maxUniqueAttempts)
		}
		return nil, err
	}

	seen[value] = struct{}{}
	return value, nil
}

// pystr renders the format ?#-###NNNN? where ? is a letter, # a digit and
// NNNN a number in [0, 9999].
func (f *Faker) pystr() string {
	var b strings.Builder
	b.WriteByte(f.pick(letters))
	b.WriteByte(f.pick(digits))
	b.WriteByte('-')
	for i := 0; i < 3; i++ {
		b.WriteByte(f.pick(digits))
	}
	b.WriteString(strconv.Itoa(f.rng.IntN(10000)))
	b.WriteByte(f.pick(letters))
	return b.String()
}

func (f *Faker) pyfloat() float64 {
	left := 1 + f.rng.IntN(6)
	right := 1 + f.rng.IntN(6)
	scale := math.Pow10(right)
	v := math.Round(f.rng.Float64()*math.Pow10(left)*scale) / scale
	if f.rng.IntN(2) == 0 {
		v = -v
	}
	return v
}

func (f *Faker) company() string {
	switch f.rng.IntN(4) {
	case 0:
		return f.element(lastNames) + " & " + f.element(lastNames)
	case 1:
		return f.element(companyPrefixes) + " " + f.element(lastNames)
	default:
		return f.element(lastNames) + " " + f.element(companySuffixes)
	}
}

// address renders a Dutch postal address: street and number, postcode,
// city on separate lines.
func (f *Faker) address() string {
	street := strings.ReplaceAll(f.element(lastNames), " ", "")
	street = strings.ToUpper(street[:1]) + street[1:] + f.element(streetSuffixes)

	number := strconv.Itoa(1 + f.rng.IntN(299))
	if f.rng.IntN(5) == 0 {
		number += string(f.pick(lowerLetters))
	}

	postcode := strconv.Itoa(1000+f.rng.IntN(9000)) + " " +
		string(f.pick(upperLetters)) + string(f.pick(upperLetters))

	return street + " " + number + "\n" + postcode + "\n" + f.element(cities)
}

func (f *Faker) element(values []string) string {
	return values[f.rng.IntN(len(values))]
}

func (f *Faker) pick(set string) byte {
	return set[f.rng.IntN(len(set))]
}

// randReader adapts the seeded stream to io.Reader for uuid generation.
type randReader struct {
	rng *rand.Rand
}

func (r randReader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		v := r.rng.Uint64()
		for j := 0; j < 8 && i+j < len(p); j++ {
			p[i+j] = byte(v >> (8 * j))
		}
	}
	return len(p), nil
}
