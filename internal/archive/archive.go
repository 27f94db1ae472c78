// Package archive packs generated documents into a Takeout-style zip and
// reads them back.
package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/breatheroute/takeoutfaker/internal/document"
	"github.com/breatheroute/takeoutfaker/internal/schema"
	"github.com/breatheroute/takeoutfaker/internal/variant"
)

// ErrInvalidPath is returned for a semantic history entry whose name does
// not follow the export layout.
var ErrInvalidPath = errors.New("invalid archive path")

// Root is the directory holding one sub-directory per year.
const Root = "Takeout/Location History/Semantic Location History"

// Path returns the archive member name for key,
// e.g. Takeout/.../2020/2020_JANUARY.json.
func Path(key variant.Key) string {
	return path.Join(Root, strconv.Itoa(key.Year), key.String()+".json")
}

// ParsePath parses a member name written by Path.
func ParsePath(name string) (variant.Key, error) {
	rel, ok := strings.CutPrefix(name, Root+"/")
	if !ok {
		return variant.Key{}, fmt.Errorf("%w: %s outside %s", ErrInvalidPath, name, Root)
	}

	dir, file := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	base, ok := strings.CutSuffix(file, ".json")
	if !ok || strings.Contains(dir, "/") {
		return variant.Key{}, fmt.Errorf("%w: %s", ErrInvalidPath, name)
	}

	yearPart, monthPart, ok := strings.Cut(base, "_")
	if !ok || yearPart != dir {
		return variant.Key{}, fmt.Errorf("%w: %s", ErrInvalidPath, name)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return variant.Key{}, fmt.Errorf("%w: year in %s: %w", ErrInvalidPath, name, err)
	}
	month, ok := variant.ParseMonth(monthPart)
	if !ok {
		return variant.Key{}, fmt.Errorf("%w: month in %s", ErrInvalidPath, name)
	}

	return variant.Key{Year: year, Month: month}, nil
}

// SortedKeys returns the keys of docs in chronological order.
func SortedKeys(docs map[variant.Key]document.Document) []variant.Key {
	keys := make([]variant.Key, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Month < keys[j].Month
	})
	return keys
}

// Write writes one JSON member per document, in chronological order.
func Write(w io.Writer, docs map[variant.Key]document.Document) error {
	zw := zip.NewWriter(w)

	for _, key := range SortedKeys(docs) {
		f, err := zw.Create(Path(key))
		if err != nil {
			return fmt.Errorf("creating %s: %w", key, err)
		}

		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(docs[key]); err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// Read extracts the documents of a zip written by Write. Members outside
// Root are ignored; malformed names under Root fail with ErrInvalidPath.
func Read(r io.ReaderAt, size int64) (map[variant.Key]document.Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	docs := make(map[variant.Key]document.Document)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, Root+"/") {
			continue
		}

		key, err := ParsePath(f.Name)
		if err != nil {
			return nil, err
		}

		doc, err := readMember(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		docs[key] = doc
	}

	return docs, nil
}

func readMember(f *zip.File) (document.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	v, err := schema.Decode(rc)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, document.ErrNotObject
	}
	return document.Document(m), nil
}
