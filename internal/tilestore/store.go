package tilestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nao1215/oldmaps/internal/model"
)

// Format selects a Store implementation.
type Format string

const (
	// FormatDir writes one PNG file per tile.
	FormatDir Format = "dir"

	// FormatMBTiles writes one MBTiles database per map.
	FormatMBTiles Format = "mbtiles"
)

// ErrUnknownFormat is returned by ParseFormat for unrecognised names.
var ErrUnknownFormat = errors.New("unknown tile format")

// ParseFormat converts a flag or config value into a Format. The empty
// string selects FormatDir.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDir, nil
	case FormatDir, FormatMBTiles:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want dir or mbtiles)", ErrUnknownFormat, s)
	}
}

// Store receives the tiles of one map. Implementations are safe for
// concurrent use.
type Store interface {
	// WriteTile stores the PNG bytes of one tile, replacing any previous
	// content at addr.
	WriteTile(ctx context.Context, addr model.TileAddress, png []byte) error

	// Location returns the directory or file the tiles are written to.
	Location() string

	// Close flushes and releases the store.
	Close() error
}

// Open returns a Store for map slug under root.
func Open(format Format, root, slug string, meta Metadata) (Store, error) {
	switch format {
	case FormatDir, "":
		return NewDirStore(root, slug)
	case FormatMBTiles:
		return OpenMBTiles(root, slug, meta)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Metadata describes a tileset. It is written into MBTiles files.
type Metadata struct {
	Name        string
	Attribution string
	Description string
	MinZoom     int
	MaxZoom     int
	Bounds      *model.GeoBoundingBox
}

// Set opens one Store per map slug on first use and closes them together.
// Jobs of different zoom levels of the same map share a store.
type Set struct {
	mu     sync.Mutex
	format Format
	root   string
	stores map[string]Store
	order  []string
}

// NewSet creates an empty Set writing format under root.
func NewSet(format Format, root string) *Set {
	return &Set{format: format, root: root, stores: make(map[string]Store)}
}

// Get returns the store of slug, opening it with meta if needed.
func (s *Set) Get(slug string, meta Metadata) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[slug]; ok {
		return st, nil
	}
	st, err := Open(s.format, s.root, slug, meta)
	if err != nil {
		return nil, err
	}
	s.stores[slug] = st
	s.order = append(s.order, slug)
	return st, nil
}

// Close closes every store in opening order and joins their errors.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, slug := range s.order {
		if err := s.stores[slug].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", slug, err))
		}
	}
	s.stores = make(map[string]Store)
	s.order = nil
	return errors.Join(errs...)
}
