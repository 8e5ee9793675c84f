package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/oldmaps/internal/projection"
)

// ParseZooms parses a zoom list such as "17", "14,15" or "12-16,18".
// The result is ascending and free of duplicates.
func ParseZooms(s string) ([]int, error) {
	set := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := parseZoom(lo)
		if err != nil {
			return nil, err
		}
		to := from
		if isRange {
			if to, err = parseZoom(hi); err != nil {
				return nil, err
			}
		}
		if to < from {
			return nil, fmt.Errorf("%w: range %q is descending", ErrInvalidZoom, part)
		}
		for z := from; z <= to; z++ {
			set[z] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, ErrNoZoom
	}

	zooms := make([]int, 0, len(set))
	for z := range set {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)
	return zooms, nil
}

// ZoomRange returns min..max inclusive.
func ZoomRange(minZoom, maxZoom int) ([]int, error) {
	if minZoom < projection.MinZoom || maxZoom > projection.MaxZoom || maxZoom < minZoom {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidZoom, minZoom, maxZoom)
	}
	zooms := make([]int, 0, maxZoom-minZoom+1)
	for z := minZoom; z <= maxZoom; z++ {
		zooms = append(zooms, z)
	}
	return zooms, nil
}

func parseZoom(s string) (int, error) {
	z, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidZoom, s)
	}
	if z < projection.MinZoom || z > projection.MaxZoom {
		return 0, fmt.Errorf("%w: %d", ErrInvalidZoom, z)
	}
	return z, nil
}
