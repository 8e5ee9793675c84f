package raster

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// Metadata is the descriptive EXIF information of a source scan.
type Metadata struct {
	Artist      string `json:"artist,omitempty"`
	Copyright   string `json:"copyright,omitempty"`
	Description string `json:"description,omitempty"`
	DateTime    string `json:"datetime,omitempty"` //nolint:tagliatelle // datetime is conventional
}

// Attribution returns the copyright holder, falling back to the artist.
func (m Metadata) Attribution() string {
	if m.Copyright != "" {
		return m.Copyright
	}
	return m.Artist
}

// IsEmpty reports whether no field was found.
func (m Metadata) IsEmpty() bool {
	return m == Metadata{}
}

// ReadMetadata extracts Metadata from the EXIF block of the file at path.
// Files without EXIF yield an empty Metadata and no error.
func ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Metadata{}, fmt.Errorf("raster: read file: %w", err)
	}
	return ParseMetadata(data)
}

// ParseMetadata extracts Metadata from raw image bytes.
func ParseMetadata(data []byte) (Metadata, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return Metadata{}, nil
		}
		return Metadata{}, fmt.Errorf("raster: locate exif: %w", err)
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("raster: parse exif: %w", err)
	}

	var md Metadata
	for _, entry := range entries {
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		if value == "" {
			continue
		}
		switch entry.TagName {
		case "Artist":
			md.Artist = value
		case "Copyright":
			md.Copyright = value
		case "ImageDescription":
			md.Description = value
		case "DateTime", "DateTimeOriginal":
			if md.DateTime == "" {
				md.DateTime = value
			}
		}
	}
	return md, nil
}
