package model

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify turns a display name into a lowercase, ASCII, dash-separated
// directory name. Accents are stripped ("Évora 1890" -> "evora-1890").
// It returns an empty string when nothing usable remains.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// SlugForMap derives the output slug of a map: the configured slug, else the
// slugified name, else the slugified file base name.
func SlugForMap(m SourceMap) string {
	if s := Slugify(m.Slug); s != "" {
		return s
	}
	if s := Slugify(m.Name); s != "" {
		return s
	}
	base := filepath.Base(m.File)
	return Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
}
