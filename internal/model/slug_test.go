package model

import "testing"

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"1868 Oakland", "1868-oakland"},
		{"Évora, 1890", "evora-1890"},
		{"  Oakland -- Terminal Railways  ", "oakland-terminal-railways"},
		{"Zürich (Stadtplan)", "zurich-stadtplan"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugForMap(t *testing.T) {
	t.Parallel()

	t.Run("explicit slug wins", func(t *testing.T) {
		t.Parallel()
		m := SourceMap{Slug: "custom", Name: "Oakland 1868", File: "data/1868-oakland.jpg"}
		if got := SlugForMap(m); got != "custom" {
			t.Errorf("got %q, want custom", got)
		}
	})

	t.Run("falls back to name", func(t *testing.T) {
		t.Parallel()
		m := SourceMap{Name: "Oakland 1868", File: "data/1868-oakland.jpg"}
		if got := SlugForMap(m); got != "oakland-1868" {
			t.Errorf("got %q, want oakland-1868", got)
		}
	})

	t.Run("falls back to file base name", func(t *testing.T) {
		t.Parallel()
		m := SourceMap{File: "data/1912-oakland-terminal-railways.jpg"}
		if got := SlugForMap(m); got != "1912-oakland-terminal-railways" {
			t.Errorf("got %q", got)
		}
	})
}
