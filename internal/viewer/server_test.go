package viewer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/report"
	"github.com/nao1215/oldmaps/internal/tilestore"
)

// newTileRoot writes one directory tile set and one MBTiles tile set and
// a manifest listing both.
func newTileRoot(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	ctx := context.Background()

	dir, err := tilestore.NewDirStore(root, "oakland-1912")
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.WriteTile(ctx, model.TileAddress{Zoom: 17, X: 21041, Y: 50635}, []byte("dir-tile")); err != nil {
		t.Fatal(err)
	}
	if err := dir.Close(); err != nil {
		t.Fatal(err)
	}

	mb, err := tilestore.OpenMBTiles(root, "sf-1906", tilestore.Metadata{Name: "San Francisco 1906"})
	if err != nil {
		t.Fatal(err)
	}
	if err := mb.WriteTile(ctx, model.TileAddress{Zoom: 15, X: 5240, Y: 12663}, []byte("mb-tile")); err != nil {
		t.Fatal(err)
	}
	if err := mb.Close(); err != nil {
		t.Fatal(err)
	}

	m := &report.Manifest{Maps: []report.ManifestEntry{
		{Path: "oakland-1912", Name: "Oakland 1912", Attribution: "Sanborn"},
		{Path: "sf-1906", Name: "San Francisco 1906"},
	}}
	if err := report.WriteManifest(root, m); err != nil {
		t.Fatal(err)
	}
	return root
}

func get(t *testing.T, h http.Handler, path string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Result()
}

func TestServerTiles(t *testing.T) {
	t.Parallel()

	s := New(newTileRoot(t))
	t.Cleanup(func() { _ = s.Close() })
	h := s.Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"directory tile", "/tiles/oakland-1912/17/21041/50635.png", http.StatusOK, "dir-tile"},
		{"mbtiles tile", "/tiles/sf-1906/15/5240/12663.png", http.StatusOK, "mb-tile"},
		{"missing directory tile", "/tiles/oakland-1912/17/1/1.png", http.StatusNotFound, ""},
		{"missing mbtiles tile", "/tiles/sf-1906/15/1/1.png", http.StatusNotFound, ""},
		{"unknown map", "/tiles/nowhere/15/1/1.png", http.StatusNotFound, ""},
		{"not png", "/tiles/oakland-1912/17/21041/50635.jpg", http.StatusNotFound, ""},
		{"non numeric", "/tiles/oakland-1912/z/1/1.png", http.StatusNotFound, ""},
		{"out of range", "/tiles/oakland-1912/2/9/1.png", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := get(t, h, tt.path)
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("content type = %q", ct)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestServerManifest(t *testing.T) {
	t.Parallel()

	t.Run("serves manifest file", func(t *testing.T) {
		t.Parallel()

		resp := get(t, New(newTileRoot(t)).Handler(), "/manifest.json")
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(string(body), `"path": "oakland-1912"`) {
			t.Errorf("unexpected manifest %s", body)
		}
	})

	t.Run("empty root", func(t *testing.T) {
		t.Parallel()

		resp := get(t, New(t.TempDir()).Handler(), "/manifest.json")
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if strings.TrimSpace(string(body)) != `{"maps":[]}` {
			t.Errorf("unexpected manifest %s", body)
		}
	})
}

// layerURLs collects the data-tiles attributes of the layer list.
func layerURLs(t *testing.T, r io.Reader) []string {
	t.Helper()

	doc, err := html.Parse(r)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}

	var urls []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" {
			for _, a := range n.Attr {
				if a.Key == "data-tiles" {
					urls = append(urls, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return urls
}

func TestServerIndex(t *testing.T) {
	t.Parallel()

	bounds := func(_ context.Context, slug string) (model.GeoBoundingBox, bool) {
		if slug != "oakland-1912" {
			return model.GeoBoundingBox{}, false
		}
		return model.GeoBoundingBox{
			UpperLeft:  model.LatLong{Lat: 37.81, Long: -122.29},
			LowerRight: model.LatLong{Lat: 37.79, Long: -122.26},
		}, true
	}

	s := New(newTileRoot(t), WithTitle("Oakland through time"), WithBounds(bounds))
	resp := get(t, s.Handler(), "/")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	page := string(body)

	if !strings.Contains(page, "<title>Oakland through time</title>") {
		t.Error("expected page title")
	}
	if !strings.Contains(page, "37.79") || !strings.Contains(page, "-122.26") {
		t.Error("expected bounds in page")
	}

	urls := layerURLs(t, strings.NewReader(page))
	want := []string{"/tiles/oakland-1912/{z}/{x}/{y}.png", "/tiles/sf-1906/{z}/{x}/{y}.png"}
	if len(urls) != len(want) {
		t.Fatalf("layer urls = %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("layer %d = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestServerIndexWithoutManifest(t *testing.T) {
	t.Parallel()

	resp := get(t, New(t.TempDir()).Handler(), "/")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !regexp.MustCompile(`const bounds =\s*null`).Match(body) {
		t.Error("expected no bounds without maps")
	}
}

func TestValidSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slug string
		want bool
	}{
		{"oakland-1912", true},
		{"map_2", true},
		{"", false},
		{"..", false},
		{"a/b", false},
		{"a b", false},
	}
	for _, tt := range tests {
		if got := validSlug(tt.slug); got != tt.want {
			t.Errorf("validSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}

func TestServerClose(t *testing.T) {
	t.Parallel()

	root := newTileRoot(t)
	s := New(root)
	resp := get(t, s.Handler(), "/tiles/sf-1906/15/5240/12663.png")
	resp.Body.Close()

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "sf-1906.mbtiles")); err != nil {
		t.Errorf("mbtiles file should remain: %v", err)
	}
}
