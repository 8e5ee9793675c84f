package viewer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/report"
	"github.com/nao1215/oldmaps/internal/tilestore"
)

// BoundsFunc returns the geographic extent of a map, if known. The viewer
// uses it to frame the initial view.
type BoundsFunc func(ctx context.Context, slug string) (model.GeoBoundingBox, bool)

// Server serves tiles, the manifest and the viewer page.
type Server struct {
	root   string
	title  string
	bounds BoundsFunc
	logger *slog.Logger

	mu      sync.Mutex
	readers map[string]*tilestore.MBTilesStore
}

// Option configures a Server.
type Option func(*Server)

// WithTitle sets the page title.
func WithTitle(title string) Option {
	return func(s *Server) {
		s.title = title
	}
}

// WithBounds sets the lookup used to frame the initial view.
func WithBounds(f BoundsFunc) Option {
	return func(s *Server) {
		s.bounds = f
	}
}

// WithLogger sets the logger for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server for the tile root.
func New(root string, opts ...Option) *Server {
	s := &Server{
		root:    root,
		title:   "oldmaps",
		readers: make(map[string]*tilestore.MBTilesStore),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /"+report.ManifestFile, s.handleManifest)
	mux.HandleFunc("GET /tiles/{slug}/{z}/{x}/{y}", s.handleTile)
	return mux
}

// Close releases the MBTiles files opened while serving.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for slug, r := range s.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", slug, err))
		}
	}
	s.readers = make(map[string]*tilestore.MBTilesStore)
	return errors.Join(errs...)
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.root, report.ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"maps":[]}` + "\n"))
		return
	}
	if err != nil {
		s.logger.Error("failed to read manifest", "error", err)
		http.Error(w, "failed to read manifest", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	addr, slug, ok := parseTileRequest(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := addr.Path(s.root, slug)
	if info, err := os.Stat(filepath.Join(s.root, slug)); err == nil && info.IsDir() {
		data, err := os.ReadFile(path) //nolint:gosec // path is built from validated integers and a checked slug
		if err != nil {
			http.NotFound(w, r)
			return
		}
		writePNG(w, data)
		return
	}

	reader, err := s.reader(slug)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data, err := reader.ReadTile(r.Context(), addr)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("failed to read tile", "map", slug, "tile", addr, "error", err)
		http.Error(w, "failed to read tile", http.StatusInternalServerError)
		return
	}
	writePNG(w, data)
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// reader returns the MBTiles reader of slug, opening it on first use.
func (s *Server) reader(slug string) (*tilestore.MBTilesStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.readers[slug]; ok {
		return r, nil
	}
	r, err := tilestore.OpenMBTilesReader(s.root, slug)
	if err != nil {
		return nil, err
	}
	s.readers[slug] = r
	return r, nil
}

// parseTileRequest validates the path values of a tile request.
// The slug must be a single path segment of slug characters.
func parseTileRequest(r *http.Request) (model.TileAddress, string, bool) {
	slug := r.PathValue("slug")
	if !validSlug(slug) {
		return model.TileAddress{}, "", false
	}

	y, found := strings.CutSuffix(r.PathValue("y"), ".png")
	if !found {
		return model.TileAddress{}, "", false
	}

	var (
		addr model.TileAddress
		err  error
	)
	if addr.Zoom, err = strconv.Atoi(r.PathValue("z")); err != nil {
		return model.TileAddress{}, "", false
	}
	if addr.X, err = strconv.Atoi(r.PathValue("x")); err != nil {
		return model.TileAddress{}, "", false
	}
	if addr.Y, err = strconv.Atoi(y); err != nil {
		return model.TileAddress{}, "", false
	}
	if !addr.Valid() {
		return model.TileAddress{}, "", false
	}
	return addr, slug, true
}

func validSlug(slug string) bool {
	if slug == "" || slug == "." || slug == ".." {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// pageData is the input of the viewer template.
type pageData struct {
	Title  string
	Layers []layer

	// Bounds is [[south, west], [north, east]] for Leaflet's fitBounds,
	// or nil when no map extent is known.
	Bounds [][2]float64
}

type layer struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	m, err := report.LoadManifest(s.root)
	if err != nil {
		s.logger.Error("failed to load manifest", "error", err)
		http.Error(w, "failed to load manifest", http.StatusInternalServerError)
		return
	}

	data := pageData{Title: s.title}
	var extent *model.GeoBoundingBox
	for _, e := range m.Maps {
		if !validSlug(e.Path) {
			continue
		}
		data.Layers = append(data.Layers, layer{
			Name:        e.Name,
			URL:         "/tiles/" + e.Path + "/{z}/{x}/{y}.png",
			Attribution: e.Attribution,
		})
		if s.bounds == nil {
			continue
		}
		if b, ok := s.bounds(r.Context(), e.Path); ok {
			if extent == nil {
				extent = &b
			} else {
				merged := model.BoundingBoxOf(extent.UpperLeft, extent.LowerRight, b.UpperLeft, b.LowerRight)
				extent = &merged
			}
		}
	}
	if extent != nil {
		data.Bounds = [][2]float64{
			{extent.LowerRight.Lat, extent.UpperLeft.Long},
			{extent.UpperLeft.Lat, extent.LowerRight.Long},
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render viewer page", "error", err)
	}
}

var pageTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
#opacity { position: absolute; bottom: 24px; left: 12px; z-index: 1000; background: #fff; padding: 4px 8px; border-radius: 4px; font: 12px sans-serif; }
</style>
</head>
<body>
<div id="map"></div>
<label id="opacity">Opacity <input id="opacity-range" type="range" min="0" max="1" step="0.05" value="0.8"></label>
<ul id="layers" hidden>
{{- range .Layers}}
<li data-tiles="{{.URL}}">{{.Name}}</li>
{{- end}}
</ul>
<script>
const layers = {{.Layers}};
const bounds = {{.Bounds}};
const map = L.map("map", { maxZoom: 22 });
L.tileLayer("https://tile.openstreetmap.org/{z}/{x}/{y}.png", {
  maxZoom: 19,
  attribution: "&copy; OpenStreetMap contributors",
}).addTo(map);
const overlays = {};
let first = null;
for (const l of layers || []) {
  const t = L.tileLayer(l.url, { maxZoom: 22, opacity: 0.8, attribution: l.attribution });
  overlays[l.name] = t;
  if (!first) { first = t; t.addTo(map); }
}
L.control.layers(null, overlays, { collapsed: false }).addTo(map);
if (bounds) { map.fitBounds(bounds); } else { map.setView([0, 0], 2); }
document.getElementById("opacity-range").addEventListener("input", (e) => {
  for (const t of Object.values(overlays)) { t.setOpacity(e.target.value); }
});
</script>
</body>
</html>
`))
