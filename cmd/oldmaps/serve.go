package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/nao1215/oldmaps/internal/config"
	"github.com/nao1215/oldmaps/internal/database"
	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/viewer"
)

// Default serve settings.
const (
	defaultServeAddr = "127.0.0.1:8080"
	shutdownTimeout  = 5 * time.Second
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered tiles with a map viewer",
		Long: `Serve starts an HTTP server for a tile root written by 'oldmaps tile'.

Routes:
  /                              Leaflet viewer with every map of the manifest
  /manifest.json                 the manifest
  /tiles/{slug}/{z}/{x}/{y}.png  tiles from a tile directory or an MBTiles file

The server speaks HTTP/1.1 and cleartext HTTP/2, which lets browsers and
tile clients multiplex many tile requests over one connection.

Examples:
  # Serve ./tiles on http://127.0.0.1:8080
  oldmaps serve

  # Serve another tile root on all interfaces
  oldmaps serve -d /srv/tiles -a :8080`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("dir", "d", config.DefaultOutputDir,
		"Tile root directory")
	cmd.Flags().StringP("addr", "a", defaultServeAddr,
		"Listen address")
	cmd.Flags().String("title", "oldmaps", "Viewer page title")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the render catalog used to frame the initial view")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	root, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	title, err := cmd.Flags().GetString("title")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	logger, closer, err := setupLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd), getLogFileFlag(cmd))
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	opts := []viewer.Option{viewer.WithTitle(title), viewer.WithLogger(logger)}

	// The catalog is optional: without it the viewer opens on a world view.
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		logger.Debug("render catalog unavailable", "dir", dbDir, "error", err)
	} else {
		defer db.Close()
		opts = append(opts, viewer.WithBounds(catalogBounds(db)))
	}

	srv := viewer.New(root, opts...)
	defer srv.Close()

	ctx, cancel := signalContext(logger)
	defer cancel()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s/ (Ctrl+C to stop)\n", root, ln.Addr())

	return serveHTTP(ctx, ln, srv.Handler(), logger)
}

// serveHTTP serves handler on ln over HTTP/1.1 and h2c until ctx is done.
func serveHTTP(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// catalogBounds looks up the bounding box of a map's latest render.
func catalogBounds(db *database.RenderDB) viewer.BoundsFunc {
	return func(ctx context.Context, slug string) (model.GeoBoundingBox, bool) {
		renders, err := db.ListRenders(ctx, slug, -1, 1)
		if err != nil || len(renders) == 0 {
			return model.GeoBoundingBox{}, false
		}
		return renders[0].BoundingBox, true
	}
}
