package main

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/http2"
)

func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	for _, name := range []string{"dir", "addr", "title", "db-dir"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.DefValue != "127.0.0.1:8080" {
		t.Errorf("unexpected addr default %q", f.DefValue)
	}
}

func TestServeHTTP(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- serveHTTP(ctx, ln, handler, slog.New(slog.DiscardHandler))
	}()

	url := "http://" + ln.Addr().String() + "/"

	t.Run("http/1.1", func(t *testing.T) {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
			t.Errorf("unexpected response %d %q", resp.StatusCode, body)
		}
	})

	t.Run("h2c", func(t *testing.T) {
		client := &http.Client{
			Transport: &http2.Transport{
				AllowHTTP: true,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, network, addr)
				},
			},
		}
		resp, err := client.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.ProtoMajor != 2 {
			t.Errorf("expected HTTP/2, got %s", resp.Proto)
		}
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("serveHTTP returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serveHTTP did not return after cancel")
	}
}
