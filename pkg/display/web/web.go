// Package web provides a display driver that serves the front end
// to a browser: an HTTP page with a file input, a websocket hub that
// pushes view updates, and a small JSON API.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/thelolagemann/gomeboy-web/internal/frontend"
	"github.com/thelolagemann/gomeboy-web/internal/loader"
	"github.com/thelolagemann/gomeboy-web/pkg/display"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
	"github.com/thelolagemann/gomeboy-web/pkg/utils"
)

const (
	// DefaultAddr is the listen address used when none is set.
	DefaultAddr = ":8090"
	// DefaultCacheSize is the number of recent images kept for
	// reloads.
	DefaultCacheSize = 8

	maxCacheSize = 64
	// largest upload accepted over HTTP or the websocket, before
	// the loader applies its own limit
	maxUpload = 32 << 20
)

//go:embed index.html
var index []byte

var driver = &Driver{}

func init() {
	display.Install("web", driver, []display.DriverOption{
		{
			Name:        "addr",
			Default:     DefaultAddr,
			Value:       &driver.Addr,
			Description: "web: address to listen on",
			Type:        "string",
		},
		{
			Name:        "cache",
			Default:     DefaultCacheSize,
			Value:       &driver.CacheSize,
			Description: "web: number of recently uploaded ROMs kept for reloads",
			Type:        "int",
		},
	})
}

// Driver serves the front end over HTTP.
type Driver struct {
	Addr      string
	CacheSize int

	fe  display.Frontend
	log log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	addr   net.Addr
	ready  chan struct{}
}

// Initialize attaches the driver to fe.
func (d *Driver) Initialize(fe display.Frontend, logger log.Logger) {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	d.fe = fe
	d.log = logger
	d.mu.Lock()
	d.ready = make(chan struct{})
	d.mu.Unlock()
}

// Start listens on Addr and serves until ctx is done or Stop is
// called.
func (d *Driver) Start(ctx context.Context) error {
	if d.fe == nil {
		return errors.New("web: driver not initialized")
	}
	addr := d.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}

	d.mu.Lock()
	d.cancel = cancel
	d.addr = ln.Addr()
	ready := d.ready
	d.mu.Unlock()

	d.fe.Ready(ctx)

	h := newHub(ctx, d.fe, d.log, utils.Clamp(0, d.CacheSize, maxCacheSize), maxUpload)
	go h.run()
	unwatch := d.fe.Watch(func(frontend.View) { h.notify() })
	defer unwatch()

	srv := &http.Server{
		Handler:           newServer(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	d.log.Infof("web: listening on http://%s", ln.Addr())
	if ready != nil {
		close(ready)
	}

	select {
	case <-ctx.Done():
		shutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdown); err != nil {
			return fmt.Errorf("web: shutdown: %w", err)
		}
		<-h.done
		return nil
	case err := <-errc:
		cancel()
		<-h.done
		return fmt.Errorf("web: serve: %w", err)
	}
}

// Stop shuts the server down.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// ListenAddr waits until the server is listening and returns its
// address.
func (d *Driver) ListenAddr(ctx context.Context) (net.Addr, error) {
	d.mu.Lock()
	ready := d.ready
	d.mu.Unlock()
	if ready == nil {
		return nil, errors.New("web: driver not initialized")
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr, nil
}

// newServer returns the HTTP routes of the driver.
func newServer(h *hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(index)
	})
	mux.HandleFunc("GET /ws", h.serveWS)
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.fe.View())
	})
	mux.HandleFunc("GET /roms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.cache.list())
	})
	mux.HandleFunc("POST /rom", h.upload)
	return mux
}

// upload handles a multipart form with an optional "rom" file. A
// form without a file is a selection of nothing.
func (h *hub) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var (
		files  []loader.File
		name   string
		upload []byte
	)
	f, header, err := r.FormFile("rom")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	default:
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		name, upload = header.Filename, data
		files = append(files, loader.FromBytes(name, data))
	}

	if err := h.fe.Select(r.Context(), files...); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if len(files) > 0 {
		h.cache.add(name, upload)
		h.syncCache()
	}
	writeJSON(w, http.StatusOK, h.fe.View())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
