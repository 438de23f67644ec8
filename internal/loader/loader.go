// Package loader turns a user file selection into a running engine:
// it reads the file, resets the engine, hands it the image and
// (re)starts the frame loop.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	"github.com/thelolagemann/gomeboy-web/internal/scheduler"
	"github.com/thelolagemann/gomeboy-web/pkg/engine"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
	"github.com/thelolagemann/gomeboy-web/pkg/rom"
)

// DefaultMaxSize is the largest image read by default, the size of
// the biggest Game Boy cartridge.
const DefaultMaxSize = 8 << 20

// ErrTooLarge is returned for files larger than the configured limit.
var ErrTooLarge = errors.New("loader: image too large")

// Source provides the engine images are loaded into.
type Source interface {
	Engine() (engine.Engine, bool)
}

// Scheduler is the frame loop restarted after every load.
type Scheduler interface {
	Start() *scheduler.Token
	Stop()
}

// Image describes the most recently loaded ROM image. The bytes
// themselves belong to the engine once loaded.
type Image struct {
	Name     string    `json:"name"`
	Size     int       `json:"size"`
	Checksum uint64    `json:"checksum"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Sum returns the checksum as a hex string.
func (i Image) Sum() string {
	return fmt.Sprintf("%016x", i.Checksum)
}

// Opt configures a Handler.
type Opt func(h *Handler)

// WithLogger sets the logger loads are reported to.
func WithLogger(l log.Logger) Opt {
	return func(h *Handler) {
		h.log = l
	}
}

// WithMaxSize limits the size of a selected file, before decoding.
func WithMaxSize(n int64) Opt {
	return func(h *Handler) {
		h.maxSize = n
	}
}

// Handler handles file selections.
type Handler struct {
	source  Source
	sched   Scheduler
	log     log.Logger
	maxSize int64

	mu sync.Mutex // serializes loads

	lastMu sync.RWMutex
	last   *Image

	subMu  sync.Mutex
	subs   map[int]func(Image)
	nextID int
}

// New returns a Handler loading into the engine of source and
// restarting sched.
func New(source Source, sched Scheduler, opts ...Opt) *Handler {
	h := &Handler{
		source:  source,
		sched:   sched,
		log:     log.NewNullLogger(),
		maxSize: DefaultMaxSize,
		subs:    make(map[int]func(Image)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Select handles a selection of zero or more files; only the first
// is used. With no file, or before an engine exists, it returns nil
// without touching the engine. Otherwise it reads the whole file,
// resets the engine, loads the image into it and restarts the
// frame loop.
func (h *Handler) Select(ctx context.Context, files ...File) error {
	e, ok := h.source.Engine()
	if !ok || len(files) == 0 {
		return nil
	}
	f := files[0]

	data, err := h.read(ctx, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Name, err)
	}
	img := Image{
		Name:     f.Name,
		Size:     len(data),
		Checksum: xxhash.Sum64(data),
	}

	img, err = h.load(e, img, data)
	if err != nil {
		h.log.Errorf("engine rejected %s: %v", f.Name, err)
		// the engine was reset, so the previous image is gone too
		h.notify(Image{})
		return fmt.Errorf("load %s: %w", f.Name, err)
	}

	h.log.Infof("loaded %s (%d bytes, %s)", img.Name, img.Size, img.Sum())
	h.notify(img)
	return nil
}

// load resets e and hands it data, then restarts the loop. Loads
// never interleave, and the loop is stopped while the engine is
// reset.
func (h *Handler) load(e engine.Engine, img Image, data []byte) (Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sched.Stop()
	e.Init()
	if err := e.LoadROM(data); err != nil {
		h.lastMu.Lock()
		h.last = nil
		h.lastMu.Unlock()
		return img, err
	}

	img.LoadedAt = time.Now()
	h.lastMu.Lock()
	h.last = &img
	h.lastMu.Unlock()

	h.sched.Start()
	return img, nil
}

// Last returns the most recently loaded image.
func (h *Handler) Last() (Image, bool) {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	if h.last == nil {
		return Image{}, false
	}
	return *h.last, true
}

// Subscribe registers fn to be called whenever the loaded image
// changes: with the image after every successful load, and with the
// zero Image after a failed load has reset the engine.
func (h *Handler) Subscribe(fn func(Image)) (cancel func()) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	id := h.nextID
	h.nextID++
	h.subs[id] = fn

	return func() {
		h.subMu.Lock()
		delete(h.subs, id)
		h.subMu.Unlock()
	}
}

func (h *Handler) notify(img Image) {
	h.subMu.Lock()
	fns := make([]func(Image), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.subMu.Unlock()

	for _, fn := range fns {
		fn(img)
	}
}

// read reads all of f, suspending until the read completes or ctx
// is done, and unpacks it if it is an archive.
func (h *Handler) read(ctx context.Context, f File) ([]byte, error) {
	if f.Open == nil {
		return nil, errors.New("file cannot be opened")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = ctxReader{ctx: ctx, r: rc}
	if h.maxSize > 0 {
		r = io.LimitReader(r, h.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if h.maxSize > 0 && int64(len(data)) > h.maxSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, h.maxSize)
	}

	data, err = rom.DecodeLimit(f.Name, data, h.maxSize)
	if errors.Is(err, rom.ErrTooLarge) {
		return nil, fmt.Errorf("%w: unpacks to more than %d bytes", ErrTooLarge, h.maxSize)
	}
	return data, err
}
