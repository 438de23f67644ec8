// Package frontend composes the engine slot, its bootstrap, the
// frame loop and the image loader into the model a display driver
// renders.
package frontend

import (
	"context"
	"sync"

	"github.com/thelolagemann/gomeboy-web/internal/lifecycle"
	"github.com/thelolagemann/gomeboy-web/internal/loader"
	"github.com/thelolagemann/gomeboy-web/internal/scheduler"
	"github.com/thelolagemann/gomeboy-web/pkg/engine"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

// View is everything a driver renders.
type View struct {
	Message string        `json:"message"`
	State   string        `json:"state"`
	Loop    string        `json:"loop"`
	Frames  uint64        `json:"frames"`
	ROM     *loader.Image `json:"rom,omitempty"`
}

// Options configures an App.
type Options struct {
	// Ready is the one-time readiness step of the engine.
	Ready lifecycle.ReadyFunc
	// Factory constructs the engine once Ready has succeeded.
	Factory engine.Factory
	// Refresh paces the frame loop. Defaults to a ticker at
	// scheduler.FrameRate.
	Refresh scheduler.Refresh
	// FrameLimit ends each loop after that many frames; zero
	// runs forever.
	FrameLimit uint64
	// MaxImageSize limits selected files; zero selects
	// loader.DefaultMaxSize.
	MaxImageSize int64
	Logger       log.Logger
}

// App is a running front end.
type App struct {
	store   *lifecycle.Store
	boot    *lifecycle.Bootstrapper
	sched   *scheduler.Scheduler
	loader  *loader.Handler
	refresh scheduler.Refresh
	log     log.Logger

	watchMu sync.Mutex
	watches map[int]func(View)
	nextID  int

	closeOnce sync.Once
	unsubs    []func()
}

// New returns an App. The engine is not bootstrapped until Ready.
func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNullLogger()
	}
	refresh := opts.Refresh
	if refresh == nil {
		refresh = scheduler.NewTicker(scheduler.FrameRate)
	}
	maxSize := opts.MaxImageSize
	if maxSize == 0 {
		maxSize = loader.DefaultMaxSize
	}

	store := lifecycle.NewStore()
	sched := scheduler.New(store, refresh,
		scheduler.WithLogger(logger),
		scheduler.WithFrameLimit(opts.FrameLimit),
	)

	a := &App{
		store:   store,
		boot:    lifecycle.NewBootstrapper(store, opts.Ready, opts.Factory, logger),
		sched:   sched,
		loader:  loader.New(store, sched, loader.WithLogger(logger), loader.WithMaxSize(maxSize)),
		refresh: refresh,
		log:     logger,
		watches: make(map[int]func(View)),
	}

	a.unsubs = append(a.unsubs,
		store.Subscribe(func(lifecycle.State) { a.changed() }),
		sched.Subscribe(func(scheduler.Status) { a.changed() }),
		a.loader.Subscribe(func(loader.Image) { a.changed() }),
	)
	return a
}

// Ready starts the engine bootstrap if it has not been started.
func (a *App) Ready(ctx context.Context) {
	a.boot.Ensure(ctx)
}

// Wait blocks until the bootstrap has settled.
func (a *App) Wait(ctx context.Context) error {
	return a.boot.Wait(ctx)
}

// View returns the current render model.
func (a *App) View() View {
	st := a.sched.Status()
	v := View{
		Message: a.store.Message(),
		State:   a.store.State().String(),
		Loop:    st.String(),
		Frames:  st.Frames,
	}
	if img, ok := a.loader.Last(); ok {
		v.ROM = &img
	}
	return v
}

// Select hands a file selection to the loader.
func (a *App) Select(ctx context.Context, files ...loader.File) error {
	return a.loader.Select(ctx, files...)
}

// Tick delivers a display refresh when the loop is paced by the
// display rather than a timer. It is a no-op otherwise.
func (a *App) Tick() {
	if p, ok := a.refresh.(*scheduler.Pulse); ok {
		p.Pulse()
	}
}

// Status returns the frame loop status.
func (a *App) Status() scheduler.Status {
	return a.sched.Status()
}

// Watch registers fn to be called with a fresh View whenever the
// engine slot, the loop status or the loaded image changes.
func (a *App) Watch(fn func(View)) (cancel func()) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()

	id := a.nextID
	a.nextID++
	a.watches[id] = fn

	return func() {
		a.watchMu.Lock()
		delete(a.watches, id)
		a.watchMu.Unlock()
	}
}

func (a *App) changed() {
	a.watchMu.Lock()
	fns := make([]func(View), 0, len(a.watches))
	for _, fn := range a.watches {
		fns = append(fns, fn)
	}
	a.watchMu.Unlock()
	if len(fns) == 0 {
		return
	}

	v := a.View()
	for _, fn := range fns {
		fn(v)
	}
}

// Close stops the frame loop and detaches from the store. The
// engine itself lives for the rest of the process.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.sched.Stop()
		for _, unsub := range a.unsubs {
			unsub()
		}
		if t, ok := a.refresh.(*scheduler.Ticker); ok {
			t.Stop()
		}
	})
}
