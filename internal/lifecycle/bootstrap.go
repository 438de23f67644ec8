package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/thelolagemann/gomeboy-web/pkg/engine"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

// ErrNoFactory is returned by the bootstrap when it has no way to
// construct an engine.
var ErrNoFactory = errors.New("lifecycle: no engine factory")

// ReadyFunc performs the one-time readiness step that must complete
// before an engine can be constructed, such as loading the core.
type ReadyFunc func(ctx context.Context) error

// Bootstrapper runs the readiness step once, constructs the engine
// and publishes it into a Store.
type Bootstrapper struct {
	store   *Store
	ready   ReadyFunc
	factory engine.Factory
	log     log.Logger

	once sync.Once
	done chan struct{}
	err  error
}

// NewBootstrapper returns a Bootstrapper filling store. ready may be
// nil when the core needs no readiness step.
func NewBootstrapper(store *Store, ready ReadyFunc, factory engine.Factory, logger log.Logger) *Bootstrapper {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Bootstrapper{
		store:   store,
		ready:   ready,
		factory: factory,
		log:     logger,
		done:    make(chan struct{}),
	}
}

// Ensure begins the bootstrap if the slot is still NotReady and it
// has not been started before. It never blocks: the readiness step
// runs in its own goroutine, and later calls are no-ops whether the
// step is outstanding or finished. ctx bounds the readiness step
// and should live as long as the process.
func (b *Bootstrapper) Ensure(ctx context.Context) {
	if b.store.State() != NotReady {
		return
	}
	b.once.Do(func() {
		b.log.Debugf("bootstrapping engine")
		go b.run(ctx)
	})
}

// Wait blocks until the bootstrap has settled, returning its error.
// It does not start the bootstrap.
func (b *Bootstrapper) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the bootstrap has settled.
func (b *Bootstrapper) Done() <-chan struct{} {
	return b.done
}

func (b *Bootstrapper) run(ctx context.Context) {
	defer close(b.done)

	e, err := b.construct(ctx)
	if err == nil {
		err = b.store.publish(engine.Synchronized(e))
	}
	if err != nil {
		b.err = err
		b.log.Errorf("engine bootstrap failed: %v", err)
		if ferr := b.store.fail(err); ferr != nil {
			b.log.Errorf("record bootstrap failure: %v", ferr)
		}
		return
	}

	b.log.Infof("engine ready")
}

func (b *Bootstrapper) construct(ctx context.Context) (e engine.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, err = nil, fmt.Errorf("engine bootstrap panicked: %v", r)
		}
	}()

	if b.ready != nil {
		if err := b.ready(ctx); err != nil {
			return nil, fmt.Errorf("engine readiness: %w", err)
		}
	}
	if b.factory == nil {
		return nil, ErrNoFactory
	}

	e, err = b.factory()
	if err != nil {
		return nil, fmt.Errorf("construct engine: %w", err)
	}
	if e == nil {
		return nil, errors.New("construct engine: factory returned nil")
	}
	return e, nil
}
