// Package scheduler drives an engine forward one frame per display
// refresh.
//
// Each call to Start returns a Token owning exactly one loop
// goroutine. Starting a new loop first stops the previous one and
// waits for its goroutine to exit, so a scheduler never has two
// loops advancing the same engine.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thelolagemann/gomeboy-web/pkg/engine"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

// ErrFramePanic wraps a panic raised while advancing a frame.
var ErrFramePanic = errors.New("scheduler: frame advance panicked")

// Source provides the engine to drive.
type Source interface {
	Engine() (engine.Engine, bool)
}

// Token controls a single frame loop.
type Token struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
	frames   atomic.Uint64
}

func newToken() *Token {
	return &Token{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Stop invalidates the token and waits for its loop to exit. It is
// safe to call more than once.
func (t *Token) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

// Done is closed once the loop goroutine has returned.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Err returns the frame advance error that ended the loop. It is
// only meaningful once Done is closed.
func (t *Token) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Frames returns the number of frames advanced by this loop.
func (t *Token) Frames() uint64 {
	return t.frames.Load()
}

// Opt configures a Scheduler.
type Opt func(s *Scheduler)

// WithLogger sets the logger frame failures are reported to.
func WithLogger(l log.Logger) Opt {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithFrameLimit ends each loop cleanly after n frames. Zero means
// no limit.
func WithFrameLimit(n uint64) Opt {
	return func(s *Scheduler) {
		s.limit = n
	}
}

// Scheduler owns the frame loop of one engine.
type Scheduler struct {
	source  Source
	refresh Refresh
	log     log.Logger
	limit   uint64

	mu      sync.Mutex // guards current, state and err
	current *Token
	state   State
	err     error

	subMu  sync.Mutex
	subs   map[int]func(Status)
	nextID int
}

// New returns a Scheduler advancing the engine of source whenever
// refresh fires.
func New(source Source, refresh Refresh, opts ...Opt) *Scheduler {
	s := &Scheduler{
		source:  source,
		refresh: refresh,
		log:     log.NewNullLogger(),
		subs:    make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a new loop, stopping the current one first. It
// returns nil and does nothing when no engine is available yet.
func (s *Scheduler) Start() *Token {
	e, ok := s.source.Engine()
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.current != nil {
		s.current.Stop()
	}
	t := newToken()
	s.current = t
	s.state, s.err = Running, nil
	s.mu.Unlock()

	go s.loop(t, e)
	s.log.Debugf("frame loop started")
	s.notify()
	return t
}

// Stop stops the current loop, if any, and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	t := s.current
	if t == nil {
		s.mu.Unlock()
		return
	}
	t.Stop()
	s.current = nil
	changed := s.state != Idle
	s.state, s.err = Idle, nil
	s.mu.Unlock()

	s.log.Debugf("frame loop stopped after %d frames", t.Frames())
	if changed {
		s.notify()
	}
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, Err: s.err}
	if s.current != nil {
		st.Frames = s.current.Frames()
	}
	return st
}

// Subscribe registers fn to be called after every state change.
// The returned function removes the subscription.
func (s *Scheduler) Subscribe(fn func(Status)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Scheduler) notify() {
	st := s.Status()

	s.subMu.Lock()
	fns := make([]func(Status), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// loop advances e once per refresh until t is stopped, a frame
// fails or the frame limit is reached. Frame N always returns
// before the refresh for frame N+1 is awaited.
func (s *Scheduler) loop(t *Token, e engine.Engine) {
	var err error
	var stopped bool
	defer func() {
		t.err = err
		close(t.done)
		if !stopped {
			s.finish(t, err)
		}
	}()

	for {
		select {
		case <-t.stop:
			stopped = true
			return
		case <-s.refresh.Next():
		}

		if err = advance(e); err != nil {
			return
		}
		if n := t.frames.Add(1); s.limit > 0 && n >= s.limit {
			return
		}
	}
}

// finish records the end of a loop that stopped by itself. A loop
// that has already been superseded leaves the status untouched.
func (s *Scheduler) finish(t *Token, err error) {
	s.mu.Lock()
	if s.current != t {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state, s.err = Halted, err
	} else {
		s.state = Idle
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Errorf("frame loop halted after %d frames: %v", t.Frames(), err)
	} else {
		s.log.Infof("frame loop finished after %d frames", t.Frames())
	}
	s.notify()
}

func advance(e engine.Engine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFramePanic, r)
		}
	}()
	return e.NextFrame()
}
