// Package lifecycle holds the process-wide engine slot and the
// one-time bootstrap that fills it.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/thelolagemann/gomeboy-web/pkg/engine"
)

const (
	// GreetName identifies the front end to the engine.
	GreetName = "gomeboy-web"
	// NotReadyMessage is displayed until the engine is published.
	NotReadyMessage = "Emulator is not ready"
)

// ErrAlreadySettled is returned when the slot is written twice.
var ErrAlreadySettled = errors.New("lifecycle: engine slot already settled")

// Store holds the engine slot. The slot moves from NotReady to
// either Ready or Failed exactly once, and only the Bootstrapper
// writes it. Any number of readers may observe it.
type Store struct {
	mu     sync.RWMutex
	state  State
	engine engine.Engine
	err    error

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(State))}
}

// Engine returns the published engine. ok is false until the slot
// is Ready. The returned value is the same for the rest of the
// process once ok is true.
func (s *Store) Engine() (e engine.Engine, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, s.state == Ready
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the reason the slot failed, or nil.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Message returns the readiness line for the current state. It is
// recomputed on every call.
func (s *Store) Message() string {
	s.mu.RLock()
	state, e, err := s.state, s.engine, s.err
	s.mu.RUnlock()

	switch state {
	case Ready:
		return e.Greet(GreetName)
	case Failed:
		return fmt.Sprintf("Emulator failed to start: %v", err)
	default:
		return NotReadyMessage
	}
}

// Subscribe registers fn to be called after every state change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
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

func (s *Store) publish(e engine.Engine) error {
	if e == nil {
		return errors.New("lifecycle: publish nil engine")
	}
	return s.settle(Ready, e, nil)
}

func (s *Store) fail(err error) error {
	return s.settle(Failed, nil, err)
}

func (s *Store) settle(state State, e engine.Engine, err error) error {
	s.mu.Lock()
	if s.state != NotReady {
		s.mu.Unlock()
		return ErrAlreadySettled
	}
	s.state, s.engine, s.err = state, e, err
	s.mu.Unlock()

	s.notify(state)
	return nil
}

func (s *Store) notify(state State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
