// Package engine defines the capability surface the front end
// consumes from an emulation core. The core itself is opaque: the
// front end only ever constructs it, resets it, hands it a ROM,
// advances it one frame at a time and asks it for a greeting.
package engine

import "sync"

// Engine is an emulation core. All methods are synchronous.
type Engine interface {
	// Init resets the core to its power-up state.
	Init()
	// LoadROM hands the image to the core. The caller must not
	// retain or modify rom after the call.
	LoadROM(rom []byte) error
	// NextFrame advances emulation by exactly one video frame.
	NextFrame() error
	// Greet returns a diagnostic greeting for name.
	Greet(name string) string
}

// Factory constructs an Engine. It is called at most once per
// process, after the core's readiness step has completed.
type Factory func() (Engine, error)

// Synchronized wraps e so that no two of its methods ever execute
// at the same time. The front end calls the engine from the frame
// loop goroutine as well as from loaders and drivers.
func Synchronized(e Engine) Engine {
	if s, ok := e.(*synchronized); ok {
		return s
	}
	return &synchronized{e: e}
}

type synchronized struct {
	mu sync.Mutex
	e  Engine
}

func (s *synchronized) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.e.Init()
}

func (s *synchronized) LoadROM(rom []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.LoadROM(rom)
}

func (s *synchronized) NextFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.NextFrame()
}

func (s *synchronized) Greet(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.Greet(name)
}

// Unwrap returns the engine wrapped by Synchronized.
func (s *synchronized) Unwrap() Engine {
	return s.e
}
