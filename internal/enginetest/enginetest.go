// Package enginetest provides a recording engine.Engine for tests.
package enginetest

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thelolagemann/gomeboy-web/pkg/engine"
)

// Call is a single recorded engine call.
type Call struct {
	Op   string // "init", "load", "frame" or "greet"
	Data []byte // rom bytes for "load"
}

func (c Call) String() string {
	if c.Op == "load" {
		return fmt.Sprintf("load(% x)", c.Data)
	}
	return c.Op
}

var _ engine.Engine = (*Engine)(nil)

// Engine records every call made to it and reports overlapping
// calls. It is safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	calls []Call

	inFlight, overlaps atomic.Int32
	frames             atomic.Uint64

	// FrameErr, when set, is returned by the NextFrame call that
	// brings the frame count to FailAt.
	FrameErr error
	FailAt   uint64
	// OnFrame, when set, is called inside NextFrame.
	OnFrame func(n uint64)
	// LoadErr is returned by LoadROM when set.
	LoadErr error
}

func (e *Engine) enter() func() {
	if e.inFlight.Add(1) > 1 {
		e.overlaps.Add(1)
	}
	return func() { e.inFlight.Add(-1) }
}

func (e *Engine) record(c Call) {
	e.mu.Lock()
	e.calls = append(e.calls, c)
	e.mu.Unlock()
}

func (e *Engine) Init() {
	defer e.enter()()
	e.record(Call{Op: "init"})
}

func (e *Engine) LoadROM(rom []byte) error {
	defer e.enter()()
	e.record(Call{Op: "load", Data: bytes.Clone(rom)})
	return e.LoadErr
}

func (e *Engine) NextFrame() error {
	defer e.enter()()
	n := e.frames.Add(1)
	e.record(Call{Op: "frame"})
	if e.OnFrame != nil {
		e.OnFrame(n)
	}
	if e.FrameErr != nil && n == e.FailAt {
		return e.FrameErr
	}
	return nil
}

func (e *Engine) Greet(name string) string {
	e.record(Call{Op: "greet"})
	return "Hello, " + name + "!"
}

// Calls returns a copy of the recorded calls, greetings excluded.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, 0, len(e.calls))
	for _, c := range e.calls {
		if c.Op != "greet" {
			out = append(out, c)
		}
	}
	return out
}

// Ops returns the recorded operation names, greetings excluded.
func (e *Engine) Ops() []string {
	calls := e.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

// Frames returns the number of NextFrame calls.
func (e *Engine) Frames() uint64 {
	return e.frames.Load()
}

// Overlaps returns how many calls began while another was running.
func (e *Engine) Overlaps() int {
	return int(e.overlaps.Load())
}

// Factory returns an engine.Factory that always yields e and counts
// how often it was called.
func (e *Engine) Factory(calls *atomic.Int32) engine.Factory {
	return func() (engine.Engine, error) {
		if calls != nil {
			calls.Add(1)
		}
		return e, nil
	}
}
