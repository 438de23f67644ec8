package engine

import (
	"sync"
	"sync/atomic"
	"testing"
)

type overlapEngine struct {
	inFlight, maxInFlight atomic.Int32
	frames                atomic.Int32
}

func (o *overlapEngine) enter() func() {
	n := o.inFlight.Add(1)
	for {
		m := o.maxInFlight.Load()
		if n <= m || o.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { o.inFlight.Add(-1) }
}

func (o *overlapEngine) Init()                    { defer o.enter()() }
func (o *overlapEngine) LoadROM(rom []byte) error { defer o.enter()(); return nil }
func (o *overlapEngine) Greet(name string) string { defer o.enter()(); return name }
func (o *overlapEngine) NextFrame() error {
	defer o.enter()()
	o.frames.Add(1)
	return nil
}

func TestSynchronized(t *testing.T) {
	inner := &overlapEngine{}
	e := Synchronized(inner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = e.NextFrame()
				e.Greet("x")
				e.Init()
				_ = e.LoadROM(nil)
			}
		}()
	}
	wg.Wait()

	if got := inner.maxInFlight.Load(); got != 1 {
		t.Errorf("expected calls to never overlap, saw %d at once", got)
	}
	if got := inner.frames.Load(); got != 800 {
		t.Errorf("expected 800 frames, got %d", got)
	}
}

func TestSynchronized_Idempotent(t *testing.T) {
	e := Synchronized(&overlapEngine{})
	if Synchronized(e) != e {
		t.Errorf("expected wrapping twice to return the same engine")
	}
}
