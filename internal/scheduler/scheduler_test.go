package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thelolagemann/gomeboy-web/internal/enginetest"
	"github.com/thelolagemann/gomeboy-web/pkg/engine"
)

// manual is a Refresh whose ticks are handed over one at a time, so
// a test knows exactly how many refreshes the loop has consumed.
type manual chan time.Time

func (m manual) Next() <-chan time.Time { return m }

func (m manual) tick(n int) {
	for i := 0; i < n; i++ {
		m <- time.Now()
	}
}

type source struct {
	e engine.Engine
}

func (s source) Engine() (engine.Engine, bool) {
	return s.e, s.e != nil
}

func waitDone(t *testing.T, tok *Token) {
	t.Helper()
	select {
	case <-tok.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit")
	}
}

// waitState waits for the status update that follows a loop exit.
func waitState(t *testing.T, s *Scheduler, want State) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		st := s.Status()
		if st.State == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %s, got %s", want, st.State)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScheduler_StartWithoutEngine(t *testing.T) {
	s := New(source{}, make(manual))
	if tok := s.Start(); tok != nil {
		t.Fatal("expected no loop without an engine")
	}
	if st := s.Status(); st.State != Idle {
		t.Errorf("expected Idle, got %s", st.State)
	}
}

func TestScheduler_AdvancesOncePerRefresh(t *testing.T) {
	for _, n := range []int{1, 5, 60} {
		fake := &enginetest.Engine{}
		refresh := make(manual)
		s := New(source{fake}, refresh)

		tok := s.Start()
		refresh.tick(n)
		tok.Stop()

		if got := fake.Frames(); got != uint64(n) {
			t.Errorf("%d refreshes: expected %d frames, got %d", n, n, got)
		}
		if tok.Frames() != uint64(n) {
			t.Errorf("%d refreshes: token counted %d frames", n, tok.Frames())
		}
		if fake.Overlaps() != 0 {
			t.Errorf("%d refreshes: frame advances overlapped", n)
		}
	}
}

func TestScheduler_RestartSupersedes(t *testing.T) {
	fake := &enginetest.Engine{}
	refresh := make(manual)
	s := New(source{fake}, refresh)

	first := s.Start()
	refresh.tick(2)

	second := s.Start()
	select {
	case <-first.Done():
	default:
		t.Fatal("expected the first loop to have exited before the second started")
	}

	refresh.tick(3)
	select {
	case <-second.Done():
		t.Fatal("expected the second loop to be running")
	default:
	}
	second.Stop()

	if first.Frames() != 2 || second.Frames() != 3 {
		t.Errorf("expected 2+3 frames, got %d+%d", first.Frames(), second.Frames())
	}
	if fake.Frames() != 5 || fake.Overlaps() != 0 {
		t.Errorf("expected 5 serial frames, got %d with %d overlaps", fake.Frames(), fake.Overlaps())
	}
}

func TestScheduler_ConcurrentStarts(t *testing.T) {
	fake := &enginetest.Engine{}
	pulse := NewPulse()
	s := New(source{engine.Synchronized(fake)}, pulse)

	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-quit:
				return
			default:
				pulse.Pulse()
			}
		}
	}()

	var mu sync.Mutex
	var tokens []*Token
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := s.Start()
			mu.Lock()
			tokens = append(tokens, tok)
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(quit)

	live := 0
	for _, tok := range tokens {
		select {
		case <-tok.Done():
		default:
			live++
		}
	}
	if live != 1 {
		t.Errorf("expected exactly one live loop, got %d", live)
	}
	s.Stop()
	if fake.Overlaps() != 0 {
		t.Errorf("frame advances overlapped %d times", fake.Overlaps())
	}
}

func TestScheduler_HaltsOnFrameError(t *testing.T) {
	boom := errors.New("illegal opcode")
	fake := &enginetest.Engine{FrameErr: boom, FailAt: 3}
	refresh := make(manual)
	s := New(source{fake}, refresh)

	statuses := make(chan Status, 8)
	s.Subscribe(func(st Status) { statuses <- st })

	tok := s.Start()
	refresh.tick(3)
	waitDone(t, tok)

	if !errors.Is(tok.Err(), boom) {
		t.Errorf("expected token error %v, got %v", boom, tok.Err())
	}

	want := []State{Running, Halted}
	for _, w := range want {
		select {
		case st := <-statuses:
			if st.State != w {
				t.Fatalf("expected %s notification, got %s", w, st.State)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("missing %s notification", w)
		}
	}

	st := s.Status()
	if !st.IsHalted() || !errors.Is(st.Err, boom) {
		t.Fatalf("expected halted status, got %+v", st)
	}
	if st.String() != "halted: illegal opcode" {
		t.Errorf("unexpected status line %q", st.String())
	}

	// a new start recovers from the halt
	tok = s.Start()
	refresh.tick(2)
	tok.Stop()
	if fake.Frames() != 5 {
		t.Errorf("expected 5 frames after restart, got %d", fake.Frames())
	}
}

type panicEngine struct{ enginetest.Engine }

func (p *panicEngine) NextFrame() error { panic("bus fault") }

func TestScheduler_RecoversFramePanic(t *testing.T) {
	refresh := make(manual)
	s := New(source{&panicEngine{}}, refresh)

	tok := s.Start()
	refresh.tick(1)
	waitDone(t, tok)

	if !errors.Is(tok.Err(), ErrFramePanic) {
		t.Fatalf("expected ErrFramePanic, got %v", tok.Err())
	}
	waitState(t, s, Halted)
}

func TestScheduler_FrameLimit(t *testing.T) {
	fake := &enginetest.Engine{}
	refresh := make(manual)
	s := New(source{fake}, refresh, WithFrameLimit(4))

	tok := s.Start()
	refresh.tick(4)
	waitDone(t, tok)

	if tok.Err() != nil {
		t.Errorf("expected clean finish, got %v", tok.Err())
	}
	if st := waitState(t, s, Idle); st.Frames != 4 {
		t.Errorf("expected idle after 4 frames, got %+v", st)
	}
}

func TestScheduler_Stop(t *testing.T) {
	fake := &enginetest.Engine{}
	refresh := make(manual)
	s := New(source{fake}, refresh)

	s.Stop() // no loop yet

	tok := s.Start()
	refresh.tick(1)
	s.Stop()
	waitDone(t, tok)

	if st := s.Status(); st.State != Idle || st.Frames != 0 {
		t.Errorf("expected idle status, got %+v", st)
	}
	tok.Stop() // idempotent
}

func TestPulse_Coalesces(t *testing.T) {
	p := NewPulse()
	if !p.Pulse() {
		t.Fatal("expected first pulse to queue")
	}
	if p.Pulse() {
		t.Error("expected second pulse to be dropped while one is pending")
	}
	<-p.Next()
	if !p.Pulse() {
		t.Error("expected pulse to queue once drained")
	}
}

func TestNewTicker_Clamps(t *testing.T) {
	second := float64(time.Second)
	tests := []struct {
		hz   float64
		want time.Duration
	}{
		{0, time.Duration(second / FrameRate)},
		{0.01, time.Second},
		{1000, time.Duration(second / maxRate)},
	}
	for _, tt := range tests {
		tk := NewTicker(tt.hz)
		tk.Stop()
		if got := tickerPeriod(tt.hz); got != tt.want {
			t.Errorf("hz %v: expected period %v, got %v", tt.hz, tt.want, got)
		}
	}
}
