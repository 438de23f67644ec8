package scheduler

import (
	"time"

	"github.com/thelolagemann/gomeboy-web/pkg/utils"
)

const (
	// FrameRate is the refresh rate of the Game Boy LCD.
	FrameRate = 4194304.0 / 70224.0 // ~59.7275 Hz

	minRate = 1.0
	maxRate = 240.0
)

// Refresh delivers display refresh signals. The loop advances the
// engine once per value received from Next.
type Refresh interface {
	Next() <-chan time.Time
}

// Ticker is a wall-clock Refresh.
type Ticker struct {
	t *time.Ticker
}

// NewTicker returns a Ticker firing hz times a second. hz is clamped
// to a sane range; zero selects FrameRate.
func NewTicker(hz float64) *Ticker {
	return &Ticker{t: time.NewTicker(tickerPeriod(hz))}
}

func tickerPeriod(hz float64) time.Duration {
	if hz == 0 {
		hz = FrameRate
	}
	hz = utils.Clamp(minRate, hz, maxRate)
	return time.Duration(float64(time.Second) / hz)
}

func (t *Ticker) Next() <-chan time.Time {
	return t.t.C
}

// Stop stops the ticker. No more refreshes are delivered.
func (t *Ticker) Stop() {
	t.t.Stop()
}

// Pulse is a Refresh driven from outside, such as by the animation
// frames of a browser. A pulse arriving while one is still pending
// is dropped, so a slow engine never builds up a backlog.
type Pulse struct {
	c chan time.Time
}

func NewPulse() *Pulse {
	return &Pulse{c: make(chan time.Time, 1)}
}

func (p *Pulse) Next() <-chan time.Time {
	return p.c
}

// Pulse delivers a refresh without blocking. It reports whether the
// refresh was queued.
func (p *Pulse) Pulse() bool {
	select {
	case p.c <- time.Now():
		return true
	default:
		return false
	}
}
