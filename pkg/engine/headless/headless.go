// Package headless provides an engine.Engine that honours the full
// engine contract without emulating any instructions. It keeps the
// power-up register file, the cartridge ROM bank and a cycle
// budget, which is enough to run the front end end to end.
package headless

import (
	"errors"
	"fmt"

	"github.com/thelolagemann/gomeboy-web/pkg/engine"
	"github.com/thelolagemann/gomeboy-web/pkg/log"
)

const (
	// ROMSize is the size of the fixed cartridge ROM bank.
	ROMSize = 32 * 1024
	// CyclesPerFrame is the number of machine cycles in one frame.
	CyclesPerFrame = 17556
)

var (
	ErrNoROM       = errors.New("headless: no rom loaded")
	ErrROMTooLarge = errors.New("headless: rom exceeds cartridge bank")
)

var _ engine.Engine = (*Engine)(nil)

// Registers is the CPU register file.
type Registers struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
}

// Engine is the headless core.
type Engine struct {
	Registers Registers

	rom    [ROMSize]byte
	loaded bool
	header Header

	clocks int
	frames uint64

	log log.Logger
}

// Opt configures an Engine.
type Opt func(e *Engine)

// WithLogger sets the logger the engine greets and reports to.
func WithLogger(l log.Logger) Opt {
	return func(e *Engine) {
		e.log = l
	}
}

// New returns an Engine. The ROM bank is empty until LoadROM.
func New(opts ...Opt) *Engine {
	e := &Engine{log: log.NewNullLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Factory returns an engine.Factory constructing headless engines.
func Factory(opts ...Opt) engine.Factory {
	return func() (engine.Engine, error) {
		return New(opts...), nil
	}
}

// Init sets the registers to the values left by the boot ROM.
func (e *Engine) Init() {
	e.Registers = Registers{
		A: 0x00, F: 0x80,
		B: 0x00, C: 0x13,
		D: 0x00, E: 0xD8,
		H: 0x01, L: 0x4D,
		SP: 0xFFFE,
		PC: 0x0100,
	}
	e.clocks = 0
	e.frames = 0
}

// LoadROM copies rom into the start of the cartridge bank. The rest
// of the bank keeps its previous contents, as on hardware.
func (e *Engine) LoadROM(rom []byte) error {
	if len(rom) > ROMSize {
		return fmt.Errorf("%w: %d bytes", ErrROMTooLarge, len(rom))
	}
	copy(e.rom[:], rom)
	e.loaded = true

	if h, ok := parseHeader(rom); ok {
		e.header = h
		if !h.valid(rom) {
			e.log.Debugf("header checksum mismatch for %q", h.Title)
		}
		e.log.Infof("cartridge: %s", h.String())
	} else {
		e.header = Header{}
	}
	return nil
}

// NextFrame spends one frame's worth of cycles.
func (e *Engine) NextFrame() error {
	if !e.loaded {
		return ErrNoROM
	}
	e.clocks += CyclesPerFrame
	for e.clocks > 0 {
		e.clocks -= e.step()
	}
	e.frames++
	return nil
}

// step retires one machine cycle without decoding anything.
func (e *Engine) step() int {
	e.Registers.PC++
	return 1
}

func (e *Engine) Greet(name string) string {
	greeting := fmt.Sprintf("Hello, %s!", name)
	e.log.Debugf("%s", greeting)
	return greeting
}

// Header returns the header of the loaded cartridge, if any.
func (e *Engine) Header() Header {
	return e.header
}

// Frames returns the frames run since the last Init.
func (e *Engine) Frames() uint64 {
	return e.frames
}

// Read reads a byte of the cartridge bank.
func (e *Engine) Read(address uint16) uint8 {
	if int(address) >= ROMSize {
		return 0xFF
	}
	return e.rom[address]
}
