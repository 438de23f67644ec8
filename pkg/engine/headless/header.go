package headless

import (
	"fmt"
	"strings"
)

// Mode describes which hardware a cartridge targets.
type Mode uint8

const (
	ModeDMG Mode = iota
	ModeSupportsCGB
	ModeOnlyCGB
)

func (m Mode) String() string {
	switch m {
	case ModeDMG:
		return "DMG"
	case ModeSupportsCGB, ModeOnlyCGB:
		return "CGB"
	default:
		return "Unknown"
	}
}

var ramSizes = map[uint8]uint{
	0x00: 0,
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

const (
	headerStart = 0x0100
	headerEnd   = 0x0150
)

// Header is the cartridge header found at 0x0100-0x014F of every
// ROM. The headless engine only reports it, it never acts on it.
type Header struct {
	Title          string
	Mode           Mode
	CartridgeType  uint8
	ROMSize        uint
	RAMSize        uint
	HeaderChecksum uint8
	GlobalChecksum uint16
}

// parseHeader parses the 0x50 header bytes. ok is false when the
// image is too short to carry a header.
func parseHeader(rom []byte) (h Header, ok bool) {
	if len(rom) < headerEnd {
		return Header{}, false
	}
	header := rom[headerStart:headerEnd]

	switch header[0x43] {
	case 0x80:
		h.Mode = ModeSupportsCGB
	case 0xC0:
		h.Mode = ModeOnlyCGB
	default:
		h.Mode = ModeDMG
	}

	// the last title byte doubles as the CGB flag on newer carts
	title := header[0x34:0x44]
	if h.Mode != ModeDMG {
		title = header[0x34:0x43]
	}
	h.Title = strings.TrimRight(string(title), "\x00 ")

	h.CartridgeType = header[0x47]
	h.ROMSize = (32 * 1024) << header[0x48]
	h.RAMSize = ramSizes[header[0x49]]
	h.HeaderChecksum = header[0x4D]
	h.GlobalChecksum = uint16(header[0x4E])<<8 | uint16(header[0x4F])

	return h, true
}

// valid reports whether the header checksum at 0x014D matches the
// bytes it covers.
func (h Header) valid(rom []byte) bool {
	var sum uint8
	for _, b := range rom[0x0134:0x014D] {
		sum = sum - b - 1
	}
	return sum == h.HeaderChecksum
}

func (h Header) String() string {
	return fmt.Sprintf("%s Mode: %s | ROM Size: %dkB | RAM Size: %dkB", h.Title, h.Mode, h.ROMSize/1024, h.RAMSize/1024)
}
