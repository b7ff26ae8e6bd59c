package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrNoLine         = errors.New("no such interrupt line")
)

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides a base tick stream. One tick is one millisecond.
type Time interface {
	Ticks() <-chan uint64
}

// MaxLines is the number of interrupt lines a controller exposes.
const MaxLines = 32

// Handler runs in interrupt context. It must not block.
type Handler func(line uint8)

// Interrupts is the interrupt controller the kernel's event manager is wired
// to.
type Interrupts interface {
	// Handle installs the handler for a line, replacing any previous one.
	Handle(line uint8, fn Handler) error
	// Raise triggers a line from software.
	Raise(line uint8) error
	// Sources lists the named hardware sources, indexed by line.
	Sources() []string
}

// HAL provides the only contact point between the kernel and the outside
// world.
type HAL interface {
	Logger() Logger
	LED() LED
	Display() Display
	Time() Time
	Interrupts() Interrupts
}

// KeyLineBase is the line the host window's "0" key raises; keys 1 to 9
// raise the lines after it.
const KeyLineBase = 16
