//go:build tinygo && baremetal

package hal

import (
	"machine"
	"strconv"
)

type tinyGoHAL struct {
	logger *uartLogger
	led    *pinLED
	fb     Framebuffer
	t      *tinyGoTime
	irq    *Controller
}

// Button inputs wired to interrupt lines 0 to 3, active low.
var buttonPins = [...]machine.Pin{machine.GP2, machine.GP3, machine.GP4, machine.GP5}

// New returns a Pico / Pico 2 HAL implementation.
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
// Interrupt lines 0-3: buttons on GP2-GP5 to ground, falling edge.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	sources := make([]GPIOPin, 0, len(buttonPins))
	for _, p := range buttonPins {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		sources = append(sources, &machinePin{pin: p})
	}
	logger := newUARTLogger(uart)
	irq := NewController(sources...)
	bindLines(logger, len(buttonPins), func(line uint8) error {
		return buttonPins[line].SetInterrupt(machine.PinFalling, func(machine.Pin) { irq.fire(line) })
	})

	return &tinyGoHAL{
		logger: logger,
		led:    &pinLED{pin: ledPin},
		fb:     &stubFramebuffer{w: 160, h: 120, format: PixelFormatRGB565},
		t:      newTinyGoTime(),
		irq:    irq,
	}
}

func (h *tinyGoHAL) Logger() Logger         { return h.logger }
func (h *tinyGoHAL) LED() LED               { return h.led }
func (h *tinyGoHAL) Display() Display       { return tinyGoDisplay{fb: h.fb} }
func (h *tinyGoHAL) Time() Time             { return h.t }
func (h *tinyGoHAL) Interrupts() Interrupts { return h.irq }

type machinePin struct {
	pin machine.Pin
}

func (p *machinePin) Name() string { return "GP" + strconv.Itoa(int(p.pin)) }

// Read reports the pressed state of an active-low input.
func (p *machinePin) Read() (bool, error) { return !p.pin.Get(), nil }
