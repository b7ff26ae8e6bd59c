package hal

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Controller is a software interrupt controller. A line fires when it is
// raised from software or when Poll sees a rising edge on the source pin
// attached to it. Handlers run on the goroutine that fired the line.
type Controller struct {
	handlers [MaxLines]atomic.Pointer[Handler]
	fired    [MaxLines]atomic.Uint32

	mu      sync.Mutex
	sources [MaxLines]GPIOPin
	last    [MaxLines]bool
	nsrc    int
}

// NewController returns a controller with sources[i] attached to line i.
func NewController(sources ...GPIOPin) *Controller {
	c := &Controller{}
	for i, p := range sources {
		if i >= MaxLines {
			break
		}
		c.sources[i] = p
	}
	c.nsrc = len(sources)
	if c.nsrc > MaxLines {
		c.nsrc = MaxLines
	}
	return c
}

func (c *Controller) Handle(line uint8, fn Handler) error {
	if int(line) >= MaxLines {
		return fmt.Errorf("irq %d: %w", line, ErrNoLine)
	}
	if fn == nil {
		c.handlers[line].Store(nil)
		return nil
	}
	c.handlers[line].Store(&fn)
	return nil
}

func (c *Controller) Raise(line uint8) error {
	if int(line) >= MaxLines {
		return fmt.Errorf("irq %d: %w", line, ErrNoLine)
	}
	c.fire(line)
	return nil
}

func (c *Controller) fire(line uint8) {
	c.fired[line].Add(1)
	if fn := c.handlers[line].Load(); fn != nil {
		(*fn)(line)
	}
}

// Sources returns the names of the attached source pins.
func (c *Controller) Sources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, c.nsrc)
	for i := 0; i < c.nsrc; i++ {
		if c.sources[i] != nil {
			out[i] = c.sources[i].Name()
		}
	}
	return out
}

// Fired returns how many times a line has fired.
func (c *Controller) Fired(line uint8) uint32 {
	if int(line) >= MaxLines {
		return 0
	}
	return c.fired[line].Load()
}

// Poll samples every source pin and fires the lines that saw a rising edge
// since the previous poll. It returns the number of lines fired.
func (c *Controller) Poll() int {
	var edges [MaxLines]bool
	n := 0

	c.mu.Lock()
	for i := 0; i < c.nsrc; i++ {
		p := c.sources[i]
		if p == nil {
			continue
		}
		level, err := p.Read()
		if err != nil {
			continue
		}
		if level && !c.last[i] {
			edges[i] = true
			n++
		}
		c.last[i] = level
	}
	c.mu.Unlock()

	for i := range edges {
		if edges[i] {
			c.fire(uint8(i))
		}
	}
	return n
}

// bindLines calls bind for lines 0 to n-1 and logs every line that could not
// be registered. It returns the number of lines bound.
func bindLines(l Logger, n int, bind func(line uint8) error) int {
	bound := 0
	for i := 0; i < n; i++ {
		if err := bind(uint8(i)); err != nil {
			l.WriteLineString(fmt.Sprintf("fault: irq line %d not registered: %v", i, err))
			continue
		}
		bound++
	}
	return bound
}
