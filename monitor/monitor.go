// Package monitor draws live kernel state into a framebuffer: a summary of
// both cores, their ready and blocked vectors as bit strips, and a scrolling
// console of trace records.
package monitor

import (
	"image/color"

	"bitrt/hal"
	"bitrt/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	lineHeight = 10
	lineOffset = 7
	cellSize   = 3
)

var (
	bg       = color.RGBA{A: 255}
	fg       = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	readyCol = color.RGBA{R: 40, G: 200, B: 80, A: 255}
	blockCol = color.RGBA{R: 230, G: 160, B: 30, A: 255}
	runCol   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gridCol  = color.RGBA{R: 40, G: 40, B: 40, A: 255}

	font = &proggy.TinySZ8pt7b
)

// Source is the part of the kernel the monitor reads.
type Source interface {
	Namer
	Snapshot() kernel.Snapshot
	Trace(max int) []kernel.TraceRecord
}

// Monitor renders one kernel into one framebuffer.
type Monitor struct {
	src Source
	fb  hal.Framebuffer

	header region
	strips region
	term   *tinyterm.Terminal

	// next is the first trace sequence number not yet printed.
	next    uint64
	printed uint64
}

// New lays out the framebuffer: summary text at the top, bit strips below
// it and the trace console in the remaining space.
func New(src Source, fb hal.Framebuffer) *Monitor {
	m := &Monitor{src: src, fb: fb}
	if fb == nil {
		return m
	}
	headerH := (1 + 2*kernel.NumCores) * lineHeight
	stripsH := kernel.NumCores * 3 * (cellSize + 1)
	m.header = newRegion(fb, 0, headerH)
	m.strips = newRegion(fb, headerH, stripsH)

	console := newRegion(fb, headerH+stripsH+2, fb.Height()-headerH-stripsH-2)
	if console.h >= lineHeight {
		m.term = tinyterm.NewTerminal(console)
		m.term.Configure(&tinyterm.Config{
			Font:              font,
			FontHeight:        lineHeight,
			FontOffset:        lineOffset,
			UseSoftwareScroll: true,
		})
	}
	fb.ClearRGB(0, 0, 0)
	return m
}

// Printed returns the number of trace records written to the console.
func (m *Monitor) Printed() uint64 { return m.printed }

// Render draws the current snapshot, appends new trace records to the
// console and presents the frame.
func (m *Monitor) Render() error {
	if m.fb == nil {
		return nil
	}
	s := m.src.Snapshot()

	_ = m.header.FillRectangle(0, 0, int16(m.fb.Width()), int16(m.header.h), bg)
	for i, line := range Summary(m.src, s) {
		tinyfont.WriteLine(m.header, font, 2, int16(i*lineHeight+lineOffset), line, fg)
	}
	m.drawStrips(s)
	m.drainTrace()

	return m.fb.Present()
}

func (m *Monitor) drawStrips(s kernel.Snapshot) {
	_ = m.strips.FillRectangle(0, 0, int16(m.fb.Width()), int16(m.strips.h), bg)
	step := int16(cellSize + 1)
	for ci, c := range s.Cores {
		y := int16(ci*3) * step
		for b := 0; b < kernel.WordWidth; b++ {
			x := int16(2) + int16(b)*step
			col := gridCol
			switch {
			case kernel.TaskID(b) == c.Current && c.Current != kernel.IdleTask:
				col = runCol
			case c.Ready&(1<<uint(b)) != 0:
				col = readyCol
			}
			_ = m.strips.FillRectangle(x, y, cellSize, cellSize, col)

			col = gridCol
			if c.Blocked&(1<<uint(b)) != 0 {
				col = blockCol
			}
			_ = m.strips.FillRectangle(x, y+step, cellSize, cellSize, col)
		}
	}
}

func (m *Monitor) drainTrace() {
	if m.term == nil {
		return
	}
	for _, r := range m.src.Trace(0) {
		if r.Seq < m.next {
			continue
		}
		m.term.Write([]byte("\n" + FormatRecord(m.src, r)))
		m.next = r.Seq + 1
		m.printed++
	}
}
