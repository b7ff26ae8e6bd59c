package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"bitrt/hal"
	"bitrt/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	faultLineHeight = 10
	faultLineOffset = 7
)

// faultLines is the text of the fault screen.
func faultLines(k *kernel.Kernel, info kernel.FaultInfo) []string {
	lines := []string{
		"bitrt halted",
		fmt.Sprintf("task: %d %s", info.Task, k.TaskName(info.Task)),
		fmt.Sprintf("core: %d  tick: %d", info.Core, k.Ticks()),
	}
	if info.Err != nil {
		lines = append(lines, "error: "+info.Err.Error())
	}
	if info.Value != nil {
		lines = append(lines, fmt.Sprintf("panic: %v", info.Value))
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// showFault logs the fault and paints it over the monitor.
func (s *system) showFault(info kernel.FaultInfo) {
	lines := faultLines(s.k, info)
	for _, line := range lines {
		s.logf("%s", line)
	}

	disp := s.h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return
	}
	fb.ClearRGB(120, 0, 0)

	font := &proggy.TinySZ8pt7b
	_, w := tinyfont.LineWidth(font, "0")
	cols := 1
	if w > 0 && fb.Width() > int(w) {
		cols = fb.Width() / int(w)
	}

	d := faultDisplay{fb: fb}
	fg := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if int(y)+faultLineHeight > fb.Height() {
				_ = fb.Present()
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 2, y+faultLineOffset, chunk, fg)
			y += faultLineHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = fb.Present()
}

type faultDisplay struct {
	fb hal.Framebuffer
}

func (d faultDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d faultDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	pixel := uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d faultDisplay) Display() error { return nil }

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if len(s) <= n {
		return s, ""
	}
	i, count := 0, 0
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
