package monitor

import (
	"image/color"

	"bitrt/hal"

	"tinygo.org/x/drivers"
)

// region is a horizontal band of an RGB565 framebuffer exposed as a
// drivers.Displayer. Coordinates are relative to the band; pixels outside it
// are dropped.
type region struct {
	fb hal.Framebuffer
	y0 int
	h  int
}

var _ drivers.Displayer = region{}

func newRegion(fb hal.Framebuffer, y0, h int) region {
	if fb == nil {
		return region{}
	}
	if y0 < 0 {
		y0 = 0
	}
	if y0+h > fb.Height() {
		h = fb.Height() - y0
	}
	if h < 0 {
		h = 0
	}
	return region{fb: fb, y0: y0, h: h}
}

func (r region) usable() bool {
	return r.fb != nil && r.fb.Format() == hal.PixelFormatRGB565 && r.fb.Buffer() != nil && r.h > 0
}

func (r region) Size() (x, y int16) {
	if r.fb == nil {
		return 0, 0
	}
	return int16(r.fb.Width()), int16(r.h)
}

func (r region) SetPixel(x, y int16, c color.RGBA) {
	if !r.usable() {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= r.fb.Width() || iy < 0 || iy >= r.h {
		return
	}
	off := (r.y0+iy)*r.fb.StrideBytes() + ix*2
	buf := r.fb.Buffer()
	if off+1 >= len(buf) {
		return
	}
	p := rgb565(c)
	buf[off] = byte(p)
	buf[off+1] = byte(p >> 8)
}

// Display is a no-op: the monitor presents the whole framebuffer once per
// frame.
func (r region) Display() error { return nil }

func (r region) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !r.usable() {
		return nil
	}
	x0, x1 := clamp(int(x), 0, r.fb.Width()), clamp(int(x)+int(width), 0, r.fb.Width())
	y0, y1 := clamp(int(y), 0, r.h), clamp(int(y)+int(height), 0, r.h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}
	p := rgb565(c)
	lo, hi := byte(p), byte(p>>8)
	buf := r.fb.Buffer()
	stride := r.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := (r.y0 + py) * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				break
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

// ScrollUp moves the band's content up by lines rows and clears the rows it
// exposes. tinyterm uses it for software scrolling.
func (r region) ScrollUp(lines int16, bg color.RGBA) error {
	if !r.usable() || lines <= 0 {
		return nil
	}
	n := int(lines)
	if n >= r.h {
		return r.FillRectangle(0, 0, int16(r.fb.Width()), int16(r.h), bg)
	}
	stride := r.fb.StrideBytes()
	buf := r.fb.Buffer()
	start := r.y0 * stride
	end := (r.y0 + r.h) * stride
	if end > len(buf) {
		end = len(buf)
	}
	copy(buf[start:end-n*stride], buf[start+n*stride:end])
	return r.FillRectangle(0, int16(r.h-n), int16(r.fb.Width()), int16(n), bg)
}

func (r region) SetScroll(line int16) {}

func (r region) SetRotation(rotation drivers.Rotation) error { return nil }

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
