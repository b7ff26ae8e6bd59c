//go:build tinygo && baremetal

package hal

// stubFramebuffer keeps an in-memory frame for boards without a panel. The
// monitor still renders into it; Present is a no-op.
type stubFramebuffer struct {
	w      int
	h      int
	format PixelFormat
	buf    []byte
}

func (f *stubFramebuffer) Width() int          { return f.w }
func (f *stubFramebuffer) Height() int         { return f.h }
func (f *stubFramebuffer) Format() PixelFormat { return f.format }
func (f *stubFramebuffer) StrideBytes() int    { return f.w * 2 }

func (f *stubFramebuffer) Buffer() []byte {
	if f.buf == nil {
		f.buf = make([]byte, f.w*f.h*2)
	}
	return f.buf
}

func (f *stubFramebuffer) ClearRGB(r, g, b uint8) {
	fillRGB565(f.Buffer(), rgb565(r, g, b))
}

func (f *stubFramebuffer) Present() error { return nil }
