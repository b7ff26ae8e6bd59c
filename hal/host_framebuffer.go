//go:build !tinygo

package hal

import "sync"

type hostFramebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	stride int
	buf    []byte
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	stride := width * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.stride }
func (f *hostFramebuffer) Buffer() []byte      { return f.buf }

// Present is a no-op; the window copies the frame on every draw.
func (f *hostFramebuffer) Present() error { return nil }

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fillRGB565(f.buf, rgb565(r, g, b))
}

// snapshotRGBA expands the current frame into dst as 8-bit RGBA.
func (f *hostFramebuffer) snapshotRGBA(dst []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, j := 0, 0; i+1 < len(f.buf) && j+3 < len(dst); i, j = i+2, j+4 {
		dst[j], dst[j+1], dst[j+2] = rgb888From565(uint16(f.buf[i]) | uint16(f.buf[i+1])<<8)
		dst[j+3] = 0xFF
	}
}
