//go:build !tinygo && cgo

package hal

import (
	"bitrt/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// RunWindow starts a desktop window that displays the framebuffer. Number
// keys raise interrupt lines from KeyLineBase. It blocks until the window
// closes.
func RunWindow(newApp func(HAL) func() error) error {
	h := newHost(newZapLogger(false))
	step := newApp(h)

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle("bitrt (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

var digitKeys = [...]ebiten.Key{
	ebiten.KeyDigit0, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
	ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
}

type hostGame struct {
	h     *hostHAL
	step  func() error
	frame []byte
	img   *ebiten.Image
	keys  int
}

func (g *hostGame) Update() error {
	for i, k := range digitKeys {
		if inpututil.IsKeyJustPressed(k) {
			_ = g.h.irq.Raise(uint8(KeyLineBase + i))
			g.keys++
		}
	}
	g.h.poll()
	if g.step != nil {
		return g.step()
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = ebiten.NewImage(fb.width, fb.height)
		g.frame = make([]byte, fb.width*fb.height*4)
	}
	fb.snapshotRGBA(g.frame)
	g.img.WritePixels(g.frame)
	screen.DrawImage(g.img, nil)
	if g.keys == 0 {
		ebitenutil.DebugPrintAt(screen, "keys 0-9 raise irq lines", 4, fb.height-16)
	}
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
