// Package ui is the windowed host frontend: an ebiten Game implementation
// that drives a vm.Machine one video frame per Update, rasterizes its
// framebuffer with ppu.Renderer, plays audio through a ToneSink, and
// forwards keyboard state into the core's joypad matrix. Nothing in here
// is reused by the headless cmd/dmgcore step path — that runs vm.Machine
// against its own headlessHost, a hostapi.Nop whose DrawGL feeds a ppu.Renderer.
package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/hostapi"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/vm"
)

// key index order matches bus.keyBit's documented mapping: A,B,Select,Start
// then Right,Left,Up,Down.
var keyMap = [8]ebiten.Key{
	ebiten.KeyZ, ebiten.KeyX, ebiten.KeyBackspace, ebiten.KeyEnter,
	ebiten.KeyRight, ebiten.KeyLeft, ebiten.KeyUp, ebiten.KeyDown,
}

// App wires a vm.Machine to ebiten's game loop. It implements
// hostapi.Callbacks itself for the video edges (CopyTileData/CopyMap*Data
// are no-ops since Renderer re-reads VRAM fresh every DrawFrame) and
// delegates the audio edges to an embedded ToneSink. Since vm.New takes its
// Callbacks at construction time, an App must be built with NewApp first and
// passed to vm.New, then handed the resulting Machine via Attach.
type App struct {
	*ToneSink

	cfg     Config
	machine *vm.Machine
	render  *ppu.Renderer
	img     *ebiten.Image
	frame   []byte
	pressed [8]bool
}

// NewApp builds an App's video/audio plumbing ahead of the Machine that
// will call into it. If audio fails to initialize (no device, e.g. under a
// headless test runner) the app keeps running silently rather than failing
// to start.
func NewApp(cfg Config) *App {
	a := &App{
		cfg:    cfg,
		render: ppu.NewRenderer(),
		img:    ebiten.NewImage(ppu.ScreenW, ppu.ScreenH),
		frame:  make([]byte, ppu.ScreenW*ppu.ScreenH*4),
	}
	if !cfg.AudioMuted {
		if snk, err := NewToneSink(); err == nil {
			a.ToneSink = snk
		}
	}
	if a.ToneSink == nil {
		a.ToneSink = &ToneSink{} // Nop-backed: every Callbacks method still works, just silent
	}
	return a
}

// Attach binds the Machine that was constructed with this App as its
// hostapi.Callbacks, so Update/Draw have something to drive.
func (a *App) Attach(m *vm.Machine) { a.machine = m }

// Update advances the emulator by exactly one video frame and applies
// keyboard edge events to the joypad matrix.
func (a *App) Update() error {
	for i, k := range keyMap {
		down := ebiten.IsKeyPressed(k)
		if down && !a.pressed[i] {
			a.machine.KeyDown(i)
		} else if !down && a.pressed[i] {
			a.machine.KeyUp(i)
		}
		a.pressed[i] = down
	}
	a.machine.Frame()
	return nil
}

// Draw blits the most recent framebuffer, scaled by cfg.Scale.
func (a *App) Draw(screen *ebiten.Image) {
	a.img.WritePixels(a.frame)
	op := &ebiten.DrawImageOptions{}
	scale := float64(a.cfg.Scale)
	if scale <= 0 {
		scale = 1
	}
	op.GeoM.Scale(scale, scale)
	screen.DrawImage(a.img, op)
}

// Layout reports the scaled output window size for the given scale factor.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := a.cfg.Scale
	if scale <= 0 {
		scale = 1
	}
	return ppu.ScreenW * scale, ppu.ScreenH * scale
}

// DrawGL is the hostapi.Callbacks hook the core calls once per completed
// video frame; it rasterizes the current VRAM/OAM state into img's pixel
// buffer for the next Draw call.
func (a *App) DrawGL() {
	a.render.DrawFrame(a.machine)
	a.frame = a.render.Framebuffer()
}

// CopyTileData, CopyMap0Data, CopyMap1Data are no-ops: Renderer re-reads
// VRAM fresh on every DrawGL instead of keeping a cached copy to invalidate.
func (a *App) CopyTileData() {}
func (a *App) CopyMap0Data() {}
func (a *App) CopyMap1Data() {}

// WindowTitle formats the title bar text, including the loaded ROM path.
func WindowTitle(cfg Config, romPath string) string {
	return fmt.Sprintf("%s - %s", cfg.Title, romPath)
}

var (
	_ hostapi.Callbacks = (*App)(nil)
	_ ebiten.Game       = (*App)(nil)
)
