// Package ppu composes the pixel data the core's bus and GPU timing state
// machine expose (VRAM, OAM, LCDC/palette registers, dirty flags) into an
// actual framebuffer. None of this runs inside the frame driver: the core
// only tells a host when tile/map memory went dirty and when a frame ended
// (hostapi.Callbacks), exactly as the out-of-scope boundary in the core
// spec requires. Renderer is the host-side collaborator that answers those
// signals, built on the same fetcher/FIFO pixel pipeline the teacher's
// isolated scanline tests already exercised.
package ppu

// MemReader is the subset of bus.Bus a renderer needs: byte-level reads of
// VRAM, OAM, and the LCD control/palette registers.
type MemReader interface {
	Read(addr uint16) byte
}

const (
	ScreenW = 160
	ScreenH = 144
)

// Renderer rasterizes one DMG frame at a time into an RGBA framebuffer. It
// keeps no VRAM/OAM copies of its own — every pixel is pulled fresh from
// the bus at DrawGL time, matching the host contract in the core spec that
// a renderer only reads between frame() calls.
type Renderer struct {
	fb      [ScreenW * ScreenH * 4]byte
	palette [4][4]byte // [DMG shade 0..3][R,G,B,A], swappable for a theme
}

// NewRenderer returns a Renderer using the classic 4-shade DMG green palette.
func NewRenderer() *Renderer {
	r := &Renderer{}
	r.palette = [4][4]byte{
		{0xE0, 0xF8, 0xD0, 0xFF},
		{0x88, 0xC0, 0x70, 0xFF},
		{0x34, 0x68, 0x56, 0xFF},
		{0x08, 0x18, 0x20, 0xFF},
	}
	return r
}

// Framebuffer returns the RGBA pixels from the most recent DrawFrame call.
func (r *Renderer) Framebuffer() []byte { return r.fb[:] }

func shade(palReg, ci byte) byte {
	return (palReg >> (ci * 2)) & 0x03
}

// DrawFrame rasterizes all 144 scanlines from the current state of mem
// (typically a *bus.Bus or *vm.Machine) into the framebuffer. It is meant
// to be called from the host's DrawGL callback, once CopyTileData/
// CopyMap0Data/CopyMap1Data have told the host its cached view of VRAM is
// stale (a Renderer that re-reads every pixel every frame can ignore those
// signals entirely, as this one does, at the cost of redundant work a more
// elaborate host could avoid).
func (r *Renderer) DrawFrame(mem MemReader) {
	lcdc := mem.Read(0xFF40)
	if lcdc&0x80 == 0 {
		for i := range r.fb {
			r.fb[i] = 0xFF
		}
		return
	}

	bgp := mem.Read(0xFF47)
	obp0 := mem.Read(0xFF48)
	obp1 := mem.Read(0xFF49)
	scx := mem.Read(0xFF43)
	scy := mem.Read(0xFF42)
	wx := mem.Read(0xFF4B)
	wy := mem.Read(0xFF4A)

	bgMapBase := uint16(0x9800)
	if lcdc&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	winMapBase := uint16(0x9800)
	if lcdc&0x40 != 0 {
		winMapBase = 0x9C00
	}
	tileData8000 := lcdc&0x10 != 0
	bgWinEnabled := lcdc&0x01 != 0
	winEnabled := lcdc&0x20 != 0 && wx <= 166
	spritesEnabled := lcdc&0x02 != 0
	tallSprites := lcdc&0x04 != 0

	winLine := 0
	for ly := 0; ly < ScreenH; ly++ {
		var bgci [160]byte
		if bgWinEnabled {
			bgci = RenderBGScanlineUsingFetcher(mem, bgMapBase, tileData8000, scx, scy, byte(ly))
		}
		if winEnabled && ly >= int(wy) {
			wxStart := int(wx) - 7
			winRow := RenderWindowScanlineUsingFetcher(mem, winMapBase, tileData8000, wxStart, byte(winLine))
			for x := wxStart; x < 160; x++ {
				if x < 0 {
					continue
				}
				bgci[x] = winRow[x]
			}
			winLine++
		}

		var spci [160]byte
		if spritesEnabled {
			spci = ComposeSpriteLine(mem, readSprites(mem), byte(ly), bgci, tallSprites)
		}

		for x := 0; x < 160; x++ {
			var ci, pal byte
			if spci[x] != 0 {
				ci, pal = spci[x], obp0
				if spriteUsesOBP1(mem, x, int(ly), tallSprites) {
					pal = obp1
				}
			} else {
				ci, pal = bgci[x], bgp
			}
			r.setPixel(x, ly, shade(pal, ci))
		}
	}
}

// readSprites decodes all 40 OAM entries into normalized Sprite values.
func readSprites(mem MemReader) []Sprite {
	out := make([]Sprite, 0, 40)
	for i := 0; i < 40; i++ {
		base := uint16(0xFE00 + i*4)
		y := int(mem.Read(base)) - 16
		x := int(mem.Read(base+1)) - 8
		tile := mem.Read(base + 2)
		attr := mem.Read(base + 3)
		out = append(out, Sprite{X: x, Y: y, Tile: tile, Attr: attr, OAMIndex: i})
	}
	return out
}

// spriteUsesOBP1 re-checks which sprite owns the visible pixel at (x,ly) to
// pick its palette; ComposeSpriteLine intentionally only reports a color
// index; this is the simplest way to recover the attribute bit without
// widening that function's signature for every other caller.
func spriteUsesOBP1(mem MemReader, x, ly int, tall bool) bool {
	height := 8
	if tall {
		height = 16
	}
	best := -1
	bestX := 161
	bestIdx := 41
	for i := 0; i < 40; i++ {
		base := uint16(0xFE00 + i*4)
		sy := int(mem.Read(base)) - 16
		sx := int(mem.Read(base+1)) - 8
		row := ly - sy
		if row < 0 || row >= height || x < sx || x >= sx+8 {
			continue
		}
		if sx < bestX || (sx == bestX && i < bestIdx) {
			best, bestX, bestIdx = i, sx, i
		}
	}
	if best < 0 {
		return false
	}
	attr := mem.Read(uint16(0xFE00 + best*4 + 3))
	return attr&0x10 != 0
}

func (r *Renderer) setPixel(x, y int, shadeIdx byte) {
	i := (y*ScreenW + x) * 4
	c := r.palette[shadeIdx&0x03]
	r.fb[i+0], r.fb[i+1], r.fb[i+2], r.fb[i+3] = c[0], c[1], c[2], c[3]
}
