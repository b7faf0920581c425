package ppu

import "testing"

func TestRenderer_DrawFrame_LCDOffIsBlank(t *testing.T) {
	mem := mockVRAM{}
	mem[0xFF40] = 0x00 // LCDC: display off
	r := NewRenderer()
	r.DrawFrame(mem)
	fb := r.Framebuffer()
	for i := 0; i < len(fb); i++ {
		if fb[i] != 0xFF {
			t.Fatalf("expected all-white framebuffer with LCD off, byte %d got %02x", i, fb[i])
		}
	}
}

func TestRenderer_DrawFrame_SolidBackgroundTile(t *testing.T) {
	mem := mockVRAM{}
	mem[0xFF40] = 0x91 // LCD on, BG on, BG tile data at 0x8000, BG map at 0x9800
	mem[0xFF47] = 0xE4 // BGP: identity-ish shade mapping (0,1,2,3 -> 0,1,2,3)

	// Tile 0 at 0x8000: every row both bit planes set -> color index 3.
	for row := 0; row < 16; row += 2 {
		mem[0x8000+uint16(row)] = 0xFF
		mem[0x8000+uint16(row+1)] = 0xFF
	}
	// Map entry (0,0) at 0x9800 already defaults to tile 0 via the zero value.

	r := NewRenderer()
	r.DrawFrame(mem)
	fb := r.Framebuffer()

	want := r.palette[3]
	if fb[0] != want[0] || fb[1] != want[1] || fb[2] != want[2] || fb[3] != want[3] {
		t.Fatalf("pixel (0,0) got %v want %v", fb[:4], want)
	}
}

func TestRenderer_DrawFrame_SpriteOverridesBackground(t *testing.T) {
	mem := mockVRAM{}
	mem[0xFF40] = 0x93 // LCD on, BG on, sprites on, BG tile data at 0x8000
	mem[0xFF47] = 0xE4 // BGP
	mem[0xFF48] = 0xE4 // OBP0

	// Background tile 0 stays blank (color index 0 everywhere).

	// Sprite tile 1: opaque leftmost pixel on every row.
	for row := 0; row < 16; row += 2 {
		mem[0x8010+uint16(row)] = 0x80
		mem[0x8010+uint16(row+1)] = 0x00
	}
	// OAM entry 0: Y=16 (screen row 0), X=8 (screen col 0), tile 1, no attrs.
	mem[0xFE00] = 16
	mem[0xFE01] = 8
	mem[0xFE02] = 1
	mem[0xFE03] = 0

	r := NewRenderer()
	r.DrawFrame(mem)
	fb := r.Framebuffer()

	// Sprite color index 1 through OBP0 0xE4 maps to shade 1.
	want := r.palette[1]
	if fb[0] != want[0] || fb[1] != want[1] || fb[2] != want[2] || fb[3] != want[3] {
		t.Fatalf("sprite pixel (0,0) got %v want %v", fb[:4], want)
	}
}
