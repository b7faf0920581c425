package ppu

import "sort"

// Sprite is a decoded OAM entry, already normalized to screen-space X (the
// raw OAM byte is X+8 on hardware; callers subtract 8 before constructing
// one of these). Attr mirrors the OAM attribute byte: bit7 BG-over-sprite
// priority, bit6 Y flip, bit5 X flip, bit4 palette select (OBP0/OBP1).
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// ComposeSpriteLine draws every sprite intersecting scanline ly onto a
// 160-pixel color-index row, honoring DMG sprite-sprite priority (lowest X
// wins, OAM index breaks ties) and the BG-priority attribute bit against
// bgci, the already-rendered background/window color indices for this line.
// tall selects 8x16 sprite mode. The result uses color index 0 for "no
// sprite pixel here" exactly like a transparent sprite color.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]byte {
	var out [160]byte
	var resolved [160]bool

	height := 8
	if tall {
		height = 16
	}

	ordered := make([]Sprite, len(sprites))
	copy(ordered, sprites)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].X != ordered[j].X {
			return ordered[i].X < ordered[j].X
		}
		return ordered[i].OAMIndex < ordered[j].OAMIndex
	})

	for _, s := range ordered {
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.Attr&0x40 != 0 { // Y flip
			row = height - 1 - row
		}
		tile := s.Tile
		if tall {
			tile &^= 0x01
			if row >= 8 {
				tile |= 0x01
				row -= 8
			}
		}
		base := 0x8000 + uint16(tile)*16 + uint16(row)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)

		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= 160 || resolved[x] {
				continue
			}
			bit := byte(7 - px)
			if s.Attr&0x20 != 0 { // X flip
				bit = byte(px)
			}
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue
			}
			if s.Attr&0x80 != 0 && bgci[x] != 0 {
				resolved[x] = true // hidden behind BG, nothing else may draw here either
				continue
			}
			out[x] = ci
			resolved[x] = true
		}
	}
	return out
}
