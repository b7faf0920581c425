// Package bus implements the memory-mapped address space that unifies boot
// ROM, cartridge ROM/RAM, video RAM, work RAM, OAM, I/O registers and high
// RAM behind a single 16-bit address space, plus the divider/timer and OAM
// DMA logic that are driven by clock ticks rather than CPU reads/writes.
package bus

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/audio"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/gpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/hostapi"
)

// Bus wires a cartridge, RAM regions, the GPU timing machine, and the audio
// shadow registers behind Read/Write and drives them all from Tick.
type Bus struct {
	cart cart.Cartridge

	boot        []byte
	bootEnabled bool

	vram [0x2000]byte
	oam  [0xA0]byte
	wram [0x2000]byte
	hram [0x7F]byte

	ie    byte
	ifReg byte

	joypSelect      byte // raw bits 4-5 as last written to FF00
	buttonsState    byte // low nibble, active-low: A,B,Select,Start
	directionsState byte // low nibble, active-low: Right,Left,Up,Down

	timerAcc uint32
	div      byte
	tima     byte
	tma      byte
	tac      byte

	sb, sc byte
	sw     io.Writer

	gpu             *gpu.GPU
	lcdc, stat      byte
	scy, scx        byte
	lyc             byte
	bgp, obp0, obp1 byte
	wy, wx          byte

	// Sound register shadow (FF10-FF23): stored raw so a channel-restart
	// trigger can snapshot the whole group at once, as real hardware does.
	nr10, nr11, nr12, nr13, nr14 byte
	nr21, nr22, nr23, nr24       byte
	nr41, nr42, nr43             byte

	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	cartRAMDirty  bool
	tileDataDirty bool
	tileMap0Dirty bool
	tileMap1Dirty bool

	audio *audio.Shadow
}

// New creates a bus from a raw ROM image, picking an MBC by header, with no
// host callbacks attached (suitable for unit tests and headless runs).
func New(rom []byte) *Bus {
	return NewWithCallbacks(cart.NewCartridge(rom), hostapi.Nop{})
}

// NewWithCartridge wires a pre-constructed cartridge (tests commonly build
// one directly to control ROM/RAM layout precisely).
func NewWithCartridge(c cart.Cartridge) *Bus {
	return NewWithCallbacks(c, hostapi.Nop{})
}

// NewWithCallbacks wires a bus whose audio shadow registers report through
// cb. cb must not be nil; pass hostapi.Nop{} for a silent bus.
func NewWithCallbacks(c cart.Cartridge, cb hostapi.Callbacks) *Bus {
	return &Bus{
		cart:            c,
		gpu:             gpu.New(),
		audio:           audio.New(cb),
		buttonsState:    0x0F,
		directionsState: 0x0F,
	}
}

func (b *Bus) Cart() cart.Cartridge { return b.cart }
func (b *Bus) GPU() *gpu.GPU        { return b.gpu }

// SetSerialWriter attaches a sink for bytes written over the (unmodeled)
// serial link; useful for driving test ROMs that report pass/fail over SB.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM installs a 256-byte boot image, overlaid at 0x0000-0x00FF
// until the game writes a nonzero value to FF50.
func (b *Bus) SetBootROM(data []byte) {
	if len(data) < 0x100 {
		logrus.WithField("len", len(data)).Warn("boot ROM image shorter than 256 bytes, ignoring")
		return
	}
	b.boot = make([]byte, 0x100)
	copy(b.boot, data[:0x100])
	b.bootEnabled = true
}

// Read returns the byte visible at a CPU address.
func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x100 && b.bootEnabled:
		return b.boot[addr]
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr < 0xA000:
		return b.vram[addr-0x8000]
	case addr < 0xC000:
		return b.cart.Read(addr)
	case addr < 0xE000:
		return b.wram[addr-0xC000]
	case addr < 0xFE00:
		return b.wram[addr-0xE000]
	case addr < 0xFEA0:
		return b.oam[addr-0xFE00]
	case addr < 0xFF00:
		return 0xFF
	case addr == 0xFF00:
		return b.readJoypad()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return b.sc
	case addr == 0xFF04:
		return b.div
	case addr == 0xFF05:
		return b.tima
	case addr == 0xFF06:
		return b.tma
	case addr == 0xFF07:
		return b.tac
	case addr == 0xFF0F:
		return b.ifReg
	case addr == 0xFF10:
		return b.nr10
	case addr == 0xFF11:
		return b.nr11
	case addr == 0xFF12:
		return b.nr12
	case addr == 0xFF13:
		return b.nr13
	case addr == 0xFF14:
		return b.nr14
	case addr == 0xFF16:
		return b.nr21
	case addr == 0xFF17:
		return b.nr22
	case addr == 0xFF18:
		return b.nr23
	case addr == 0xFF19:
		return b.nr24
	case addr == 0xFF20:
		return b.nr41
	case addr == 0xFF21:
		return b.nr42
	case addr == 0xFF22:
		return b.nr43
	case addr == 0xFF40:
		return b.lcdc
	case addr == 0xFF41:
		return b.stat | 0x80
	case addr == 0xFF42:
		return b.scy
	case addr == 0xFF43:
		return b.scx
	case addr == 0xFF44:
		return b.gpu.Line
	case addr == 0xFF45:
		return b.lyc
	case addr == 0xFF47:
		return b.bgp
	case addr == 0xFF48:
		return b.obp0
	case addr == 0xFF49:
		return b.obp1
	case addr == 0xFF4A:
		return b.wy
	case addr == 0xFF4B:
		return b.wx
	case addr == 0xFF50:
		if b.bootEnabled {
			return 0x00
		}
		return 0x01
	case addr < 0xFF80:
		return 0xFF
	case addr < 0xFFFF:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ie
	default:
		return 0xFF
	}
}

// Write stores a byte at a CPU address, applying every side effect a real
// write to that address would have (banking, dirty tracking, DMA trigger,
// audio channel restart, and so on).
func (b *Bus) Write(addr uint16, v byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, v)
	case addr < 0x8000+0x1800: // 0x8000-0x97FF tile data
		b.vram[addr-0x8000] = v
		b.tileDataDirty = true
	case addr < 0x9C00: // 0x9800-0x9BFF tile map 0
		b.vram[addr-0x8000] = v
		b.tileMap0Dirty = true
	case addr < 0xA000: // 0x9C00-0x9FFF tile map 1
		b.vram[addr-0x8000] = v
		b.tileMap1Dirty = true
	case addr < 0xC000:
		b.cart.Write(addr, v)
		b.cartRAMDirty = true
	case addr < 0xE000:
		b.wram[addr-0xC000] = v
	case addr < 0xFE00:
		b.wram[addr-0xE000] = v
	case addr < 0xFEA0:
		b.oam[addr-0xFE00] = v
	case addr < 0xFF00:
		// unusable region, writes ignored
	case addr == 0xFF00:
		b.joypSelect = v & 0x30
	case addr == 0xFF01:
		b.sb = v
	case addr == 0xFF02:
		b.sc = v
		if v&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		b.div = 0
		b.timerAcc = 0
	case addr == 0xFF05:
		b.tima = v
	case addr == 0xFF06:
		b.tma = v
	case addr == 0xFF07:
		b.tac = v & 0x07
	case addr == 0xFF0F:
		b.ifReg = v & 0x1F
	case addr == 0xFF10:
		b.nr10 = v
	case addr == 0xFF11:
		b.nr11 = v
	case addr == 0xFF12:
		b.nr12 = v
	case addr == 0xFF13:
		b.nr13 = v
	case addr == 0xFF14:
		b.nr14 = v
		if v&0x80 != 0 {
			b.audio.TriggerChannel1(b.nr10, b.nr11, b.nr12, b.nr13, b.nr14)
		}
	case addr == 0xFF16:
		b.nr21 = v
	case addr == 0xFF17:
		b.nr22 = v
	case addr == 0xFF18:
		b.nr23 = v
	case addr == 0xFF19:
		b.nr24 = v
		if v&0x80 != 0 {
			b.audio.TriggerChannel2(b.nr21, b.nr22, b.nr23, b.nr24)
		}
	case addr == 0xFF20:
		b.nr41 = v
	case addr == 0xFF21:
		b.nr42 = v
	case addr == 0xFF22:
		b.nr43 = v
	case addr == 0xFF23:
		if v&0x80 != 0 {
			b.audio.TriggerChannel4(b.nr41, b.nr42, b.nr43)
		}
	case addr == 0xFF24:
		b.audio.SetMasterVolume(v)
	case addr == 0xFF26:
		b.audio.SetMasterEnable(v&0x80 != 0)
	case addr == 0xFF40:
		b.lcdc = v
	case addr == 0xFF41:
		b.stat = (v & 0xF8) | (b.stat & 0x07)
	case addr == 0xFF42:
		b.scy = v
	case addr == 0xFF43:
		b.scx = v
	case addr == 0xFF44:
		b.gpu.Line = v
		b.refreshCoincidence()
	case addr == 0xFF45:
		b.lyc = v
		b.refreshCoincidence()
	case addr == 0xFF46:
		b.dmaSrc = uint16(v) << 8
		b.dmaIndex = 0
		b.dmaActive = true
	case addr == 0xFF47:
		b.bgp = v
	case addr == 0xFF48:
		b.obp0 = v
	case addr == 0xFF49:
		b.obp1 = v
	case addr == 0xFF4A:
		b.wy = v
	case addr == 0xFF4B:
		b.wx = v
	case addr == 0xFF50:
		if v != 0 {
			b.bootEnabled = false
		}
	case addr < 0xFF80:
		// remaining unimplemented I/O registers, writes ignored
	case addr < 0xFFFF:
		b.hram[addr-0xFF80] = v
	case addr == 0xFFFF:
		b.ie = v
	}
}

func (b *Bus) refreshCoincidence() {
	if b.gpu.Line == b.lyc {
		b.stat |= 0x04
	} else {
		b.stat &^= 0x04
	}
}

func (b *Bus) readJoypad() byte {
	result := byte(0x0F)
	if b.joypSelect&0x10 == 0 {
		result &= b.directionsState
	}
	if b.joypSelect&0x20 == 0 {
		result &= b.buttonsState
	}
	return 0xC0 | b.joypSelect | result
}

// keyBit returns which nibble bit (0-3) and group (true=buttons) a key
// index (0=A,1=B,2=Select,3=Start,4=Right,5=Left,6=Up,7=Down) controls.
func keyBit(index int) (bit uint, buttons bool) {
	return uint(index % 4), index < 4
}

// KeyDown clears the nibble bit for index (active-low = pressed) and
// unconditionally raises the joypad interrupt, per hardware.
func (b *Bus) KeyDown(index int) {
	bit, buttons := keyBit(index)
	if buttons {
		b.buttonsState &^= 1 << bit
	} else {
		b.directionsState &^= 1 << bit
	}
	b.ifReg |= 0x10
}

// KeyUp sets the nibble bit for index back to released and raises the
// joypad interrupt, matching KeyDown's unconditional behavior.
func (b *Bus) KeyUp(index int) {
	bit, buttons := keyBit(index)
	if buttons {
		b.buttonsState |= 1 << bit
	} else {
		b.directionsState |= 1 << bit
	}
	b.ifReg |= 0x10
}

// SetButtons and SetDirections let a host push a whole nibble at once
// (active-low: 0 = pressed) instead of individual key events.
func (b *Bus) SetButtons(nibble byte)    { b.buttonsState = nibble & 0x0F }
func (b *Bus) SetDirections(nibble byte) { b.directionsState = nibble & 0x0F }

// IE/IF accessors used by the frame driver's interrupt-vectoring pass.
func (b *Bus) IE() byte            { return b.ie }
func (b *Bus) IF() byte            { return b.ifReg }
func (b *Bus) ClearIFBit(bit byte) { b.ifReg &^= 1 << bit }
func (b *Bus) SetIFBit(bit byte)   { b.ifReg |= 1 << bit }

// Dirty-region accessors: each reports and clears its flag.
func (b *Bus) ConsumeCartRAMDirty() bool  { v := b.cartRAMDirty; b.cartRAMDirty = false; return v }
func (b *Bus) ConsumeTileDataDirty() bool { v := b.tileDataDirty; b.tileDataDirty = false; return v }
func (b *Bus) ConsumeTileMap0Dirty() bool { v := b.tileMap0Dirty; b.tileMap0Dirty = false; return v }
func (b *Bus) ConsumeTileMap1Dirty() bool { v := b.tileMap1Dirty; b.tileMap1Dirty = false; return v }

// IsSRAMDirty reports cart RAM dirtiness without consuming the flag, for
// hosts that poll it before deciding whether to persist a save.
func (b *Bus) IsSRAMDirty() bool { return b.cartRAMDirty }

// VRAM, OAM, HRAM expose raw region pointers for a host renderer; the core
// never reads back through these, it's an out-edge only.
func (b *Bus) VRAM() []byte { return b.vram[:] }
func (b *Bus) OAM() []byte  { return b.oam[:] }
func (b *Bus) HRAM() []byte { return b.hram[:] }

// State is a gob-encodable snapshot of everything the bus owns except the
// cartridge itself (MBC bank selection is the cartridge's concern; a save
// state restores cart RAM contents via BatteryBacked, not bank state, so a
// mid-game save/load can leave an MBC1/MBC3/MBC5 game on a different ROM
// bank than it had at save time — a known limitation, not a bug).
type State struct {
	VRAM, OAM, WRAM, HRAM []byte
	IE, IF                byte
	JoypSelect             byte
	ButtonsState           byte
	DirectionsState        byte
	TimerAcc               uint32
	DIV, TIMA, TMA, TAC    byte
	SB, SC                 byte
	GPUMode                gpu.Mode
	GPULine                byte
	LCDC, STAT             byte
	SCY, SCX, LYC          byte
	BGP, OBP0, OBP1        byte
	WY, WX                 byte
	NR                     [12]byte
}

// Snapshot captures the bus's non-cartridge state for save-state encoding.
func (b *Bus) Snapshot() State {
	return State{
		VRAM: append([]byte(nil), b.vram[:]...),
		OAM:  append([]byte(nil), b.oam[:]...),
		WRAM: append([]byte(nil), b.wram[:]...),
		HRAM: append([]byte(nil), b.hram[:]...),
		IE:   b.ie, IF: b.ifReg,
		JoypSelect: b.joypSelect, ButtonsState: b.buttonsState, DirectionsState: b.directionsState,
		TimerAcc: b.timerAcc, DIV: b.div, TIMA: b.tima, TMA: b.tma, TAC: b.tac,
		SB: b.sb, SC: b.sc,
		GPUMode: b.gpu.Mode, GPULine: b.gpu.Line,
		LCDC: b.lcdc, STAT: b.stat, SCY: b.scy, SCX: b.scx, LYC: b.lyc,
		BGP: b.bgp, OBP0: b.obp0, OBP1: b.obp1, WY: b.wy, WX: b.wx,
		NR: [12]byte{b.nr10, b.nr11, b.nr12, b.nr13, b.nr14, b.nr21, b.nr22, b.nr23, b.nr24, b.nr41, b.nr42, b.nr43},
	}
}

// Restore applies a previously captured State, leaving the cartridge (and
// its banking) untouched.
func (b *Bus) Restore(s State) {
	copy(b.vram[:], s.VRAM)
	copy(b.oam[:], s.OAM)
	copy(b.wram[:], s.WRAM)
	copy(b.hram[:], s.HRAM)
	b.ie, b.ifReg = s.IE, s.IF
	b.joypSelect, b.buttonsState, b.directionsState = s.JoypSelect, s.ButtonsState, s.DirectionsState
	b.timerAcc, b.div, b.tima, b.tma, b.tac = s.TimerAcc, s.DIV, s.TIMA, s.TMA, s.TAC
	b.sb, b.sc = s.SB, s.SC
	b.gpu.Mode, b.gpu.Line = s.GPUMode, s.GPULine
	b.lcdc, b.stat, b.scy, b.scx, b.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LYC
	b.bgp, b.obp0, b.obp1, b.wy, b.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	b.nr10, b.nr11, b.nr12, b.nr13, b.nr14 = s.NR[0], s.NR[1], s.NR[2], s.NR[3], s.NR[4]
	b.nr21, b.nr22, b.nr23, b.nr24 = s.NR[5], s.NR[6], s.NR[7], s.NR[8]
	b.nr41, b.nr42, b.nr43 = s.NR[9], s.NR[10], s.NR[11]
}

func timerPeriod(bits byte) uint32 {
	switch bits {
	case 0:
		return 64
	case 1:
		return 1
	case 2:
		return 4
	default:
		return 16
	}
}

// addTime runs the divider/timer accumulator-division algorithm: TIMA
// increments whenever the cycle accumulator crosses a multiple of 16 times
// its configured period, reloading from TMA and raising the timer interrupt
// on overflow. FF04 increments on a second, outer division by 16 of that
// same count — i.e. once per 256 clocks, not once per 16.
func (b *Bus) addTime(t int) {
	start := b.timerAcc / 16
	newAcc := b.timerAcc + uint32(t)
	end := newAcc / 16

	if end/16 != start/16 {
		b.div++
	}
	if b.tac&0x04 != 0 {
		period := timerPeriod(b.tac & 0x03)
		crossed := end/period - start/period
		for i := uint32(0); i < crossed; i++ {
			b.incrementTIMA()
		}
	}
	b.timerAcc = newAcc % 1024
}

func (b *Bus) incrementTIMA() {
	if b.tima == 0xFF {
		b.tima = b.tma
		b.ifReg |= 0x04
	} else {
		b.tima++
	}
}

// Tick advances the timer, audio shadow registers, OAM DMA, and the GPU
// mode machine by cycles CPU clocks, applying STAT/IF side effects and
// returning whatever the GPU reports (the frame driver decides what, if
// anything, a FlushBuffer action's host callback pass should do).
func (b *Bus) Tick(cycles int) gpu.Action {
	b.addTime(cycles)
	b.audio.Tick(cycles)

	for i := 0; i < cycles && b.dmaActive; i++ {
		b.oam[b.dmaIndex] = b.dmaSourceByte(b.dmaSrc + uint16(b.dmaIndex))
		b.dmaIndex++
		if b.dmaIndex >= 0xA0 {
			b.dmaActive = false
		}
	}

	statEnable := b.stat & 0x78
	act, statLow3, raiseVBlank, raiseStat, clearVBlank := b.gpu.Tick(cycles, b.lyc, statEnable)
	b.stat = (b.stat &^ 0x07) | statLow3
	if raiseVBlank {
		b.ifReg |= 0x01
	}
	if clearVBlank {
		b.ifReg &^= 0x01
	}
	if raiseStat {
		b.ifReg |= 0x02
	}
	return act
}

// dmaSourceByte reads a DMA source byte, used while copying into OAM; OAM
// itself is never a legal DMA source on real hardware.
func (b *Bus) dmaSourceByte(addr uint16) byte {
	if addr >= 0xFE00 && addr < 0xFEA0 {
		return 0xFF
	}
	return b.Read(addr)
}
