// Package vm is the frame driver: it owns the CPU and Bus, steps them
// together, honors breakpoints, vectors interrupts, and reports GPU render
// signals to a host through hostapi.Callbacks. Nothing else in this module
// advances CPU and GPU/timer state together — every other package is a
// passive component the frame driver orchestrates.
package vm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/gpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/hostapi"
)

// Status is frame()'s return code.
type Status int

const (
	StatusRunning    Status = 0
	StatusCrashed    Status = 1
	StatusBreakpoint Status = 4
)

// Config carries settings that affect emulation behavior but not its
// correctness: tracing, an MBC override for homebrew/test ROMs whose
// header lies about their mapper, and save-RAM/boot-ROM paths.
type Config struct {
	Trace       bool // log every CPU instruction at Debug level
	LimitFPS    bool // not read by Machine; hosts pace their own Frame calls
	MBCOverride int  // cart-type code to force, or -1 to trust the header
	BootROMPath string
	SaveRAMPath string
}

// Machine is one Game Boy: a CPU, a Bus, and the breakpoint/callback state
// the frame driver needs. Create one per loaded cartridge.
type Machine struct {
	cfg Config
	cpu *cpu.CPU
	bus *bus.Bus
	cb  hostapi.Callbacks

	breakpoints map[uint16]struct{}
	romPath     string
}

// New creates a Machine with no cartridge loaded; call LoadCartridge or
// LoadROMFromFile before stepping it.
func New(cfg Config, cb hostapi.Callbacks) *Machine {
	if cb == nil {
		cb = hostapi.Nop{}
	}
	return &Machine{
		cfg:         cfg,
		cpu:         cpu.New(),
		bus:         bus.NewWithCallbacks(cart.NewCartridge(make([]byte, 0x8000)), cb),
		cb:          cb,
		breakpoints: make(map[uint16]struct{}),
	}
}

// LoadCartridge replaces the running cartridge and resets the machine. If
// cfg.MBCOverride is set the header's cart-type byte is ignored.
func (m *Machine) LoadCartridge(rom []byte) error {
	if len(rom) < 0x150 {
		return fmt.Errorf("vm: ROM image too short (%d bytes)", len(rom))
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("vm: parse header: %w", err)
	}
	cartType := h.CartType
	if m.cfg.MBCOverride >= 0 {
		cartType = byte(m.cfg.MBCOverride)
		logrus.WithField("cartType", cartType).Info("MBC override active, ignoring header cart type")
	}
	c := cart.NewCartridgeWithType(rom, cartType, h.RAMSizeBytes)
	m.bus = bus.NewWithCallbacks(c, m.cb)
	if m.cfg.BootROMPath != "" {
		data, err := os.ReadFile(m.cfg.BootROMPath)
		if err != nil {
			return fmt.Errorf("vm: read boot ROM: %w", err)
		}
		m.bus.SetBootROM(data)
		m.Reset()
	} else {
		m.ResetAfterBootloader()
	}
	logrus.WithFields(logrus.Fields{
		"title":   h.Title,
		"cart":    h.CartTypeStr,
		"banks":   h.ROMBanks,
		"ramSize": h.RAMSizeBytes,
	}).Info("cartridge loaded")
	return nil
}

// LoadROMFromFile loads a cartridge from disk and remembers the path, for
// save-RAM sibling-file conventions (ROM.sav) used by hosts.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vm: read ROM: %w", err)
	}
	if err := m.LoadCartridge(data); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

func (m *Machine) ROMPath() string { return m.romPath }

// SetSerialWriter attaches a sink for bytes written over SB/SC, most useful
// for test ROMs (Blargg-style) that report pass/fail over the serial link.
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// SetBootROM installs a boot image and restarts execution from it.
func (m *Machine) SetBootROM(data []byte) {
	m.bus.SetBootROM(data)
	m.Reset()
}

// Reset zeroes the CPU and leaves PC at 0x0000, for running with a boot ROM.
func (m *Machine) Reset() {
	m.cpu.Reset()
}

// ResetAfterBootloader sets registers and I/O state to what a real DMG boot
// ROM leaves behind, so a cartridge can run without a boot image.
func (m *Machine) ResetAfterBootloader() {
	m.cpu.ResetAfterBootloader()
	for _, reg := range []struct {
		addr uint16
		val  byte
	}{
		{0xFF05, 0x00}, {0xFF06, 0x00}, {0xFF07, 0x00},
		{0xFF10, 0x80}, {0xFF11, 0x80}, {0xFF12, 0xF3}, {0xFF13, 0xC1}, {0xFF14, 0x87},
		{0xFF16, 0x3F}, {0xFF17, 0x00}, {0xFF19, 0xBF}, {0xFF1A, 0x7F}, {0xFF1B, 0xFF},
		{0xFF1C, 0x9F}, {0xFF1E, 0xBF}, {0xFF20, 0xFF}, {0xFF21, 0x00}, {0xFF22, 0x00},
		{0xFF23, 0xBF}, {0xFF24, 0x77}, {0xFF25, 0xF3}, {0xFF26, 0x80},
		{0xFF40, 0x91}, {0xFF42, 0x00}, {0xFF43, 0x00}, {0xFF44, 0x8F}, {0xFF45, 0x00},
		{0xFF47, 0xFC}, {0xFF48, 0xFF}, {0xFF49, 0xFF}, {0xFF4A, 0x00}, {0xFF4B, 0x00},
		{0xFF50, 0x01},
		{0xFFFB, 0x01}, {0xFFFC, 0x2E}, {0xFFFD, 0x00}, {0xFFFF, 0x00},
	} {
		m.bus.Write(reg.addr, reg.val)
	}
}

// SetBreakpoint and ClearBreakpoint manage the map-backed set of
// addresses frame() checks against PC after every instruction.
func (m *Machine) SetBreakpoint(addr uint16)   { m.breakpoints[addr] = struct{}{} }
func (m *Machine) ClearBreakpoint(addr uint16) { delete(m.breakpoints, addr) }

// ReadMem is a debugger-facing read; it goes through the same Bus path a
// CPU instruction would, so memory-mapped register reads behave identically.
func (m *Machine) ReadMem(addr uint16) byte { return m.bus.Read(addr) }

func (m *Machine) registers() hostapi.Registers {
	return hostapi.Registers{
		A: m.cpu.A, B: m.cpu.B, C: m.cpu.C, D: m.cpu.D,
		E: m.cpu.E, H: m.cpu.H, L: m.cpu.L, F: m.cpu.F,
		SP: m.cpu.SP, PC: m.cpu.PC,
	}
}

// Step executes exactly one CPU instruction with no GPU/timer/interrupt
// pass — the debugger's single-step primitive.
func (m *Machine) Step() int {
	cycles := m.cpu.Step(m.bus)
	if m.cfg.Trace {
		logrus.WithFields(logrus.Fields{"pc": fmt.Sprintf("%#04x", m.cpu.PC), "cycles": cycles}).Debug("step")
	}
	m.cb.UpdateRegisters(m.registers())
	return cycles
}

// Frame runs CPU+GPU+timer+interrupts until the GPU yields FlushBuffer (one
// video frame), a breakpoint is hit, or the CPU crashes. A breakpoint hit
// still lets the in-flight frame run to its FlushBuffer boundary before
// returning, so the host can present a final frame; interrupt servicing is
// suppressed once the breakpoint fires so PC stays parked at the breakpoint
// address instead of getting vectored into an ISR out from under the
// debugger.
func (m *Machine) Frame() Status {
	bpHit := false
	for {
		var cycles int
		if !bpHit && m.cpu.State == cpu.Run {
			cycles = m.cpu.Step(m.bus)
			m.cb.UpdateRegisters(m.registers())
		} else {
			cycles = 4
		}

		if _, hit := m.breakpoints[m.cpu.PC]; hit {
			bpHit = true
		}

		act := m.bus.Tick(cycles)
		m.handleAction(act)
		if !bpHit {
			m.serviceInterrupts()
		}

		if m.cpu.State == cpu.Crash {
			return StatusCrashed
		}
		if act.Kind == gpu.FlushBuffer {
			if bpHit {
				return StatusBreakpoint
			}
			return StatusRunning
		}
	}
}

// StepFrameNoRender runs Frame but without relying on a real renderer being
// attached; it's the harness entry point conformance tests use, matching
// Frame()'s behavior exactly (the distinction is purely what the host
// Callbacks implementation chooses to do with DrawGL).
func (m *Machine) StepFrameNoRender() Status { return m.Frame() }

func (m *Machine) handleAction(act gpu.Action) {
	if act.Kind != gpu.FlushBuffer {
		return
	}
	if m.bus.ConsumeTileDataDirty() {
		m.cb.CopyTileData()
	}
	if m.bus.ConsumeTileMap0Dirty() {
		m.cb.CopyMap0Data()
	}
	if m.bus.ConsumeTileMap1Dirty() {
		m.cb.CopyMap1Data()
	}
	m.cb.DrawGL()
}

type interruptSource struct {
	bit    byte
	vector uint16
}

var interruptPriority = []interruptSource{
	{bit: 0, vector: 0x40}, // VBlank
	{bit: 1, vector: 0x48}, // STAT
	{bit: 2, vector: 0x50}, // Timer
	{bit: 3, vector: 0x58}, // Serial (not modeled; bit never set by this core)
	{bit: 4, vector: 0x60}, // Joypad
}

func (m *Machine) serviceInterrupts() {
	pending := m.bus.IE() & m.bus.IF()
	if pending == 0 {
		return
	}
	if !m.cpu.IME {
		// A halted CPU still wakes on a pending interrupt even with
		// interrupts globally disabled; it just resumes at the next
		// instruction instead of vectoring into the handler.
		if m.cpu.State == cpu.Halt {
			m.cpu.State = cpu.Run
		}
		return
	}
	for _, src := range interruptPriority {
		if pending&(1<<src.bit) == 0 {
			continue
		}
		m.bus.ClearIFBit(src.bit)
		m.cpu.Vector(m.bus, src.vector)
		return
	}
}

// KeyDown/KeyUp forward a single key-state change (0..3 = A,B,Select,Start;
// 4..7 = Right,Left,Up,Down).
func (m *Machine) KeyDown(index int) { m.bus.KeyDown(index) }
func (m *Machine) KeyUp(index int)   { m.bus.KeyUp(index) }

// SetButtons/SetDirections push a whole nibble at once (active-low).
func (m *Machine) SetButtons(nibble byte)    { m.bus.SetButtons(nibble) }
func (m *Machine) SetDirections(nibble byte) { m.bus.SetDirections(nibble) }

// IsSRAMDirty reports whether cart RAM has changed since the last save.
func (m *Machine) IsSRAMDirty() bool { return m.bus.IsSRAMDirty() }

// SaveBattery returns a copy of cart RAM for persistence, if the cartridge
// is battery-backed.
func (m *Machine) SaveBattery() (data []byte, ok bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// LoadBattery restores previously saved cart RAM, if the cartridge is
// battery-backed.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// VRAM, OAM, and HRAM expose raw region pointers for a host renderer to
// read between frame() calls or during FlushBuffer callbacks.
func (m *Machine) VRAM() []byte { return m.bus.VRAM() }
func (m *Machine) OAM() []byte  { return m.bus.OAM() }
func (m *Machine) HRAM() []byte { return m.bus.HRAM() }

// Read satisfies ppu.MemReader so a host renderer can treat the Machine
// itself as its pixel source instead of reaching into the bus directly.
func (m *Machine) Read(addr uint16) byte { return m.bus.Read(addr) }

// snapshot is the gob-encoded save-state envelope: CPU registers, the
// bus's non-cartridge state, and cart RAM (not bank selection — see
// bus.State's doc comment for why that's an accepted limitation).
type snapshot struct {
	CPU     cpu.CPU
	Bus     bus.State
	CartRAM []byte
}

// SaveState serializes the running machine with encoding/gob, the same
// library the teacher used for its own save-state format.
func (m *Machine) SaveState() ([]byte, error) {
	snap := snapshot{CPU: *m.cpu, Bus: m.bus.Snapshot()}
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		snap.CartRAM = bb.SaveRAM()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("vm: encode save state: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadState restores a snapshot produced by SaveState onto the currently
// loaded cartridge. The cartridge's ROM/MBC identity must already match
// (LoadCartridge the same ROM first); only registers, RAM, and RAM
// contents are replaced.
func (m *Machine) LoadState(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("vm: decode save state: %w", err)
	}
	*m.cpu = snap.CPU
	m.bus.Restore(snap.Bus)
	if snap.CartRAM != nil {
		if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
			bb.LoadRAM(snap.CartRAM)
		}
	}
	return nil
}

// SetMBC forces a cart-type code for the next LoadCartridge/LoadROMFromFile
// call, for homebrew or test ROMs with an incorrect or absent header.
func (m *Machine) SetMBC(code int) { m.cfg.MBCOverride = code }

// cartTypeFromName resolves a human-readable MBC name to its cart-type
// code, for CLI flags that would rather not ask a user to memorize hex.
func cartTypeFromName(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "romonly", "rom":
		return 0x00, true
	case "mbc1":
		return 0x01, true
	case "mbc2":
		return 0x05, true
	case "mbc3":
		return 0x11, true
	case "mbc5":
		return 0x19, true
	}
	return 0, false
}

// ParseMBCOverride resolves a CLI-supplied MBC name to its override code,
// or -1 if name is empty (meaning: trust the header).
func ParseMBCOverride(name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	code, ok := cartTypeFromName(name)
	if !ok {
		return -1, fmt.Errorf("vm: unknown MBC override %q", name)
	}
	return code, nil
}
