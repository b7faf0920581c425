package cart

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000–0x7FFF) and external RAM (0xA000–0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000–0x7FFF) and external RAM writes (0xA000–0xBFFF).
	Write(addr uint16, value byte)
}

// BatteryBacked is an optional interface for cartridges with external RAM to be
// persisted across sessions. Implementations return a copy of RAM bytes (nil
// if no RAM) and accept data to load back in.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// Capabilities records the header-declared extras (the cart-type table) a
// cartridge carries beyond plain banking. Timer and Rumble are tracked for
// completeness even though this core does not model an RTC or a motor.
type Capabilities struct {
	Battery bool
	Timer   bool
	Rumble  bool
}

// NewCartridge picks an implementation based on the ROM header.
func NewCartridge(rom []byte) Cartridge {
	h, err := ParseHeader(rom)
	if err != nil {
		return NewROMOnly(rom)
	}
	return NewCartridgeWithType(rom, h.CartType, h.RAMSizeBytes)
}

// NewCartridgeWithType picks an implementation for an explicit cart-type
// code instead of reading it from the header, for hosts overriding a
// missing or incorrect header (homebrew, test ROMs).
func NewCartridgeWithType(rom []byte, cartType byte, ramSizeBytes int) Cartridge {
	switch cartType {
	case 0x00, 0x08, 0x09:
		return NewROMOnly(rom)
	case 0x01, 0x02, 0x03: // MBC1 variants (RAM, RAM+BAT are transparent here)
		return NewMBC1(rom, ramSizeBytes)
	case 0x05, 0x06: // MBC2 variants: built-in 512x4-bit RAM, ignores header RAM size
		return NewMBC2(rom)
	case 0x0F, 0x10, 0x11, 0x12, 0x13: // MBC3 variants (RTC not implemented here)
		return NewMBC3(rom, ramSizeBytes)
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E: // MBC5 variants
		return NewMBC5(rom, ramSizeBytes)
	default:
		// Fallback to ROM-only for unknown types to allow some homebrew/tests to run
		return NewROMOnly(rom)
	}
}

// CapabilitiesFor reports the battery/timer/rumble flags for a cart-type code.
func CapabilitiesFor(cartType byte) Capabilities {
	switch cartType {
	case 0x03, 0x06, 0x09, 0x13, 0x1B:
		return Capabilities{Battery: true}
	case 0x1E:
		return Capabilities{Battery: true, Rumble: true}
	case 0x0F:
		return Capabilities{Battery: true, Timer: true}
	case 0x10:
		return Capabilities{Battery: true, Timer: true}
	case 0x1C, 0x1D:
		return Capabilities{Rumble: true}
	default:
		return Capabilities{}
	}
}
