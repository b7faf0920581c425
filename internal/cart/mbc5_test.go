package cart

import "testing"

func TestMBC5_ROMBanking(t *testing.T) {
	// Build a 2MB ROM with distinct bytes per bank at the start of each bank.
	rom := make([]byte, 2*1024*1024)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC5(rom, 0)

	// Bank0 region always reads from bank 0.
	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}

	// Switchable bank defaults to 1.
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank1 read got %02X want 01", got)
	}

	// Select bank 3 via the low-byte register.
	m.Write(0x2000, 0x03)
	if got := m.Read(0x4000); got != 0x03 {
		t.Fatalf("bank3 read got %02X want 03", got)
	}

	// Unlike MBC1/MBC3, writing 0 selects bank 0 and is not remapped to 1.
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x00 {
		t.Fatalf("bank0 should be honored, not remapped: got %02X", got)
	}
}

func TestMBC5_HighBankBit(t *testing.T) {
	// 8MB ROM, enough banks to exercise the bit-8 register.
	rom := make([]byte, 8*1024*1024)
	rom[0x100*0x4000] = 0x42

	m := NewMBC5(rom, 0)
	m.Write(0x2000, 0x00) // low 8 bits = 0
	m.Write(0x3000, 0x01) // bit 8 set -> bank 0x100

	if got := m.Read(0x4000); got != 0x42 {
		t.Fatalf("bank 0x100 read got %02X want 42", got)
	}

	// Clearing bit 8 with the low byte still 0 returns to bank 0, not 1.
	m.Write(0x3000, 0x00)
	if got := m.Read(0x4000); got != rom[0] {
		t.Fatalf("bank0 should be honored after clearing bit 8, got %02X", got)
	}
}

func TestMBC5_RAMBanking(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := NewMBC5(rom, 4*8192)

	// Enable RAM.
	m.Write(0x0000, 0x0A)

	// Select RAM bank 2.
	m.Write(0x4000, 0x02)
	m.Write(0xA000, 0x77)
	if got := m.Read(0xA000); got != 0x77 {
		t.Fatalf("RAM bank2 RW failed: got %02X", got)
	}

	// A different bank doesn't see bank 2's byte.
	m.Write(0x4000, 0x01)
	if got := m.Read(0xA000); got != 0x00 {
		t.Fatalf("RAM bank1 should be independent of bank2, got %02X", got)
	}
}

func TestMBC5_RAMDisabled(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := NewMBC5(rom, 8192)

	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}
	m.Write(0xA000, 0x55) // dropped, RAM disabled
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("write to disabled RAM should be dropped, got %02X", got)
	}
}
