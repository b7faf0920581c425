// Package hostapi defines the out-edges the core calls into a host
// environment with: register snapshots after every step, tile/map copy
// requests driven by dirty-region tracking, an end-of-frame draw signal,
// and the audio shadow-register callbacks. It is a small vtable of
// function values supplied at construction, not a set of linked externs,
// so the core stays constructible and testable in isolation — every
// internal package's tests use Nop, never a real host.
package hostapi

// Registers is the snapshot reported to UpdateRegisters after each step.
type Registers struct {
	A, B, C, D, E, H, L, F byte
	SP, PC                 uint16
}

// Callbacks is the full set of host out-edges the core may invoke. Every
// method has a default no-op behavior via Nop, so implementers only need to
// override what they care about by embedding Nop and shadowing methods.
type Callbacks interface {
	UpdateRegisters(r Registers)
	CopyTileData()
	CopyMap0Data()
	CopyMap1Data()
	DrawGL()

	SetChannel1Freq(hz float64)
	SetChannel1Gain(v byte)
	SetChannel2Freq(hz float64)
	SetChannel2Gain(v byte)
	SetChannel4Gain(v byte)
	SetMasterGain(left, right byte)
	AudioEnabled(on bool)
}

// Nop is a zero-cost Callbacks implementation used by every package's unit
// tests and by hosts that don't care about a particular edge.
type Nop struct{}

func (Nop) UpdateRegisters(Registers)      {}
func (Nop) CopyTileData()                  {}
func (Nop) CopyMap0Data()                  {}
func (Nop) CopyMap1Data()                  {}
func (Nop) DrawGL()                        {}
func (Nop) SetChannel1Freq(float64)        {}
func (Nop) SetChannel1Gain(byte)           {}
func (Nop) SetChannel2Freq(float64)        {}
func (Nop) SetChannel2Gain(byte)           {}
func (Nop) SetChannel4Gain(byte)           {}
func (Nop) SetMasterGain(byte, byte)       {}
func (Nop) AudioEnabled(bool)              {}

var _ Callbacks = Nop{}
