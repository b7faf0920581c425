// Package audio maintains the DMG sound registers as shadow state and
// invokes host callbacks at the cadence real hardware would update a tone
// generator, without performing any waveform synthesis itself — actual DSP
// output is a host concern. The per-channel decay model (length at 256 Hz,
// envelope at 64 Hz, sweep at 128 Hz for channel 1) is carried over from the
// reference VM's SquareChannel/NoiseChannel design.
package audio

import "github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/hostapi"

const (
	cyclesPerLength   = 4194304 / 256
	cyclesPerSweep    = 4194304 / 128
	cyclesPerEnvelope = 4194304 / 64
)

// square models channels 1 and 2 (channel 1 additionally has frequency sweep).
type square struct {
	num int // 1 or 2, selects which host callback to invoke

	freq    uint16
	volume  byte
	envUp   bool
	envStep byte
	envAcc  uint32

	lenCounter int
	lenEnabled bool
	lenAcc     uint32

	hasSweep  bool
	sweepStep byte
	sweepDown bool
	sweepAcc  uint32

	enabled bool
}

func hzFromFreq(freq uint16) float64 {
	if freq >= 2048 {
		return 0
	}
	return 131072.0 / float64(2048-freq)
}

func (s *square) trigger(cb hostapi.Callbacks) {
	s.enabled = true
	s.envAcc, s.lenAcc, s.sweepAcc = 0, 0, 0
	s.emitFreq(cb)
	s.emitGain(cb)
}

func (s *square) emitFreq(cb hostapi.Callbacks) {
	hz := hzFromFreq(s.freq)
	if s.num == 1 {
		cb.SetChannel1Freq(hz)
	} else {
		cb.SetChannel2Freq(hz)
	}
}

func (s *square) emitGain(cb hostapi.Callbacks) {
	v := s.volume
	if !s.enabled {
		v = 0
	}
	if s.num == 1 {
		cb.SetChannel1Gain(v)
	} else {
		cb.SetChannel2Gain(v)
	}
}

func (s *square) tick(cycles int, cb hostapi.Callbacks) {
	if !s.enabled {
		return
	}
	if s.lenEnabled {
		s.lenAcc += uint32(cycles)
		for s.lenAcc >= cyclesPerLength {
			s.lenAcc -= cyclesPerLength
			if s.lenCounter > 0 {
				s.lenCounter--
				if s.lenCounter == 0 {
					s.enabled = false
					s.emitGain(cb)
				}
			}
		}
	}
	if s.envStep > 0 {
		s.envAcc += uint32(cycles)
		for s.envAcc >= cyclesPerEnvelope {
			s.envAcc -= cyclesPerEnvelope
			if s.envUp && s.volume < 15 {
				s.volume++
				s.emitGain(cb)
			} else if !s.envUp && s.volume > 0 {
				s.volume--
				s.emitGain(cb)
			}
		}
	}
	if s.hasSweep && s.sweepStep > 0 {
		s.sweepAcc += uint32(cycles)
		for s.sweepAcc >= cyclesPerSweep {
			s.sweepAcc -= cyclesPerSweep
			delta := s.freq >> s.sweepStep
			if s.sweepDown {
				if delta <= s.freq {
					s.freq -= delta
				}
			} else {
				if s.freq+delta < 2048 {
					s.freq += delta
				} else {
					s.enabled = false
					s.emitGain(cb)
				}
			}
			s.emitFreq(cb)
		}
	}
}

// noise models channel 4 (length + envelope, no frequency/sweep callback).
type noise struct {
	volume  byte
	envUp   bool
	envStep byte
	envAcc  uint32

	lenCounter int
	lenEnabled bool
	lenAcc     uint32

	enabled bool
}

func (n *noise) trigger(cb hostapi.Callbacks) {
	n.enabled = true
	n.envAcc, n.lenAcc = 0, 0
	n.emitGain(cb)
}

func (n *noise) emitGain(cb hostapi.Callbacks) {
	v := n.volume
	if !n.enabled {
		v = 0
	}
	cb.SetChannel4Gain(v)
}

func (n *noise) tick(cycles int, cb hostapi.Callbacks) {
	if !n.enabled {
		return
	}
	if n.lenEnabled {
		n.lenAcc += uint32(cycles)
		for n.lenAcc >= cyclesPerLength {
			n.lenAcc -= cyclesPerLength
			if n.lenCounter > 0 {
				n.lenCounter--
				if n.lenCounter == 0 {
					n.enabled = false
					n.emitGain(cb)
				}
			}
		}
	}
	if n.envStep > 0 {
		n.envAcc += uint32(cycles)
		for n.envAcc >= cyclesPerEnvelope {
			n.envAcc -= cyclesPerEnvelope
			if n.envUp && n.volume < 15 {
				n.volume++
				n.emitGain(cb)
			} else if !n.envUp && n.volume > 0 {
				n.volume--
				n.emitGain(cb)
			}
		}
	}
}

// Shadow owns the register-level state of the four DMG sound channels plus
// the master enable/volume registers (NR50-NR52). It is driven by bus
// writes to FF10-FF26 and by Tick, which it uses to clock envelope/sweep/
// length decay between triggers.
type Shadow struct {
	ch1, ch2 square
	ch4      noise

	masterEnabled bool

	cb hostapi.Callbacks
}

// New returns a Shadow that reports through cb. cb must not be nil; pass
// hostapi.Nop{} when no host is attached.
func New(cb hostapi.Callbacks) *Shadow {
	return &Shadow{
		ch1: square{num: 1, hasSweep: true},
		ch2: square{num: 2},
		cb:  cb,
	}
}

// Tick clocks channel decay by the given number of CPU cycles.
func (s *Shadow) Tick(cycles int) {
	if !s.masterEnabled {
		return
	}
	s.ch1.tick(cycles, s.cb)
	s.ch2.tick(cycles, s.cb)
	s.ch4.tick(cycles, s.cb)
}

// TriggerChannel1 restarts channel 1 from the shadow values of FF10-FF14.
func (s *Shadow) TriggerChannel1(nr10, nr11, nr12, nr13, nr14 byte) {
	s.ch1.sweepStep = nr10 & 0x07
	s.ch1.sweepDown = nr10&0x08 != 0
	s.ch1.lenCounter = 64 - int(nr11&0x3F)
	s.ch1.volume = nr12 >> 4
	s.ch1.envUp = nr12&0x08 != 0
	s.ch1.envStep = nr12 & 0x07
	s.ch1.freq = uint16(nr14&0x07)<<8 | uint16(nr13)
	s.ch1.lenEnabled = nr14&0x40 != 0
	s.ch1.trigger(s.cb)
}

// TriggerChannel2 restarts channel 2 from the shadow values of FF16-FF19.
func (s *Shadow) TriggerChannel2(nr21, nr22, nr23, nr24 byte) {
	s.ch2.lenCounter = 64 - int(nr21&0x3F)
	s.ch2.volume = nr22 >> 4
	s.ch2.envUp = nr22&0x08 != 0
	s.ch2.envStep = nr22 & 0x07
	s.ch2.freq = uint16(nr24&0x07)<<8 | uint16(nr23)
	s.ch2.lenEnabled = nr24&0x40 != 0
	s.ch2.trigger(s.cb)
}

// TriggerChannel4 restarts channel 4 from the shadow values of FF20-FF23.
func (s *Shadow) TriggerChannel4(nr41, nr42, nr43 byte) {
	s.ch4.lenCounter = 64 - int(nr41&0x3F)
	s.ch4.volume = nr42 >> 4
	s.ch4.envUp = nr42&0x08 != 0
	s.ch4.envStep = nr42 & 0x07
	_ = nr43 // LFSR width/divisor feeds sample generation, a host concern here.
	s.ch4.trigger(s.cb)
}

// SetMasterVolume handles a write to FF24 (NR50).
func (s *Shadow) SetMasterVolume(v byte) {
	s.cb.SetMasterGain((v>>4)&0x07, v&0x07)
}

// SetMasterEnable handles a write to FF26 bit 7 (NR52).
func (s *Shadow) SetMasterEnable(on bool) {
	s.masterEnabled = on
	s.cb.AudioEnabled(on)
	if !on {
		s.ch1.enabled, s.ch2.enabled, s.ch4.enabled = false, false, false
	}
}
