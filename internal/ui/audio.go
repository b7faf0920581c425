package ui

import (
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/hostapi"
)

const sampleRate = 48000

// toneChannel is one square-wave (or noise, for channel 4) voice driven
// entirely by the frequency/gain hostapi callbacks the core's audio shadow
// registers emit; it never looks at FF10-FF26 directly.
type toneChannel struct {
	freq  float64
	gain  float64 // 0..1
	phase float64
	noise bool
	rng   uint32
}

func (c *toneChannel) sample() float32 {
	if c.gain <= 0 {
		return 0
	}
	if c.noise {
		c.rng = c.rng*1664525 + 1013904223
		bit := float32((c.rng>>30)&1)*2 - 1
		return bit * float32(c.gain) * 0.2
	}
	if c.freq <= 0 {
		return 0
	}
	c.phase += c.freq / sampleRate
	_, frac := math.Modf(c.phase)
	c.phase = frac
	v := float32(-1)
	if frac < 0.5 {
		v = 1
	}
	return v * float32(c.gain) * 0.2
}

// ToneSink is an oto-backed PCM player implementing hostapi.Callbacks: it
// proves the dependency-injected vtable the core emits events through is
// consumable by a real audio backend without the core itself ever
// performing waveform synthesis (that stays a host concern, per the core
// spec's out-of-scope list). hostapi.Nop is embedded so only the audio
// edges need overriding; register/video callbacks fall through as no-ops.
type ToneSink struct {
	hostapi.Nop

	mu                 sync.Mutex
	ch1, ch2, ch4      toneChannel
	masterL, masterR   float64
	enabled            bool
	ctx                *oto.Context
	player             *oto.Player
}

// NewToneSink creates an oto context at 48kHz mono and starts playback
// immediately; samples are silence until the core triggers a channel.
func NewToneSink() (*ToneSink, error) {
	s := &ToneSink{masterL: 1, masterR: 1}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	s.ctx = ctx
	s.ch4.noise = true
	s.ch4.rng = 0xACE1
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Close stops playback; safe to call on a nil-backend (headless) sink.
func (s *ToneSink) Close() {
	if s == nil || s.player == nil {
		return
	}
	s.player.Close()
}

// Read implements io.Reader for oto.Player, synthesizing float32LE mono
// samples on demand from the current channel frequency/gain state.
func (s *ToneSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(p) / 4
	for i := 0; i < n; i++ {
		var v float32
		if s.enabled {
			v = s.ch1.sample() + s.ch2.sample() + s.ch4.sample()
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
		}
		bits := math.Float32bits(v)
		p[i*4+0] = byte(bits)
		p[i*4+1] = byte(bits >> 8)
		p[i*4+2] = byte(bits >> 16)
		p[i*4+3] = byte(bits >> 24)
	}
	return n * 4, nil
}

func (s *ToneSink) SetChannel1Freq(hz float64) {
	s.mu.Lock()
	s.ch1.freq = hz
	s.mu.Unlock()
}
func (s *ToneSink) SetChannel1Gain(v byte) {
	s.mu.Lock()
	s.ch1.gain = float64(v) / 15
	s.mu.Unlock()
}
func (s *ToneSink) SetChannel2Freq(hz float64) {
	s.mu.Lock()
	s.ch2.freq = hz
	s.mu.Unlock()
}
func (s *ToneSink) SetChannel2Gain(v byte) {
	s.mu.Lock()
	s.ch2.gain = float64(v) / 15
	s.mu.Unlock()
}
func (s *ToneSink) SetChannel4Gain(v byte) {
	s.mu.Lock()
	s.ch4.gain = float64(v) / 15
	s.mu.Unlock()
}
func (s *ToneSink) SetMasterGain(left, right byte) {
	s.mu.Lock()
	s.masterL = float64(left) / 7
	s.masterR = float64(right) / 7
	s.mu.Unlock()
}
func (s *ToneSink) AudioEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
}

var _ hostapi.Callbacks = (*ToneSink)(nil)
