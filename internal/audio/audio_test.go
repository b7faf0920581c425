package audio

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/hostapi"
)

type recorder struct {
	hostapi.Nop
	ch1Gains []byte
	ch1Freqs []float64
}

func (r *recorder) SetChannel1Gain(v byte)   { r.ch1Gains = append(r.ch1Gains, v) }
func (r *recorder) SetChannel1Freq(hz float64) { r.ch1Freqs = append(r.ch1Freqs, hz) }

func TestShadow_TriggerChannel1EmitsFreqAndGain(t *testing.T) {
	rec := &recorder{}
	s := New(rec)
	s.SetMasterEnable(true)
	// NR12 volume=0xF envelope direction down, step 0; NR13/14 frequency 0x300.
	s.TriggerChannel1(0x00, 0x00, 0xF0, 0x00, 0x03)
	if len(rec.ch1Gains) == 0 || rec.ch1Gains[len(rec.ch1Gains)-1] != 0x0F {
		t.Fatalf("expected gain 0x0F emitted, got %v", rec.ch1Gains)
	}
	if len(rec.ch1Freqs) == 0 {
		t.Fatalf("expected a frequency emission on trigger")
	}
}

func TestShadow_LengthExpiryMutesChannel(t *testing.T) {
	rec := &recorder{}
	s := New(rec)
	s.SetMasterEnable(true)
	// length = 64 - 63 = 1 step; length enabled.
	s.TriggerChannel1(0x00, 0x3F, 0xF0, 0x00, 0x40)
	s.Tick(cyclesPerLength + 1)
	if rec.ch1Gains[len(rec.ch1Gains)-1] != 0 {
		t.Fatalf("expected channel muted after length expiry, last gain %v", rec.ch1Gains)
	}
}

func TestShadow_MasterDisableSilencesChannels(t *testing.T) {
	rec := &recorder{}
	s := New(rec)
	s.SetMasterEnable(true)
	s.TriggerChannel1(0x00, 0x00, 0xF0, 0x00, 0x03)
	s.SetMasterEnable(false)
	if s.ch1.enabled {
		t.Fatalf("channel 1 should be disabled when master audio is off")
	}
}
