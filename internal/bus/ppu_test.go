package bus

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/gpu"
)

func TestGPU_STAT_HBlankInterrupt(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80)   // LCD on
	b.Write(0xFF41, 1<<3)   // enable STAT HBlank interrupt
	b.Write(0xFF0F, 0)
	// The GPU makes at most one mode transition per Tick call.
	b.Tick(80)  // mode2 -> mode3
	b.Tick(172) // mode3 -> mode0 (HBlank)
	if (b.Read(0xFF0F) & (1 << 1)) == 0 {
		t.Fatalf("expected STAT IF on HBlank mode change")
	}
}

func TestGPU_LYC_InterruptAndFlag(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80) // LCD on
	b.Write(0xFF41, 1<<6) // enable LYC=LY STAT interrupt
	b.Write(0xFF45, 0x01) // LYC = 1
	b.Write(0xFF0F, 0)
	// One full line, one mode transition per Tick call: LY becomes 1.
	b.Tick(80)
	b.Tick(172)
	b.Tick(204)
	if (b.Read(0xFF0F) & (1 << 1)) == 0 {
		t.Fatalf("expected STAT IF on LYC=LY match at LY=1")
	}
	if (b.Read(0xFF41) & (1 << 2)) == 0 {
		t.Fatalf("expected STAT coincidence flag set when LY==LYC")
	}
}

func TestGPU_FullFrameReaches70224Cycles(t *testing.T) {
	b := New(make([]byte, 0x8000))
	b.Write(0xFF40, 0x80)
	// A frame is the span between two FlushBuffer events: run to the first
	// one, then count the cycles up to the next.
	started := false
	total, elapsed := 0, 0
	for {
		act := b.Tick(4)
		elapsed += 4
		if started {
			total += 4
		}
		if act.Kind == gpu.FlushBuffer {
			if started {
				break
			}
			started = true
		}
		if elapsed > 160000 {
			t.Fatalf("never reached FlushBuffer within a generous cycle budget")
		}
	}
	if total < 70000 || total > 70500 {
		t.Fatalf("frame length got %d cycles, want close to 70224", total)
	}
}
