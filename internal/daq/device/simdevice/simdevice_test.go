package simdevice

import (
	"testing"

	"github.com/arcade-daq/waveflow/internal/daq/device"
	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
)

func testConfig() device.Config {
	return device.Config{
		NChannels:    1,
		NSamples:     64,
		TSampling:    1e-6,
		TrgChan:      "ch0",
		PicoChannels: []string{"ch0"},
		Pretrig:      0.25,
		TrgThr:       0.1,
	}
}

func TestAcquireInjectsPulseOnTriggerChannel(t *testing.T) {
	cfg := testConfig()
	d := New(Options{
		Config: cfg,
		Shape:  PulseShape{TauR: 2e-6, TauOn: 4e-6, TauF: 6e-6, Height: 1},
		Seed:   7,
	})
	defer d.Close()

	block := ringbuf.NewSampleBlock(cfg.NChannels, cfg.NSamples)
	sample, ok := d.Acquire(block)
	if !ok {
		t.Fatal("Acquire() reported ok=false on first call")
	}
	if sample.LiveTimeDelta <= 0 {
		t.Errorf("LiveTimeDelta = %v, want > 0", sample.LiveTimeDelta)
	}

	idx0 := cfg.IdT0()
	var peak float32
	for _, v := range block.Data[0][idx0:] {
		if v > peak {
			peak = v
		}
	}
	if peak < 0.5 {
		t.Errorf("expected a pulse peak near height 1 around sample %d, got max %v", idx0, peak)
	}
}

func TestAcquireStopsAtMaxEvents(t *testing.T) {
	cfg := testConfig()
	d := New(Options{Config: cfg, Shape: PulseShape{TauR: 1e-6, TauOn: 1e-6, TauF: 1e-6, Height: 1}, MaxEvents: 2})
	defer d.Close()

	block := ringbuf.NewSampleBlock(cfg.NChannels, cfg.NSamples)
	for i := 0; i < 2; i++ {
		if _, ok := d.Acquire(block); !ok {
			t.Fatalf("Acquire() call %d reported ok=false before MaxEvents reached", i+1)
		}
	}
	if _, ok := d.Acquire(block); ok {
		t.Error("Acquire() should report ok=false once MaxEvents is reached")
	}
}

func TestAcquireDeterministicWithSameSeed(t *testing.T) {
	cfg := testConfig()
	cfg.NChannels = 1
	shape := PulseShape{TauR: 1e-6, TauOn: 1e-6, TauF: 1e-6, Height: 0}

	d1 := New(Options{Config: cfg, Shape: shape, NoiseStdDev: 1, Seed: 42})
	d2 := New(Options{Config: cfg, Shape: shape, NoiseStdDev: 1, Seed: 42})
	defer d1.Close()
	defer d2.Close()

	b1 := ringbuf.NewSampleBlock(cfg.NChannels, cfg.NSamples)
	b2 := ringbuf.NewSampleBlock(cfg.NChannels, cfg.NSamples)
	d1.Acquire(b1)
	d2.Acquire(b2)

	for s := range b1.Data[0] {
		if b1.Data[0][s] != b2.Data[0][s] {
			t.Fatalf("same seed produced different noise at sample %d: %v vs %v", s, b1.Data[0][s], b2.Data[0][s])
		}
	}
}
