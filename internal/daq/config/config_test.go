package config

import "testing"

func TestDefaultDeviceConfig(t *testing.T) {
	c := DefaultDeviceConfig()
	if len(c.PicoChannels) != 2 {
		t.Errorf("PicoChannels = %v, want 2 entries", c.PicoChannels)
	}
	if c.TrgChan != "A" {
		t.Errorf("TrgChan = %q, want %q", c.TrgChan, "A")
	}
	if !c.TrgActive {
		t.Error("DefaultDeviceConfig() must start with TrgActive true")
	}
}

func TestDefaultBufferManagerConfig(t *testing.T) {
	c := DefaultBufferManagerConfig()
	if c.NBuffers != 16 {
		t.Errorf("NBuffers = %d, want 16", c.NBuffers)
	}
	if c.LogTime != 60 {
		t.Errorf("LogTime = %d, want 60", c.LogTime)
	}
}

func TestDefaultPulseFilterConfig(t *testing.T) {
	c := DefaultPulseFilterConfig()
	if len(c.PulseShape) != 1 {
		t.Fatalf("PulseShape = %v, want exactly one entry", c.PulseShape)
	}
	if c.PulseShape[0].Mode != "unipolar" {
		t.Errorf("PulseShape[0].Mode = %q, want %q", c.PulseShape[0].Mode, "unipolar")
	}
	if c.IdTprec != 3 {
		t.Errorf("IdTprec = %d, want 3", c.IdTprec)
	}
}
