// Package simdevice is a deterministic Device double used by tests and by
// the `waveflow sim` CLI subcommand. It injects trapezoidal pulses into
// gaussian noise, so the pulse filter has something real to validate
// against without hardware.
package simdevice

import (
	"math/rand"
	"time"

	"github.com/arcade-daq/waveflow/internal/daq/device"
	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
)

// PulseShape holds the trapezoidal shape parameters of the injected
// pulses, matching the pulse filter's template parameters.
type PulseShape struct {
	TauR, TauOn, TauF float64 // seconds
	Height            float64 // volts, signed
}

// Options configures the simulator.
type Options struct {
	Config      device.Config
	Shape       PulseShape
	NoiseStdDev float64 // volts, gaussian noise amplitude
	CoincProb   float64 // probability a non-trigger channel also gets a pulse
	MaxEvents   int     // 0 = unlimited
	Pacing      time.Duration
	Seed        int64
}

// Device generates synthetic waveform blocks.
type Device struct {
	opts Options
	rng  *rand.Rand
	n    int
}

// New builds a simulator with the given options.
func New(opts Options) *Device {
	return &Device{
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Config implements device.Device.
func (d *Device) Config() *device.Config { return &d.opts.Config }

// Close implements device.Device; nothing to release.
func (d *Device) Close() error { return nil }

// Acquire fills block with a trigger-channel pulse (and, with CoincProb,
// matching pulses on the other channels) plus gaussian noise, and reports the
// wall-clock trigger time and a live time of TSampling x NSamples.
func (d *Device) Acquire(block *ringbuf.SampleBlock) (device.Sample, bool) {
	if d.opts.MaxEvents > 0 && d.n >= d.opts.MaxEvents {
		return device.Sample{}, false
	}
	if d.opts.Pacing > 0 {
		time.Sleep(d.opts.Pacing)
	}

	cfg := &d.opts.Config
	dT := cfg.TSampling
	idT0 := cfg.IdT0()
	trgIdx := cfg.TrgChanIndex()

	for c := 0; c < block.NChannels; c++ {
		row := block.Data[c]
		for s := range row {
			row[s] = float32(d.rng.NormFloat64() * d.opts.NoiseStdDev)
		}
		if c == trgIdx || d.rng.Float64() < d.opts.CoincProb {
			addPulse(row, idT0, dT, d.opts.Shape)
		}
	}

	d.n++
	live := dT * float64(block.NSamples)
	return device.Sample{
		TriggerWallTime: time.Now(),
		LiveTimeDelta:   live,
	}, true
}

// addPulse adds a single trapezoidal pulse starting at sample index idx0.
func addPulse(row []float32, idx0 int, dT float64, shape PulseShape) {
	tr, ton, tf := shape.TauR, shape.TauOn, shape.TauF
	total := tr + ton + tf
	n := int(total/dT+0.5) + 1
	for i := 0; i < n; i++ {
		idx := idx0 + i
		if idx < 0 || idx >= len(row) {
			continue
		}
		t := float64(i) * dT
		row[idx] += float32(shape.Height * trapezoid(t, tr, ton, tf))
	}
}

// trapezoid evaluates the unipolar trapezoidal pulse shape, normalized to
// height one, at time t measured from the pulse's rise start.
func trapezoid(t, tr, ton, tf float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < tr:
		return t / tr
	case t < tr+ton:
		return 1
	case t < tr+ton+tf:
		return 1 - (t-tr-ton)/tf
	default:
		return 0
	}
}
