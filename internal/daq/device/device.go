// Package device defines the Device collaborator contract that
// the Buffer Manager requires, kept deliberately small: raw hardware I/O,
// device initialization and driver emulation stay out of scope and are
// satisfied by the simdevice test double.
package device

import (
	"time"

	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
)

// TriggerType enumerates the digitizer's trigger polarity/edge options;
// passthrough only, the core never interprets it.
type TriggerType int

const (
	TriggerRising TriggerType = iota
	TriggerFalling
)

// Config exposes the device's read-only scalars and lists the Buffer Manager
// needs, plus opaque per-channel display metadata (color/offset/range) kept
// only as passthrough for external plotting tools.
type Config struct {
	NChannels int
	NSamples  int
	TSampling float64 // seconds

	TrgChan      string
	PicoChannels []string // channel names, index-aligned with TrgChan lookup
	Pretrig      float64  // fraction of NSamples before the trigger sample

	TrgActive bool
	TrgThr    float64
	TrgTyp    TriggerType

	CRanges     []float64 // per-channel voltage range
	ChanOffsets []float64 // per-channel display offset
	ChanColors  []string  // per-channel display color
}

// TrgChanIndex returns the index of TrgChan within PicoChannels, or -1 if
// the trigger channel is not one of the acquired channels.
func (c *Config) TrgChanIndex() int {
	for i, name := range c.PicoChannels {
		if name == c.TrgChan {
			return i
		}
	}
	return -1
}

// IdT0 returns the nominal trigger-sample index, floor(NSamples*Pretrig).
func (c *Config) IdT0() int {
	return int(float64(c.NSamples) * c.Pretrig)
}

// Sample is what acquire() reports for one block: the wall-clock time the
// trigger fired, and the live-time consumed acquiring it.
type Sample struct {
	TriggerWallTime time.Time
	LiveTimeDelta   float64 // seconds
}

// Device is the acquisition collaborator. Acquire fills block synchronously
// and returns the trigger/live-time pair, or ok=false to signal end of
// data.
type Device interface {
	Config() *Config
	Acquire(block *ringbuf.SampleBlock) (Sample, bool)
	Close() error
}
