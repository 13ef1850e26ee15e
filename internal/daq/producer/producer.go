// Package producer runs the acquisition loop: it owns the ring buffer's
// write cursor, calls the device collaborator into the next slot, and hands
// filled slots to the dispatcher over a bounded channel. Every wait keeps a
// short maximum receive so ACTIVE remains promptly observable.
package producer

import (
	"context"
	"time"

	"github.com/arcade-daq/waveflow/internal/daq/device"
	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
	"github.com/arcade-daq/waveflow/internal/daq/runstate"
)

const (
	slotPollInterval = time.Millisecond
	idlePollInterval = 10 * time.Millisecond
	rateWindowBlocks = 10
)

// Loop is one producer instance bound to a ring, a device and the shared
// run flags/stats.
type Loop struct {
	Ring     *ringbuf.RingBuffer
	Device   device.Device
	Flags    *runstate.Flags
	Stats    *runstate.RunStats
	RunStart time.Time
}

// Run drives the loop until the device signals end of data, the context is
// cancelled, or ACTIVE becomes false. It never returns an error for a clean
// end of data; transient waits are not failures.
func (l *Loop) Run(ctx context.Context) error {
	w := -1
	var seq int64
	windowStart := time.Now()
	var nAtWindowStart int64
	var tLifeAtWindowStart float64

	for {
		if !l.Flags.Active() {
			return nil
		}
		if !l.Flags.Running() {
			if !sleepOrDone(ctx, idlePollInterval) {
				return ctx.Err()
			}
			continue
		}

		w = (w + 1) % l.Ring.NBuffers()

		if ok, err := l.awaitSlotFree(ctx, w); !ok {
			return err
		}
		if ok, err := l.awaitQueueSpace(ctx); !ok {
			return err
		}

		block := l.Ring.Block(w)
		sample, acquired := l.Device.Acquire(block)
		if !acquired {
			l.Ring.FreeChan(w) <- struct{}{}
			return nil
		}

		triggerTime := sample.TriggerWallTime.Sub(l.RunStart).Seconds()
		seq = l.Stats.IncrementTrigger(triggerTime, sample.LiveTimeDelta)
		l.Ring.SetSlotMeta(w, triggerTime, seq)
		l.Ring.ProducerQueue() <- w

		if seq%rateWindowBlocks == 0 {
			now := time.Now()
			dt := now.Sub(windowStart).Seconds()
			if dt > 0 {
				stats := l.Stats.Get()
				dn := float64(stats.NTrig - nAtWindowStart)
				dLife := stats.TLife - tLifeAtWindowStart
				l.Stats.UpdateRates(dn/dt, dLife/dt)
				nAtWindowStart = stats.NTrig
				tLifeAtWindowStart = stats.TLife
			}
			windowStart = now
		}
	}
}

// awaitSlotFree blocks, polling at slotPollInterval, until slot w's free
// token is available, ACTIVE goes false, or the context is cancelled.
func (l *Loop) awaitSlotFree(ctx context.Context, w int) (bool, error) {
	for {
		select {
		case <-l.Ring.FreeChan(w):
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(slotPollInterval):
			if !l.Flags.Active() {
				return false, nil
			}
		}
	}
}

// awaitQueueSpace blocks until ProducerQueue has room for one more slot
// index, i.e. is not already at NBuffers items in flight.
func (l *Loop) awaitQueueSpace(ctx context.Context) (bool, error) {
	for {
		if len(l.Ring.ProducerQueue()) < cap(l.Ring.ProducerQueue()) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(slotPollInterval):
			if !l.Flags.Active() {
				return false, nil
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
