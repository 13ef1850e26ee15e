// Package dispatcher pops filled slots from the ring buffer's producer
// queue, serves every registered in-process client according to its
// delivery mode, offers data to IPC queues when the buffer is not under
// pressure, waits for the obligatory set to acknowledge, then frees the
// slot by returning its token on the ring's free channel.
package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/arcade-daq/waveflow/internal/daq/registry"
	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
	"github.com/arcade-daq/waveflow/internal/daq/runstate"
	"github.com/arcade-daq/waveflow/pkg/parallel"
	"github.com/arcade-daq/waveflow/pkg/trace"
)

const (
	queuePollInterval = 500 * time.Microsecond
	obligPollInterval = 500 * time.Microsecond
)

// Loop is one dispatcher instance bound to a ring and its client registry.
type Loop struct {
	Ring     *ringbuf.RingBuffer
	Registry *registry.Registry
	Flags    *runstate.Flags

	// DroppedIPC counts IPC offers skipped because the queue was full or
	// the producer queue was more than half full.
	DroppedIPC atomic.Int64
}

// Run drives the dispatcher until the context is cancelled or ACTIVE
// becomes false.
func (l *Loop) Run(ctx context.Context) error {
	for {
		w, ok, err := l.awaitNextSlot(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		seq := l.Ring.Sequence(w)
		evTime := l.Ring.TriggerTime(w)
		block := l.Ring.Block(w)

		obligatory := l.deliverInProcess(w, seq, evTime, block)
		l.offerIPC(ctx, seq, evTime, block)

		if err := l.awaitObligatoryAck(ctx, obligatory); err != nil {
			return err
		}

		l.Ring.FreeChan(w) <- struct{}{}
	}
}

// awaitNextSlot blocks, polling at queuePollInterval, until a slot index is
// available on the producer queue, ACTIVE goes false, or ctx is done.
func (l *Loop) awaitNextSlot(ctx context.Context) (int, bool, error) {
	for {
		select {
		case w := <-l.Ring.ProducerQueue():
			return w, true, nil
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-time.After(queuePollInterval):
			if !l.Flags.Active() {
				return 0, false, nil
			}
		}
	}
}

// deliverInProcess serves every registered client with a pending request
// and returns the clients now obligated to
// acknowledge before the slot may be freed.
func (l *Loop) deliverInProcess(w int, seq int64, evTime float64, block *ringbuf.SampleBlock) []*registry.Client {
	var obligatory []*registry.Client
	for _, c := range l.Registry.InProcessClients() {
		select {
		case <-c.Requests:
		default:
			continue
		}

		resp := registry.Response{TriggerTime: evTime, Sequence: seq}
		switch c.Mode {
		case ringbuf.PointerOblig:
			resp.Block = block
			resp.SlotIndex = w
		case ringbuf.CopyRand, ringbuf.CopyOblig:
			resp.Block = block.Clone()
		default:
			panic("dispatcher: unknown client mode")
		}
		c.Replies <- resp

		if c.Mode.IsObligatory() {
			obligatory = append(obligatory, c)
		}
	}
	return obligatory
}

// offerIPC pushes the block to every registered IPC queue concurrently, but
// only while the producer queue is at most half full; otherwise every IPC
// queue's offer is skipped and counted in DroppedIPC. Back-pressure on one
// out-of-process consumer (e.g. a stalled Redis write) does not delay the
// other offers, but offerIPC returns only after all offers have returned,
// so the obligatory-ack wait starts after the slowest one.
func (l *Loop) offerIPC(ctx context.Context, seq int64, evTime float64, block *ringbuf.SampleBlock) {
	if !l.Ring.HalfFullOrLess() {
		l.Registry.ForEachIPC(func(string, registry.IPCQueue) { l.DroppedIPC.Add(1) })
		return
	}
	ctx, span := trace.StartSpan(ctx, "dispatcher.ipc_fanout")
	defer trace.EndSpan(span, nil)

	group := parallel.GoGroup(ctx)
	l.Registry.ForEachIPC(func(key string, queue registry.IPCQueue) {
		resp := registry.Response{Block: block.Clone(), TriggerTime: evTime, Sequence: seq}
		group.Go(func(context.Context) error {
			if !queue.Offer(resp) {
				l.DroppedIPC.Add(1)
			}
			return nil
		})
	})
	_ = group.Wait()
}

// awaitObligatoryAck waits until every obligatory client has posted its
// next request. A client only asks for its next event once it has finished
// with the current one, so a pending request is the acknowledgement the
// dispatcher needs before it may free the slot. It peeks rather than
// drains Requests: the client's own delivery for the following slot is
// served by the next call to deliverInProcess.
func (l *Loop) awaitObligatoryAck(ctx context.Context, obligatory []*registry.Client) error {
	pending := make(map[*registry.Client]bool, len(obligatory))
	for _, c := range obligatory {
		pending[c] = true
	}

	for len(pending) > 0 {
		for c := range pending {
			if len(c.Requests) > 0 {
				delete(pending, c)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(obligPollInterval):
			if !l.Flags.Active() {
				return nil
			}
		}
	}
	return nil
}
