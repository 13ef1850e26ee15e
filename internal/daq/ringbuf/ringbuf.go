// Package ringbuf is the Buffer Manager's fixed-capacity store of sample
// blocks plus the parallel trigger-timestamp/sequence arrays. A slot is
// writable again only after the dispatcher has observed every obligatory
// consumer finish with it, not merely after the slowest consumer has
// advanced its sequence.
package ringbuf

import "fmt"

// ClientMode selects how the dispatcher delivers an event to a registered
// in-process client.
type ClientMode int

const (
	// PointerOblig delivers a non-owning view of the slot; the dispatcher
	// waits for the client's next request before freeing the slot.
	PointerOblig ClientMode = iota
	// CopyRand delivers an owned copy; the dispatcher never waits for it.
	CopyRand
	// CopyOblig delivers an owned copy and waits like PointerOblig.
	CopyOblig
)

func (m ClientMode) String() string {
	switch m {
	case PointerOblig:
		return "POINTER_OBLIG"
	case CopyRand:
		return "COPY_RAND"
	case CopyOblig:
		return "COPY_OBLIG"
	default:
		return fmt.Sprintf("ClientMode(%d)", int(m))
	}
}

// IsObligatory reports whether the dispatcher must wait for this client
// before releasing the slot.
func (m ClientMode) IsObligatory() bool {
	return m == PointerOblig || m == CopyOblig
}

// SampleBlock is a rectangular array of float32 voltages, NChannels rows of
// NSamples each. Allocated once and overwritten in place by the producer.
type SampleBlock struct {
	NChannels int
	NSamples  int
	Data      [][]float32
}

// NewSampleBlock allocates a zeroed block of the given shape.
func NewSampleBlock(nChannels, nSamples int) *SampleBlock {
	data := make([][]float32, nChannels)
	for i := range data {
		data[i] = make([]float32, nSamples)
	}
	return &SampleBlock{NChannels: nChannels, NSamples: nSamples, Data: data}
}

// Clone returns an owned, independent copy for COPY_RAND/COPY_OBLIG
// deliveries; it never aliases the producer's buffer.
func (b *SampleBlock) Clone() *SampleBlock {
	out := NewSampleBlock(b.NChannels, b.NSamples)
	for c := range b.Data {
		copy(out.Data[c], b.Data[c])
	}
	return out
}

// slot is one element of the ring, addressed by write/read index.
type slot struct {
	block          *SampleBlock
	triggerTime    float64
	sequenceNumber int64
}

// RingBuffer is the Buffer Manager's sole storage for in-flight data.
type RingBuffer struct {
	nBuffers int
	slots    []slot

	// free[i] holds a token when slot i may be overwritten by the producer.
	// All slots start free. The dispatcher returns the token after every
	// obligatory consumer has acknowledged the slot.
	free []chan struct{}

	// producerQueue carries filled slot indices from producer to dispatcher.
	// len(producerQueue) is always the count of slots full and unserved.
	producerQueue chan int
}

// New allocates a ring of nBuffers slots, each shaped [nChannels x nSamples].
func New(nBuffers, nChannels, nSamples int) *RingBuffer {
	rb := &RingBuffer{
		nBuffers:      nBuffers,
		slots:         make([]slot, nBuffers),
		free:          make([]chan struct{}, nBuffers),
		producerQueue: make(chan int, nBuffers),
	}
	for i := range rb.slots {
		rb.slots[i].block = NewSampleBlock(nChannels, nSamples)
		rb.free[i] = make(chan struct{}, 1)
		rb.free[i] <- struct{}{}
	}
	return rb
}

// NBuffers returns the ring's capacity.
func (rb *RingBuffer) NBuffers() int { return rb.nBuffers }

// Block returns the slot's sample block for in-place writing or reading.
// Callers must only write while holding the slot's free token (i.e. between
// taking it from FreeChan and sending the index on ProducerQueue) or only
// read while it is checked out by the dispatcher.
func (rb *RingBuffer) Block(i int) *SampleBlock { return rb.slots[i].block }

// Sequence returns the slot's sequence number as last published.
func (rb *RingBuffer) Sequence(i int) int64 { return rb.slots[i].sequenceNumber }

// TriggerTime returns the slot's trigger time as last published.
func (rb *RingBuffer) TriggerTime(i int) float64 { return rb.slots[i].triggerTime }

// FreeChan exposes the free-token channel for slot i, for the producer's
// "wait for consumer done with this buffer" poll and the dispatcher's final
// release.
func (rb *RingBuffer) FreeChan(i int) chan struct{} { return rb.free[i] }

// SetSlotMeta stamps a slot's trigger time and sequence number after the
// producer has written its data, before handing it to the dispatcher via
// ProducerQueue.
func (rb *RingBuffer) SetSlotMeta(i int, triggerTime float64, sequenceNumber int64) {
	rb.slots[i].triggerTime = triggerTime
	rb.slots[i].sequenceNumber = sequenceNumber
}

// ProducerQueue exposes the raw channel for select-based polling by the
// producer (send side) and dispatcher (receive side).
func (rb *RingBuffer) ProducerQueue() chan int { return rb.producerQueue }

// QueueLen returns the current number of filled, unserved slots.
func (rb *RingBuffer) QueueLen() int { return len(rb.producerQueue) }

// FillPercent returns the current buffer fill level as a percentage.
func (rb *RingBuffer) FillPercent() float64 {
	return float64(len(rb.producerQueue)) * 100 / float64(rb.nBuffers)
}

// HalfFullOrLess reports whether the producer queue is at most half full,
// the dispatcher's gate for offering data to IPC queues.
func (rb *RingBuffer) HalfFullOrLess() bool {
	return len(rb.producerQueue)*2 <= rb.nBuffers
}
