package ringbuffer

import "testing"

func TestPublishAndConsumeInOrder(t *testing.T) {
	rb := NewRingBuffer[int](4, &YieldingWaitStrategy{})
	c := rb.AddConsumer()

	for i := 0; i < 4; i++ {
		rb.Publish(i)
	}

	for i := 0; i < 4; i++ {
		v, seq := rb.Consume(c)
		if v != i || seq != int64(i) {
			t.Errorf("Consume() = (%d, %d), want (%d, %d)", v, seq, i, i)
		}
	}
}

func TestTryPublishFailsWhenConsumerLagsPastCapacity(t *testing.T) {
	rb := NewRingBuffer[int](2, &YieldingWaitStrategy{})
	rb.AddConsumer() // never advances

	if _, ok := rb.TryPublish(1); !ok {
		t.Fatal("first TryPublish() should succeed on an empty ring")
	}
	if _, ok := rb.TryPublish(2); !ok {
		t.Fatal("second TryPublish() should succeed, ring at capacity but not yet wrapped")
	}
	if _, ok := rb.TryPublish(3); ok {
		t.Error("third TryPublish() should fail: the lagging consumer has not freed slot 0 yet")
	}
}

func TestSnapshotReturnsMostRecentOldestFirst(t *testing.T) {
	rb := NewRingBuffer[int](4, &YieldingWaitStrategy{})
	if got := rb.Snapshot(4); got != nil {
		t.Errorf("Snapshot() on an empty ring = %v, want nil", got)
	}

	for i := 1; i <= 6; i++ {
		rb.Publish(i)
	}

	got := rb.Snapshot(4)
	want := []int{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("Snapshot(4) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Snapshot(4)[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSnapshotClampsToCapacity(t *testing.T) {
	rb := NewRingBuffer[int](2, &YieldingWaitStrategy{})
	rb.Publish(1)
	rb.Publish(2)

	got := rb.Snapshot(100)
	if len(got) != 2 {
		t.Errorf("Snapshot(100) on a capacity-2 ring returned %d entries, want 2", len(got))
	}
}

func TestNewRingBufferPanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewRingBuffer(3, ...) should panic: capacity must be a power of 2")
		}
	}()
	NewRingBuffer[int](3, &YieldingWaitStrategy{})
}
