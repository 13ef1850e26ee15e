package ringbuf

import "testing"

func TestNewAllSlotsFree(t *testing.T) {
	rb := New(4, 2, 8)
	for i := 0; i < 4; i++ {
		select {
		case <-rb.FreeChan(i):
		default:
			t.Fatalf("slot %d expected a free token at construction", i)
		}
		rb.FreeChan(i) <- struct{}{}
	}
}

func TestSetSlotMetaAndProducerQueue(t *testing.T) {
	rb := New(2, 1, 4)
	block := rb.Block(0)
	block.Data[0][0] = 1.5

	rb.SetSlotMeta(0, 12.5, 3)
	rb.ProducerQueue() <- 0

	if got := rb.Sequence(0); got != 3 {
		t.Errorf("Sequence(0) = %d, want 3", got)
	}
	if got := rb.TriggerTime(0); got != 12.5 {
		t.Errorf("TriggerTime(0) = %v, want 12.5", got)
	}
	if got := rb.QueueLen(); got != 1 {
		t.Errorf("QueueLen() = %d, want 1", got)
	}

	w := <-rb.ProducerQueue()
	if w != 0 {
		t.Fatalf("ProducerQueue() delivered %d, want 0", w)
	}
}

func TestFillPercentAndHalfFullOrLess(t *testing.T) {
	rb := New(4, 1, 1)
	if got := rb.FillPercent(); got != 0 {
		t.Errorf("FillPercent() = %v, want 0", got)
	}
	if !rb.HalfFullOrLess() {
		t.Fatal("empty ring must report half-full-or-less")
	}

	rb.ProducerQueue() <- 0
	rb.ProducerQueue() <- 1
	if got := rb.FillPercent(); got != 50 {
		t.Errorf("FillPercent() = %v, want 50", got)
	}
	if !rb.HalfFullOrLess() {
		t.Fatal("2/4 full must still report half-full-or-less")
	}

	rb.ProducerQueue() <- 2
	if rb.HalfFullOrLess() {
		t.Fatal("3/4 full must not report half-full-or-less")
	}
}

func TestSampleBlockCloneIsIndependent(t *testing.T) {
	b := NewSampleBlock(2, 3)
	b.Data[0][0] = 1
	b.Data[1][2] = 9

	clone := b.Clone()
	clone.Data[0][0] = 42

	if b.Data[0][0] != 1 {
		t.Fatalf("original mutated through clone: got %v, want 1", b.Data[0][0])
	}
	if clone.Data[1][2] != 9 {
		t.Fatalf("clone missing copied data: got %v, want 9", clone.Data[1][2])
	}
}

func TestClientModeIsObligatory(t *testing.T) {
	cases := map[ClientMode]bool{
		PointerOblig: true,
		CopyOblig:    true,
		CopyRand:     false,
	}
	for mode, want := range cases {
		if got := mode.IsObligatory(); got != want {
			t.Errorf("%v.IsObligatory() = %v, want %v", mode, got, want)
		}
	}
}
