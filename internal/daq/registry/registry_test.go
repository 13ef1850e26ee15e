package registry

import (
	"testing"

	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
)

func TestRegisterInProcessAssignsSequentialIndices(t *testing.T) {
	r := New()
	a := r.RegisterInProcess(ringbuf.PointerOblig, 1)
	b := r.RegisterInProcess(ringbuf.CopyRand, 1)

	if a.Index != 0 || b.Index != 1 {
		t.Errorf("got indices %d, %d; want 0, 1", a.Index, b.Index)
	}
	if a.CorrelationID == "" || b.CorrelationID == "" {
		t.Error("CorrelationID must be non-empty")
	}
	if a.CorrelationID == b.CorrelationID {
		t.Error("distinct clients must get distinct correlation ids")
	}
	if r.NumInProcess() != 2 {
		t.Errorf("NumInProcess() = %d, want 2", r.NumInProcess())
	}
}

func TestClientByIndexBounds(t *testing.T) {
	r := New()
	r.RegisterInProcess(ringbuf.PointerOblig, 1)

	if _, err := r.ClientByIndex(0); err != nil {
		t.Errorf("ClientByIndex(0) returned error: %v", err)
	}
	if _, err := r.ClientByIndex(1); err == nil {
		t.Error("ClientByIndex(1) expected error for out-of-range index")
	}
	if _, err := r.ClientByIndex(-1); err == nil {
		t.Error("ClientByIndex(-1) expected error for negative index")
	}
}

type fakeIPCQueue struct{ offered []Response }

func (f *fakeIPCQueue) Offer(resp Response) bool {
	f.offered = append(f.offered, resp)
	return true
}

func TestRegisterInterProcessAndForEach(t *testing.T) {
	r := New()
	q1 := &fakeIPCQueue{}
	q2 := &fakeIPCQueue{}

	k1 := r.RegisterInterProcess(q1)
	k2 := r.RegisterInterProcess(q2)
	if k1 == k2 {
		t.Fatalf("expected distinct keys, got %q twice", k1)
	}

	seen := map[string]IPCQueue{}
	r.ForEachIPC(func(key string, queue IPCQueue) {
		seen[key] = queue
	})

	if len(seen) != 2 {
		t.Fatalf("ForEachIPC visited %d queues, want 2", len(seen))
	}
	if seen[k1] != IPCQueue(q1) || seen[k2] != IPCQueue(q2) {
		t.Error("ForEachIPC did not return the registered queues under their keys")
	}
}

func TestInProcessClientsIsASnapshot(t *testing.T) {
	r := New()
	r.RegisterInProcess(ringbuf.PointerOblig, 1)

	snap := r.InProcessClients()
	r.RegisterInProcess(ringbuf.CopyRand, 1)

	if len(snap) != 1 {
		t.Errorf("earlier snapshot mutated by later registration: len=%d, want 1", len(snap))
	}
	if r.NumInProcess() != 2 {
		t.Errorf("NumInProcess() = %d, want 2 after second registration", r.NumInProcess())
	}
}
