package runstate

import (
	"sync"
	"testing"
)

func TestNewFlagsInitialState(t *testing.T) {
	f := NewFlags()
	if !f.Active() {
		t.Error("NewFlags() must start ACTIVE")
	}
	if f.Running() {
		t.Error("NewFlags() must start with RUNNING clear")
	}
}

func TestFlagsSetters(t *testing.T) {
	f := NewFlags()
	f.SetRunning(true)
	if !f.Running() {
		t.Error("SetRunning(true) did not take effect")
	}
	f.SetActive(false)
	if f.Active() {
		t.Error("SetActive(false) did not take effect")
	}
}

func TestRunStatsIncrementTrigger(t *testing.T) {
	s := &RunStats{}
	n := s.IncrementTrigger(1.5, 0.2)
	if n != 1 {
		t.Errorf("IncrementTrigger() returned %d, want 1", n)
	}
	n = s.IncrementTrigger(2.5, 0.3)
	if n != 2 {
		t.Errorf("IncrementTrigger() returned %d, want 2", n)
	}

	got := s.Get()
	if got.NTrig != 2 || got.TTrig != 2.5 {
		t.Errorf("Get() = %+v, want NTrig=2 TTrig=2.5", got)
	}
	if got.TLife < 0.499 || got.TLife > 0.501 {
		t.Errorf("TLife accumulated to %v, want ~0.5", got.TLife)
	}
}

func TestRunStatsUpdateRates(t *testing.T) {
	s := &RunStats{}
	s.UpdateRates(123.4, 0.9)
	got := s.Get()
	if got.ReadRate != 123.4 || got.LifeFrac != 0.9 {
		t.Errorf("Get() = %+v, want ReadRate=123.4 LifeFrac=0.9", got)
	}
}

func TestRunStatsConcurrentIncrement(t *testing.T) {
	s := &RunStats{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementTrigger(1, 0.01)
		}()
	}
	wg.Wait()

	got := s.Get()
	if got.NTrig != 100 {
		t.Errorf("NTrig = %d after 100 concurrent increments, want 100", got.NTrig)
	}
}
