package filter

import (
	"testing"

	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/template"
)

func buildTemplate() *template.Template {
	return template.Build(1.0, template.Shape{TauR: 2, TauOn: 3, TauF: 2, Height: 5, Mode: template.Unipolar})
}

func blockWithPulse(tpl *template.Template, nChan, total, idx0 int) *ringbuf.SampleBlock {
	b := ringbuf.NewSampleBlock(nChan, total)
	for c := 0; c < nChan; c++ {
		for i, v := range tpl.Ref {
			b.Data[c][idx0+i] = float32(v)
		}
	}
	return b
}

func TestProcessBlockSingleChannelAccepted(t *testing.T) {
	tpl := buildTemplate()
	total := tpl.L + 20
	idx0 := 10
	block := blockWithPulse(tpl, 1, total, idx0)

	f := New(Config{TrigChan: 0, NChan: 1, Dt: 1.0, IdT0: idx0, IdTprec: 2}, tpl)
	rec := f.ProcessBlock(block, 1, 100.0)

	if !rec.IsValidated || !rec.IsAccepted {
		t.Fatalf("ProcessBlock() = %+v, want validated and accepted", rec)
	}
	if f.Nval != 1 || f.Nacc != 1 {
		t.Errorf("Nval=%d Nacc=%d, want 1 and 1", f.Nval, f.Nacc)
	}
	if f.Nacc2 != 0 || f.Nacc3 != 0 {
		t.Errorf("single-channel accept must not bump Nacc2/Nacc3: %d/%d", f.Nacc2, f.Nacc3)
	}
}

func TestProcessBlockFlatSignalNotAccepted(t *testing.T) {
	tpl := buildTemplate()
	total := tpl.L + 20
	block := ringbuf.NewSampleBlock(1, total)

	f := New(Config{TrigChan: 0, NChan: 1, Dt: 1.0, IdT0: 10, IdTprec: 2}, tpl)
	rec := f.ProcessBlock(block, 1, 0)

	if rec.IsValidated || rec.IsAccepted {
		t.Errorf("flat block accepted: %+v", rec)
	}
	if f.Nval != 0 || f.Nacc != 0 {
		t.Errorf("Nval=%d Nacc=%d, want 0 and 0", f.Nval, f.Nacc)
	}
}

func TestProcessBlockDetectsDoublePulse(t *testing.T) {
	tpl := buildTemplate()
	idx0 := 10
	second := idx0 + tpl.L + 5
	total := second + tpl.L + 10
	block := ringbuf.NewSampleBlock(1, total)
	for i, v := range tpl.Ref {
		block.Data[0][idx0+i] = float32(v)
		block.Data[0][second+i] += float32(v)
	}

	f := New(Config{TrigChan: 0, NChan: 1, Dt: 1.0, IdT0: idx0, IdTprec: 2}, tpl)
	rec := f.ProcessBlock(block, 1, 0)

	if !rec.IsAccepted {
		t.Fatalf("primary pulse not accepted: %+v", rec)
	}
	if !rec.IsDoublePulse {
		t.Fatalf("second pulse not detected: %+v", rec)
	}
	if f.Ndble != 1 {
		t.Errorf("Ndble = %d, want 1", f.Ndble)
	}
	if f.Tau() <= 0 {
		t.Errorf("Tau() = %v, want > 0 after one double-pulse event", f.Tau())
	}
}

func TestProcessBlockTauIsPerEventNotRunningAverage(t *testing.T) {
	tpl := buildTemplate()
	idx0 := 10

	doublePulseBlock := func(gap int) *ringbuf.SampleBlock {
		second := idx0 + tpl.L + gap
		b := ringbuf.NewSampleBlock(1, second+tpl.L+10)
		for i, v := range tpl.Ref {
			b.Data[0][idx0+i] = float32(v)
			b.Data[0][second+i] += float32(v)
		}
		return b
	}

	f := New(Config{TrigChan: 0, NChan: 1, Dt: 1.0, IdT0: idx0, IdTprec: 2}, tpl)

	rec1 := f.ProcessBlock(doublePulseBlock(5), 1, 0)
	rec2 := f.ProcessBlock(doublePulseBlock(25), 2, 0)

	if !rec1.IsDoublePulse || !rec2.IsDoublePulse {
		t.Fatalf("both blocks must yield a double pulse: %v, %v", rec1.IsDoublePulse, rec2.IsDoublePulse)
	}
	if rec2.Tau <= rec1.Tau {
		t.Fatalf("Tau(gap=25) = %v must exceed Tau(gap=5) = %v", rec2.Tau, rec1.Tau)
	}

	blended := (rec1.Tau + rec2.Tau) / 2
	if rec2.Tau == blended {
		t.Errorf("second event's Tau = %v equals the running average %v; it must be this event's own mean ΔT", rec2.Tau, blended)
	}
	if got := f.Tau(); got != blended {
		t.Errorf("cumulative Tau() = %v, want the mean over both events %v", got, blended)
	}
}

func TestProcessBlockStreamsRateAndBarOnAccept(t *testing.T) {
	tpl := buildTemplate()
	total := tpl.L + 20
	idx0 := 10
	block := blockWithPulse(tpl, 1, total, idx0)

	f := New(Config{TrigChan: 0, NChan: 1, Dt: 1.0, IdT0: idx0, IdTprec: 2}, tpl)
	f.ProcessBlock(block, 7, 5.0)

	rate, ok := f.RateQueue.Take()
	if !ok {
		t.Fatal("RateQueue has no pending sample after an accepted event")
	}
	if rate.Nacc != 1 {
		t.Errorf("RateSample.Nacc = %d, want 1", rate.Nacc)
	}

	bar, ok := f.BarQueue.Take()
	if !ok {
		t.Fatal("BarQueue has no pending sample after an accepted event")
	}
	if bar.EvNr != 7 {
		t.Errorf("BarSample.EvNr = %d, want 7", bar.EvNr)
	}

	if _, ok := f.HistQueue.Take(); !ok {
		t.Error("HistQueue has no pending sample after any processed block")
	}
}

func TestDropQueueNeverBlocksWhenFull(t *testing.T) {
	q := NewDropQueue[int]()
	q.Offer(1)
	q.Offer(2)

	v, ok := q.Take()
	if !ok || v != 2 {
		t.Errorf("Take() = (%v, %v), want (2, true): newest offer replaces the pending value", v, ok)
	}
	if _, ok := q.Take(); ok {
		t.Error("Take() on an empty queue must report false")
	}
}
