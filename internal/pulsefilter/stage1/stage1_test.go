package stage1

import (
	"testing"

	"github.com/arcade-daq/waveflow/internal/pulsefilter/template"
)

func TestCorrelateBasic(t *testing.T) {
	signal := []float64{0, 1, 2, 3, 4, 5}
	ref := []float64{1, 1}

	got := Correlate(signal, ref, 0, len(signal))
	want := []float64{1, 3, 5, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("len(Correlate()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Correlate()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCorrelateClipsToSignalLength(t *testing.T) {
	signal := []float64{1, 2, 3}
	ref := []float64{1}

	got := Correlate(signal, ref, 0, 100)
	if len(got) != 3 {
		t.Fatalf("Correlate() with out-of-range end returned %d values, want 3", len(got))
	}
}

func TestCorrelateEmptyWhenWindowTooSmall(t *testing.T) {
	signal := []float64{1, 2}
	ref := []float64{1, 1, 1}

	got := Correlate(signal, ref, 0, len(signal))
	if got != nil {
		t.Errorf("Correlate() = %v, want nil for a window shorter than ref", got)
	}
}

func TestClampFloorsBelowThreshold(t *testing.T) {
	v := []float64{-1, 0, 5, 10}
	Clamp(v, 2)
	want := []float64{2, 2, 5, 10}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("Clamp()[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}

func TestArgMaxFirstMaximum(t *testing.T) {
	idx, val := ArgMax([]float64{1, 5, 5, 2})
	if idx != 1 || val != 5 {
		t.Errorf("ArgMax() = (%d, %v), want (1, 5)", idx, val)
	}
}

func TestArgMaxEmpty(t *testing.T) {
	idx, val := ArgMax(nil)
	if idx != -1 || val != 0 {
		t.Errorf("ArgMax(nil) = (%d, %v), want (-1, 0)", idx, val)
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3}); got != 2 {
		t.Errorf("Mean() = %v, want 2", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
}

func TestShapeMatchPerfectAlignmentExceedsThreshold(t *testing.T) {
	dt := 1.0
	tpl := template.Build(dt, template.Shape{TauR: 2, TauOn: 3, TauF: 2, Height: 5, Mode: template.Unipolar})

	signal := make([]float64, tpl.L+4)
	copy(signal[2:], tpl.Ref)

	cc := ShapeMatch(signal, 2, tpl.RefMean)
	if cc <= tpl.Pthrm/2 {
		t.Errorf("ShapeMatch() on a perfectly aligned copy = %v, want well above Pthrm/2 (%v)", cc, tpl.Pthrm/2)
	}
}

func TestValidateAcceptsCleanPulse(t *testing.T) {
	dt := 1.0
	tpl := template.Build(dt, template.Shape{TauR: 2, TauOn: 3, TauF: 2, Height: 5, Mode: template.Unipolar})

	idT0 := 10
	signal := make([]float64, idT0+tpl.L+10)
	copy(signal[idT0:], tpl.Ref)

	res := Validate(signal, tpl, dt, idT0, 2)
	if !res.Validated {
		t.Fatalf("Validate() rejected a pulse placed exactly at idT0: %+v", res)
	}
	if res.Index != idT0 {
		t.Errorf("Validate() found peak at %d, want %d", res.Index, idT0)
	}
}

func TestValidateRejectsFlatSignal(t *testing.T) {
	dt := 1.0
	tpl := template.Build(dt, template.Shape{TauR: 2, TauOn: 3, TauF: 2, Height: 5, Mode: template.Unipolar})

	signal := make([]float64, tpl.L+20)
	res := Validate(signal, tpl, dt, 10, 2)
	if res.Validated {
		t.Errorf("Validate() accepted an all-zero signal: %+v", res)
	}
}
