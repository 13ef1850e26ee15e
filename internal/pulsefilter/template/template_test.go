package template

import "testing"

func TestBuildUnipolarShape(t *testing.T) {
	dt := 1.0
	tpl := Build(dt, Shape{TauR: 2, TauOn: 3, TauF: 2, Height: 5, Mode: Unipolar})

	wantLen := int((2.0+3.0+2.0)/dt+0.5) + 1
	if tpl.L != wantLen || len(tpl.Ref) != wantLen {
		t.Fatalf("L = %d, len(Ref) = %d, want %d", tpl.L, len(tpl.Ref), wantLen)
	}

	var peak float64
	for _, v := range tpl.Ref {
		if v > peak {
			peak = v
		}
	}
	if peak != 5 {
		t.Errorf("peak amplitude = %v, want 5 (the plateau height)", peak)
	}
	if tpl.Ref[0] != 0 {
		t.Errorf("Ref[0] = %v, want 0 at the start of the rise", tpl.Ref[0])
	}
}

func TestBuildMeanSubtractedSumsToZero(t *testing.T) {
	tpl := Build(0.5, Shape{TauR: 1, TauOn: 2, TauF: 1, Height: 3, Mode: Unipolar})

	var sum float64
	for _, v := range tpl.RefMean {
		sum += v
	}
	if sum < -1e-9 || sum > 1e-9 {
		t.Errorf("sum(RefMean) = %v, want ~0", sum)
	}
}

func TestBuildBipolarTailCancelsIntegral(t *testing.T) {
	dt := 0.1
	shape := Shape{
		TauR: 1, TauOn: 1, TauF: 1, Height: 2,
		TauF2: 1, TauOff: 1, TauR2: 1,
		Mode: Bipolar,
	}
	tpl := Build(dt, shape)

	var total float64
	for _, v := range tpl.Ref {
		total += v * dt
	}
	if total < -1e-6 || total > 1e-6 {
		t.Errorf("bipolar template net integral = %v, want ~0 (tail cancels the positive lobe)", total)
	}
}

func TestBuildPthrMatchesSumOfSquares(t *testing.T) {
	tpl := Build(1, Shape{TauR: 1, TauOn: 1, TauF: 1, Height: 1, Mode: Unipolar})

	var want float64
	for _, v := range tpl.Ref {
		want += v * v
	}
	if tpl.Pthr != want {
		t.Errorf("Pthr = %v, want %v", tpl.Pthr, want)
	}
}
