// Package stage1 implements trigger validation and
// exposes the cross-correlation/shape-match primitives stage2 and stage3
// reuse.
package stage1

import "github.com/arcade-daq/waveflow/internal/pulsefilter/template"

// Result is the outcome of validating one channel at or near a candidate
// trigger index.
type Result struct {
	Validated bool
	Index     int     // sample index of the chosen peak
	Value     float64 // signal amplitude at Index
}

// Validate runs the full trigger-channel test: correlate over the window
// spanning a few samples before idT0 to idT0+idTprec+L, clamp below Pthr,
// take the first argmax, reject if it is beyond the expected rise+plateau
// window, then confirm with the mean-subtracted shape-match test.
func Validate(signal []float64, tpl *template.Template, dT float64, idT0, idTprec int) Result {
	offset := idT0 - int(tpl.Shape.TauR/dT) - idTprec
	if offset < 0 {
		offset = 0
	}
	end := idT0 + idTprec + tpl.L

	corr := Correlate(signal, tpl.Ref, offset, end)
	if len(corr) == 0 {
		return Result{}
	}
	Clamp(corr, tpl.Pthr)
	k, _ := ArgMax(corr)
	idtr := offset + k

	maxAllowed := idT0 + int((tpl.Shape.TauR+tpl.Shape.TauOn)/dT) + idTprec
	if idtr > maxAllowed {
		return Result{}
	}

	cc := ShapeMatch(signal, idtr, tpl.RefMean)
	return Result{Validated: cc > tpl.Pthrm, Index: idtr, Value: signal[idtr]}
}

// Correlate computes c[k] = Σ signal[start+k+i]*ref[i] for every k with a
// fully in-range window, clipping end to len(signal).
func Correlate(signal, ref []float64, start, end int) []float64 {
	if end > len(signal) {
		end = len(signal)
	}
	l := len(ref)
	n := end - start - l + 1
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		base := start + k
		var s float64
		for i := 0; i < l; i++ {
			s += signal[base+i] * ref[i]
		}
		out[k] = s
	}
	return out
}

// Clamp floors every value below floor, in place, so a later argmax cannot
// land on noise below the detection threshold.
func Clamp(v []float64, floor float64) {
	for i := range v {
		if v[i] < floor {
			v[i] = floor
		}
	}
}

// ArgMax returns the index and value of the first maximum in v.
func ArgMax(v []float64) (int, float64) {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	if len(v) == 0 {
		return -1, 0
	}
	return best, v[best]
}

// ShapeMatch computes Σ (signal[idx:idx+L] - mean)·refm over the template
// length, clipping to the available samples at the end of the block.
func ShapeMatch(signal []float64, idx int, refm []float64) float64 {
	if idx < 0 || idx >= len(signal) {
		return 0
	}
	l := len(refm)
	if idx+l > len(signal) {
		l = len(signal) - idx
	}
	window := signal[idx : idx+l]
	mean := Mean(window)
	var s float64
	for i := 0; i < l; i++ {
		s += (window[i] - mean) * refm[i]
	}
	return s
}

// Mean returns the arithmetic mean of v, or 0 for an empty slice.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
