// Package template builds the pulse filter's matched-filter reference pulse
// from a trapezoidal shape description. The bipolar variant appends a tail
// of opposite polarity whose integral matches the positive lobe in
// magnitude.
package template

// Mode selects whether the template carries a bipolar return-to-zero tail.
type Mode int

const (
	Unipolar Mode = iota
	Bipolar
)

// Shape is the trapezoidal pulse description from the Pulse Filter
// configuration's pulseShape entries.
type Shape struct {
	TauR, TauOn, TauF    float64 // rise, plateau, fall (seconds)
	TauF2, TauOff, TauR2 float64 // bipolar tail: fall, off, rise (seconds)
	Height               float64 // signed volts
	Mode                 Mode
}

// Template is the precomputed matched-filter reference pulse and its
// mean-subtracted variant, immutable once built and safe for concurrent
// read-only use across pulse-filter instances.
type Template struct {
	Dt      float64
	Shape   Shape
	L       int
	Ref     []float64 // refp
	RefMean []float64 // refpm, mean-subtracted
	Pthr    float64   // Σrefp²
	Pthrm   float64   // Σrefpm²
}

// Build constructs the template for the given sampling interval and shape.
func Build(dt float64, shape Shape) *Template {
	ref := trapezoidSamples(dt, shape.TauR, shape.TauOn, shape.TauF, shape.Height)

	if shape.Mode == Bipolar {
		tail := trapezoidSamples(dt, shape.TauF2, shape.TauOff, shape.TauR2, 1)
		posIntegral := sumF64(ref) * dt
		tailIntegral := sumF64(tail) * dt
		scale := 0.0
		if tailIntegral != 0 {
			scale = -posIntegral / tailIntegral
		}
		for i := range tail {
			tail[i] *= scale
		}
		ref = append(ref, tail...)
	}

	mean := sumF64(ref) / float64(len(ref))
	refm := make([]float64, len(ref))
	for i, v := range ref {
		refm[i] = v - mean
	}

	return &Template{
		Dt:      dt,
		Shape:   shape,
		L:       len(ref),
		Ref:     ref,
		RefMean: refm,
		Pthr:    sumSquares(ref),
		Pthrm:   sumSquares(refm),
	}
}

// trapezoidSamples samples a unipolar trapezoid of the given rise/plateau/
// fall durations and peak height at interval dt; length is
// round((tr+ton+tf)/dt) + 1.
func trapezoidSamples(dt, tr, ton, tf, height float64) []float64 {
	n := int((tr+ton+tf)/dt+0.5) + 1
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		out[i] = height * trapezoid(t, tr, ton, tf)
	}
	return out
}

// trapezoid evaluates the unit-height trapezoidal shape at time t, measured
// from the start of the rise.
func trapezoid(t, tr, ton, tf float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < tr:
		if tr == 0 {
			return 1
		}
		return t / tr
	case t < tr+ton:
		return 1
	case t < tr+ton+tf:
		if tf == 0 {
			return 0
		}
		return 1 - (t-tr-ton)/tf
	default:
		return 0
	}
}

func sumF64(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}
