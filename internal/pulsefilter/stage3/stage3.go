// Package stage3 implements the subsequent-pulse rescan: from the end of
// the validated pulse to the end of the block, every local maximum of the
// clamped correlation is a double-pulse candidate, confirmed by the same
// mean-subtracted shape-match test.
package stage3

import (
	"github.com/arcade-daq/waveflow/internal/pulsefilter/stage1"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/template"
)

// Pulse is one confirmed subsequent pulse.
type Pulse struct {
	Index int
	Value float64
}

// Scan searches signal[from:] for additional pulses beyond the validated
// trigger/coincidence pulse. from is normally idx+L, the sample just past
// the already-accounted-for pulse.
func Scan(signal []float64, from int, tpl *template.Template) []Pulse {
	if from < 0 {
		from = 0
	}
	if from >= len(signal) {
		return nil
	}

	corr := stage1.Correlate(signal, tpl.Ref, from, len(signal))
	if len(corr) == 0 {
		return nil
	}
	stage1.Clamp(corr, tpl.Pthr)

	var pulses []Pulse
	for _, k := range relativeMaxima(corr) {
		idx := from + k
		cc := stage1.ShapeMatch(signal, idx, tpl.RefMean)
		if cc > tpl.Pthrm {
			pulses = append(pulses, Pulse{Index: idx, Value: signal[idx]})
		}
	}
	return pulses
}

// relativeMaxima returns the indices of strict local maxima of v.
func relativeMaxima(v []float64) []int {
	var idx []int
	for i := 1; i < len(v)-1; i++ {
		if v[i] > v[i-1] && v[i] > v[i+1] {
			idx = append(idx, i)
		}
	}
	return idx
}
