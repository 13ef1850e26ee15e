// Package stage2 implements coincidence checking across non-trigger
// channels: each one gets the same clamp/argmax/shape-match test the
// trigger channel passed, restricted to a window around the validated
// trigger index.
package stage2

import (
	"github.com/arcade-daq/waveflow/internal/pulsefilter/stage1"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/template"
)

// ChannelResult is one non-trigger channel's coincidence test outcome.
type ChannelResult struct {
	Channel   int
	Validated bool
	Index     int
	Value     float64
}

// Outcome summarizes coincidence across all channels of one block.
type Outcome struct {
	Channels []ChannelResult
	NCoinc   int // count of channels with a validated pulse, trigger included
	Accepted bool
	Nacc2    bool // true iff this event is exactly a 2-channel coincidence
	Nacc3    bool // true iff this event is exactly a 3-channel coincidence
}

// Coincide tests every channel other than trigChan for a pulse within
// ±idTprec of the trigger channel's validated index, and applies the
// acceptance rule: a single-channel setup accepts any validated trigger, a
// multi-channel setup requires coincidence on at least two channels.
func Coincide(channels [][]float64, trigChan, trigIdx int, trigValidated bool, tpl *template.Template, dT float64, idTprec int) Outcome {
	nChan := len(channels)
	nCoinc := 0
	if trigValidated {
		nCoinc++
	}

	var results []ChannelResult
	for c := 0; c < nChan; c++ {
		if c == trigChan {
			continue
		}
		offset := trigIdx - idTprec
		if offset < 0 {
			offset = 0
		}
		end := trigIdx + idTprec + tpl.L

		corr := stage1.Correlate(channels[c], tpl.Ref, offset, end)
		res := ChannelResult{Channel: c}
		if len(corr) > 0 {
			stage1.Clamp(corr, tpl.Pthr)
			k, _ := stage1.ArgMax(corr)
			idx := offset + k
			cc := stage1.ShapeMatch(channels[c], idx, tpl.RefMean)
			if cc > tpl.Pthrm {
				res.Validated = true
				res.Index = idx
				res.Value = channels[c][idx]
				nCoinc++
			}
		}
		results = append(results, res)
	}

	accepted := (nChan == 1 && trigValidated) || (nChan >= 2 && nCoinc >= 2)

	return Outcome{
		Channels: results,
		NCoinc:   nCoinc,
		Accepted: accepted,
		Nacc2:    accepted && nCoinc == 2,
		Nacc3:    accepted && nCoinc == 3,
	}
}
