// Package output formats the Pulse Filter's textual records and raw
// waveform dumps, preserving the exact
// positional field order the source's downstream tooling expects.
package output

import (
	"fmt"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/arcade-daq/waveflow/internal/pulsefilter/filter"
)

// EventHeader is the header line of the per-event log file.
func EventHeader(nChan int) string {
	var vs, ts strings.Builder
	for i := 0; i < nChan; i++ {
		fmt.Fprintf(&vs, "V%d, ", i)
		fmt.Fprintf(&ts, "T%d, ", i)
	}
	return fmt.Sprintf("# EvNr, EvT, %s%s", vs.String(), strings.TrimSuffix(ts.String(), ", "))
}

// FormatEventLine renders one accepted-event record:
// evNr, evTime, (V,T) x NChan [, (V,T) x NChan for a second pulse [, (iC,V,T)...]].
func FormatEventLine(rec *filter.EventRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d, %s", rec.EvNr, fmtFloat(rec.EvTime))

	maxPulses := 1
	for _, cp := range rec.Channels {
		if len(cp.Pulses) > maxPulses {
			maxPulses = len(cp.Pulses)
		}
	}

	for pulseIdx := 0; pulseIdx < 2 && pulseIdx < maxPulses; pulseIdx++ {
		for _, cp := range rec.Channels {
			if pulseIdx < len(cp.Pulses) {
				p := cp.Pulses[pulseIdx]
				fmt.Fprintf(&b, ", %s, %s", fmtFloat(p.V), fmtFloat(p.T))
			} else {
				fmt.Fprintf(&b, ", %s, %s", fmtFloat(0), fmtFloat(0))
			}
		}
	}

	for c, cp := range rec.Channels {
		for pulseIdx := 2; pulseIdx < len(cp.Pulses); pulseIdx++ {
			p := cp.Pulses[pulseIdx]
			fmt.Fprintf(&b, ", %d, %s, %s", c, fmtFloat(p.V), fmtFloat(p.T))
		}
	}
	return b.String()
}

// DoublePulseHeader is the header line of the double-pulse log file.
func DoublePulseHeader(nChan int) string {
	var dt, v strings.Builder
	for i := 0; i < nChan; i++ {
		fmt.Fprintf(&dt, "delT%d, ", i)
		fmt.Fprintf(&v, "V%d, ", i)
	}
	return fmt.Sprintf("# Nacc, Ndble, Tau, %s%s", dt.String(), strings.TrimSuffix(v.String(), ", "))
}

// FormatDoublePulseLine renders one double-pulse record: Nacc, Ndble, Tau,
// delT(iChan)..., V(iChan)....
func FormatDoublePulseLine(nacc, ndble int64, tau float64, rec *filter.EventRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d, %d, %s", nacc, ndble, fmtFloat(tau))
	for _, dt := range rec.DeltaT2 {
		fmt.Fprintf(&b, ", %s", fmtFloat(dt))
	}
	for _, v := range rec.Sig2 {
		fmt.Fprintf(&b, ", %s", fmtFloat(v))
	}
	return b.String()
}

// SummaryLine renders the end-of-run summary.
func SummaryLine(evNr, nval, nacc, nacc2, nacc3 int64) string {
	return fmt.Sprintf("# pulseFilter Summary: last evNR %d, Nval, Nacc, Nacc2, Nacc3: %d, %d, %d, %d",
		evNr, nval, nacc, nacc2, nacc3)
}

// RawDump is the YAML document written to the rawFile stream: the two
// input configurations plus a list of raw waveforms, each rounded to 5
// decimal places.
type RawDump struct {
	OscConf any   `json:"OscConf"`
	PFConf  any   `json:"pFConf"`
	Data    [][][]float64 `json:"data"`
}

// MarshalRawDump renders a RawDump as YAML text, rounding every sample to 5
// decimal places before marshaling.
func MarshalRawDump(oscConf, pfConf any, waveforms [][][]float64) (string, error) {
	rounded := make([][][]float64, len(waveforms))
	for i, block := range waveforms {
		rounded[i] = make([][]float64, len(block))
		for c, row := range block {
			out := make([]float64, len(row))
			for s, v := range row {
				out[s] = round5(v)
			}
			rounded[i][c] = out
		}
	}
	dump := RawDump{OscConf: oscConf, PFConf: pfConf, Data: rounded}
	body, err := yaml.Marshal(dump)
	if err != nil {
		return "", fmt.Errorf("output: marshal raw dump: %w", err)
	}
	return string(body), nil
}

func round5(v float64) float64 {
	s := strconv.FormatFloat(v, 'f', 5, 64)
	out, _ := strconv.ParseFloat(s, 64)
	return out
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
