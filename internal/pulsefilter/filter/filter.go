// Package filter orchestrates the Pulse Filter's per-block pipeline:
// trigger validation, coincidence, subsequent-pulse rescan, double-pulse
// statistics, and streaming to the rate/histogram/bar-display consumers.
package filter

import (
	"math"

	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/stage1"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/stage2"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/stage3"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/template"
	"github.com/arcade-daq/waveflow/pkg/dag"
	"github.com/arcade-daq/waveflow/pkg/log"
)

// Pulse is one (voltage, time) pair, time measured relative to the event's
// final eventTime.
type Pulse struct {
	V float64
	T float64
}

// ChannelPulses holds every pulse found on one channel for one event: index
// 0 is the primary (trigger or coincidence) pulse when present, further
// entries are subsequent pulses from stage 3.
type ChannelPulses struct {
	Pulses []Pulse
}

// EventRecord is the per-block analysis result.
type EventRecord struct {
	EvNr          int64
	EvTime        float64
	Channels      []ChannelPulses
	IsValidated   bool
	IsAccepted    bool
	IsDoublePulse bool
	DeltaT2       []float64 // per channel, seconds; zero where no second pulse
	Sig2          []float64 // per channel, |V| of the second pulse
	Tau           float64   // this event's mean per-channel ΔT, seconds
}

// Config is the fixed per-run geometry the filter needs beyond the
// template itself.
type Config struct {
	TrigChan int
	NChan    int
	Dt       float64
	IdT0     int
	IdTprec  int
}

// RateSample is streamed to the rate queue for every accepted event.
type RateSample struct {
	Nacc   int64
	EvTime float64
}

// HistSample is streamed to the histogram queue for every block.
type HistSample struct {
	NoiseTriggerPeaks []float64
	ValidTriggerPeaks []float64
	NonTriggerPeaks   []float64
	Taus              []float64
}

// BarSample is streamed to the bar-display queue for every accepted event.
type BarSample struct {
	EvNr  int64
	PeakV []float64
}

// DropQueue is a depth-1, drop-if-full queue, used for all
// three pulse-filter streaming outputs.
type DropQueue[T any] struct {
	ch chan T
}

// NewDropQueue returns an empty depth-1 queue.
func NewDropQueue[T any]() *DropQueue[T] {
	return &DropQueue[T]{ch: make(chan T, 1)}
}

// Offer replaces any pending value with v, never blocking.
func (q *DropQueue[T]) Offer(v T) {
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- v:
	default:
	}
}

// Take receives the next value, or reports false if none is pending.
func (q *DropQueue[T]) Take() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Filter is one pulse-filter instance, bound to a single reference
// template and geometry, processing blocks sequentially.
type Filter struct {
	cfg Config
	tpl *template.Template

	stages          *dag.DAG
	lastSchedulable []string

	Nval, Nacc, Nacc2, Nacc3, Ndble int64
	sumTau                          float64
	nDoubleEvents                   int64

	RateQueue *DropQueue[RateSample]
	HistQueue *DropQueue[HistSample]
	BarQueue  *DropQueue[BarSample]
}

// New builds a Filter for the given geometry and reference template.
func New(cfg Config, tpl *template.Template) *Filter {
	stages := buildStageGraph()
	log.Debugw("pulse filter stage graph built", "stages", stages.NodeNames())

	return &Filter{
		cfg:       cfg,
		tpl:       tpl,
		stages:    stages,
		RateQueue: NewDropQueue[RateSample](),
		HistQueue: NewDropQueue[HistSample](),
		BarQueue:  NewDropQueue[BarSample](),
	}
}

// ProcessBlock runs the three-stage pipeline on one acquired block and
// returns its EventRecord. evTime is the block's trigger time as stamped by
// the producer.
func (f *Filter) ProcessBlock(block *ringbuf.SampleBlock, seq int64, evTime float64) *EventRecord {
	channels := toFloat64Channels(block)

	trig := stage1.Validate(channels[f.cfg.TrigChan], f.tpl, f.cfg.Dt, f.cfg.IdT0, f.cfg.IdTprec)
	f.markStageDone(stageValidate)
	if trig.Validated {
		f.Nval++
	}

	outcome := stage2.Coincide(channels, f.cfg.TrigChan, trig.Index, trig.Validated, f.tpl, f.cfg.Dt, f.cfg.IdTprec)
	f.markStageDone(stageValidate, stageCoincide)
	if outcome.Accepted {
		f.Nacc++
		if outcome.Nacc2 {
			f.Nacc2++
		}
		if outcome.Nacc3 {
			f.Nacc3++
		}
	}

	finalEvTime := f.eventTime(evTime, trig, outcome)

	chanPulses := make([]ChannelPulses, f.cfg.NChan)
	if trig.Validated {
		chanPulses[f.cfg.TrigChan].Pulses = append(chanPulses[f.cfg.TrigChan].Pulses,
			Pulse{V: trig.Value, T: f.channelTime(evTime, trig.Index) - finalEvTime})
	}
	for _, cr := range outcome.Channels {
		if cr.Validated {
			chanPulses[cr.Channel].Pulses = append(chanPulses[cr.Channel].Pulses,
				Pulse{V: cr.Value, T: f.channelTime(evTime, cr.Index) - finalEvTime})
		}
	}

	rec := &EventRecord{
		EvNr:        seq,
		EvTime:      finalEvTime,
		Channels:    chanPulses,
		IsValidated: trig.Validated,
		IsAccepted:  outcome.Accepted,
	}

	if outcome.Accepted {
		f.rescan(channels, trig, outcome, evTime, finalEvTime, chanPulses, rec)
	}
	f.markStageDone(stageValidate, stageCoincide, stageRescan)

	f.stream(trig, outcome, rec)
	return rec
}

// eventTime computes the mean of every validated channel's own trigger
// time; channels without a pulse candidate contribute nothing.
func (f *Filter) eventTime(evTime float64, trig stage1.Result, outcome stage2.Outcome) float64 {
	var times []float64
	if trig.Validated {
		times = append(times, f.channelTime(evTime, trig.Index))
	}
	for _, cr := range outcome.Channels {
		if cr.Validated {
			times = append(times, f.channelTime(evTime, cr.Index))
		}
	}
	if len(times) == 0 {
		return evTime
	}
	return stage1.Mean(times)
}

// channelTime converts a sample index back to an absolute time using the
// block's stamped trigger time as the idT0 reference.
func (f *Filter) channelTime(evTime float64, idx int) float64 {
	return evTime + float64(idx-f.cfg.IdT0)*f.cfg.Dt
}

// rescan runs stage 3 on every channel that had a primary pulse, records
// the first subsequent pulse per channel into the event's double-pulse
// fields, and updates the cumulative Tau statistic.
func (f *Filter) rescan(channels [][]float64, trig stage1.Result, outcome stage2.Outcome, evTime, finalEvTime float64, chanPulses []ChannelPulses, rec *EventRecord) {
	deltaT2 := make([]float64, f.cfg.NChan)
	sig2 := make([]float64, f.cfg.NChan)
	found := false
	var sumDT float64
	var nSecond int

	scan := func(c, primaryIdx int) {
		pulses := stage3.Scan(channels[c], primaryIdx+f.tpl.L, f.tpl)
		for i, p := range pulses {
			t := f.channelTime(evTime, p.Index) - finalEvTime
			chanPulses[c].Pulses = append(chanPulses[c].Pulses, Pulse{V: p.Value, T: t})
			if i == 0 {
				deltaT2[c] = t
				sig2[c] = math.Abs(p.Value)
				found = true
				sumDT += t
				nSecond++
			}
		}
	}

	if trig.Validated {
		scan(f.cfg.TrigChan, trig.Index)
	}
	for _, cr := range outcome.Channels {
		if cr.Validated {
			scan(cr.Channel, cr.Index)
		}
	}

	if found {
		f.Ndble++
		rec.IsDoublePulse = true
		rec.DeltaT2 = deltaT2
		rec.Sig2 = sig2
		rec.Tau = sumDT / float64(nSecond)
		f.sumTau += rec.Tau
		f.nDoubleEvents++
	}
}

// stream pushes this block's data to the rate/histogram/bar-display
// queues, as non-blocking offers.
func (f *Filter) stream(trig stage1.Result, outcome stage2.Outcome, rec *EventRecord) {
	var noise, valid, nonTrig, taus []float64
	if trig.Validated {
		valid = append(valid, trig.Value)
	} else {
		noise = append(noise, trig.Value)
	}
	for _, cr := range outcome.Channels {
		if cr.Validated {
			nonTrig = append(nonTrig, cr.Value)
		}
	}
	if rec.IsDoublePulse {
		taus = append(taus, rec.Tau)
	}
	f.HistQueue.Offer(HistSample{
		NoiseTriggerPeaks: noise,
		ValidTriggerPeaks: valid,
		NonTriggerPeaks:   nonTrig,
		Taus:              taus,
	})

	if !outcome.Accepted {
		return
	}
	f.RateQueue.Offer(RateSample{Nacc: f.Nacc, EvTime: rec.EvTime})

	peaks := make([]float64, f.cfg.NChan)
	for c, cp := range rec.Channels {
		if len(cp.Pulses) > 0 {
			peaks[c] = cp.Pulses[0].V
		}
	}
	f.BarQueue.Offer(BarSample{EvNr: rec.EvNr, PeakV: peaks})
}

// Tau returns the mean double-pulse ΔT across every double-pulse event seen
// so far, or 0 if none occurred.
func (f *Filter) Tau() float64 {
	if f.nDoubleEvents == 0 {
		return 0
	}
	return f.sumTau / float64(f.nDoubleEvents)
}

// toFloat64Channels widens a SampleBlock's float32 rows for the filter's
// float64 arithmetic.
func toFloat64Channels(block *ringbuf.SampleBlock) [][]float64 {
	out := make([][]float64, block.NChannels)
	for c := 0; c < block.NChannels; c++ {
		row := make([]float64, block.NSamples)
		for i, v := range block.Data[c] {
			row[i] = float64(v)
		}
		out[c] = row
	}
	return out
}
