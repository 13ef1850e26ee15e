// Package runctl is the Run Controller: the lifecycle state machine for a
// single acquisition run, the ACTIVE/RUNNING flag owner, and the source of
// periodic progress output and the status-info queue.
package runctl

import (
	"context"
	"fmt"
	"sync"
	"time"

	gometrics "github.com/hashicorp/go-metrics"
	"github.com/robfig/cron/v3"

	"github.com/arcade-daq/waveflow/internal/daq/runstate"
	"github.com/arcade-daq/waveflow/pkg/event"
	"github.com/arcade-daq/waveflow/pkg/log"
	"github.com/arcade-daq/waveflow/pkg/metrics"
	"github.com/arcade-daq/waveflow/pkg/safe"
	"github.com/arcade-daq/waveflow/pkg/shutdown"
	"github.com/arcade-daq/waveflow/pkg/statemachine"
)

// State is one node of the run lifecycle INIT -> STARTED -> RUNNING <-> PAUSED
// -> STOPPED -> ENDED.
type State string

const (
	StateInit    State = "INIT"
	StateStarted State = "STARTED"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateStopped State = "STOPPED"
	StateEnded   State = "ENDED"
)

// Command is one character read from the run-control command channel.
// Any character outside this set is ignored.
type Command rune

const (
	CmdPause  Command = 'P'
	CmdResume Command = 'R'
	CmdStop   Command = 'S'
	CmdEnd    Command = 'E'
)

const (
	// EventPaused etc. name the lifecycle events published on the bus so
	// the pulse filter's summary writer and the display hub can react.
	EventPaused  = "run.paused"
	EventResumed = "run.resumed"
	EventStopped = "run.stopped"
	EventEnded   = "run.ended"
)

// lifecycleEvent is the concrete event.Event published at each transition.
type lifecycleEvent struct {
	name string
	at   time.Time
}

func (e lifecycleEvent) EventName() string { return e.name }
func (e lifecycleEvent) EventType() string { return "lifecycle" }

// StatusInfo is the tuple the status reporter fills the info queue with.
type StatusInfo struct {
	Running       bool
	RunDuration   time.Duration
	NTrig         int64
	TTrig         float64
	TLife         float64
	ReadRate      float64
	LifeFrac      float64
	BufferFillPct float64
}

// Controller drives one run's lifecycle.
type Controller struct {
	// Verbose enables the periodic progress line; when false the run is
	// silent between the start and summary messages.
	Verbose bool

	sm       *statemachine.StateMachine[State]
	flags    *runstate.Flags
	stats    *runstate.RunStats
	shutdown *shutdown.Manager
	events   *event.EventBus
	cron     *cron.Cron

	bufferFill func() float64
	logTime    time.Duration
	sink       gometrics.MetricSink

	commands chan Command
	info     chan StatusInfo

	mu         sync.Mutex
	runStart   time.Time
	pauseStart time.Time
	dTPause    time.Duration
}

// New builds a Controller in state INIT. bufferFill reports the ring
// buffer's current fill percentage for the status tuple; logTime is the
// BM-config interval between progress prints; the info queue is refilled at
// twice that cadence.
func New(flags *runstate.Flags, stats *runstate.RunStats, bufferFill func() float64, logTime time.Duration) *Controller {
	c := &Controller{
		flags:      flags,
		stats:      stats,
		shutdown:   shutdown.NewManager(),
		events:     event.NewEventBus(),
		bufferFill: bufferFill,
		logTime:    logTime,
		commands:   make(chan Command, 8),
		info:       make(chan StatusInfo, 1),
	}

	sm := statemachine.NewWithState[State](StateInit)
	sm.AddTransition(StateInit, StateStarted)
	sm.AddTransition(StateStarted, StateRunning)
	sm.AddTransitions(StateRunning, StatePaused, StateStopped)
	sm.AddTransitions(StatePaused, StateRunning, StateStopped)
	sm.AddTransition(StateStopped, StateEnded)
	sm.OnTransition(c.onLifecycleTransition)
	c.sm = sm

	return c
}

// onLifecycleTransition is the single seam every lifecycle edge funnels
// through: flag updates and bus publication live here, keyed on (from, to),
// instead of being duplicated in each of Pause/Resume/Stop/End.
func (c *Controller) onLifecycleTransition(from, to State, _ statemachine.Event) error {
	now := time.Now()
	switch {
	case from == StateRunning && to == StatePaused:
		c.mu.Lock()
		c.pauseStart = now
		c.mu.Unlock()
		c.flags.SetRunning(false)
		c.events.Publish(lifecycleEvent{name: EventPaused, at: now})
	case from == StatePaused && to == StateRunning:
		c.mu.Lock()
		c.dTPause += now.Sub(c.pauseStart)
		c.mu.Unlock()
		c.flags.SetRunning(true)
		c.events.Publish(lifecycleEvent{name: EventResumed, at: now})
	case to == StateStopped:
		c.flags.SetRunning(false)
		c.events.Publish(lifecycleEvent{name: EventStopped, at: now})
	case to == StateEnded:
		c.flags.SetRunning(false)
		c.flags.SetActive(false)
		c.events.Publish(lifecycleEvent{name: EventEnded, at: now})
	}
	return nil
}

// Events returns the bus lifecycle transitions are published on, for
// subscribers such as the pulse filter summary writer and display hub.
func (c *Controller) Events() *event.EventBus { return c.events }

// AttachMetricsSink wires RunStats into a hashicorp/go-metrics sink (the
// Prometheus-backed pkg/metrics.Server in production); every status report
// additionally emits the gauges, so /metrics exposes the same numbers as the
// info queue without a second accounting path.
func (c *Controller) AttachMetricsSink(sink gometrics.MetricSink) {
	c.sink = sink
}

// Commands returns the channel Start's command loop reads from.
func (c *Controller) Commands() chan<- Command { return c.commands }

// Info returns the depth-1 status-info queue.
func (c *Controller) Info() <-chan StatusInfo { return c.info }

// Start transitions INIT -> STARTED -> RUNNING, opens the producer gate,
// and launches the command reader and status reporter. It returns once
// both background loops are running; call End (or send CmdEnd) to tear
// down.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.sm.Transition(StateInit, StateStarted, ""); err != nil {
		return err
	}
	if err := c.sm.Transition(StateStarted, StateRunning, ""); err != nil {
		return err
	}

	c.mu.Lock()
	c.runStart = time.Now()
	c.mu.Unlock()

	c.flags.SetActive(true)
	c.flags.SetRunning(true)

	c.cron = cron.New()
	interval := c.logTime / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	entryID, err := c.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		started := time.Now()
		c.reportStatus()
		metrics.RecordCronJobRun(c.sink, "status_report", time.Since(started), nil)
	})
	if err != nil {
		return fmt.Errorf("runctl: scheduling status reporter: %w", err)
	}
	if c.Verbose {
		if _, err := c.cron.AddFunc(fmt.Sprintf("@every %s", c.logTime), c.printProgress); err != nil {
			return fmt.Errorf("runctl: scheduling progress printer: %w", err)
		}
	}
	c.cron.Start()
	metrics.UpdateCronJobsCount(c.sink, len(c.cron.Entries()))
	metrics.UpdateCronJobNextRun(c.sink, "status_report", c.cron.Entry(entryID).Next)

	safe.Go(func() { c.commandLoop(ctx) })
	return nil
}

// commandLoop applies commands from the command channel until ctx is
// cancelled or END has run.
func (c *Controller) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.commands:
			if err := c.Apply(cmd); err != nil {
				log.Warnw("run command rejected", "command", string(rune(cmd)), "error", err)
			}
			if cmd == CmdEnd {
				return
			}
		}
	}
}

// Apply processes a single command synchronously. Unknown commands are
// ignored.
func (c *Controller) Apply(cmd Command) error {
	switch cmd {
	case CmdPause:
		return c.Pause()
	case CmdResume:
		return c.Resume()
	case CmdStop:
		return c.Stop()
	case CmdEnd:
		return c.End()
	default:
		return nil // unknown characters are ignored, not errors
	}
}

// Pause freezes RUNNING without tearing anything down; only valid from
// RUNNING.
func (c *Controller) Pause() error {
	if err := c.sm.TransitionTo(StatePaused); err != nil {
		return fmt.Errorf("pause rejected: %w", err)
	}
	return nil
}

// Resume requires the current state to be PAUSED; resuming from STOPPED is
// rejected.
func (c *Controller) Resume() error {
	if err := c.sm.TransitionTo(StateRunning); err != nil {
		return fmt.Errorf("resume rejected: %w", err)
	}
	return nil
}

// Stop is terminal for acquisition; a subsequent Resume is rejected because
// no RUNNING/PAUSED -> STOPPED -> RUNNING edge exists.
func (c *Controller) Stop() error {
	from := c.sm.Current()
	if err := c.sm.Transition(from, StateStopped, ""); err != nil {
		return fmt.Errorf("stop rejected: %w", err)
	}
	return nil
}

// End tears down the run: it is idempotent, transitions through
// STOPPED if not already there, stops the cron scheduler, and lets
// onLifecycleTransition clear ACTIVE and publish the final lifecycle event
// so the summary writer flushes.
func (c *Controller) End() error {
	if !c.shutdown.Shutdown() {
		return nil // already ended; second call is a clean no-op
	}

	if c.sm.Current() != StateStopped {
		_ = c.sm.TransitionTo(StateStopped)
	}
	if err := c.sm.Transition(StateStopped, StateEnded, ""); err != nil {
		return fmt.Errorf("end rejected: %w", err)
	}

	if c.cron != nil {
		c.cron.Stop()
	}
	return nil
}

// RunDuration returns tNow - runStart - dTPause.
func (c *Controller) RunDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runStart.IsZero() {
		return 0
	}
	return time.Since(c.runStart) - c.dTPause
}

// reportStatus fills the depth-1 info queue, dropping a stale entry rather
// than blocking (the queue is "depth-1 ... at 2x the display interval").
func (c *Controller) reportStatus() {
	snap := c.stats.Get()
	info := StatusInfo{
		Running:       c.flags.Running(),
		RunDuration:   c.RunDuration(),
		NTrig:         snap.NTrig,
		TTrig:         snap.TTrig,
		TLife:         snap.TLife,
		ReadRate:      snap.ReadRate,
		LifeFrac:      snap.LifeFrac,
		BufferFillPct: c.bufferFill(),
	}
	select {
	case <-c.info:
	default:
	}
	select {
	case c.info <- info:
	default:
	}

	if c.sink != nil {
		c.sink.SetGauge([]string{"waveflow", "run", "ntrig"}, float32(snap.NTrig))
		c.sink.SetGauge([]string{"waveflow", "run", "read_rate_hz"}, float32(snap.ReadRate))
		c.sink.SetGauge([]string{"waveflow", "run", "life_frac"}, float32(snap.LifeFrac))
		c.sink.SetGauge([]string{"waveflow", "run", "buffer_fill_pct"}, float32(info.BufferFillPct))
		c.sink.SetGauge([]string{"waveflow", "run", "duration_seconds"}, float32(info.RunDuration.Seconds()))
	}
}

// printProgress emits the periodic one-line run summary: event count, read
// rate and live fraction over the run so far.
func (c *Controller) printProgress() {
	snap := c.stats.Get()
	log.Infof("run progress: Trun=%.1fs, Ntrig=%d, rate=%.1f Hz, lifeFrac=%.3f",
		c.RunDuration().Seconds(), snap.NTrig, snap.ReadRate, snap.LifeFrac)
}

// Current returns the controller's current lifecycle state.
func (c *Controller) Current() State { return c.sm.Current() }
