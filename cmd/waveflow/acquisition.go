package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/arcade-daq/waveflow/internal/daq/config"
	"github.com/arcade-daq/waveflow/internal/daq/device"
	"github.com/arcade-daq/waveflow/internal/daq/dispatcher"
	"github.com/arcade-daq/waveflow/internal/daq/display"
	"github.com/arcade-daq/waveflow/internal/daq/ipc"
	"github.com/arcade-daq/waveflow/internal/daq/producer"
	"github.com/arcade-daq/waveflow/internal/daq/registry"
	"github.com/arcade-daq/waveflow/internal/daq/ringbuf"
	"github.com/arcade-daq/waveflow/internal/daq/runctl"
	"github.com/arcade-daq/waveflow/internal/daq/runstate"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/filter"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/output"
	"github.com/arcade-daq/waveflow/internal/pulsefilter/template"
	"github.com/arcade-daq/waveflow/pkg/event"
	"github.com/arcade-daq/waveflow/pkg/id"
	"github.com/arcade-daq/waveflow/pkg/log"
	"github.com/arcade-daq/waveflow/pkg/metrics"
	"github.com/arcade-daq/waveflow/pkg/parallel"
	"github.com/arcade-daq/waveflow/pkg/safe"
	"github.com/arcade-daq/waveflow/pkg/trace"
)

// acquisitionConfig is everything runAcquisition needs to drive one run.
type acquisitionConfig struct {
	Device device.Device
	BM     config.BufferManagerConfig
	PF     config.PulseFilterConfig
	OutDir string

	// ServeAddr, when non-empty, exposes the display hub's websocket feeds
	// on this address and also starts the Prometheus /metrics server, which
	// listens on its own default address (MetricsConfig.SetDefaults), not on
	// ServeAddr.
	ServeAddr string
}

// runAcquisition builds the Buffer Manager and Pulse Filter, starts the run
// controller, and blocks until the device signals end of data, ctx is
// cancelled, or the run controller reaches ENDED.
func runAcquisition(ctx context.Context, acfg acquisitionConfig) error {
	runID := strings.ToLower(id.GetUild())
	stamp := time.Now().Format("060102-1504")

	_, traceCleanup, err := trace.InitTracerProvider(ctx, trace.Conf{
		Enabled:  acfg.BM.TraceEndpoint != "",
		Endpoint: acfg.BM.TraceEndpoint,
		Insecure: true,
	})
	if err != nil {
		return fmt.Errorf("waveflow: initializing tracer provider: %w", err)
	}
	defer traceCleanup()

	ctx, runSpan := trace.StartSpan(ctx, "acquisition.run")
	defer func() { trace.EndSpan(runSpan, err) }()

	devCfg := acfg.Device.Config()
	ring := ringbuf.New(acfg.BM.NBuffers, devCfg.NChannels, devCfg.NSamples)
	reg := registry.New()
	flags := runstate.NewFlags()
	stats := &runstate.RunStats{}

	logTime := time.Duration(acfg.BM.LogTime) * time.Second
	controller := runctl.New(flags, stats, ring.FillPercent, logTime)
	controller.Verbose = acfg.BM.Verbose > 0

	var metricsServer *metrics.Server
	var hub *display.Hub
	if acfg.ServeAddr != "" {
		mcfg := metrics.MetricsConfig{Enable: true}
		mcfg.SetDefaults()
		metricsServer = metrics.NewServer(mcfg)
		controller.AttachMetricsSink(metricsServer.GetSink())
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("waveflow: starting metrics server: %w", err)
		}

		hub = display.NewHub()
		for _, name := range []string{runctl.EventPaused, runctl.EventResumed, runctl.EventStopped, runctl.EventEnded} {
			controller.Events().RegisterHandler(name, hub)
		}
		app := fiber.New(fiber.Config{DisableStartupMessage: true})
		hub.Register(app)
		safe.Go(func() {
			if err := app.Listen(acfg.ServeAddr); err != nil {
				log.Warnw("display server stopped", "error", err)
			}
		})
		defer func() { _ = app.Shutdown() }()
	}

	pfClient := reg.RegisterInProcess(ringbuf.PointerOblig, 1)

	// Each configured display module gets its own Redis capped stream;
	// the module process discovers its stream key from the log line.
	if acfg.BM.RedisAddr != "" && len(acfg.BM.BMModules) > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: acfg.BM.RedisAddr})
		defer func() { _ = rdb.Close() }()
		for _, module := range acfg.BM.BMModules {
			stream := fmt.Sprintf("waveflow:%s:%s", module, id.ShortId())
			key := reg.RegisterInterProcess(ipc.NewRedisQueue(rdb, stream))
			log.Infow("display module stream registered", "module", module, "stream", stream, "key", key)
		}
	}

	shape := template.Shape{Mode: template.Unipolar}
	idTprec := acfg.PF.IdTprec
	if len(acfg.PF.PulseShape) > 0 {
		ps := acfg.PF.PulseShape[0]
		shape = template.Shape{
			TauR: ps.TauR, TauOn: ps.TauOn, TauF: ps.TauF, Height: ps.PHeight,
		}
		if strings.EqualFold(ps.Mode, "bipolar") {
			shape.Mode = template.Bipolar
			shape.TauF2, shape.TauOff, shape.TauR2 = ps.TauF, ps.TauOn, ps.TauR
		}
	}
	tpl := template.Build(devCfg.TSampling, shape)

	fCfg := filter.Config{
		TrigChan: devCfg.TrgChanIndex(),
		NChan:    devCfg.NChannels,
		Dt:       devCfg.TSampling,
		IdT0:     devCfg.IdT0(),
		IdTprec:  idTprec,
	}
	pf := filter.New(fCfg, tpl)

	writer, err := newOutputWriter(acfg.OutDir, acfg.PF, devCfg, acfg.PF, runID, stamp, devCfg.NChannels)
	if err != nil {
		return fmt.Errorf("waveflow: opening output files: %w", err)
	}
	defer writer.Close()
	controller.Events().RegisterHandler(runctl.EventEnded, summaryHandler{w: writer, pf: pf})

	prod := &producer.Loop{Ring: ring, Device: acfg.Device, Flags: flags, Stats: stats, RunStart: time.Now()}
	disp := &dispatcher.Loop{Ring: ring, Registry: reg, Flags: flags}

	if err := controller.Start(ctx); err != nil {
		return fmt.Errorf("waveflow: starting run controller: %w", err)
	}
	safe.Go(func() { readCommands(ctx, os.Stdin, controller.Commands()) })
	if hub != nil {
		safe.Go(func() { forwardStatus(ctx, controller.Info(), hub) })
	}

	group := parallel.GoGroup(ctx)
	group.Go(func(ctx context.Context) error { return prod.Run(ctx) })
	group.Go(func(ctx context.Context) error { return disp.Run(ctx) })
	group.Go(func(ctx context.Context) error { return runPulseFilterConsumer(ctx, pfClient, pf, writer, hub) })

	err = group.Wait()
	_ = controller.End() // publishes EventEnded synchronously, running summaryHandler above

	snap := stats.Get()
	log.Infow("run finished",
		"trun_s", controller.RunDuration().Seconds(), "ntrig", snap.NTrig, "tlife_s", snap.TLife,
		"nval", pf.Nval, "nacc", pf.Nacc, "nacc2", pf.Nacc2, "nacc3", pf.Nacc3, "ndble", pf.Ndble,
		"dropped_ipc", disp.DroppedIPC.Load(),
	)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = metricsServer.Stop(shutdownCtx)
	}
	return err
}

// readCommands forwards the single-character run-control stream (P pause,
// R resume, S stop, E end) from r to the controller's command channel until
// EOF or cancellation. Characters outside the command set are dropped here
// so line feeds from an interactive terminal never reach the controller.
func readCommands(ctx context.Context, r io.Reader, commands chan<- runctl.Command) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		switch cmd := runctl.Command(buf[0]); cmd {
		case runctl.CmdPause, runctl.CmdResume, runctl.CmdStop, runctl.CmdEnd:
			select {
			case commands <- cmd:
			case <-ctx.Done():
				return
			}
			if cmd == runctl.CmdEnd {
				return
			}
		}
	}
}

// forwardStatus relays the depth-1 status-info queue onto the display hub's
// status feed, so an attached status panel sees the same tuple the run
// controller reports.
func forwardStatus(ctx context.Context, info <-chan runctl.StatusInfo, hub *display.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-info:
			hub.Broadcast(display.FeedStatus, s)
		}
	}
}

// runPulseFilterConsumer is the obligatory in-process consumer loop: it
// primes the request queue, blocks for the dispatcher's reply, runs the
// three-stage pipeline, emits records, and posts its next request, which
// doubles as the dispatcher's release signal for the slot.
func runPulseFilterConsumer(ctx context.Context, client *registry.Client, pf *filter.Filter, w *outputWriter, hub *display.Hub) error {
	client.Requests <- registry.Request{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case resp := <-client.Replies:
			rec := pf.ProcessBlock(resp.Block, resp.Sequence, resp.TriggerTime)
			w.WriteEvent(rec, pf)
			w.AppendRaw(resp.Block)
			if hub != nil {
				streamToHub(hub, pf)
			}
			select {
			case client.Requests <- registry.Request{}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func streamToHub(hub *display.Hub, pf *filter.Filter) {
	if rate, ok := pf.RateQueue.Take(); ok {
		hub.Broadcast(display.FeedRate, rate)
	}
	if hist, ok := pf.HistQueue.Take(); ok {
		hub.Broadcast(display.FeedHistogram, hist)
	}
	if bar, ok := pf.BarQueue.Take(); ok {
		hub.Broadcast(display.FeedBar, bar)
	}
}

// outputWriter owns the per-event, double-pulse and raw-waveform files,
// each named <prefix>_<yymmdd-hhmm>_<runID>.dat.
type outputWriter struct {
	eventFile  *os.File
	doubleFile *os.File
	nChan      int
	lastEvNr   int64

	rawPath   string
	devCfg    any
	pfCfg     any
	rawBlocks [][][]float64
}

func newOutputWriter(outDir string, pf config.PulseFilterConfig, devCfg, pfCfgDoc any, runID, stamp string, nChan int) (*outputWriter, error) {
	w := &outputWriter{nChan: nChan, devCfg: devCfg, pfCfg: pfCfgDoc}
	if pf.LogFile != "" {
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s_%s.dat", pf.LogFile, stamp, runID))
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(f, output.EventHeader(nChan))
		w.eventFile = f
	}
	if pf.LogFile2 != "" {
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s_%s.dat", pf.LogFile2, stamp, runID))
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(f, output.DoublePulseHeader(nChan))
		w.doubleFile = f
	}
	if pf.RawFile != "" {
		w.rawPath = filepath.Join(outDir, fmt.Sprintf("%s_%s_%s.dat", pf.RawFile, stamp, runID))
	}
	return w, nil
}

// AppendRaw records block's samples for the end-of-run raw-waveform dump,
// when one was requested via PulseFilterConfig.RawFile.
func (w *outputWriter) AppendRaw(block *ringbuf.SampleBlock) {
	if w.rawPath == "" {
		return
	}
	rows := make([][]float64, block.NChannels)
	for c, row := range block.Data {
		rows[c] = make([]float64, len(row))
		for s, v := range row {
			rows[c][s] = float64(v)
		}
	}
	w.rawBlocks = append(w.rawBlocks, rows)
}

// WriteRawDump flushes the accumulated raw waveforms to w.rawPath as a
// YAML stream, if a raw-file prefix was configured.
func (w *outputWriter) WriteRawDump() {
	if w.rawPath == "" {
		return
	}
	body, err := output.MarshalRawDump(w.devCfg, w.pfCfg, w.rawBlocks)
	if err != nil {
		log.Warnw("raw waveform dump failed", "error", err)
		return
	}
	if err := os.WriteFile(w.rawPath, []byte(body), 0o644); err != nil {
		log.Warnw("raw waveform dump write failed", "path", w.rawPath, "error", err)
	}
}

func (w *outputWriter) WriteEvent(rec *filter.EventRecord, pf *filter.Filter) {
	w.lastEvNr = rec.EvNr
	if rec.IsAccepted && w.eventFile != nil {
		fmt.Fprintln(w.eventFile, output.FormatEventLine(rec))
	}
	if rec.IsDoublePulse && w.doubleFile != nil {
		fmt.Fprintln(w.doubleFile, output.FormatDoublePulseLine(pf.Nacc, pf.Ndble, rec.Tau, rec))
	}
}

func (w *outputWriter) WriteSummary(pf *filter.Filter) {
	line := output.SummaryLine(w.lastEvNr, pf.Nval, pf.Nacc, pf.Nacc2, pf.Nacc3)
	log.Infow("run summary", "line", line)
	if w.eventFile != nil {
		fmt.Fprintln(w.eventFile, line)
	}
}

// summaryHandler implements event.EventHandler: registered on
// runctl.EventEnded, it flushes the run summary line and the raw-waveform
// dump the moment the controller's state machine reaches ENDED, instead of
// the acquisition loop calling them directly after group.Wait() returns.
type summaryHandler struct {
	w  *outputWriter
	pf *filter.Filter
}

func (s summaryHandler) Handle(event.Event) {
	s.w.WriteSummary(s.pf)
	s.w.WriteRawDump()
}

func (w *outputWriter) Close() {
	if w.eventFile != nil {
		_ = w.eventFile.Close()
	}
	if w.doubleFile != nil {
		_ = w.doubleFile.Close()
	}
}

// convertDeviceConfig maps the loaded configuration document onto the
// device collaborator's geometry.
func convertDeviceConfig(c config.DeviceConfig) device.Config {
	trgTyp := device.TriggerRising
	if strings.EqualFold(c.TrgType, "falling") {
		trgTyp = device.TriggerFalling
	}
	return device.Config{
		NChannels:    len(c.PicoChannels),
		NSamples:     c.NSamples,
		TSampling:    c.SampleTime,
		TrgChan:      c.TrgChan,
		PicoChannels: c.PicoChannels,
		Pretrig:      c.Pretrig,
		TrgActive:    c.TrgActive,
		TrgThr:       c.TrgThr,
		TrgTyp:       trgTyp,
		CRanges:      c.ChanRanges,
		ChanOffsets:  c.ChanOffsets,
		ChanColors:   c.ChanColors,
	}
}
