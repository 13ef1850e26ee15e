package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcade-daq/waveflow/internal/daq/config"
	"github.com/arcade-daq/waveflow/internal/daq/device/simdevice"
	"github.com/arcade-daq/waveflow/pkg/conf"
	"github.com/arcade-daq/waveflow/pkg/log"
	"github.com/arcade-daq/waveflow/pkg/loop"
)

// newRunCmd builds the `waveflow run` command: load the three configuration
// documents (device, Buffer Manager, Pulse Filter) from --conf-dir and
// drive a run until end of data or a signal.
func newRunCmd() *cobra.Command {
	var confDir, outDir, serveAddr, logDir string
	var maxStartupRetries int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load configuration and drive one acquisition run",
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := log.SetDefaults()
			if logDir != "" {
				logCfg.Output = "file"
				logCfg.Path = logDir
			}
			log.MustInit(logCfg)

			devCfg := config.DefaultDeviceConfig()
			if _, err := conf.LoadConfigFile(confDir, "device", &devCfg); err != nil {
				return err
			}
			bmCfg := config.DefaultBufferManagerConfig()
			if _, err := conf.LoadConfigFile(confDir, "buffermanager", &bmCfg); err != nil {
				return err
			}
			pfCfg := config.DefaultPulseFilterConfig()
			if _, err := conf.LoadConfigFile(confDir, "pulsefilter", &pfCfg); err != nil {
				return err
			}
			if len(pfCfg.PulseShape) == 0 {
				pfCfg.PulseShape = config.DefaultPulseFilterConfig().PulseShape
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dev := simdevice.New(simdevice.Options{
				Config: convertDeviceConfig(devCfg),
				Shape: simdevice.PulseShape{
					TauR: pfCfg.PulseShape[0].TauR, TauOn: pfCfg.PulseShape[0].TauOn,
					TauF: pfCfg.PulseShape[0].TauF, Height: pfCfg.PulseShape[0].PHeight,
				},
				NoiseStdDev: devCfg.TrgThr / 3,
			})
			defer dev.Close()

			acfg := acquisitionConfig{Device: dev, BM: bmCfg, PF: pfCfg, OutDir: outDir, ServeAddr: serveAddr}

			// A failed acquisition run is retried with declining backoff, for
			// at most --max-retries runs in all; configuration read errors
			// above are returned without going through this loop.
			var lastErr error
			return loop.New(
				loop.WithMaxTimes(uint64(maxStartupRetries)),
				loop.WithDeclineRatio(2),
				loop.WithDeclineLimit(30*time.Second),
				loop.WithContext(ctx),
				loop.WithOnRetry(func(attempt uint64, wait time.Duration) {
					log.Warnw("acquisition run failed, retrying", "attempt", attempt, "wait", wait, "error", lastErr)
				}),
			).Do(func() (bool, error) {
				err := runAcquisition(ctx, acfg)
				if err != nil && ctx.Err() == nil {
					lastErr = err
					return false, err
				}
				return true, err
			})
		},
	}

	cmd.Flags().StringVar(&confDir, "conf-dir", ".", "directory holding device/buffermanager/pulsefilter config files")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for event/double-pulse log files")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "directory for application logs (empty = stderr only)")
	cmd.Flags().StringVar(&serveAddr, "serve", "", "address to serve display websockets on, e.g. :8090 (empty disables); also starts the /metrics server on its default address")
	cmd.Flags().IntVar(&maxStartupRetries, "max-retries", 3, "acquisition runs to attempt before giving up")

	return cmd
}
