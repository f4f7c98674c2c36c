package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/drivers/dht22"
	"dhtcode-go/drivers/dht22/dht22periph"
	"dhtcode-go/drivers/dht22/dht22sim"
	"dhtcode-go/services/hal"
	"dhtcode-go/services/hal/platform"
	"dhtcode-go/services/monitor"
	"dhtcode-go/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"periph.io/x/host/v3"
)

var (
	backend     string
	gpioPin     int
	intervalMs  uint32
	faults      []string
	metricsAddr string
	debug       bool
)

// Raspberry Pi header GPIOs.
var linuxBoard = platform.Board{Name: "linux", GPIOMin: 0, GPIOMax: 27}

var rootCmd = &cobra.Command{
	Use:   "dht22-host",
	Short: "DHT22 acquisition on a Linux host",
	Long: `dht22-host runs the DHT22 HAL service outside the firmware.

Backends:
  sim:     a simulated sensor; --fault scripts misbehaving cycles
           (stall, short, corrupt) before it settles to 50.0 %RH / 20.0 °C
  periph:  a real sensor on a Linux GPIO line, timed by busy-reading the pin

Readings and link changes are logged; with --metrics-addr they are also
served on /metrics.`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if backend != "sim" && backend != "periph" {
			return errors.New("--backend must be sim or periph")
		}
		if intervalMs < 2000 {
			return errors.New("--interval must be at least 2000 ms")
		}
		for _, f := range faults {
			if _, err := dht22sim.ParseFault(strings.TrimSpace(f)); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&backend, "backend", "sim", "Sensor backend: sim or periph")
	rootCmd.Flags().IntVar(&gpioPin, "gpio", platform.DefaultDataPin, "Data GPIO number")
	rootCmd.Flags().Uint32Var(&intervalMs, "interval", platform.DefaultPollMs, "Poll interval in ms")
	rootCmd.Flags().StringSliceVar(&faults, "fault", nil, "Simulated fault script, e.g. stall,corrupt (sim only)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9110")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Debug logging, including driver traces")
}

func run(cmd *cobra.Command, _ []string) error {
	log := newLogger(os.Stderr, debug)

	reg, err := newRegistry()
	if err != nil {
		log.Error("backend.init", "backend", backend, "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(16)
	go hal.RunWith(ctx, b.NewConnection("hal"), reg)

	promReg := prometheus.NewRegistry()
	exp := newExporter(promReg, log)
	exp.Start(ctx, b.NewConnection("exporter"))

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsMux(promReg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics.serve", "addr", metricsAddr, "err", err)
			}
		}()
		defer srv.Close()
		log.Info("metrics.listening", "addr", metricsAddr)
	}

	if err := monitor.New(os.Stdout).Start(ctx, b.NewConnection("monitor")); err != nil {
		return err
	}

	ui := b.NewConnection("ui")
	cfg := platform.Setup(platform.DefaultSensorID, gpioPin, intervalMs)
	if p, ok := cfg.Devices[0].Params.(types.DHT22Params); ok {
		p.Debug = debug
		cfg.Devices[0].Params = p
	}
	ui.Publish(ui.NewMessage(bus.T("config", "hal"), cfg, true))
	log.Info("hal.configured", "backend", backend, "gpio", gpioPin, "interval_ms", intervalMs)

	<-ctx.Done()
	log.Info("shutdown")
	return nil
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

func newRegistry() (*platform.Registry, error) {
	switch backend {
	case "periph":
		if _, err := host.Init(); err != nil {
			return nil, err
		}
		return platform.NewRegistry(linuxBoard, func(pin int) (dht22.Engine, error) {
			e, err := dht22periph.Open("GPIO" + strconv.Itoa(pin))
			if err != nil {
				return nil, err
			}
			return e, nil
		}), nil
	default:
		script := make([]dht22sim.Cycle, 0, len(faults))
		for _, f := range faults {
			fault, _ := dht22sim.ParseFault(strings.TrimSpace(f))
			script = append(script, dht22sim.Cycle{Frame: dht22.EncodeFrame(500, 200), Fault: fault})
		}
		return platform.NewRegistry(platform.Host, func(int) (dht22.Engine, error) {
			e := dht22sim.New()
			e.Script(script...)
			return e, nil
		}), nil
	}
}
