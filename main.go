package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertof/go-ibbq-homie/ble"
	"github.com/robertof/go-ibbq-homie/bridge"
	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/device/ibbq"
	"github.com/robertof/go-ibbq-homie/fleet"
	"github.com/robertof/go-ibbq-homie/history"
	"github.com/robertof/go-ibbq-homie/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const firmwareName = "go-ibbq-homie"

// overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()

  if cfg.Trace || os.Getenv("TRACE") != "" {
      zerolog.SetGlobalLevel(zerolog.TraceLevel)
  } else if cfg.Debug || os.Getenv("DEBUG") != "" {
      zerolog.SetGlobalLevel(zerolog.DebugLevel)
  } else {
      zerolog.SetGlobalLevel(zerolog.InfoLevel)
  }

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return
  }

  if err := run(cfg); err != nil {
    log.Fatal().Err(err).Msg("Bridge terminated")
  }

  log.Info().Msg("Bridge stopped")
}

func run(cfg config) error {
  log.Info().
    Str("Version", version).
    Str("Broker", cfg.MQTT.Host).
    Int("Port", cfg.MQTT.Port).
    Str("BindAddr", cfg.BindAddress).
    Array("Devices", device.Addrs(cfg.Addresses)).
    Int("BluetoothDeviceID", cfg.BluetoothDeviceId).
    Msg("Starting with the specified configuration")

  ctx := ble.WrapContextWithSigHandler(context.WithCancel(context.Background()))

  registry := prometheus.NewRegistry()
  collector := metrics.NewCollector()
  metrics.RegisterCollector(collector, registry)
  ble.RegisterMetrics(registry)

  recorders := bridge.Recorders{collector}

  if cfg.InfluxDB.Enabled {
    historyClient, err := history.Connect(ctx, cfg.InfluxDB)

    if err != nil {
      return fmt.Errorf("failed to connect to InfluxDB: %w", err)
    }

    defer historyClient.Close()

    recorders = append(recorders, historyClient)
  }

  if cfg.BindAddress != "" {
    go serveMetrics(cfg.BindAddress, registry)
  }

  bleHandle, err := initBle(cfg)
  if err != nil {
    return err
  }

  defer bleHandle.Stop()

  f := fleet.New(
    bleHandle,
    newSessionFactory(cfg, ibbq.NewConnector(bleHandle), recorders),
    fleet.Options{
      ScanDuration: cfg.ScanDuration,
      Addresses: cfg.Addresses,
    },
  )

  // interrupting the process cancels ctx: a clean way out.
  if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
    return err
  }

  return nil
}

func serveMetrics(bindAddress string, registry *prometheus.Registry) {
  log.Info().
      Str("ListenAddress", bindAddress).
      Msg("Starting Prometheus server")

  mux := http.NewServeMux()
  mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

  if err := http.ListenAndServe(bindAddress, mux); err != nil {
      log.Fatal().Err(err).Msg("Unable to bind on requested address")
  }
}

func initBle(cfg config) (*ble.Handle, error) {
  bleHandle, err := ble.Open(ble.Options{
    DeviceID: cfg.BluetoothDeviceId,
    ConnParams: cfg.BluetoothConnParams,
    AllowList: cfg.Addresses,
  })

  if err != nil {
    return nil, fmt.Errorf("failed to initialize Bluetooth device: %w", err)
  }

  return bleHandle, nil
}
