package main

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"

	"github.com/robertof/go-ibbq-homie/ble"
	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/device/ibbq"
)

type deviceInfo struct {
  name string
  connectable bool
  services []string
  thermometer bool
  reading *device.RealTimeData
}

// merge folds a new advertisement of the same device into what is known already.
func (info deviceInfo) merge(a ble.Advertisement) deviceInfo {
  services := make(map[string]bool)

  for _, uuid := range info.services {
    services[uuid] = true
  }

  for _, uuid := range a.Services() {
    services[uuid.String()] = true
  }

  if info.name == "" {
    info.name = a.LocalName()
  }

  info.connectable = info.connectable || a.Connectable()
  info.services = maps.Keys(services)
  sort.Strings(info.services)

  if ibbq.IsBBQAdvertisement(a) {
    info.thermometer = true

    if reading, err := ibbq.ParseAdvertisement(a); err == nil {
      info.reading = &reading
    } else {
      log.Trace().
        Str("Addr", a.Addr().String()).
        Err(err).
        Msg("Advertisement carries no readings")
    }
  }

  return info
}

// scans end by running out of time, or by an interrupt.
func isScanWindowOver(err error) bool {
  return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func doDeviceDiscovery(cfg config) {
  log.Info().
    Dur("Window", cfg.ScanDuration).
    Msg("Starting in device discovery mode")

  handle, err := ble.Open(ble.Options{
    DeviceID: cfg.BluetoothDeviceId,
    ConnParams: cfg.BluetoothConnParams,
  })

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  defer handle.Stop()

  ctx := ble.WrapContextWithSigHandler(
    context.WithTimeout(
      context.Background(),
      cfg.ScanDuration,
    ),
  )

  devices := make(map[string]deviceInfo)

  err = handle.ScanAll(ctx, func(a ble.Advertisement) {
    addr := a.Addr().String()
    devices[addr] = devices[addr].merge(a)

    log.Debug().
      Str("Addr", addr).
      Str("Name", a.LocalName()).
      Bool("Connectable", a.Connectable()).
      Strs("Services", devices[addr].services).
      Hex("ManufacturerData", a.ManufacturerData()).
      Msg("Received device advertisement")
  })

  if err != nil && !isScanWindowOver(err) {
    log.Fatal().Err(err).Msg("Failed to initiate scan")
  }

  log.Info().Int("Found", len(devices)).Msg("Finished device discovery")

  addrs := maps.Keys(devices)
  sort.Strings(addrs)

  for _, addr := range addrs {
    data := devices[addr]

    event := log.Info().
      Str("Addr", addr).
      Str("Name", data.name).
      Bool("Connectable", data.connectable).
      Strs("Services", data.services).
      Bool("Thermometer", data.thermometer)

    if data.reading != nil {
      event = event.Stringer("Reading", data.reading)
    }

    event.Msg("Found device")
  }
}
