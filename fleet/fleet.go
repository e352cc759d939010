// Package fleet finds thermometers and keeps one bridge session running for each of them.
package fleet

import (
  "context"
  "errors"
  "fmt"
  "net"
  "sort"
  "strings"
  "sync"
  "time"

  "github.com/robertof/go-ibbq-homie/ble"
  "github.com/robertof/go-ibbq-homie/device"
  "github.com/robertof/go-ibbq-homie/device/ibbq"
  "github.com/rs/zerolog/log"
  "golang.org/x/exp/maps"
  "golang.org/x/sync/errgroup"
)

const DefaultScanDuration = 5 * time.Second

var ErrNoDevicesFound = errors.New("no devices found")

// Scanner is implemented by *ble.Handle.
type Scanner interface {
  Discover(
    ctx context.Context,
    window time.Duration,
    filter func(ble.Advertisement) bool,
  ) (map[string]ble.Advertisement, error)

  ScanAddresses(
    ctx context.Context,
    addresses []net.HardwareAddr,
    onAdvertisement func(ble.Advertisement) bool,
  ) error
}

type Session interface {
  Run(ctx context.Context) error
}

type SessionFactory func(dev device.Device) Session

type Options struct {
  ScanDuration time.Duration

  // When not empty, only these thermometers are bridged.
  Addresses []net.HardwareAddr
}

type Fleet struct {
  scanner    Scanner
  newSession SessionFactory
  options    Options
}

func New(scanner Scanner, newSession SessionFactory, options Options) *Fleet {
  if options.ScanDuration <= 0 {
    options.ScanDuration = DefaultScanDuration
  }

  return &Fleet{
    scanner:    scanner,
    newSession: newSession,
    options:    options,
  }
}

// scanAddresses waits for the configured thermometers, returning early once all of them
// have been seen.
func (f *Fleet) scanAddresses(parentCtx context.Context) (map[string]ble.Advertisement, error) {
  ctx, cancel := context.WithTimeout(parentCtx, f.options.ScanDuration)
  defer cancel()

  var mu sync.Mutex
  found := make(map[string]ble.Advertisement)

  err := f.scanner.ScanAddresses(ctx, f.options.Addresses, func(a ble.Advertisement) bool {
    mu.Lock()
    defer mu.Unlock()

    found[strings.ToLower(a.Addr().String())] = a

    return true
  })

  // thermometers that did not show up are skipped, not fatal.
  if errors.Is(err, context.DeadlineExceeded) && parentCtx.Err() == nil {
    err = nil
  }

  mu.Lock()
  defer mu.Unlock()

  for _, addr := range f.options.Addresses {
    if _, ok := found[strings.ToLower(addr.String())]; !ok {
      log.Warn().Stringer("Addr", addr).Msg("Configured device not found")
    }
  }

  return found, err
}

// Discover scans for the configured window and returns the thermometers found, ordered by
// address.
func (f *Fleet) Discover(ctx context.Context) ([]device.Device, error) {
  log.Info().Dur("Window", f.options.ScanDuration).Msg("Starting discovery")

  var found map[string]ble.Advertisement
  var err error

  if len(f.options.Addresses) > 0 {
    found, err = f.scanAddresses(ctx)
  } else {
    found, err = f.scanner.Discover(ctx, f.options.ScanDuration, ibbq.IsBBQAdvertisement)
  }

  if err != nil {
    return nil, fmt.Errorf("discovery failed: %w", err)
  }

  addrs := maps.Keys(found)
  sort.Strings(addrs)

  devices := make([]device.Device, 0, len(addrs))

  for _, addr := range addrs {
    hwAddr, err := net.ParseMAC(addr)
    if err != nil {
      log.Warn().Str("Addr", addr).Err(err).Msg("Ignoring device with invalid address")
      continue
    }

    devices = append(devices, device.Device{
      Addr:      hwAddr,
      LocalName: found[addr].LocalName(),
    })
  }

  if len(devices) == 0 {
    return nil, ErrNoDevicesFound
  }

  log.Info().
    Array("Devices", device.Devices(devices)).
    Msg("Discovery finished")

  return devices, nil
}

// Run discovers thermometers and runs a session for each of them. The first session to fail
// cancels the others and its error is returned. Sessions that end because their device went
// away do not affect the others.
func (f *Fleet) Run(parentCtx context.Context) error {
  devices, err := f.Discover(parentCtx)
  if err != nil {
    return err
  }

  eg, ctx := errgroup.WithContext(parentCtx)

  for _, dev := range devices {
    dev := dev
    session := f.newSession(dev)

    eg.Go(func() error {
      log.Trace().Stringer("Device", dev).Msg("fleet: session worker started")

      if err := session.Run(ctx); err != nil {
        return fmt.Errorf("session for %v: %w", dev, err)
      }

      log.Trace().Stringer("Device", dev).Msg("fleet: session worker finished")

      return nil
    })
  }

  return eg.Wait()
}
