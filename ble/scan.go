package ble

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/rs/zerolog/log"
)

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// Perform an active or passive scan and return every advertisement found.
func (h *Handle) ScanAll(ctx context.Context, onDevice func(Advertisement)) error {
  err := h.dev.Scan(ctx, true, onDevice)

  if err != nil {
    return fmt.Errorf("failed to initiate scan: %w", err)
  }

  return nil
}

// Discover scans for `window` and returns the first advertisement of every device accepted
// by `filter`, keyed by lower case MAC address. Running out of time is the normal way out.
func (h *Handle) Discover(
  parentCtx context.Context,
  window time.Duration,
  filter func(Advertisement) bool,
) (map[string]Advertisement, error) {
  ctx, cancel := context.WithTimeout(parentCtx, window)
  defer cancel()

  var mu sync.Mutex
  found := make(map[string]Advertisement)

  err := h.dev.Scan(ctx, false, func(a Advertisement) {
    if !filter(a) {
      return
    }

    addr := strings.ToLower(a.Addr().String())

    mu.Lock()
    defer mu.Unlock()

    if _, ok := found[addr]; !ok {
      log.Debug().
        Str("Addr", addr).
        Str("LocalName", a.LocalName()).
        Int("RSSI", a.RSSI()).
        Msg("ble: discovered device")

      found[addr] = a
    }
  })

  if errors.Is(err, context.DeadlineExceeded) && parentCtx.Err() == nil {
    err = nil
  }

  mu.Lock()
  defer mu.Unlock()

  if err != nil {
    return found, fmt.Errorf("failed to scan: %w", err)
  }

  return found, nil
}

// Perform an active or passive scan for the specified addresses and pass it to
// an handler that determines whether to accept it - ending scanning for that address -
// or rejecting it. Returns as soon as every address has been accepted.
func (h *Handle) ScanAddresses(
  parentCtx context.Context,
  addresses []net.HardwareAddr,
  onAdvertisement func(Advertisement) bool,
) error {
  if len(addresses) == 0 {
    return nil
  }

  addrMap := make(map[string]chan Advertisement)

  ctx, cancel := context.WithCancel(parentCtx)
  done := make(chan string)

  for _, addr := range addresses {
    addrStr := strings.ToLower(addr.String())
    ch := make(chan ble.Advertisement, 10)
    addrMap[addrStr] = ch

    // spawn a goroutine for each device in order to serialize advertisements coming in.
    go func() {
      for {
        select {
        case next := <-ch:
          if onAdvertisement(next) {
            select {
            case done <- addrStr:
            case <-ctx.Done():
            }
            return
          }
        case <-ctx.Done():
          return
        }
      }
    }()
  }

  callback := func(a Advertisement) {
    addr := strings.ToLower(a.Addr().String())

    // the BLE lib could send an advertisement even after `Scan()` returns. do not waste
    // time enqueueing data if we're done.
    select {
    case <-ctx.Done():
      return
    default:
    }

    if ch, ok := addrMap[addr]; ok {
      log.Trace().
        Str("Addr", addr).
        Str("LocalName", a.LocalName()).
        Msg("ble: received advertisement, enqueueing")

      select {
      case ch <- a:
      default:
        // the device worker is behind, advertisements are periodic anyway.
      }
    }
  }

  // cancel the main context when all advertisements have been successfully processed.
  go func() {
    left := len(addresses)

    for {
      select {
      case <-done:
        left -= 1

        if left == 0 {
          cancel()
          return
        }
      case <-ctx.Done():
        return
      }
    }
  }()

  defer cancel()

  err := h.dev.Scan(ctx, false, callback)

  // swallow context.Canceled errors which are caused by our explicit cancellations.
  if errors.Is(err, context.Canceled) && parentCtx.Err() == nil {
    err = nil
  }

  return err
}
