package ble

import (
	"fmt"
	"net"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Advertisement = ble.Advertisement
type Characteristic = ble.Characteristic
type Client = ble.Client
type UUID = ble.UUID

// Handle owns the HCI adapter and the links to every thermometer.
type Handle struct {
  dev *linux.Device
  connPool *connectionPool
}

// Options describe how the adapter talks to thermometers.
type Options struct {
  DeviceID int
  ConnParams ConnParams

  // when not empty, the controller drops advertisements of any other device.
  AllowList []net.HardwareAddr
}

func UUID16(i uint16) UUID {
  return ble.UUID16(i)
}

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(
    successfulConnectionsCounter,
    failedConnectionsCounter,
    connectionsFromPoolCounter,
    disconnectsCounter,
  )
}

// Open takes over the HCI adapter. Scans are always active since iBBQ thermometers only
// send their local name in scan responses. Links are pooled per address: dials are
// serialized and a retried handshake reuses the link of the previous attempt.
func Open(opts Options) (*Handle, error) {
  connOptions, err := opts.ConnParams.adapterOptions()
  if err != nil {
    return nil, err
  }

  policy := filterPolicyAcceptAll
  if len(opts.AllowList) > 0 {
    policy = filterPolicyAllowListedOnly
  }

  log.Debug().
    Stringer("FilterPolicy", policy).
    Stringer("ConnParams", &opts.ConnParams).
    Int("DeviceID", opts.DeviceID).
    Msg("Initializing Bluetooth device")

  dev, err := linux.NewDevice(
    ble.OptDeviceID(opts.DeviceID),
    ble.OptScanParams(scanParameters(policy)),
    ble.OptConnParams(connOptions),
  )

  if err != nil {
    return nil, fmt.Errorf("failed to init bluetooth device: %w", err)
  }

  ble.SetDefaultDevice(dev)

  h := &Handle{
    dev: dev,
    connPool: initConnectionPool(),
  }

  if len(opts.AllowList) > 0 {
    if err := h.setAllowList(opts.AllowList); err != nil {
      dev.Stop()
      return nil, err
    }
  }

  return h, nil
}

func (h *Handle) Stop() {
  h.DisconnectAll()
  h.dev.Stop()
}
