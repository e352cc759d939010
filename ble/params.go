package ble

import (
  "fmt"

  "github.com/go-ble/ble/linux/hci/cmd"
)

type ConnParams string

const (
  ConnParamsDefault     ConnParams = "default"
  ConnParamsPowerSaving ConnParams = "power-saving"
)

var allConnParams = []ConnParams{ConnParamsDefault, ConnParamsPowerSaving}

// connTiming is expressed in HCI units: intervals in 1.25 msec, supervision timeout in 10 msec.
type connTiming struct {
  intervalMin uint16
  intervalMax uint16
  latency uint16
  supervisionTimeout uint16
}

// a session receives one real time frame per second and occasionally writes a command.
var connTimings = map[ConnParams]connTiming{
  // 50-75 msec, commands are acknowledged well within a frame period. 4s supervision.
  ConnParamsDefault: {
    intervalMin: 0x0028,
    intervalMax: 0x003c,
    latency: 0,
    supervisionTimeout: 0x0190,
  },
  // 300 msec and the thermometer may skip 3 events in a row, frames are delayed by up to
  // 1.2s. 6s supervision.
  ConnParamsPowerSaving: {
    intervalMin: 0x00f0,
    intervalMax: 0x00f0,
    latency: 3,
    supervisionTimeout: 0x0258,
  },
}

// *flag.Value
func (c *ConnParams) String() string {
  return string(*c)
}

func (c *ConnParams) Set(v string) error {
  if v == "" {
    *c = ConnParamsDefault
    return nil
  }

  p := ConnParams(v)

  if _, ok := connTimings[p]; !ok {
    return fmt.Errorf("unknown connection param %v (must be one of %v)", p, allConnParams)
  }

  *c = p
  return nil
}

func (c ConnParams) timing() (connTiming, error) {
  if c == "" {
    c = ConnParamsDefault
  }

  t, ok := connTimings[c]
  if !ok {
    return connTiming{}, fmt.Errorf("unknown Bluetooth connection param %q", string(c))
  }

  return t, nil
}

func (c ConnParams) adapterOptions() (cmd.LECreateConnection, error) {
  t, err := c.timing()
  if err != nil {
    return cmd.LECreateConnection{}, err
  }

  return cmd.LECreateConnection{
    LEScanInterval:        scanInterval,
    LEScanWindow:          scanWindow,
    InitiatorFilterPolicy: 0x00, // connect to the requested peer only
    PeerAddressType:       addressTypePublic,
    OwnAddressType:        addressTypePublic,
    ConnIntervalMin:       t.intervalMin,
    ConnIntervalMax:       t.intervalMax,
    ConnLatency:           t.latency,
    SupervisionTimeout:    t.supervisionTimeout,
  }, nil
}
