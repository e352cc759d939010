package device

import (
  "errors"
  "fmt"
  "net"
  "strings"

  "github.com/rs/zerolog"
)

var (
  ErrInvalidData = errors.New("invalid data")
  ErrCorruptedData = errors.New("corrupted data")
  ErrUnsupportedProbe = errors.New("unsupported probe index")
)

// Device is a thermometer found while scanning, before any connection is made.
type Device struct {
  Addr net.HardwareAddr
  LocalName string
}

// ID is the MAC address without separators, lower case. Used to build topic and client ids.
func (d Device) ID() string {
  return strings.ToLower(strings.ReplaceAll(d.Addr.String(), ":", ""))
}

func (d Device) String() string {
  return fmt.Sprintf("bbq[name=%q, addr=%v]", d.LocalName, d.Addr.String())
}

// Devices logs as an array of device descriptions.
type Devices []Device

func (ds Devices) MarshalZerologArray(a *zerolog.Array) {
  for _, d := range ds {
    a.Str(d.String())
  }
}

// Addrs logs as an array of MAC addresses.
type Addrs []net.HardwareAddr

func (as Addrs) MarshalZerologArray(a *zerolog.Array) {
  for _, addr := range as {
    a.Str(addr.String())
  }
}
