package device

import (
  "fmt"
  "net"
  "strings"

  "github.com/rs/zerolog/log"
)

type DeviceSpec map[string]string

const (
  DeviceSpecFieldName = "name"
  DeviceSpecFieldAddress = "addr"
  DeviceSpecFieldProbes = "probes"
)

func NewDeviceSpec(s string) DeviceSpec {
  spec := DeviceSpec{}
  entries := strings.Split(s, ",")

  for _, entry := range entries {
    parts := strings.SplitN(entry, "=", 2)

    if len(parts) != 2 {
      log.Warn().Str("Entry", entry).Msg("Skipping invalid device spec entry")
      continue
    }

    spec[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
  }

  return spec
}

func (ds DeviceSpec) Name() string {
  return ds[DeviceSpecFieldName]
}

func (ds DeviceSpec) Addr() string {
  return ds[DeviceSpecFieldAddress]
}

// ProbeNames are separated by ';' since ',' already separates spec entries.
func (ds DeviceSpec) ProbeNames() []string {
  raw := ds[DeviceSpecFieldProbes]

  if raw == "" {
    return nil
  }

  names := strings.Split(raw, ";")

  for i := range names {
    names[i] = strings.TrimSpace(names[i])
  }

  return names
}

// Config is the static, user provided configuration of one thermometer.
type Config struct {
  Name string
  ProbeNames []string
}

// ProbeName returns the configured label of a probe, or "Probe N" (1-based).
func (c Config) ProbeName(probe uint8) string {
  if int(probe) < len(c.ProbeNames) && c.ProbeNames[probe] != "" {
    return c.ProbeNames[probe]
  }

  return fmt.Sprintf("Probe %d", int(probe) + 1)
}

func FromSpec(spec DeviceSpec) (net.HardwareAddr, Config, error) {
  addr, err := net.ParseMAC(spec.Addr())
  if err != nil {
    return nil, Config{}, fmt.Errorf("invalid addr: %w", err)
  }

  return addr, Config{
    Name: spec.Name(),
    ProbeNames: spec.ProbeNames(),
  }, nil
}

func SpecHelp() string {
  return `Supported parameters:
addr (string, required): MAC address of the thermometer
name (string): Display name, defaults to the Bluetooth name
probes (string): Probe labels separated by ';', e.g. probes=Brisket;Ribs`
}
