package device

import (
  "fmt"
  "strconv"
  "strings"
)

type TemperatureUnit uint8

const (
  UnitCelsius TemperatureUnit = iota
  UnitFahrenheit
)

func (u TemperatureUnit) String() string {
  switch u {
  case UnitCelsius:
    return "Celsius"
  case UnitFahrenheit:
    return "Fahrenheit"
  default:
    panic("Unknown temperature unit: " + strconv.Itoa(int(u)))
  }
}

// ProbeTemperature is the reading of one probe slot. Connected is false when nothing is
// plugged into the slot, in which case Celsius is meaningless.
type ProbeTemperature struct {
  Celsius float32
  Connected bool
}

func (p ProbeTemperature) String() string {
  if !p.Connected {
    return "-"
  }

  return fmt.Sprintf("%.1f", p.Celsius)
}

// RealTimeData holds one slot per physical probe, in probe index order.
type RealTimeData struct {
  ProbeTemperatures []ProbeTemperature
}

func (r RealTimeData) String() string {
  fields := make([]string, len(r.ProbeTemperatures))

  for i, p := range r.ProbeTemperatures {
    fields[i] = p.String()
  }

  return fmt.Sprintf("RealTimeData[%v]", strings.Join(fields, ","))
}

// SettingResult is one of BatteryLevel, SilencePressed or UnknownSettingResult.
type SettingResult interface {
  fmt.Stringer
  isSettingResult()
}

type BatteryLevel struct {
  CurrentVoltage uint16
  MaxVoltage uint16
}

// Percentage truncates, matching what the device itself displays.
func (b BatteryLevel) Percentage() uint32 {
  if b.MaxVoltage == 0 {
    return 0
  }

  return uint32(b.CurrentVoltage) * 100 / uint32(b.MaxVoltage)
}

func (b BatteryLevel) String() string {
  return fmt.Sprintf("BatteryLevel[Current=%d,Max=%d]", b.CurrentVoltage, b.MaxVoltage)
}

type SilencePressed struct{}

func (SilencePressed) String() string {
  return "SilencePressed"
}

// UnknownSettingResult carries frames this bridge does not understand (other firmware variants).
type UnknownSettingResult struct {
  Raw []byte
}

func (u UnknownSettingResult) String() string {
  return fmt.Sprintf("UnknownSettingResult[%x]", u.Raw)
}

func (BatteryLevel) isSettingResult() {}
func (SilencePressed) isSettingResult() {}
func (UnknownSettingResult) isSettingResult() {}
