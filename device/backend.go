package device

import (
  "context"
  "net"
)

// Thermometer is the command and telemetry surface of an authenticated thermometer.
//
// Streams are closed when the underlying link goes away. Commands fail when the device
// rejects them or the link drops.
type Thermometer interface {
  RealTimeData() (<-chan RealTimeData, error)
  SettingResults() (<-chan SettingResult, error)

  SetTemperatureUnit(unit TemperatureUnit) error
  SilenceAlarm() error
  SetTargetTemp(probe uint8, temperature float32) error
  SetTargetRange(probe uint8, min, max float32) error
  RemoveTarget(probe uint8) error
  EnableRealTimeData(enable bool) error
  RequestBatteryLevel() error
}

// Conn is a connected, not necessarily authenticated, thermometer.
type Conn interface {
  Thermometer

  Authenticate() error
  Close() error
}

// Connector dials devices found by discovery.
type Connector interface {
  Connect(ctx context.Context, addr net.HardwareAddr) (Conn, error)
}
