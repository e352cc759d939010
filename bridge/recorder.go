package bridge

import "github.com/robertof/go-ibbq-homie/device"

// Recorder receives a copy of everything a session publishes, for exporters that are not
// part of the property tree.
type Recorder interface {
  RecordTemperature(deviceID string, probe uint8, celsius float32)
  ClearTemperature(deviceID string, probe uint8)
  RecordBattery(deviceID string, level device.BatteryLevel)
  RecordWrite(accepted bool)
}

// Recorders fans out to every recorder in the slice.
type Recorders []Recorder

func (rs Recorders) RecordTemperature(deviceID string, probe uint8, celsius float32) {
  for _, r := range rs {
    r.RecordTemperature(deviceID, probe, celsius)
  }
}

func (rs Recorders) ClearTemperature(deviceID string, probe uint8) {
  for _, r := range rs {
    r.ClearTemperature(deviceID, probe)
  }
}

func (rs Recorders) RecordBattery(deviceID string, level device.BatteryLevel) {
  for _, r := range rs {
    r.RecordBattery(deviceID, level)
  }
}

func (rs Recorders) RecordWrite(accepted bool) {
  for _, r := range rs {
    r.RecordWrite(accepted)
  }
}
