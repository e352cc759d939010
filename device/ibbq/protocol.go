package ibbq

import (
  "encoding/binary"
  "math"

  "github.com/pkg/errors"
  "github.com/robertof/go-ibbq-homie/device"
)

// GATT layout shared by every iBBQ thermometer.
const (
  serviceUuid = 0xfff0
  settingResultUuid = 0xfff1 // notify
  accountAndVerifyUuid = 0xfff2 // write
  realTimeDataUuid = 0xfff4 // notify
  settingDataUuid = 0xfff5 // write
)

const (
  cmdSetTarget byte = 0x01
  cmdSetUnit byte = 0x02
  cmdSilenceAlarm byte = 0x04
  cmdRequestBattery byte = 0x08
  cmdRealTimeData byte = 0x0b

  resultSilencePressed byte = 0x04
  resultBatteryLevel byte = 0x24

  // raw value reported for an empty probe slot.
  rawProbeDisconnected uint16 = 0xfff6

  // reported when the device does not know its nominal voltage.
  defaultMaxVoltage uint16 = 6550

  // the firmware has no dedicated "no lower bound" / "no target" encodings.
  targetLowest float32 = -300
  targetHighest float32 = 300

  MaxProbes = 6
)

var credentials = []byte{
  0x21, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, 0xb8, 0x22, 0x00, 0x00, 0x00, 0x00, 0x00,
}

var (
  enableRealTimeDataCmd = []byte{cmdRealTimeData, 0x01, 0x00, 0x00, 0x00, 0x00}
  disableRealTimeDataCmd = []byte{cmdRealTimeData, 0x00, 0x00, 0x00, 0x00, 0x00}
  requestBatteryLevelCmd = []byte{cmdRequestBattery, resultBatteryLevel, 0x00, 0x00, 0x00, 0x00}
  silenceAlarmCmd = []byte{cmdSilenceAlarm, 0xff, 0x00, 0x00, 0x00, 0x00}
)

func encodeUnit(unit device.TemperatureUnit) []byte {
  var raw byte

  if unit == device.UnitFahrenheit {
    raw = 0x01
  }

  return []byte{cmdSetUnit, raw, 0x00, 0x00, 0x00, 0x00}
}

// temperatures travel as little endian int16 in tenths of a degree Celsius.
func encodeTemperature(t float32) (uint16, error) {
  tenths := math.Round(float64(t) * 10)

  if math.IsNaN(tenths) || tenths < math.MinInt16 || tenths > math.MaxInt16 {
    return 0, errors.Wrapf(device.ErrInvalidData, "temperature %v out of range", t)
  }

  return uint16(int16(tenths)), nil
}

func encodeTarget(probe uint8, min, max float32) ([]byte, error) {
  if probe >= MaxProbes {
    return nil, errors.Wrapf(device.ErrUnsupportedProbe, "probe %d", probe)
  }

  rawMin, err := encodeTemperature(min)
  if err != nil {
    return nil, err
  }

  rawMax, err := encodeTemperature(max)
  if err != nil {
    return nil, err
  }

  out := []byte{cmdSetTarget, probe, 0, 0, 0, 0}
  binary.LittleEndian.PutUint16(out[2:], rawMin)
  binary.LittleEndian.PutUint16(out[4:], rawMax)

  return out, nil
}

func encodeSingleTarget(probe uint8, max float32) ([]byte, error) {
  return encodeTarget(probe, targetLowest, max)
}

func encodeRemoveTarget(probe uint8) ([]byte, error) {
  return encodeTarget(probe, targetLowest, targetHighest)
}

func ParseRealTimeData(data []byte) (r device.RealTimeData, err error) {
  if len(data) == 0 || len(data) % 2 != 0 {
    return r, errors.Wrapf(device.ErrInvalidData,
      "unexpected real time data length (%d), want a non-zero multiple of 2", len(data))
  }

  numOfProbes := len(data) / 2

  if numOfProbes > MaxProbes {
    return r, errors.Wrapf(device.ErrInvalidData,
      "found more than %d temperature probes (%d), unknown device?", MaxProbes, numOfProbes)
  }

  r.ProbeTemperatures = make([]device.ProbeTemperature, numOfProbes)

  for i := range r.ProbeTemperatures {
    r.ProbeTemperatures[i] = decodeProbeTemperature(binary.LittleEndian.Uint16(data[i * 2:]))
  }

  return r, nil
}

func decodeProbeTemperature(raw uint16) device.ProbeTemperature {
  if raw == rawProbeDisconnected {
    return device.ProbeTemperature{}
  }

  return device.ProbeTemperature{
    Celsius: float32(int16(raw)) / 10.0,
    Connected: true,
  }
}

func ParseSettingResult(data []byte) (device.SettingResult, error) {
  if len(data) == 0 {
    return nil, errors.Wrap(device.ErrInvalidData, "empty setting result")
  }

  switch data[0] {
  case resultBatteryLevel:
    if len(data) < 5 {
      return nil, errors.Wrapf(device.ErrInvalidData,
        "battery level result too short (%d bytes)", len(data))
    }

    res := device.BatteryLevel{
      CurrentVoltage: binary.LittleEndian.Uint16(data[1:]),
      MaxVoltage: binary.LittleEndian.Uint16(data[3:]),
    }

    if res.MaxVoltage == 0 {
      res.MaxVoltage = defaultMaxVoltage
    }

    return res, nil
  case resultSilencePressed:
    return device.SilencePressed{}, nil
  default:
    raw := make([]byte, len(data))
    copy(raw, data)

    return device.UnknownSettingResult{Raw: raw}, nil
  }
}
