package ibbq

import (
  "bytes"
  "encoding/binary"
  "net"
  "strings"

  "github.com/pkg/errors"
  "github.com/robertof/go-ibbq-homie/ble"
  "github.com/robertof/go-ibbq-homie/device"
)

func IsBBQDevice(deviceName string) bool {
  deviceName = strings.ToLower(deviceName)
  return strings.Contains(deviceName, "xbbq") || strings.Contains(deviceName, "ibbq")
}

// IsBBQAdvertisement accepts advertisements by local name or by the iBBQ service UUID, since
// passive scans do not always carry the name.
func IsBBQAdvertisement(a ble.Advertisement) bool {
  if IsBBQDevice(a.LocalName()) {
    return true
  }

  for _, uuid := range a.Services() {
    if uuid.Equal(ble.UUID16(serviceUuid)) {
      return true
    }
  }

  return false
}

// ParseAdvertisement decodes the probe temperatures iBBQ devices broadcast in their
// manufacturer data. Only used for discovery, live data comes from the GATT session.
func ParseAdvertisement(a ble.Advertisement) (reading device.RealTimeData, err error) {
  data := a.ManufacturerData()

  if len(data) < 12 || len(data) % 2 != 0 {
    return reading, errors.Wrapf(device.ErrInvalidData,
      "unexpected data length (%d) for BBQ device, want >= 12", len(data))
  }

  // check MAC address embedded in data
  macBytes := data[4:10]
  hwAddr, err := net.ParseMAC(a.Addr().String())

  if err != nil {
    return reading, errors.Wrapf(err,
      "tried to parse sender MAC address and failed!?")
  }

  if !bytes.Equal(macBytes, hwAddr) && !bytes.Equal(reversed(macBytes), hwAddr) {
    return reading, errors.Wrapf(device.ErrCorruptedData,
      "device MAC address (%v) does not match MAC embedded into data (%x)", hwAddr, macBytes)
  }

  tempInfo := data[10:]
  numOfTemperatureProbes := len(tempInfo) / 2

  if numOfTemperatureProbes > MaxProbes {
    return reading, errors.Wrapf(device.ErrInvalidData,
      "found more than %d temperature probes (%d), unknown device?", MaxProbes, numOfTemperatureProbes)
  }

  reading.ProbeTemperatures = make([]device.ProbeTemperature, numOfTemperatureProbes)

  for i := range reading.ProbeTemperatures {
    reading.ProbeTemperatures[i] = decodeProbeTemperature(binary.LittleEndian.Uint16(tempInfo[i * 2:]))
  }

  return reading, nil
}

// some firmwares embed the MAC address in reverse byte order.
func reversed(b []byte) []byte {
  out := make([]byte, len(b))

  for i := range b {
    out[len(b) - 1 - i] = b[i]
  }

  return out
}
