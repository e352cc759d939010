package ble

import (
	"fmt"
	"net"

	"github.com/go-ble/ble/linux/hci/cmd"
	"github.com/rs/zerolog/log"
)

// thermometers advertise about once a second, a discovery window is a few seconds long.
// Scanning at full duty cycle makes sure a single window sees every device.
const (
  scanInterval uint16 = 0x0010 // N * 0.625 msec
  scanWindow uint16 = 0x0010 // N * 0.625 msec
  scanTypeActive uint8 = 0x01
  addressTypePublic uint8 = 0x00
)

type filterPolicy uint8

const (
  filterPolicyAcceptAll filterPolicy = iota
  filterPolicyAllowListedOnly
)

func (f filterPolicy) String() string {
  switch f {
  case filterPolicyAcceptAll:
    return "Accept All"
  case filterPolicyAllowListedOnly:
    return "Allow-listed Only"
  default:
    return fmt.Sprintf("filterPolicy(%d)", uint8(f))
  }
}

func scanParameters(policy filterPolicy) cmd.LESetScanParameters {
  return cmd.LESetScanParameters{
    LEScanType: scanTypeActive,
    LEScanInterval: scanInterval,
    LEScanWindow: scanWindow,
    OwnAddressType: addressTypePublic,
    ScanningFilterPolicy: uint8(policy),
  }
}

// hciAddress converts a MAC address to the little endian layout HCI commands expect.
func hciAddress(addr net.HardwareAddr) ([6]byte, error) {
  var out [6]byte

  if len(addr) != len(out) {
    return out, fmt.Errorf("refusing to allow-list %q: not a 6 byte MAC address", addr.String())
  }

  for i := range out {
    out[i] = addr[len(addr) - 1 - i]
  }

  return out, nil
}

// setAllowList replaces the controller allow-list with the configured thermometers.
func (h *Handle) setAllowList(addrs []net.HardwareAddr) error {
  entries := make([][6]byte, 0, len(addrs))
  names := make([]string, 0, len(addrs))

  for _, addr := range addrs {
    entry, err := hciAddress(addr)
    if err != nil {
      return err
    }

    entries = append(entries, entry)
    names = append(names, addr.String())
  }

  log.Debug().
    Strs("DeviceAddresses", names).
    Msg("Allow-listing the configured thermometers")

  var cleared cmd.LEClearWhiteListRP

  if err := h.dev.HCI.Send(&cmd.LEClearWhiteList{}, &cleared); err != nil {
    return fmt.Errorf("failed to clear allow-list: %w", err)
  }

  if cleared.Status != 0 {
    return fmt.Errorf("failed to clear allow-list: got status: %v", cleared.Status)
  }

  for i, entry := range entries {
    var res cmd.LEAddDeviceToWhiteListRP

    err := h.dev.HCI.Send(&cmd.LEAddDeviceToWhiteList{
      AddressType: addressTypePublic,
      Address: entry,
    }, &res)

    if err != nil {
      return fmt.Errorf("failed to allow-list device %q: %w", names[i], err)
    }

    if res.Status != 0 {
      return fmt.Errorf("failed to allow-list device %q: got status: %v", names[i], res.Status)
    }
  }

  return nil
}
