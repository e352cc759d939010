package ble

import (
  "net"
  "testing"
)

func TestHciAddress(t *testing.T) {
  addr, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")

  got, err := hciAddress(addr)

  if err != nil {
    t.Fatalf("hciAddress(%v) got error: %v", addr, err)
  }

  want := [6]byte{0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa}

  if got != want {
    t.Fatalf("hciAddress(%v): got %x, wanted %x", addr, got, want)
  }
}

func TestHciAddress_NotSixBytes(t *testing.T) {
  addr, _ := net.ParseMAC("00:00:5e:00:53:01:02:03")

  if _, err := hciAddress(addr); err == nil {
    t.Fatalf("hciAddress(%v): expected error", addr)
  }
}

func TestScanParameters(t *testing.T) {
  p := scanParameters(filterPolicyAllowListedOnly)

  if p.LEScanType != scanTypeActive {
    t.Fatalf("scan type: got %#x, wanted active", p.LEScanType)
  }

  if p.ScanningFilterPolicy != 0x01 {
    t.Fatalf("filter policy: got %#x, wanted allow-listed only", p.ScanningFilterPolicy)
  }

  if p.LEScanWindow > p.LEScanInterval {
    t.Fatalf("scan window %#x larger than interval %#x", p.LEScanWindow, p.LEScanInterval)
  }
}
