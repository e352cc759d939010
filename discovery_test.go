package main

import (
	"testing"

	ble_mod "github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdvertisement struct {
  name string
  connectable bool
  services []ble_mod.UUID
}

func (f fakeAdvertisement) LocalName() string { return f.name }
func (f fakeAdvertisement) ManufacturerData() []byte { return nil }
func (f fakeAdvertisement) ServiceData() []ble_mod.ServiceData { return nil }
func (f fakeAdvertisement) Services() []ble_mod.UUID { return f.services }
func (f fakeAdvertisement) OverflowService() []ble_mod.UUID { return nil }
func (f fakeAdvertisement) TxPowerLevel() int { return 0 }
func (f fakeAdvertisement) Connectable() bool { return f.connectable }
func (f fakeAdvertisement) SolicitedService() []ble_mod.UUID { return nil }
func (f fakeAdvertisement) RSSI() int { return -70 }
func (f fakeAdvertisement) Addr() ble_mod.Addr { return ble_mod.NewAddr("aa:bb:cc:dd:ee:ff") }

func TestDeviceInfoMerge(t *testing.T) {
  var info deviceInfo

  info = info.merge(fakeAdvertisement{
    connectable: true,
    services: []ble_mod.UUID{ble_mod.UUID16(0x180f)},
  })

  assert.False(t, info.thermometer)
  assert.Equal(t, "", info.name)

  info = info.merge(fakeAdvertisement{
    name: "iBBQ",
    services: []ble_mod.UUID{ble_mod.UUID16(0xfff0), ble_mod.UUID16(0x180f)},
  })

  assert.Equal(t, "iBBQ", info.name)
  assert.True(t, info.connectable)
  assert.True(t, info.thermometer)
  require.Len(t, info.services, 2)
  assert.Equal(t, []string{ble_mod.UUID16(0x180f).String(), ble_mod.UUID16(0xfff0).String()}, info.services)

  // no manufacturer data, nothing to decode.
  assert.Nil(t, info.reading)
}
