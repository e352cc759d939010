package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robertof/go-ibbq-homie/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
  t.Helper()

  path := filepath.Join(t.TempDir(), "cloudbbq-homie.toml")
  require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

  return path
}

func TestConfigDefaultsWithoutFile(t *testing.T) {
  cfg, err := parseArgs([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")})
  require.NoError(t, err)

  assert.Equal(t, "test.mosquitto.org", cfg.MQTT.Host)
  assert.Equal(t, 1883, cfg.MQTT.Port)
  assert.False(t, cfg.MQTT.UseTLS)
  assert.Equal(t, 5 * time.Second, cfg.MQTT.KeepAlive)
  assert.Equal(t, "cloudbbq", cfg.ClientPrefix)
  assert.Equal(t, homieConfig{Prefix: "homie", DeviceIDPrefix: "cloudbbq"}, cfg.Homie)
  assert.False(t, cfg.InfluxDB.Enabled)
  assert.Equal(t, 5 * time.Second, cfg.ScanDuration)
  assert.Empty(t, cfg.Devices)
}

func TestConfigFile(t *testing.T) {
  path := writeConfig(t, `
[mqtt]
host = "broker.lan"
port = 8883
use_tls = true
username = "bbq"
password = "secret"
client_prefix = "smoker"

[homie]
prefix = "devices"
device_id_prefix = "bbq"

[influxdb]
enabled = true
url = "http://influx.lan:8086"
token = "t0ken"
org = "home"
bucket = "bbq"

[device."AA:BB:CC:DD:EE:FF"]
name = "Smoker"
probe_names = ["Brisket", "Ambient"]
`)

  cfg, err := parseArgs([]string{"-config", path, "-battery-interval", "1m"})
  require.NoError(t, err)

  assert.Equal(t, "broker.lan", cfg.MQTT.Host)
  assert.Equal(t, 8883, cfg.MQTT.Port)
  assert.True(t, cfg.MQTT.UseTLS)
  assert.Equal(t, "bbq", cfg.MQTT.Username)
  assert.Equal(t, "secret", cfg.MQTT.Password)
  assert.Equal(t, "smoker", cfg.ClientPrefix)
  assert.Equal(t, homieConfig{Prefix: "devices", DeviceIDPrefix: "bbq"}, cfg.Homie)
  assert.True(t, cfg.InfluxDB.Enabled)
  assert.Equal(t, "bbq", cfg.InfluxDB.Bucket)
  assert.Equal(t, time.Minute, cfg.BatteryInterval)

  addr, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
  assert.Equal(t, device.Config{Name: "Smoker", ProbeNames: []string{"Brisket", "Ambient"}}, cfg.DeviceConfig(addr))

  // configured devices do not restrict discovery.
  assert.Empty(t, cfg.Addresses)
}

func TestDeviceFlagsOverrideFile(t *testing.T) {
  path := writeConfig(t, `
[device."aa:bb:cc:dd:ee:ff"]
name = "From file"

[device."11:22:33:44:55:66"]
name = "Other"
`)

  cfg, err := parseArgs([]string{
    "-config", path,
    "-device", "addr=AA:BB:CC:DD:EE:FF,name=From flags,probes=Ribs;Ambient",
  })
  require.NoError(t, err)

  require.Len(t, cfg.Addresses, 1)
  assert.Equal(t, "aa:bb:cc:dd:ee:ff", cfg.Addresses[0].String())

  addr, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
  assert.Equal(t, device.Config{Name: "From flags", ProbeNames: []string{"Ribs", "Ambient"}}, cfg.DeviceConfig(addr))

  other, _ := net.ParseMAC("11:22:33:44:55:66")
  assert.Equal(t, "Other", cfg.DeviceConfig(other).Name)
}

func TestConfigErrors(t *testing.T) {
  tests := map[string][]string{
    "invalid device flag": {"-device", "addr=nope"},
    "invalid toml": {"-config", writeConfig(t, "[mqtt\nhost =")},
    "invalid device key": {"-config", writeConfig(t, "[device.\"not-a-mac\"]\nname = \"x\"\n")},
  }

  for name, args := range tests {
    t.Run(name, func(t *testing.T) {
      _, err := parseArgs(args)
      assert.Error(t, err)
    })
  }
}

func TestHomieNaming(t *testing.T) {
  cfg, err := parseArgs([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")})
  require.NoError(t, err)

  addr, _ := net.ParseMAC("AA:BB:CC:DD:EE:FF")
  dev := device.Device{Addr: addr, LocalName: "iBBQ"}

  homieCfg := homieConfigFor(cfg, dev, "Smoker")
  assert.Equal(t, "homie/cloudbbq-aabbccddeeff", homieCfg.BaseTopic())
  assert.Equal(t, "Smoker", homieCfg.Name)
  assert.Equal(t, "cloudbbq-aabbccddeeff", mqttConfigFor(cfg, dev).ClientID)
}
