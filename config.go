package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"github.com/robertof/go-ibbq-homie/ble"
	"github.com/robertof/go-ibbq-homie/bridge"
	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/fleet"
	"github.com/robertof/go-ibbq-homie/history"
	"github.com/robertof/go-ibbq-homie/homie"
	"github.com/spf13/viper"
)

const defaultConfigFile = "cloudbbq-homie.toml"

type homieConfig struct {
  Prefix string
  DeviceIDPrefix string
}

type config struct {
  Debug, Trace bool
  ConfigFile string
  BindAddress string
  DiscoverDevices bool
  BluetoothDeviceId int
  BluetoothConnParams ble.ConnParams
  MaxRetries int
  Timeout, Backoff time.Duration
  ScanDuration, BatteryInterval time.Duration

  // Addresses given on the command line. When set, only these thermometers are bridged.
  Addresses []net.HardwareAddr
  // Per thermometer settings, keyed by lower case MAC address.
  Devices map[string]device.Config

  MQTT homie.MQTTConfig
  ClientPrefix string
  Homie homieConfig
  InfluxDB history.Config
}

// DeviceConfig returns the settings of the thermometer at addr, if any.
func (c config) DeviceConfig(addr net.HardwareAddr) device.Config {
  return c.Devices[strings.ToLower(addr.String())]
}

type boundDeviceList struct {
  cfg *config
}

func (d *boundDeviceList) String() string {
  return ""
}

func (d *boundDeviceList) Set(v string) error {
  addr, devCfg, err := device.FromSpec(device.NewDeviceSpec(v))
  if err != nil {
    return fmt.Errorf("failed to parse device: %w", err)
  }

  d.cfg.Addresses = append(d.cfg.Addresses, addr)
  d.cfg.Devices[strings.ToLower(addr.String())] = devCfg

  return nil
}

// fileDevice is a `[device."<MAC>"]` section of the config file.
type fileDevice struct {
  Name string `mapstructure:"name"`
  ProbeNames []string `mapstructure:"probe_names"`
}

func newFlagSet(cfg *config) *flag.FlagSet {
  flags := flag.NewFlagSet("ibbq-homie", flag.ContinueOnError)

  cfg.BluetoothConnParams = ble.ConnParamsDefault
  cfg.Devices = make(map[string]device.Config)

  flags.StringVar(&cfg.ConfigFile, "config", defaultConfigFile, "Path of the TOML config file (MQTT, Homie, devices)")
  flags.StringVar(&cfg.BindAddress, "bind", "", "Where the Prometheus endpoint binds to, disabled when empty")
  flags.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  flags.Var(&cfg.BluetoothConnParams, "bluetooth-connection-params", "Bluetooth connection parameters (one of 'default' or 'power-saving')")
  flags.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover available BLE devices and quit")
  flags.IntVar(&cfg.MaxRetries, "max-retries", bridge.DefaultMaxRetries, "Max number of connection retries per thermometer")
  flags.DurationVar(&cfg.Timeout, "timeout", bridge.DefaultTimeoutPerAttempt, "Timeout for connecting to a thermometer (per retry attempt)")
  flags.DurationVar(&cfg.Backoff, "backoff", bridge.DefaultBackoffFactor, "Exponential backoff factor for retries")
  flags.DurationVar(&cfg.ScanDuration, "scan-duration", fleet.DefaultScanDuration, "How long to look for thermometers on start")
  flags.DurationVar(&cfg.BatteryInterval, "battery-interval", bridge.DefaultBatteryInterval,
    "How frequently the battery level is requested, 0 to only request it on connection")
  flags.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  flags.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")
  flags.Var(
    &boundDeviceList{cfg},
    "device",
    "Thermometer to bridge in the form of `key=value,key=value`, can be repeated.\n" + device.SpecHelp(),
  )

  return flags
}

func parseArgs(args []string) (cfg config, err error) {
  flags := newFlagSet(&cfg)

  if err := flags.Parse(args); err != nil {
    return cfg, err
  }

  if err := loadConfigFile(&cfg); err != nil {
    return cfg, err
  }

  return cfg, nil
}

// loadConfigFile reads the TOML config file. A missing file leaves every setting at its
// default. Devices given on the command line win over the file.
func loadConfigFile(cfg *config) error {
  v := viper.New()
  v.SetConfigFile(cfg.ConfigFile)
  v.SetConfigType("toml")

  v.SetDefault("mqtt.host", "test.mosquitto.org")
  v.SetDefault("mqtt.port", 1883)
  v.SetDefault("mqtt.use_tls", false)
  v.SetDefault("mqtt.client_prefix", "cloudbbq")
  v.SetDefault("mqtt.keep_alive", 5 * time.Second)
  v.SetDefault("homie.prefix", "homie")
  v.SetDefault("homie.device_id_prefix", "cloudbbq")
  v.SetDefault("influxdb.enabled", false)
  v.SetDefault("influxdb.url", "http://localhost:8086")

  if err := v.ReadInConfig(); err != nil {
    var notFound viper.ConfigFileNotFoundError

    if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
      return fmt.Errorf("failed to read config file %q: %w", cfg.ConfigFile, err)
    }
  }

  cfg.MQTT = homie.MQTTConfig{
    Host: v.GetString("mqtt.host"),
    Port: v.GetInt("mqtt.port"),
    UseTLS: v.GetBool("mqtt.use_tls"),
    Username: v.GetString("mqtt.username"),
    Password: v.GetString("mqtt.password"),
    KeepAlive: v.GetDuration("mqtt.keep_alive"),
  }
  cfg.ClientPrefix = v.GetString("mqtt.client_prefix")

  cfg.Homie = homieConfig{
    Prefix: v.GetString("homie.prefix"),
    DeviceIDPrefix: v.GetString("homie.device_id_prefix"),
  }

  cfg.InfluxDB = history.Config{
    Enabled: v.GetBool("influxdb.enabled"),
    URL: v.GetString("influxdb.url"),
    Token: v.GetString("influxdb.token"),
    Org: v.GetString("influxdb.org"),
    Bucket: v.GetString("influxdb.bucket"),
  }

  var devices map[string]fileDevice

  if err := v.UnmarshalKey("device", &devices); err != nil {
    return fmt.Errorf("failed to parse devices in %q: %w", cfg.ConfigFile, err)
  }

  if cfg.Devices == nil {
    cfg.Devices = make(map[string]device.Config)
  }

  for mac, d := range devices {
    addr, err := net.ParseMAC(mac)
    if err != nil {
      return fmt.Errorf("invalid device address %q in %q: %w", mac, cfg.ConfigFile, err)
    }

    key := strings.ToLower(addr.String())

    if _, fromFlags := cfg.Devices[key]; fromFlags {
      continue
    }

    cfg.Devices[key] = device.Config{
      Name: d.Name,
      ProbeNames: d.ProbeNames,
    }
  }

  return nil
}

func ParseArgs() config {
  cfg, err := parseArgs(os.Args[1:])

  if errors.Is(err, flag.ErrHelp) {
    os.Exit(0)
  }

  if err != nil {
    fmt.Fprintln(os.Stderr, "Error:", err)
    os.Exit(2)
  }

  return cfg
}
