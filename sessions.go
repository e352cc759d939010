package main

import (
	"github.com/robertof/go-ibbq-homie/bridge"
	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/fleet"
	"github.com/robertof/go-ibbq-homie/homie"
)

// homieConfigFor names the Homie device of a thermometer after its MAC address.
func homieConfigFor(cfg config, dev device.Device, name string) homie.Config {
  return homie.Config{
    Prefix: cfg.Homie.Prefix,
    DeviceID: cfg.Homie.DeviceIDPrefix + "-" + dev.ID(),
    Name: name,
    FirmwareName: firmwareName,
    FirmwareVersion: version,
  }
}

func mqttConfigFor(cfg config, dev device.Device) homie.MQTTConfig {
  mqttCfg := cfg.MQTT
  mqttCfg.ClientID = cfg.ClientPrefix + "-" + dev.ID()

  return mqttCfg
}

func newSessionFactory(
  cfg config,
  connector device.Connector,
  recorder bridge.Recorder,
) fleet.SessionFactory {
  return func(dev device.Device) fleet.Session {
    openTree := func(name string, update homie.UpdateFunc) (bridge.Tree, error) {
      homieCfg := homieConfigFor(cfg, dev, name)

      transport, err := homie.Dial(mqttConfigFor(cfg, dev), homieCfg.LastWill())
      if err != nil {
        return nil, err
      }

      return homie.NewDevice(homieCfg, transport, update), nil
    }

    return bridge.NewSession(
      dev,
      cfg.DeviceConfig(dev.Addr),
      connector,
      openTree,
      bridge.SessionOptions{
        MaxRetries: cfg.MaxRetries,
        TimeoutPerAttempt: cfg.Timeout,
        BackoffFactor: cfg.Backoff,
        BatteryInterval: cfg.BatteryInterval,
        Recorder: recorder,
      },
    )
  }
}
