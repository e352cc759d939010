package bridge

import (
	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/homie"
)

const (
  propertyVoltage    = "voltage"
  propertyPercentage = "percentage"

  propertyUnit  = "unit"
  propertyAlarm = "alarm"

  propertyTemperature = "temperature"
  propertyTargetMin   = "target_min"
  propertyTargetMax   = "target_max"
  propertyTargetMode  = "mode"
)

const (
  unitCelsiusLabel    = "ºC"
  unitFahrenheitLabel = "ºF"
)

func parseUnit(s string) (device.TemperatureUnit, bool) {
  switch s {
  case unitCelsiusLabel:
    return device.UnitCelsius, true
  case unitFahrenheitLabel:
    return device.UnitFahrenheit, true
  default:
    return 0, false
  }
}

func formatUnit(u device.TemperatureUnit) string {
  if u == device.UnitFahrenheit {
    return unitFahrenheitLabel
  }

  return unitCelsiusLabel
}

func batteryNode() homie.Node {
  return homie.Node{
    ID:   BatteryNode.String(),
    Name: "Battery",
    Type: "Battery level",
    Properties: []homie.Property{
      homie.Integer(propertyVoltage, "Voltage", false, true, ""),
      homie.Integer(propertyPercentage, "Percentage", false, true, "%"),
    },
  }
}

func settingsNode() homie.Node {
  return homie.Node{
    ID:   SettingsNode.String(),
    Name: "Settings",
    Type: "Settings",
    Properties: []homie.Property{
      homie.Enum(propertyUnit, "Unit", true, true, unitCelsiusLabel, unitFahrenheitLabel),
      homie.Boolean(propertyAlarm, "Alarm", true, false),
    },
  }
}

// Temperatures always travel in Celsius, the unit setting only affects the device display.
func probeNode(probe uint8, name string) homie.Node {
  return homie.Node{
    ID:   ProbeNode(probe).String(),
    Name: name,
    Type: "Temperature probe",
    Properties: []homie.Property{
      homie.Float(propertyTemperature, "Temperature", false, true, unitCelsiusLabel),
      homie.Float(propertyTargetMin, "Minimum temperature", true, true, unitCelsiusLabel),
      homie.Float(propertyTargetMax, "Target/maximum temperature", true, true, unitCelsiusLabel),
      homie.Enum(propertyTargetMode, "Target mode", true, true, targetModeLabels...),
    },
  }
}
