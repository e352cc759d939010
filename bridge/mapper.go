package bridge

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/homie"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PropertyTree is the part of a Homie device the mapper drives.
type PropertyTree interface {
  AddNode(n homie.Node) error
  RemoveNode(id string) error
  HasNode(id string) bool
  PublishValue(nodeID, propertyID, value string) error
  PublishNonretainedValue(nodeID, propertyID, value string) error
}

// Mapper translates device events into property tree updates and property writes into
// device commands. It owns the target store of its session and, like the store, must only
// be used from one goroutine.
type Mapper struct {
  deviceID    string
  config      device.Config
  tree        PropertyTree
  thermometer device.Thermometer
  targets     *TargetStore
  recorder    Recorder
}

func NewMapper(
  deviceID string,
  config device.Config,
  tree PropertyTree,
  thermometer device.Thermometer,
  recorder Recorder,
) *Mapper {
  if recorder == nil {
    recorder = Recorders(nil)
  }

  return &Mapper{
    deviceID:    deviceID,
    config:      config,
    tree:        tree,
    thermometer: thermometer,
    targets:     NewTargetStore(),
    recorder:    recorder,
  }
}

func (m *Mapper) Targets() *TargetStore {
  return m.targets
}

func (m *Mapper) logger() zerolog.Logger {
  return log.With().Str("Device", m.deviceID).Logger()
}

// AddStaticNodes declares the battery and settings nodes.
func (m *Mapper) AddStaticNodes() error {
  for _, n := range []homie.Node{batteryNode(), settingsNode()} {
    if err := m.tree.AddNode(n); err != nil {
      return fmt.Errorf("failed to add node %q: %w", n.ID, err)
    }
  }

  return nil
}

// SetUnit switches the device display unit and publishes it.
func (m *Mapper) SetUnit(unit device.TemperatureUnit) error {
  if err := m.thermometer.SetTemperatureUnit(unit); err != nil {
    return fmt.Errorf("failed to set temperature unit to %v: %w", unit, err)
  }

  return m.tree.PublishValue(SettingsNode.String(), propertyUnit, formatUnit(unit))
}

// HandleRealTimeData reconciles probe nodes with a telemetry frame, in probe order.
func (m *Mapper) HandleRealTimeData(data device.RealTimeData) error {
  logger := m.logger()
  logger.Trace().Stringer("Data", data).Msg("Received real time data")

  for i, reading := range data.ProbeTemperatures {
    probe := uint8(i)
    nodeID := ProbeNode(probe).String()
    exists := m.tree.HasNode(nodeID)

    if !reading.Connected {
      if exists {
        logger.Info().Uint8("Probe", probe).Msg("Probe disconnected")

        if err := m.tree.RemoveNode(nodeID); err != nil {
          return fmt.Errorf("failed to remove node %q: %w", nodeID, err)
        }

        m.recorder.ClearTemperature(m.deviceID, probe)
      }

      continue
    }

    if !exists {
      logger.Info().Uint8("Probe", probe).Msg("Probe connected")

      if err := m.addProbe(probe); err != nil {
        return err
      }
    }

    if err := m.tree.PublishValue(nodeID, propertyTemperature, formatFloat(reading.Celsius)); err != nil {
      return err
    }

    m.recorder.RecordTemperature(m.deviceID, probe, reading.Celsius)
  }

  return nil
}

// addProbe declares the node of a probe and restores its cached target, on the device
// first and then on the node.
func (m *Mapper) addProbe(probe uint8) error {
  node := probeNode(probe, m.config.ProbeName(probe))

  if err := m.tree.AddNode(node); err != nil {
    return fmt.Errorf("failed to add node %q: %w", node.ID, err)
  }

  target := *m.targets.GetOrCreate(probe)

  if err := target.apply(m.thermometer, probe); err != nil {
    return err
  }

  values := [][2]string{
    {propertyTargetMode, target.Mode.String()},
    {propertyTargetMin, formatFloat(target.TemperatureMin)},
    {propertyTargetMax, formatFloat(target.TemperatureMax)},
  }

  for _, v := range values {
    if err := m.tree.PublishValue(node.ID, v[0], v[1]); err != nil {
      return err
    }
  }

  return nil
}

func (m *Mapper) HandleSettingResult(result device.SettingResult) error {
  logger := m.logger()
  logger.Trace().Stringer("Result", result).Msg("Received setting result")

  switch r := result.(type) {
  case device.BatteryLevel:
    node := BatteryNode.String()

    if err := m.tree.PublishValue(node, propertyVoltage, strconv.Itoa(int(r.CurrentVoltage))); err != nil {
      return err
    }

    percentage := strconv.FormatUint(uint64(r.Percentage()), 10)
    if err := m.tree.PublishValue(node, propertyPercentage, percentage); err != nil {
      return err
    }

    m.recorder.RecordBattery(m.deviceID, r)
  case device.SilencePressed:
    logger.Info().Msg("Alarm silenced on the device")

    return m.tree.PublishNonretainedValue(SettingsNode.String(), propertyAlarm, strconv.FormatBool(false))
  default:
    logger.Debug().Stringer("Result", result).Msg("Ignoring unknown setting result")
  }

  return nil
}

// HandleWrite validates a property write and forwards it to the device. It returns the
// value to echo and whether the write was accepted; rejected writes are never echoed.
func (m *Mapper) HandleWrite(node NodeID, propertyID, value string) (accepted string, ok bool) {
  logger := m.logger().With().
    Stringer("Node", node).
    Str("Property", propertyID).
    Str("Value", value).
    Logger()

  err := m.handleWrite(node, propertyID, value)
  m.recorder.RecordWrite(err == nil)

  if err != nil {
    var cmdErr commandError
    if errors.As(err, &cmdErr) {
      logger.Error().Err(cmdErr.err).Msg("Device command failed, rejecting write")
    } else {
      logger.Warn().Err(err).Msg("Rejecting write")
    }

    return "", false
  }

  logger.Debug().Msg("Accepted write")

  return value, true
}

func (m *Mapper) handleWrite(node NodeID, propertyID, value string) error {
  switch node.Kind {
  case NodeSettings:
    switch propertyID {
    case propertyUnit:
      unit, ok := parseUnit(value)
      if !ok {
        return fmt.Errorf("%w: unknown unit %q", ErrInvalidValue, value)
      }

      return asCommand(m.thermometer.SetTemperatureUnit(unit))
    case propertyAlarm:
      alarm, ok := parseBool(value)
      if !ok {
        return fmt.Errorf("%w: not a boolean: %q", ErrInvalidValue, value)
      }

      if alarm {
        return fmt.Errorf("%w: the alarm can only be silenced", ErrInvalidValue)
      }

      return asCommand(m.thermometer.SilenceAlarm())
    }
  case NodeProbe:
    return m.handleTargetWrite(node.Probe, propertyID, value)
  }

  return fmt.Errorf("%w: %v/%s", ErrUnknownProperty, node, propertyID)
}

func (m *Mapper) handleTargetWrite(probe uint8, propertyID, value string) error {
  var update func(*Target)

  switch propertyID {
  case propertyTargetMin, propertyTargetMax:
    temperature, err := parseTemperature(value)
    if err != nil {
      return err
    }

    if propertyID == propertyTargetMin {
      update = func(t *Target) { t.TemperatureMin = temperature }
    } else {
      update = func(t *Target) { t.TemperatureMax = temperature }
    }
  case propertyTargetMode:
    mode, ok := ParseTargetMode(value)
    if !ok {
      return fmt.Errorf("%w: unknown target mode %q", ErrInvalidValue, value)
    }

    update = func(t *Target) { t.Mode = mode }
  default:
    return fmt.Errorf("%w: %v/%s", ErrUnknownProperty, ProbeNode(probe), propertyID)
  }

  // the store keeps the new value even if the device rejects it: there is no way to read
  // targets back from the device to reconcile with.
  target := m.targets.GetOrCreate(probe)
  update(target)

  return asCommand(target.apply(m.thermometer, probe))
}

func parseTemperature(value string) (float32, error) {
  f, err := strconv.ParseFloat(value, 32)
  if err != nil {
    return 0, fmt.Errorf("%w: not a number: %q", ErrInvalidValue, value)
  }

  if math.IsNaN(f) || math.IsInf(f, 0) {
    return 0, fmt.Errorf("%w: not a finite temperature: %q", ErrInvalidValue, value)
  }

  return float32(f), nil
}

// parseBool accepts the Homie boolean payloads only.
func parseBool(value string) (b bool, ok bool) {
  switch value {
  case "true":
    return true, true
  case "false":
    return false, true
  default:
    return false, false
  }
}

func formatFloat(f float32) string {
  return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
