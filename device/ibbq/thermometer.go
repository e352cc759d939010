package ibbq

import (
  "context"
  "fmt"
  "net"
  "sync"

  "github.com/robertof/go-ibbq-homie/ble"
  "github.com/robertof/go-ibbq-homie/device"
  "github.com/rs/zerolog/log"
)

// streamBuffer absorbs short stalls of the consumer without blocking the BLE stack.
const streamBuffer = 16

type Connector struct {
  handle *ble.Handle
}

func NewConnector(h *ble.Handle) *Connector {
  return &Connector{handle: h}
}

// Connect opens a link to the thermometer and resolves its GATT characteristics. The
// returned connection still needs to be authenticated.
func (c *Connector) Connect(ctx context.Context, addr net.HardwareAddr) (device.Conn, error) {
  client, err := c.handle.Connect(ctx, addr)

  if err != nil {
    return nil, fmt.Errorf("failed to connect to device: %w", err)
  }

  t, err := newThermometer(client)

  if err != nil {
    c.handle.Disconnect(client)
    return nil, err
  }

  t.disconnect = func() error {
    return c.handle.Disconnect(client)
  }

  return t, nil
}

type Thermometer struct {
  client ble.Client
  disconnect func() error

  settingResult *ble.Characteristic
  accountAndVerify *ble.Characteristic
  realTimeData *ble.Characteristic
  settingData *ble.Characteristic

  // serializes writes on the setting characteristic, the firmware handles one at a time.
  writeMu sync.Mutex
}

func newThermometer(client ble.Client) (*Thermometer, error) {
  p, err := client.DiscoverProfile(true)

  if err != nil {
    return nil, fmt.Errorf("cannot discover profile for device: %w", err)
  }

  t := &Thermometer{client: client}

  wanted := map[uint16]**ble.Characteristic{
    settingResultUuid: &t.settingResult,
    accountAndVerifyUuid: &t.accountAndVerify,
    realTimeDataUuid: &t.realTimeData,
    settingDataUuid: &t.settingData,
  }

  for _, svc := range p.Services {
    if !svc.UUID.Equal(ble.UUID16(serviceUuid)) {
      continue
    }

    for _, char := range svc.Characteristics {
      for uuid, dst := range wanted {
        if char.UUID.Equal(ble.UUID16(uuid)) {
          *dst = char
        }
      }
    }
  }

  for uuid, dst := range wanted {
    if *dst == nil {
      return nil, fmt.Errorf("failed to find characteristic with UUID '%x'", uuid)
    }
  }

  return t, nil
}

func (t *Thermometer) Authenticate() error {
  if err := t.client.WriteCharacteristic(t.accountAndVerify, credentials, false); err != nil {
    return fmt.Errorf("failed to authenticate: %w", err)
  }

  return nil
}

func (t *Thermometer) Close() error {
  if t.disconnect == nil {
    return t.client.CancelConnection()
  }

  return t.disconnect()
}

func (t *Thermometer) RealTimeData() (<-chan device.RealTimeData, error) {
  return subscribe(t.client, t.realTimeData, ParseRealTimeData)
}

func (t *Thermometer) SettingResults() (<-chan device.SettingResult, error) {
  return subscribe(t.client, t.settingResult, ParseSettingResult)
}

func (t *Thermometer) SetTemperatureUnit(unit device.TemperatureUnit) error {
  return t.writeSetting(encodeUnit(unit))
}

func (t *Thermometer) SilenceAlarm() error {
  return t.writeSetting(silenceAlarmCmd)
}

func (t *Thermometer) SetTargetTemp(probe uint8, temperature float32) error {
  cmd, err := encodeSingleTarget(probe, temperature)
  if err != nil {
    return err
  }

  return t.writeSetting(cmd)
}

func (t *Thermometer) SetTargetRange(probe uint8, min, max float32) error {
  cmd, err := encodeTarget(probe, min, max)
  if err != nil {
    return err
  }

  return t.writeSetting(cmd)
}

func (t *Thermometer) RemoveTarget(probe uint8) error {
  cmd, err := encodeRemoveTarget(probe)
  if err != nil {
    return err
  }

  return t.writeSetting(cmd)
}

func (t *Thermometer) EnableRealTimeData(enable bool) error {
  if enable {
    return t.writeSetting(enableRealTimeDataCmd)
  }

  return t.writeSetting(disableRealTimeDataCmd)
}

func (t *Thermometer) RequestBatteryLevel() error {
  return t.writeSetting(requestBatteryLevelCmd)
}

func (t *Thermometer) writeSetting(cmd []byte) error {
  t.writeMu.Lock()
  defer t.writeMu.Unlock()

  log.Trace().
    Stringer("Addr", t.client.Addr()).
    Hex("Command", cmd).
    Msg("ibbq: writing setting")

  if err := t.client.WriteCharacteristic(t.settingData, cmd, false); err != nil {
    return fmt.Errorf("failed to write setting %x: %w", cmd[0], err)
  }

  return nil
}

// stream forwards decoded notifications until the link goes away, then closes.
type stream[T any] struct {
  mu sync.Mutex
  ch chan T
  done <-chan struct{}
  closed bool
}

func (s *stream[T]) push(v T) {
  s.mu.Lock()
  defer s.mu.Unlock()

  if s.closed {
    return
  }

  select {
  case s.ch <- v:
  case <-s.done:
  }
}

func (s *stream[T]) close() {
  s.mu.Lock()
  defer s.mu.Unlock()

  if !s.closed {
    s.closed = true
    close(s.ch)
  }
}

func subscribe[T any](
  client ble.Client,
  char *ble.Characteristic,
  parse func([]byte) (T, error),
) (<-chan T, error) {
  s := &stream[T]{
    ch: make(chan T, streamBuffer),
    done: client.Disconnected(),
  }

  err := client.Subscribe(char, false, func(data []byte) {
    v, err := parse(data)

    if err != nil {
      log.Warn().
        Err(err).
        Stringer("Addr", client.Addr()).
        Stringer("Characteristic", char.UUID).
        Hex("Data", data).
        Msg("ibbq: dropping undecodable notification")
      return
    }

    s.push(v)
  })

  if err != nil {
    return nil, fmt.Errorf("failed to subscribe to '%v': %w", char.UUID, err)
  }

  go func() {
    <-s.done
    s.close()
  }()

  return s.ch, nil
}
