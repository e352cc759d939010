package bridge

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/homie"
)

// eventLog interleaves tree operations and device commands so tests can check ordering.
type eventLog struct {
  mu     sync.Mutex
  events []string
}

func (l *eventLog) add(format string, args ...any) {
  l.mu.Lock()
  defer l.mu.Unlock()

  l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
  l.mu.Lock()
  defer l.mu.Unlock()

  return append([]string(nil), l.events...)
}

func (l *eventLog) reset() {
  l.mu.Lock()
  defer l.mu.Unlock()

  l.events = nil
}

type fakeTree struct {
  log *eventLog

  mu    sync.Mutex
  nodes map[string]homie.Node

  readyErr     error
  done         chan error
  ready        bool
  disconnected bool
}

func newFakeTree(log *eventLog) *fakeTree {
  return &fakeTree{
    log:   log,
    nodes: make(map[string]homie.Node),
    done:  make(chan error, 1),
  }
}

func (f *fakeTree) AddNode(n homie.Node) error {
  f.mu.Lock()
  f.nodes[n.ID] = n
  f.mu.Unlock()

  f.log.add("add %s", n.ID)
  return nil
}

func (f *fakeTree) RemoveNode(id string) error {
  f.mu.Lock()
  delete(f.nodes, id)
  f.mu.Unlock()

  f.log.add("remove %s", id)
  return nil
}

func (f *fakeTree) HasNode(id string) bool {
  f.mu.Lock()
  defer f.mu.Unlock()

  _, ok := f.nodes[id]
  return ok
}

func (f *fakeTree) node(id string) (homie.Node, bool) {
  f.mu.Lock()
  defer f.mu.Unlock()

  n, ok := f.nodes[id]
  return n, ok
}

func (f *fakeTree) PublishValue(nodeID, propertyID, value string) error {
  f.log.add("publish %s/%s=%s", nodeID, propertyID, value)
  return nil
}

func (f *fakeTree) PublishNonretainedValue(nodeID, propertyID, value string) error {
  f.log.add("event %s/%s=%s", nodeID, propertyID, value)
  return nil
}

func (f *fakeTree) Ready() error {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.ready = true
  return f.readyErr
}

func (f *fakeTree) Done() <-chan error {
  return f.done
}

func (f *fakeTree) Disconnect() error {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.disconnected = true
  return nil
}

func (f *fakeTree) isDisconnected() bool {
  f.mu.Lock()
  defer f.mu.Unlock()

  return f.disconnected
}

type fakeThermometer struct {
  log *eventLog

  mu         sync.Mutex
  commandErr error
  authErr    error
  closed     bool

  realTime chan device.RealTimeData
  settings chan device.SettingResult
}

func newFakeThermometer(log *eventLog) *fakeThermometer {
  return &fakeThermometer{
    log:      log,
    realTime: make(chan device.RealTimeData),
    settings: make(chan device.SettingResult),
  }
}

func (f *fakeThermometer) failCommands(err error) {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.commandErr = err
}

func (f *fakeThermometer) command(format string, args ...any) error {
  f.log.add("cmd "+format, args...)

  f.mu.Lock()
  defer f.mu.Unlock()

  return f.commandErr
}

func (f *fakeThermometer) RealTimeData() (<-chan device.RealTimeData, error) {
  return f.realTime, nil
}

func (f *fakeThermometer) SettingResults() (<-chan device.SettingResult, error) {
  return f.settings, nil
}

func (f *fakeThermometer) SetTemperatureUnit(unit device.TemperatureUnit) error {
  return f.command("SetTemperatureUnit(%v)", unit)
}

func (f *fakeThermometer) SilenceAlarm() error {
  return f.command("SilenceAlarm()")
}

func (f *fakeThermometer) SetTargetTemp(probe uint8, temperature float32) error {
  return f.command("SetTargetTemp(%d, %v)", probe, temperature)
}

func (f *fakeThermometer) SetTargetRange(probe uint8, min, max float32) error {
  return f.command("SetTargetRange(%d, %v, %v)", probe, min, max)
}

func (f *fakeThermometer) RemoveTarget(probe uint8) error {
  return f.command("RemoveTarget(%d)", probe)
}

func (f *fakeThermometer) EnableRealTimeData(enable bool) error {
  return f.command("EnableRealTimeData(%v)", enable)
}

func (f *fakeThermometer) RequestBatteryLevel() error {
  return f.command("RequestBatteryLevel()")
}

func (f *fakeThermometer) Authenticate() error {
  return f.authErr
}

func (f *fakeThermometer) Close() error {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.closed = true
  return nil
}

func (f *fakeThermometer) isClosed() bool {
  f.mu.Lock()
  defer f.mu.Unlock()

  return f.closed
}

// fakeConnector fails the first failures attempts.
type fakeConnector struct {
  conn     *fakeThermometer
  failures int

  mu       sync.Mutex
  attempts int
}

func (f *fakeConnector) Connect(ctx context.Context, addr net.HardwareAddr) (device.Conn, error) {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.attempts++
  if f.attempts <= f.failures {
    return nil, fmt.Errorf("attempt %d: connection refused", f.attempts)
  }

  return f.conn, nil
}

func (f *fakeConnector) attemptCount() int {
  f.mu.Lock()
  defer f.mu.Unlock()

  return f.attempts
}

type fakeRecorder struct {
  mu           sync.Mutex
  temperatures map[uint8]float32
  battery      *device.BatteryLevel
  accepted     int
  rejected     int
}

func newFakeRecorder() *fakeRecorder {
  return &fakeRecorder{temperatures: make(map[uint8]float32)}
}

func (f *fakeRecorder) RecordTemperature(_ string, probe uint8, celsius float32) {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.temperatures[probe] = celsius
}

func (f *fakeRecorder) ClearTemperature(_ string, probe uint8) {
  f.mu.Lock()
  defer f.mu.Unlock()

  delete(f.temperatures, probe)
}

func (f *fakeRecorder) RecordBattery(_ string, level device.BatteryLevel) {
  f.mu.Lock()
  defer f.mu.Unlock()

  f.battery = &level
}

func (f *fakeRecorder) RecordWrite(accepted bool) {
  f.mu.Lock()
  defer f.mu.Unlock()

  if accepted {
    f.accepted++
  } else {
    f.rejected++
  }
}

func frame(temperatures ...any) device.RealTimeData {
  var data device.RealTimeData

  for _, t := range temperatures {
    switch v := t.(type) {
    case nil:
      data.ProbeTemperatures = append(data.ProbeTemperatures, device.ProbeTemperature{})
    case float64:
      data.ProbeTemperatures = append(data.ProbeTemperatures, device.ProbeTemperature{
        Celsius:   float32(v),
        Connected: true,
      })
    default:
      panic(fmt.Sprintf("unsupported temperature %v", t))
    }
  }

  return data
}
