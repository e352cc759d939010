package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robertof/go-ibbq-homie/device"
	"github.com/robertof/go-ibbq-homie/homie"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
  DefaultMaxRetries        = 2
  DefaultTimeoutPerAttempt = 10 * time.Second
  DefaultBackoffFactor     = 500 * time.Millisecond
  DefaultBatteryInterval   = 5 * time.Minute
)

type State uint32

const (
  StateConnecting State = iota
  StateAuthenticating
  StateAdvertising
  StateRunning
  StateTerminated
)

func (s State) String() string {
  switch s {
  case StateConnecting:
    return "Connecting"
  case StateAuthenticating:
    return "Authenticating"
  case StateAdvertising:
    return "Advertising"
  case StateRunning:
    return "Running"
  case StateTerminated:
    return "Terminated"
  default:
    return fmt.Sprintf("State(%d)", uint32(s))
  }
}

// Tree is a property tree with a lifecycle, i.e. a Homie device.
type Tree interface {
  PropertyTree

  Ready() error
  Done() <-chan error
  Disconnect() error
}

// TreeOpener creates the property tree of a device once it is authenticated. Writes to
// settable properties must be routed to update.
type TreeOpener func(name string, update homie.UpdateFunc) (Tree, error)

// SessionOptions tunes a Session. MaxRetries is the number of connection attempts after the
// first one, each preceded by BackoffFactor << attempt; with MaxRetries set to 0 a session
// makes a single attempt and fails as soon as it cannot connect or authenticate.
type SessionOptions struct {
  MaxRetries        int
  TimeoutPerAttempt time.Duration
  BackoffFactor     time.Duration

  // zero disables periodic battery level requests.
  BatteryInterval time.Duration

  Recorder Recorder
}

type writeRequest struct {
  node     NodeID
  property string
  value    string
  reply    chan writeResult
}

type writeResult struct {
  value string
  ok    bool
}

// Session bridges one thermometer to its property tree until either side goes away.
type Session struct {
  dev       device.Device
  config    device.Config
  connector device.Connector
  openTree  TreeOpener
  options   SessionOptions

  logger zerolog.Logger
  state  atomic.Uint32
  writes chan writeRequest
  done   chan struct{}
}

func NewSession(
  dev device.Device,
  config device.Config,
  connector device.Connector,
  openTree TreeOpener,
  options SessionOptions,
) *Session {
  return &Session{
    dev:       dev,
    config:    config,
    connector: connector,
    openTree:  openTree,
    options:   options,
    logger:    log.With().Stringer("Device", dev).Logger(),
    writes:    make(chan writeRequest),
    done:      make(chan struct{}),
  }
}

func (s *Session) State() State {
  return State(s.state.Load())
}

// Name is the configured name of the device, or the name it advertises.
func (s *Session) Name() string {
  if s.config.Name != "" {
    return s.config.Name
  }

  if s.dev.LocalName != "" {
    return s.dev.LocalName
  }

  return s.dev.ID()
}

func (s *Session) setState(state State) {
  previous := State(s.state.Swap(uint32(state)))

  s.logger.Debug().
    Stringer("From", previous).
    Stringer("To", state).
    Msg("Session state changed")
}

// HandleUpdate hands a property write over to the session loop and waits for its outcome.
// It is meant to be installed as the update callback of the property tree.
func (s *Session) HandleUpdate(nodeID, propertyID, value string) (string, bool) {
  node, ok := ParseNodeID(nodeID)
  if !ok {
    s.logger.Warn().
      Str("Node", nodeID).
      Str("Property", propertyID).
      Str("Value", value).
      Msg("Rejecting write to unknown node")

    if s.options.Recorder != nil {
      s.options.Recorder.RecordWrite(false)
    }

    return "", false
  }

  req := writeRequest{
    node:     node,
    property: propertyID,
    value:    value,
    reply:    make(chan writeResult, 1),
  }

  select {
  case s.writes <- req:
  case <-s.done:
    return "", false
  }

  res := <-req.reply
  return res.value, res.ok
}

// Run drives the session through its states and returns once it terminates. A nil error
// means the device went away.
func (s *Session) Run(ctx context.Context) (err error) {
  defer func() {
    s.setState(StateTerminated)
    close(s.done)

    if err != nil && !errors.Is(err, context.Canceled) {
      s.logger.Error().Err(err).Msg("Session terminated")
    } else {
      s.logger.Info().Msg("Session terminated")
    }
  }()

  conn, err := s.establish(ctx)
  if err != nil {
    return err
  }

  defer func() {
    if closeErr := conn.Close(); closeErr != nil {
      s.logger.Debug().Err(closeErr).Msg("Failed to close device connection")
    }
  }()

  s.setState(StateAdvertising)

  tree, err := s.openTree(s.Name(), s.HandleUpdate)
  if err != nil {
    return fmt.Errorf("failed to open property tree: %w", err)
  }

  defer func() {
    if disconnectErr := tree.Disconnect(); disconnectErr != nil {
      s.logger.Debug().Err(disconnectErr).Msg("Failed to disconnect property tree")
    }
  }()

  mapper := NewMapper(s.dev.ID(), s.config, tree, conn, s.options.Recorder)

  realTimeData, settingResults, err := s.advertise(mapper, tree, conn)
  if err != nil {
    return err
  }

  s.setState(StateRunning)
  s.logger.Info().Str("Name", s.Name()).Msg("Session running")

  return s.loop(ctx, mapper, tree, conn, realTimeData, settingResults)
}

func (s *Session) establish(ctx context.Context) (conn device.Conn, err error) {
  for attempt := 0; ; attempt++ {
    conn, err = s.connect(ctx)
    if err == nil {
      return conn, nil
    }

    if ctx.Err() != nil {
      return nil, ctx.Err()
    }

    if attempt >= s.options.MaxRetries {
      return nil, err
    }

    backoff := s.options.BackoffFactor << int64(attempt)
    if backoff < 0 {
      backoff = DefaultBackoffFactor
    }

    s.logger.Warn().
      Err(err).
      Int("RetriesLeft", s.options.MaxRetries-attempt).
      Dur("Backoff", backoff).
      Msg("Failed to connect to device - will retry")

    select {
    case <-ctx.Done():
      return nil, ctx.Err()
    case <-time.After(backoff):
    }
  }
}

func (s *Session) connect(parentCtx context.Context) (device.Conn, error) {
  s.setState(StateConnecting)

  ctx := parentCtx
  if s.options.TimeoutPerAttempt > 0 {
    var cancel context.CancelFunc
    ctx, cancel = context.WithTimeout(parentCtx, s.options.TimeoutPerAttempt)
    defer cancel()
  }

  conn, err := s.connector.Connect(ctx, s.dev.Addr)
  if err != nil {
    return nil, fmt.Errorf("failed to connect to %v: %w", s.dev, err)
  }

  s.setState(StateAuthenticating)

  if err := conn.Authenticate(); err != nil {
    conn.Close()
    return nil, fmt.Errorf("failed to authenticate with %v: %w", s.dev, err)
  }

  return conn, nil
}

// advertise publishes the static nodes and starts the device streams.
func (s *Session) advertise(
  mapper *Mapper,
  tree Tree,
  conn device.Thermometer,
) (<-chan device.RealTimeData, <-chan device.SettingResult, error) {
  if err := mapper.AddStaticNodes(); err != nil {
    return nil, nil, err
  }

  if err := tree.Ready(); err != nil {
    return nil, nil, fmt.Errorf("failed to advertise property tree: %w", err)
  }

  if err := mapper.SetUnit(device.UnitCelsius); err != nil {
    return nil, nil, err
  }

  settingResults, err := conn.SettingResults()
  if err != nil {
    return nil, nil, fmt.Errorf("failed to subscribe to setting results: %w", err)
  }

  realTimeData, err := conn.RealTimeData()
  if err != nil {
    return nil, nil, fmt.Errorf("failed to subscribe to real time data: %w", err)
  }

  if err := conn.EnableRealTimeData(true); err != nil {
    return nil, nil, fmt.Errorf("failed to enable real time data: %w", err)
  }

  if err := conn.RequestBatteryLevel(); err != nil {
    return nil, nil, fmt.Errorf("failed to request battery level: %w", err)
  }

  return realTimeData, settingResults, nil
}

// loop handles one event at a time, so properties are updated in the order events arrive
// and the target store is only ever touched from here.
func (s *Session) loop(
  ctx context.Context,
  mapper *Mapper,
  tree Tree,
  conn device.Thermometer,
  realTimeData <-chan device.RealTimeData,
  settingResults <-chan device.SettingResult,
) error {
  var battery <-chan time.Time

  if s.options.BatteryInterval > 0 {
    ticker := time.NewTicker(s.options.BatteryInterval)
    defer ticker.Stop()

    battery = ticker.C
  }

  for {
    select {
    case <-ctx.Done():
      return ctx.Err()
    case err := <-tree.Done():
      if err == nil {
        return ErrTreeTerminated
      }

      return fmt.Errorf("%w: %w", ErrTreeTerminated, err)
    case data, ok := <-realTimeData:
      if !ok {
        s.logger.Warn().Msg("Real time data stream ended, device disconnected")
        return nil
      }

      if err := mapper.HandleRealTimeData(data); err != nil {
        return err
      }
    case result, ok := <-settingResults:
      if !ok {
        s.logger.Warn().Msg("Setting results stream ended, device disconnected")
        return nil
      }

      if err := mapper.HandleSettingResult(result); err != nil {
        return err
      }
    case req := <-s.writes:
      value, ok := mapper.HandleWrite(req.node, req.property, req.value)
      req.reply <- writeResult{value: value, ok: ok}
    case <-battery:
      if err := conn.RequestBatteryLevel(); err != nil {
        s.logger.Error().Err(err).Msg("Failed to request battery level")
      }
    }
  }
}
