// Package history exports readings to InfluxDB so cooks can be looked at afterwards.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/robertof/go-ibbq-homie/device"
	"github.com/rs/zerolog/log"
)

const (
  defaultPingTimeout = 5 * time.Second

  measurementTemperature = "probe_temperature"
  measurementBattery     = "battery"
)

var (
  ErrDisabled         = errors.New("influxdb export disabled")
  ErrConnectionFailed = errors.New("influxdb connection failed")
)

type Config struct {
  Enabled bool
  URL     string
  Token   string
  Org     string
  Bucket  string
}

// pointWriter is the subset of the non-blocking write API in use.
type pointWriter interface {
  WritePoint(point *write.Point)
  Flush()
}

// Client records readings as InfluxDB points. Writes are batched and never block the
// caller; failures are logged.
type Client struct {
  client influxdb2.Client
  writer pointWriter

  mu     sync.RWMutex
  closed bool

  now func() time.Time
}

func Connect(ctx context.Context, cfg Config) (*Client, error) {
  if !cfg.Enabled {
    return nil, ErrDisabled
  }

  client := influxdb2.NewClient(cfg.URL, cfg.Token)

  pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
  defer cancel()

  healthy, err := client.Ping(pingCtx)
  if err != nil {
    client.Close()
    return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
  }

  if !healthy {
    client.Close()
    return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
  }

  writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

  go func() {
    for err := range writeAPI.Errors() {
      log.Warn().Err(err).Msg("history: failed to write points")
    }
  }()

  log.Info().
    Str("URL", cfg.URL).
    Str("Bucket", cfg.Bucket).
    Msg("Exporting readings to InfluxDB")

  c := newClient(writeAPI)
  c.client = client

  return c, nil
}

func newClient(writer pointWriter) *Client {
  return &Client{
    writer: writer,
    now:    time.Now,
  }
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
  c.mu.RLock()
  defer c.mu.RUnlock()

  if c.closed {
    return
  }

  c.writer.WritePoint(write.NewPoint(measurement, tags, fields, c.now()))
}

func (c *Client) RecordTemperature(deviceID string, probe uint8, celsius float32) {
  c.writePoint(
    measurementTemperature,
    map[string]string{
      "device": deviceID,
      "probe":  strconv.Itoa(int(probe)),
    },
    map[string]interface{}{
      "celsius": float64(celsius),
    },
  )
}

// ClearTemperature is a no-op: gaps in the series already tell when a probe was unplugged.
func (c *Client) ClearTemperature(string, uint8) {}

func (c *Client) RecordBattery(deviceID string, level device.BatteryLevel) {
  c.writePoint(
    measurementBattery,
    map[string]string{
      "device": deviceID,
    },
    map[string]interface{}{
      "voltage":    int64(level.CurrentVoltage),
      "percentage": int64(level.Percentage()),
    },
  )
}

func (c *Client) RecordWrite(bool) {}

// Close flushes pending points. Later records are dropped.
func (c *Client) Close() {
  c.mu.Lock()
  if c.closed {
    c.mu.Unlock()
    return
  }
  c.closed = true
  c.mu.Unlock()

  c.writer.Flush()

  if c.client != nil {
    c.client.Close()
  }
}
