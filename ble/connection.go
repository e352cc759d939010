package ble

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
  successfulConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "ibbq_homie_ble_successful_connections_total",
    Help: "Number of BLE connections established with thermometers.",
  })
  failedConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "ibbq_homie_ble_failed_connections_total",
    Help: "Number of failed BLE connection attempts.",
  })
  connectionsFromPoolCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "ibbq_homie_ble_reused_connections_total",
    Help: "Number of connection attempts served by an already open link.",
  })
  disconnectsCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "ibbq_homie_ble_disconnections_total",
    Help: "Number of BLE links that went away.",
  })
)

type connectionPool struct {
  mu sync.Mutex

  connections map[string]Client
}

func initConnectionPool() *connectionPool {
  return &connectionPool{
    connections: make(map[string]ble.Client),
  }
}

// Connect returns the open link to a thermometer, dialing it when there is none. Dials are
// serialized: the controller can only establish one connection at a time.
func (h *Handle) Connect(ctx context.Context, addr net.HardwareAddr) (Client, error) {
  addrStr := strings.ToLower(addr.String())

  h.connPool.mu.Lock()
  defer h.connPool.mu.Unlock()

  if conn := h.connPool.connections[addrStr]; conn != nil {
    connectionsFromPoolCounter.Inc()
    log.Trace().Stringer("Addr", addr).Msg("ble: reusing connection from connection pool")
    return conn, nil
  }

  conn, err := ble.Dial(ctx, ble.NewAddr(addrStr))

  if err != nil {
    failedConnectionsCounter.Inc()
    return nil, err
  }

  successfulConnectionsCounter.Inc()

  h.connPool.connections[addrStr] = conn
  log.Debug().Stringer("Addr", addr).Msg("ble: successfully opened new connection to device")

  // spawn a watchdog removing the entry from the connection pool when the connection breaks.
  go func() {
    <-conn.Disconnected()

    disconnectsCounter.Inc()
    log.Debug().Stringer("Addr", addr).Msg("ble: connection with device closed, cleaning up")

    h.connPool.mu.Lock()
    defer h.connPool.mu.Unlock()

    if h.connPool.connections[addrStr] == conn {
      delete(h.connPool.connections, addrStr)
    }
  }()

  return conn, nil
}

// Disconnect drops the link to a single thermometer.
func (h *Handle) Disconnect(c Client) error {
  h.connPool.mu.Lock()
  delete(h.connPool.connections, strings.ToLower(c.Addr().String()))
  h.connPool.mu.Unlock()

  return c.CancelConnection()
}

// DisconnectAll closes every link, used on shutdown.
func (h *Handle) DisconnectAll() {
  h.connPool.mu.Lock()
  defer h.connPool.mu.Unlock()

  for _, conn := range h.connPool.connections {
    conn.CancelConnection()
  }

  h.connPool.connections = make(map[string]ble.Client)
}
