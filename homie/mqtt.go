package homie

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
  defaultConnectTimeout = 10 * time.Second
  defaultPublishTimeout = 5 * time.Second

  // milliseconds
  defaultDisconnectQuiesce = 250

  // Homie requires QoS 1 for everything but non-retained values.
  qosAtLeastOnce byte = 1

  tlsMinVersion = tls.VersionTLS12
)

// MQTTConfig describes how to reach the broker.
type MQTTConfig struct {
  Host      string
  Port      int
  UseTLS    bool
  Username  string
  Password  string
  ClientID  string
  KeepAlive time.Duration
}

// Will is the message the broker publishes when the client vanishes.
type Will struct {
  Topic   string
  Payload string
}

// MessageHandler is invoked on its own goroutine for every received message.
type MessageHandler func(topic string, payload []byte)

// Transport is the part of an MQTT client a Homie device needs.
type Transport interface {
  Publish(topic string, payload string, retained bool) error
  Subscribe(topic string, handler MessageHandler) error

  // Done is closed, after delivering the cause, once the connection is gone for good.
  Done() <-chan error
  Close() error
}

// Client wraps paho.mqtt.golang. The connection is not re-established when lost: the
// loss is reported on Done() and the owner is expected to give up.
//
// All methods are safe for concurrent use.
type Client struct {
  client pahomqtt.Client

  done     chan error
  doneOnce sync.Once
}

func buildClientOptions(cfg MQTTConfig, will Will) *pahomqtt.ClientOptions {
  opts := pahomqtt.NewClientOptions()

  scheme := "tcp"
  if cfg.UseTLS {
    scheme = "ssl"
  }
  opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))

  opts.SetClientID(cfg.ClientID)

  if cfg.Username != "" {
    opts.SetUsername(cfg.Username)
    opts.SetPassword(cfg.Password)
  }

  opts.SetCleanSession(true)
  opts.SetAutoReconnect(false)
  opts.SetConnectRetry(false)
  opts.SetConnectTimeout(defaultConnectTimeout)

  if cfg.KeepAlive > 0 {
    opts.SetKeepAlive(cfg.KeepAlive)
  }

  // set callbacks may block waiting on the device, they must not hold up other messages.
  opts.SetOrderMatters(false)

  if cfg.UseTLS {
    opts.SetTLSConfig(&tls.Config{
      MinVersion: tlsMinVersion,
    })
  }

  if will.Topic != "" {
    opts.SetWill(will.Topic, will.Payload, qosAtLeastOnce, true)
  }

  return opts
}

// Dial connects to the broker, registering `will` as last will and testament.
func Dial(cfg MQTTConfig, will Will) (*Client, error) {
  c := &Client{
    done: make(chan error, 1),
  }

  opts := buildClientOptions(cfg, will)
  opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
    log.Error().
      Err(err).
      Str("ClientID", cfg.ClientID).
      Msg("homie: lost connection to MQTT broker")

    c.terminate(fmt.Errorf("%w: %w", ErrConnectionLost, err))
  })

  log.Debug().
    Str("Host", cfg.Host).
    Int("Port", cfg.Port).
    Bool("TLS", cfg.UseTLS).
    Str("ClientID", cfg.ClientID).
    Msg("homie: connecting to MQTT broker")

  c.client = pahomqtt.NewClient(opts)
  token := c.client.Connect()

  if !token.WaitTimeout(defaultConnectTimeout) {
    return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
  }

  if err := token.Error(); err != nil {
    return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
  }

  return c, nil
}

func (c *Client) terminate(err error) {
  c.doneOnce.Do(func() {
    c.done <- err
    close(c.done)
  })
}

func (c *Client) Publish(topic string, payload string, retained bool) error {
  if !c.client.IsConnected() {
    return ErrNotConnected
  }

  qos := qosAtLeastOnce
  if !retained {
    qos = 0
  }

  token := c.client.Publish(topic, qos, retained, payload)

  if !token.WaitTimeout(defaultPublishTimeout) {
    return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
  }

  if err := token.Error(); err != nil {
    return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
  }

  return nil
}

func (c *Client) Subscribe(topic string, handler MessageHandler) error {
  if handler == nil {
    return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
  }

  if !c.client.IsConnected() {
    return ErrNotConnected
  }

  token := c.client.Subscribe(topic, qosAtLeastOnce, func(_ pahomqtt.Client, msg pahomqtt.Message) {
    defer func() {
      if r := recover(); r != nil {
        log.Error().
          Str("Topic", msg.Topic()).
          Interface("Panic", r).
          Msg("homie: message handler panic recovered")
      }
    }()

    handler(msg.Topic(), msg.Payload())
  })

  if !token.WaitTimeout(defaultPublishTimeout) {
    return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
  }

  if err := token.Error(); err != nil {
    return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
  }

  return nil
}

func (c *Client) Done() <-chan error {
  return c.done
}

// Close disconnects gracefully. The broker does not publish the will in that case.
func (c *Client) Close() error {
  if c.client == nil {
    return nil
  }

  c.client.Disconnect(defaultDisconnectQuiesce)
  c.terminate(nil)

  return nil
}
