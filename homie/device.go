// Package homie implements the device side of the Homie 4 MQTT convention: a device made of
// nodes made of properties, retained attribute topics describing them, and `/set` topics
// through which controllers write settable properties.
package homie

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
  homieVersion   = "4.0.0"
  implementation = "go-ibbq-homie"
  setSuffix      = "set"
)

type State string

const (
  StateInit         State = "init"
  StateReady        State = "ready"
  StateDisconnected State = "disconnected"
  StateLost         State = "lost"
)

// UpdateFunc handles a write to a settable property. Returning ok=false rejects the write;
// otherwise the returned value is published as the property's new value.
type UpdateFunc func(nodeID, propertyID, value string) (accepted string, ok bool)

type Config struct {
  // Prefix is the root topic, "homie" by convention.
  Prefix   string
  DeviceID string
  Name     string

  FirmwareName    string
  FirmwareVersion string
}

func (c Config) BaseTopic() string {
  return c.Prefix + "/" + c.DeviceID
}

// LastWill returns the will a transport must be dialed with for this device.
func (c Config) LastWill() Will {
  return Will{
    Topic:   c.BaseTopic() + "/$state",
    Payload: string(StateLost),
  }
}

type Device struct {
  cfg       Config
  base      string
  transport Transport
  update    UpdateFunc

  mu      sync.Mutex
  nodes   map[string]Node
  order   []string
  state   State
  started bool
}

func NewDevice(cfg Config, transport Transport, update UpdateFunc) *Device {
  return &Device{
    cfg:       cfg,
    base:      cfg.BaseTopic(),
    transport: transport,
    update:    update,
    nodes:     make(map[string]Node),
    state:     StateInit,
  }
}

func (d *Device) BaseTopic() string {
  return d.base
}

// Done reports the termination of the underlying connection.
func (d *Device) Done() <-chan error {
  return d.transport.Done()
}

func (d *Device) publish(topic, payload string, retained bool) error {
  return d.transport.Publish(d.base+"/"+topic, payload, retained)
}

func (d *Device) setState(s State) error {
  d.state = s
  return d.publish("$state", string(s), true)
}

// Ready advertises the device and every node added so far, subscribes to set topics and
// switches the device to the ready state.
func (d *Device) Ready() error {
  d.mu.Lock()
  defer d.mu.Unlock()

  if d.started {
    return nil
  }

  if err := d.setState(StateInit); err != nil {
    return err
  }

  attributes := [][2]string{
    {"$homie", homieVersion},
    {"$name", d.cfg.Name},
    {"$extensions", ""},
    {"$implementation", implementation},
  }

  if d.cfg.FirmwareName != "" {
    attributes = append(attributes,
      [2]string{"$fw/name", d.cfg.FirmwareName},
      [2]string{"$fw/version", d.cfg.FirmwareVersion},
    )
  }

  for _, attr := range attributes {
    if err := d.publish(attr[0], attr[1], true); err != nil {
      return err
    }
  }

  for _, id := range d.order {
    if err := d.publishNode(d.nodes[id]); err != nil {
      return err
    }
  }

  if err := d.publishNodeList(); err != nil {
    return err
  }

  if err := d.transport.Subscribe(d.base+"/+/+/"+setSuffix, d.handleSet); err != nil {
    return err
  }

  d.started = true

  return d.setState(StateReady)
}

// Disconnect marks the device as disconnected and closes the transport.
func (d *Device) Disconnect() error {
  d.mu.Lock()
  err := d.setState(StateDisconnected)
  d.mu.Unlock()

  if closeErr := d.transport.Close(); err == nil {
    err = closeErr
  }

  return err
}

func (d *Device) HasNode(id string) bool {
  d.mu.Lock()
  defer d.mu.Unlock()

  _, ok := d.nodes[id]
  return ok
}

// AddNode adds or replaces a node. On a ready device this briefly goes through the init
// state, as the convention requires for structural changes.
func (d *Device) AddNode(n Node) error {
  if err := n.validate(); err != nil {
    return err
  }

  d.mu.Lock()
  defer d.mu.Unlock()

  if _, exists := d.nodes[n.ID]; !exists {
    d.order = append(d.order, n.ID)
  }

  d.nodes[n.ID] = n

  if !d.started {
    return nil
  }

  return d.restructure(func() error {
    return d.publishNode(n)
  })
}

func (d *Device) RemoveNode(id string) error {
  d.mu.Lock()
  defer d.mu.Unlock()

  n, ok := d.nodes[id]
  if !ok {
    return fmt.Errorf("%w: %q", ErrUnknownNode, id)
  }

  delete(d.nodes, id)

  for i, existing := range d.order {
    if existing == id {
      d.order = append(d.order[:i], d.order[i+1:]...)
      break
    }
  }

  if !d.started {
    return nil
  }

  return d.restructure(func() error {
    return d.unpublishNode(n)
  })
}

func (d *Device) restructure(change func() error) error {
  if err := d.setState(StateInit); err != nil {
    return err
  }

  if err := change(); err != nil {
    return err
  }

  if err := d.publishNodeList(); err != nil {
    return err
  }

  return d.setState(StateReady)
}

func (d *Device) PublishValue(nodeID, propertyID, value string) error {
  return d.publish(nodeID+"/"+propertyID, value, true)
}

// PublishNonretainedValue is for events, which late subscribers must not see.
func (d *Device) PublishNonretainedValue(nodeID, propertyID, value string) error {
  return d.publish(nodeID+"/"+propertyID, value, false)
}

func (d *Device) publishNodeList() error {
  return d.publish("$nodes", strings.Join(d.order, ","), true)
}

func (d *Device) publishNode(n Node) error {
  attributes := [][2]string{
    {n.ID + "/$name", n.Name},
    {n.ID + "/$type", n.Type},
    {n.ID + "/$properties", n.propertyIDs()},
  }

  for _, p := range n.Properties {
    prefix := n.ID + "/" + p.ID + "/"

    attributes = append(attributes,
      [2]string{prefix + "$name", p.Name},
      [2]string{prefix + "$datatype", string(p.Datatype)},
      [2]string{prefix + "$settable", strconv.FormatBool(p.Settable)},
      [2]string{prefix + "$retained", strconv.FormatBool(p.Retained)},
    )

    if p.Unit != "" {
      attributes = append(attributes, [2]string{prefix + "$unit", p.Unit})
    }

    if p.Format != "" {
      attributes = append(attributes, [2]string{prefix + "$format", p.Format})
    }
  }

  for _, attr := range attributes {
    if err := d.publish(attr[0], attr[1], true); err != nil {
      return err
    }
  }

  return nil
}

// unpublishNode clears the retained topics of a node, including its last values.
func (d *Device) unpublishNode(n Node) error {
  topics := []string{n.ID + "/$name", n.ID + "/$type", n.ID + "/$properties"}

  for _, p := range n.Properties {
    prefix := n.ID + "/" + p.ID

    topics = append(topics,
      prefix,
      prefix+"/$name",
      prefix+"/$datatype",
      prefix+"/$settable",
      prefix+"/$retained",
      prefix+"/$unit",
      prefix+"/$format",
    )
  }

  for _, topic := range topics {
    if err := d.publish(topic, "", true); err != nil {
      return err
    }
  }

  return nil
}

// ParseSetTopic extracts node and property ids from `<base>/<node>/<property>/set`.
func ParseSetTopic(base, topic string) (nodeID, propertyID string, ok bool) {
  rest, found := strings.CutPrefix(topic, base+"/")
  if !found {
    return "", "", false
  }

  parts := strings.Split(rest, "/")
  if len(parts) != 3 || parts[2] != setSuffix || parts[0] == "" || parts[1] == "" {
    return "", "", false
  }

  return parts[0], parts[1], true
}

func (d *Device) handleSet(topic string, payload []byte) {
  nodeID, propertyID, ok := ParseSetTopic(d.base, topic)
  if !ok {
    log.Debug().Str("Topic", topic).Msg("homie: ignoring message on unexpected topic")
    return
  }

  value := string(payload)

  log.Trace().
    Str("Node", nodeID).
    Str("Property", propertyID).
    Str("Value", value).
    Msg("homie: received property write")

  if d.update == nil {
    return
  }

  accepted, ok := d.update(nodeID, propertyID, value)
  if !ok {
    return
  }

  retained := true

  d.mu.Lock()
  if n, exists := d.nodes[nodeID]; exists {
    if p, exists := n.Property(propertyID); exists {
      retained = p.Retained
    }
  }
  d.mu.Unlock()

  if err := d.publish(nodeID+"/"+propertyID, accepted, retained); err != nil {
    log.Error().
      Err(err).
      Str("Node", nodeID).
      Str("Property", propertyID).
      Msg("homie: failed to publish accepted value")
  }
}
