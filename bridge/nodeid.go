package bridge

import (
	"strconv"
	"strings"
)

const (
  nodeIDBattery     = "battery"
  nodeIDSettings    = "settings"
  nodeIDProbePrefix = "probe"
)

type NodeKind uint8

const (
  NodeBattery NodeKind = iota
  NodeSettings
  NodeProbe
)

// NodeID identifies a node of the property tree. Probe is only meaningful for NodeProbe.
type NodeID struct {
  Kind  NodeKind
  Probe uint8
}

var (
  BatteryNode  = NodeID{Kind: NodeBattery}
  SettingsNode = NodeID{Kind: NodeSettings}
)

func ProbeNode(probe uint8) NodeID {
  return NodeID{Kind: NodeProbe, Probe: probe}
}

// ParseNodeID accepts only the canonical forms produced by String, so "probe01" or
// "probe+1" do not alias "probe1".
func ParseNodeID(s string) (NodeID, bool) {
  switch s {
  case nodeIDBattery:
    return BatteryNode, true
  case nodeIDSettings:
    return SettingsNode, true
  }

  suffix, found := strings.CutPrefix(s, nodeIDProbePrefix)
  if !found {
    return NodeID{}, false
  }

  probe, err := strconv.ParseUint(suffix, 10, 8)
  if err != nil {
    return NodeID{}, false
  }

  id := ProbeNode(uint8(probe))
  if id.String() != s {
    return NodeID{}, false
  }

  return id, true
}

func (n NodeID) String() string {
  switch n.Kind {
  case NodeBattery:
    return nodeIDBattery
  case NodeSettings:
    return nodeIDSettings
  case NodeProbe:
    return nodeIDProbePrefix + strconv.Itoa(int(n.Probe))
  default:
    panic("unknown node kind: " + strconv.Itoa(int(n.Kind)))
  }
}
