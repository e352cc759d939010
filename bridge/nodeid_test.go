package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNodeID(t *testing.T) {
  tests := []struct {
    in string
    id NodeID
    ok bool
  }{
    {"battery", BatteryNode, true},
    {"settings", SettingsNode, true},
    {"probe0", ProbeNode(0), true},
    {"probe5", ProbeNode(5), true},
    {"probe255", ProbeNode(255), true},
    {"probe256", NodeID{}, false},
    {"probe01", NodeID{}, false},
    {"probe+1", NodeID{}, false},
    {"probe", NodeID{}, false},
    {"probe-1", NodeID{}, false},
    {"Probe1", NodeID{}, false},
    {"", NodeID{}, false},
  }

  for _, tt := range tests {
    t.Run(tt.in, func(t *testing.T) {
      id, ok := ParseNodeID(tt.in)

      assert.Equal(t, tt.ok, ok)
      assert.Equal(t, tt.id, id)

      if ok {
        assert.Equal(t, tt.in, id.String())
      }
    })
  }
}

func TestNodeIDString(t *testing.T) {
  assert.Equal(t, "battery", BatteryNode.String())
  assert.Equal(t, "settings", SettingsNode.String())
  assert.Equal(t, "probe3", ProbeNode(3).String())

  assert.Panics(t, func() { _ = NodeID{Kind: NodeKind(42)}.String() })
}
