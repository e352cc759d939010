package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetModeLabels(t *testing.T) {
  for _, mode := range []TargetMode{TargetNone, TargetSingleMax, TargetRange} {
    parsed, ok := ParseTargetMode(mode.String())

    assert.True(t, ok)
    assert.Equal(t, mode, parsed)
  }

  _, ok := ParseTargetMode("maximum only")
  assert.False(t, ok)
}

func TestTargetStoreGetOrCreate(t *testing.T) {
  s := NewTargetStore()

  target := s.GetOrCreate(3)
  assert.Equal(t, Target{}, *target)

  target.Mode = TargetRange
  target.TemperatureMax = 90

  assert.Same(t, target, s.GetOrCreate(3))
  assert.Equal(t, TargetRange, s.GetOrCreate(3).Mode)
  assert.Equal(t, 1, s.Len())
}
