package bridge

import (
	"fmt"

	"github.com/robertof/go-ibbq-homie/device"
)

type TargetMode uint8

const (
  TargetNone TargetMode = iota
  TargetSingleMax
  TargetRange
)

const (
  targetModeNoneLabel      = "None"
  targetModeSingleMaxLabel = "Maximum only"
  targetModeRangeLabel     = "Range"
)

var targetModeLabels = []string{targetModeNoneLabel, targetModeSingleMaxLabel, targetModeRangeLabel}

func ParseTargetMode(s string) (TargetMode, bool) {
  switch s {
  case targetModeNoneLabel:
    return TargetNone, true
  case targetModeSingleMaxLabel:
    return TargetSingleMax, true
  case targetModeRangeLabel:
    return TargetRange, true
  default:
    return 0, false
  }
}

func (m TargetMode) String() string {
  switch m {
  case TargetNone:
    return targetModeNoneLabel
  case TargetSingleMax:
    return targetModeSingleMaxLabel
  case TargetRange:
    return targetModeRangeLabel
  default:
    return fmt.Sprintf("TargetMode(%d)", uint8(m))
  }
}

// Target is the alarm configuration of one probe. With mode None the temperatures are kept
// so that switching back to another mode reuses them.
type Target struct {
  Mode           TargetMode
  TemperatureMin float32
  TemperatureMax float32
}

func (t Target) String() string {
  return fmt.Sprintf("Target[Mode=%v,Min=%v,Max=%v]", t.Mode, t.TemperatureMin, t.TemperatureMax)
}

// apply issues the command that makes the device match t.
func (t Target) apply(thermometer device.Thermometer, probe uint8) error {
  var err error

  switch t.Mode {
  case TargetNone:
    err = thermometer.RemoveTarget(probe)
  case TargetSingleMax:
    err = thermometer.SetTargetTemp(probe, t.TemperatureMax)
  case TargetRange:
    err = thermometer.SetTargetRange(probe, t.TemperatureMin, t.TemperatureMax)
  default:
    err = fmt.Errorf("unknown target mode %v", t.Mode)
  }

  if err != nil {
    return fmt.Errorf("failed to set target of probe %d to %v: %w", probe, t, err)
  }

  return nil
}

// TargetStore caches probe targets for the lifetime of a session, since the device forgets
// them as soon as a probe is unplugged. It is not safe for concurrent use: it belongs to
// the session loop.
type TargetStore struct {
  targets map[uint8]*Target
}

func NewTargetStore() *TargetStore {
  return &TargetStore{targets: make(map[uint8]*Target)}
}

// GetOrCreate returns the target of probe, creating a default one on first access.
func (s *TargetStore) GetOrCreate(probe uint8) *Target {
  t, ok := s.targets[probe]

  if !ok {
    t = &Target{}
    s.targets[probe] = t
  }

  return t
}

func (s *TargetStore) Len() int {
  return len(s.targets)
}
