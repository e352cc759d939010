package ble

import (
  "testing"
  "time"
)

func TestConnParamsSet(t *testing.T) {
  var c ConnParams

  if err := c.Set(""); err != nil || c != ConnParamsDefault {
    t.Fatalf("Set(\"\"): got %q, %v, wanted default", c, err)
  }

  if err := c.Set("power-saving"); err != nil || c != ConnParamsPowerSaving {
    t.Fatalf("Set(power-saving): got %q, %v", c, err)
  }

  if err := c.Set("turbo"); err == nil {
    t.Fatalf("Set(turbo): expected error")
  }

  if c != ConnParamsPowerSaving {
    t.Fatalf("Set(turbo) changed the value to %q", c)
  }
}

// the link layer drops a connection whose supervision timeout does not cover at least two
// skipped connection events.
func TestConnTimingsAreValid(t *testing.T) {
  for _, params := range allConnParams {
    opts, err := params.adapterOptions()

    if err != nil {
      t.Fatalf("adapterOptions(%v) got error: %v", params, err)
    }

    interval := time.Duration(opts.ConnIntervalMax) * 1250 * time.Microsecond
    supervision := time.Duration(opts.SupervisionTimeout) * 10 * time.Millisecond
    maxGap := interval * time.Duration(opts.ConnLatency + 1)

    if opts.ConnIntervalMin > opts.ConnIntervalMax {
      t.Errorf("%v: interval min %#x above max %#x", params, opts.ConnIntervalMin, opts.ConnIntervalMax)
    }

    if opts.ConnIntervalMin < 0x0006 || opts.ConnIntervalMax > 0x0c80 {
      t.Errorf("%v: interval out of range", params)
    }

    if supervision <= 2 * maxGap {
      t.Errorf("%v: supervision timeout %v too short for %v between events", params, supervision, maxGap)
    }

    // frames arrive every second, a link must not go quiet for much longer than that.
    if maxGap > 1500 * time.Millisecond {
      t.Errorf("%v: %v between connection events", params, maxGap)
    }
  }
}

func TestConnParamsUnknown(t *testing.T) {
  if _, err := ConnParams("turbo").adapterOptions(); err == nil {
    t.Fatalf("adapterOptions(turbo): expected error")
  }
}
