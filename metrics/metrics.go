// Package metrics exposes the latest readings of every bridged thermometer to Prometheus.
package metrics

import (
  "strconv"
  "sync"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-ibbq-homie/device"
)

var (
  descTemperature = prometheus.NewDesc(
    "bbq_probe_temperature_celsius",
    "Temperature reported by the probe in Celsius.",
    []string{"device", "probe"},
    nil,
  )

  descBatteryVoltage = prometheus.NewDesc(
    "bbq_battery_voltage",
    "Battery voltage reported by the thermometer, in device units.",
    []string{"device"},
    nil,
  )

  descBattery = prometheus.NewDesc(
    "bbq_battery_ratio",
    "Battery percentage reported by the thermometer.",
    []string{"device"},
    nil,
  )

  descWrites = prometheus.NewDesc(
    "bbq_remote_writes_total",
    "Property writes received from controllers, by outcome.",
    []string{"result"},
    nil,
  )
)

type probeKey struct {
  device string
  probe uint8
}

type temperatureSample struct {
  celsius float32
  ts time.Time
}

type batterySample struct {
  level device.BatteryLevel
  ts time.Time
}

// Collector keeps the last value reported for every probe and battery. Disconnected probes
// disappear from the output.
type Collector struct {
  mu sync.Mutex
  temperatures map[probeKey]temperatureSample
  batteries map[string]batterySample
  accepted uint64
  rejected uint64

  now func() time.Time
}

func NewCollector() *Collector {
  return &Collector{
    temperatures: make(map[probeKey]temperatureSample),
    batteries: make(map[string]batterySample),
    now: time.Now,
  }
}

func (c *Collector) RecordTemperature(deviceID string, probe uint8, celsius float32) {
  c.mu.Lock()
  defer c.mu.Unlock()

  c.temperatures[probeKey{deviceID, probe}] = temperatureSample{celsius, c.now()}
}

func (c *Collector) ClearTemperature(deviceID string, probe uint8) {
  c.mu.Lock()
  defer c.mu.Unlock()

  delete(c.temperatures, probeKey{deviceID, probe})
}

func (c *Collector) RecordBattery(deviceID string, level device.BatteryLevel) {
  c.mu.Lock()
  defer c.mu.Unlock()

  c.batteries[deviceID] = batterySample{level, c.now()}
}

func (c *Collector) RecordWrite(accepted bool) {
  c.mu.Lock()
  defer c.mu.Unlock()

  if accepted {
    c.accepted++
  } else {
    c.rejected++
  }
}

// Describe lists every descriptor upfront: the collector is usually registered before any
// reading comes in.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
  ch <- descTemperature
  ch <- descBatteryVoltage
  ch <- descBattery
  ch <- descWrites
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
  c.mu.Lock()
  defer c.mu.Unlock()

  for key, sample := range c.temperatures {
    temperature := prometheus.MustNewConstMetric(
      descTemperature,
      prometheus.GaugeValue,
      float64(sample.celsius),
      key.device,
      strconv.Itoa(int(key.probe)),
    )

    ch <- prometheus.NewMetricWithTimestamp(sample.ts, temperature)
  }

  for deviceID, sample := range c.batteries {
    voltage := prometheus.MustNewConstMetric(
      descBatteryVoltage,
      prometheus.GaugeValue,
      float64(sample.level.CurrentVoltage),
      deviceID,
    )

    ch <- prometheus.NewMetricWithTimestamp(sample.ts, voltage)

    battery := prometheus.MustNewConstMetric(
      descBattery,
      prometheus.GaugeValue,
      float64(sample.level.Percentage()) / 100,
      deviceID,
    )

    ch <- prometheus.NewMetricWithTimestamp(sample.ts, battery)
  }

  ch <- prometheus.MustNewConstMetric(descWrites, prometheus.CounterValue, float64(c.accepted), "accepted")
  ch <- prometheus.MustNewConstMetric(descWrites, prometheus.CounterValue, float64(c.rejected), "rejected")
}

func RegisterCollector(c *Collector, reg prometheus.Registerer) {
  reg.MustRegister(c)
}
