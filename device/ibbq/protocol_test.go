package ibbq

import (
  "bytes"
  "errors"
  "reflect"
  "testing"

  "github.com/robertof/go-ibbq-homie/device"
)

func TestParseRealTimeData(t *testing.T) {
  data := []byte{0xeb, 0x00, 0xf6, 0xff, 0xf6, 0xff, 0x2c, 0x01}

  got, err := ParseRealTimeData(data)

  if err != nil {
    t.Fatalf("ParseRealTimeData(%x) got error: %v", data, err)
  }

  want := device.RealTimeData{
    ProbeTemperatures: []device.ProbeTemperature{
      {Celsius: 23.5, Connected: true},
      {},
      {},
      {Celsius: 30, Connected: true},
    },
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("ParseRealTimeData(%x): got %+#v, wanted %+#v", data, got, want)
  }
}

func TestParseRealTimeData_Negative(t *testing.T) {
  // -5.5 degrees
  got, err := ParseRealTimeData([]byte{0xc9, 0xff})

  if err != nil {
    t.Fatalf("ParseRealTimeData got error: %v", err)
  }

  if p := got.ProbeTemperatures[0]; !p.Connected || p.Celsius != -5.5 {
    t.Fatalf("ParseRealTimeData: got %+v, wanted -5.5", p)
  }
}

func TestParseRealTimeData_Invalid(t *testing.T) {
  for _, data := range [][]byte{
    nil,
    {0x01},
    make([]byte, 2 * (MaxProbes + 1)),
  } {
    if _, err := ParseRealTimeData(data); !errors.Is(err, device.ErrInvalidData) {
      t.Errorf("ParseRealTimeData(%x): got error %v, wanted ErrInvalidData", data, err)
    }
  }
}

func TestParseSettingResult(t *testing.T) {
  cases := []struct {
    data []byte
    want device.SettingResult
  }{
    {
      data: []byte{0x24, 0x36, 0x01, 0x90, 0x01, 0x00},
      want: device.BatteryLevel{CurrentVoltage: 310, MaxVoltage: 400},
    },
    {
      data: []byte{0x24, 0x36, 0x01, 0x00, 0x00, 0x00},
      want: device.BatteryLevel{CurrentVoltage: 310, MaxVoltage: defaultMaxVoltage},
    },
    {
      data: []byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00},
      want: device.SilencePressed{},
    },
    {
      data: []byte{0xff, 0x01},
      want: device.UnknownSettingResult{Raw: []byte{0xff, 0x01}},
    },
  }

  for _, c := range cases {
    got, err := ParseSettingResult(c.data)

    if err != nil {
      t.Fatalf("ParseSettingResult(%x) got error: %v", c.data, err)
    }

    if !reflect.DeepEqual(got, c.want) {
      t.Errorf("ParseSettingResult(%x): got %+#v, wanted %+#v", c.data, got, c.want)
    }
  }
}

func TestParseSettingResult_ShortBattery(t *testing.T) {
  if _, err := ParseSettingResult([]byte{0x24, 0x01}); !errors.Is(err, device.ErrInvalidData) {
    t.Fatalf("ParseSettingResult: got error %v, wanted ErrInvalidData", err)
  }
}

func TestBatteryPercentageTruncates(t *testing.T) {
  b := device.BatteryLevel{CurrentVoltage: 310, MaxVoltage: 400}

  if got := b.Percentage(); got != 77 {
    t.Fatalf("Percentage() = %d, wanted 77", got)
  }
}

func TestEncodeCommands(t *testing.T) {
  mustEncode := func(b []byte, err error) []byte {
    if err != nil {
      t.Fatalf("unexpected encode error: %v", err)
    }
    return b
  }

  cases := []struct {
    name string
    got []byte
    want []byte
  }{
    {"celsius", encodeUnit(device.UnitCelsius), []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00}},
    {"fahrenheit", encodeUnit(device.UnitFahrenheit), []byte{0x02, 0x01, 0x00, 0x00, 0x00, 0x00}},
    {"range", mustEncode(encodeTarget(1, 10, 20)), []byte{0x01, 0x01, 0x64, 0x00, 0xc8, 0x00}},
    {"single", mustEncode(encodeSingleTarget(0, 62.5)), []byte{0x01, 0x00, 0x48, 0xf4, 0x71, 0x02}},
    {"remove", mustEncode(encodeRemoveTarget(3)), []byte{0x01, 0x03, 0x48, 0xf4, 0xb8, 0x0b}},
  }

  for _, c := range cases {
    if !bytes.Equal(c.got, c.want) {
      t.Errorf("%s: got %x, wanted %x", c.name, c.got, c.want)
    }
  }
}

func TestEncodeTarget_Invalid(t *testing.T) {
  if _, err := encodeTarget(MaxProbes, 0, 1); !errors.Is(err, device.ErrUnsupportedProbe) {
    t.Errorf("encodeTarget(probe=%d): got error %v, wanted ErrUnsupportedProbe", MaxProbes, err)
  }

  if _, err := encodeTarget(0, 0, 5000); !errors.Is(err, device.ErrInvalidData) {
    t.Errorf("encodeTarget(max=5000): got error %v, wanted ErrInvalidData", err)
  }
}
