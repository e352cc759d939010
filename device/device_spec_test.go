package device

import (
  "bytes"
  "net"
  "reflect"
  "strings"
  "testing"

  "github.com/rs/zerolog"
)

func TestFromSpec(t *testing.T) {
  spec := NewDeviceSpec("addr=AA:BB:CC:DD:EE:FF, name=Smoker,probes=Brisket; ;Ribs,bogus")

  addr, config, err := FromSpec(spec)

  if err != nil {
    t.Fatalf("FromSpec(%v) got error: %v", spec, err)
  }

  wantAddr, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")

  if !reflect.DeepEqual(addr, wantAddr) {
    t.Fatalf("FromSpec(%v): got addr %v, wanted %v", spec, addr, wantAddr)
  }

  want := Config{Name: "Smoker", ProbeNames: []string{"Brisket", "", "Ribs"}}

  if !reflect.DeepEqual(config, want) {
    t.Fatalf("FromSpec(%v): got %+#v, wanted %+#v", spec, config, want)
  }
}

func TestFromSpec_InvalidAddr(t *testing.T) {
  if _, _, err := FromSpec(NewDeviceSpec("name=Smoker")); err == nil {
    t.Fatalf("FromSpec without addr: expected error")
  }
}

func TestProbeName(t *testing.T) {
  c := Config{ProbeNames: []string{"Brisket", ""}}

  for probe, want := range map[uint8]string{0: "Brisket", 1: "Probe 2", 5: "Probe 6"} {
    if got := c.ProbeName(probe); got != want {
      t.Errorf("ProbeName(%d): got %q, wanted %q", probe, got, want)
    }
  }
}

func TestDeviceID(t *testing.T) {
  addr, _ := net.ParseMAC("AA:BB:CC:DD:EE:0F")
  d := Device{Addr: addr}

  if got := d.ID(); got != "aabbccddee0f" {
    t.Fatalf("ID(): got %q", got)
  }
}

func TestLogArrays(t *testing.T) {
  var buf bytes.Buffer
  addr, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")

  logger := zerolog.New(&buf)
  logger.Info().
    Array("Addrs", Addrs{addr}).
    Array("Devices", Devices{{Addr: addr, LocalName: "iBBQ"}}).
    Msg("")

  out := buf.String()

  for _, want := range []string{
    `"Addrs":["aa:bb:cc:dd:ee:ff"]`,
    `"Devices":["bbq[name=\"iBBQ\", addr=aa:bb:cc:dd:ee:ff]"]`,
  } {
    if !strings.Contains(out, want) {
      t.Errorf("log line %s does not contain %s", out, want)
    }
  }
}
