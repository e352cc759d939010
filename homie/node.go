package homie

import (
	"fmt"
	"regexp"
	"strings"
)

type Datatype string

const (
  DatatypeInteger Datatype = "integer"
  DatatypeFloat   Datatype = "float"
  DatatypeBoolean Datatype = "boolean"
  DatatypeString  Datatype = "string"
  DatatypeEnum    Datatype = "enum"
)

// Homie topic ids: lower case letters, digits and hyphens, not starting with a hyphen.
// Underscores are tolerated, existing consumers of this bridge rely on them.
var idPattern = regexp.MustCompile(`^[a-z0-9_][a-z0-9_-]*$`)

type Property struct {
  ID       string
  Name     string
  Datatype Datatype
  Settable bool
  Retained bool
  Unit     string
  Format   string
}

func Integer(id, name string, settable, retained bool, unit string) Property {
  return Property{ID: id, Name: name, Datatype: DatatypeInteger, Settable: settable, Retained: retained, Unit: unit}
}

func Float(id, name string, settable, retained bool, unit string) Property {
  return Property{ID: id, Name: name, Datatype: DatatypeFloat, Settable: settable, Retained: retained, Unit: unit}
}

func Boolean(id, name string, settable, retained bool) Property {
  return Property{ID: id, Name: name, Datatype: DatatypeBoolean, Settable: settable, Retained: retained}
}

func Enum(id, name string, settable, retained bool, values ...string) Property {
  return Property{
    ID:       id,
    Name:     name,
    Datatype: DatatypeEnum,
    Settable: settable,
    Retained: retained,
    Format:   strings.Join(values, ","),
  }
}

type Node struct {
  ID         string
  Name       string
  Type       string
  Properties []Property
}

func (n Node) Property(id string) (Property, bool) {
  for _, p := range n.Properties {
    if p.ID == id {
      return p, true
    }
  }

  return Property{}, false
}

func (n Node) validate() error {
  if !idPattern.MatchString(n.ID) {
    return fmt.Errorf("%w: node %q", ErrInvalidID, n.ID)
  }

  for _, p := range n.Properties {
    if !idPattern.MatchString(p.ID) {
      return fmt.Errorf("%w: property %q of node %q", ErrInvalidID, p.ID, n.ID)
    }
  }

  return nil
}

func (n Node) propertyIDs() string {
  ids := make([]string, len(n.Properties))

  for i, p := range n.Properties {
    ids[i] = p.ID
  }

  return strings.Join(ids, ",")
}
