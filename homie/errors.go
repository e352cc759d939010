package homie

import "errors"

var (
  // ErrNotConnected is returned when publishing on a client whose connection went away.
  ErrNotConnected = errors.New("homie: mqtt client not connected")

  // ErrConnectionFailed is returned when the initial broker connection fails.
  ErrConnectionFailed = errors.New("homie: mqtt connection failed")

  // ErrConnectionLost is delivered on Done() when an established connection drops.
  ErrConnectionLost = errors.New("homie: mqtt connection lost")

  ErrPublishFailed   = errors.New("homie: publish failed")
  ErrSubscribeFailed = errors.New("homie: subscribe failed")

  // ErrInvalidID is returned for node or property ids outside the Homie id charset.
  ErrInvalidID = errors.New("homie: invalid id")

  ErrUnknownNode = errors.New("homie: unknown node")
)
