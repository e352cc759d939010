package bridge

import "errors"

var (
  ErrInvalidValue    = errors.New("invalid value")
  ErrUnknownProperty = errors.New("unknown property")
  ErrTreeTerminated  = errors.New("property tree connection terminated")
)

// commandError marks failures of the device, as opposed to rejected input.
type commandError struct {
  err error
}

func (e commandError) Error() string {
  return "device command failed: " + e.err.Error()
}

func (e commandError) Unwrap() error {
  return e.err
}

func asCommand(err error) error {
  if err == nil {
    return nil
  }

  return commandError{err: err}
}
