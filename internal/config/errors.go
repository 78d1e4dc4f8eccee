package config

import (
	"errors"
	"fmt"
)

// ErrStartup marks failures that leave the engine permanently uninitialised.
var ErrStartup = errors.New("startup failure")

// StartupError is a StartupFailure: the container id is missing or the
// configuration could not be fetched.
type StartupError struct {
	ContainerID string
	Err         error
}

func (e *StartupError) Error() string {
	if e.ContainerID == "" {
		return fmt.Sprintf("%v: %v", ErrStartup, e.Err)
	}
	return fmt.Sprintf("%v: container %s: %v", ErrStartup, e.ContainerID, e.Err)
}

func (e *StartupError) Unwrap() []error { return []error{ErrStartup, e.Err} }
