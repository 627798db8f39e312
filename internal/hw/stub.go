//go:build !linux

package hw

import "errors"

var errUnsupported = errors.New("hw: not supported on this platform (requires Linux)")

// NewRealHydra is not available on non-Linux platforms.
func NewRealHydra(Pins) (*Hydra, func() error, error) {
	return nil, nil, errUnsupported
}
