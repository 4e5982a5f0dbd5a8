package simradio

import (
	"errors"
	"fmt"
	"net/netip"
)

// File errors.go consolidates the errors the simulated radios can return.

// ErrBadAddr returns an error to indicate that the given netip.AddrPort was invalid.
func ErrBadAddr(ap netip.AddrPort) error {
	return fmt.Errorf("address %v is not a valid ip:port", ap)
}

var (
	ErrOversized = errors.New("payload exceeds chirp.MaxPayloadSize")
	ErrClosed    = errors.New("this radio is closed")
)
