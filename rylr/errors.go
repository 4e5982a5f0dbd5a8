package rylr

import (
	"errors"
	"fmt"
)

// File errors.go consolidates the errors the modem driver can return.

var (
	ErrNoPort     = errors.New("a modem requires a port")
	ErrNoResponse = errors.New("modem never answered")
	ErrOversized  = errors.New("payload exceeds the modem's 240-byte cap")
)

// ErrModem returns an error carrying the +ERR code the modem answered with.
func ErrModem(code int) error {
	return fmt.Errorf("modem replied +ERR=%d", code)
}

// ErrBadLine returns an error to indicate the modem emitted a line this driver cannot parse.
func ErrBadLine(line string) error {
	return fmt.Errorf("unparseable modem line %q", line)
}

// ErrAddrRange returns an error to indicate a source address beyond chirp's one-byte plan.
func ErrAddrRange(src uint64) error {
	return fmt.Errorf("source address %d does not fit the one-byte addressing plan", src)
}
