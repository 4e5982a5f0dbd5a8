package rylr

import (
	"fmt"

	"github.com/rs/zerolog"
)

// File options.go provides options that can be passed to the modem constructors to configure it.

// ModemOption function to set various options on the modem.
// RF settings are staged here and programmed into the hardware during Configure.
type ModemOption func(*Modem)

// WithLogger replaces the modem's default logger with the given logger.
func WithLogger(l *zerolog.Logger) ModemOption {
	return func(m *Modem) {
		m.log = l
	}
}

// WithNetworkID sets the LoRa network id (0-16). Radios only hear peers on the same network.
func WithNetworkID(id uint8) ModemOption {
	return func(m *Modem) {
		m.networkID = &id
	}
}

// WithBand sets the center frequency in Hz (e.g. 868500000). Must match the rest of the channel.
func WithBand(hz uint32) ModemOption {
	return func(m *Modem) {
		m.band = &hz
	}
}

// WithParameters sets the RF shaping knobs behind AT+PARAMETER.
func WithParameters(p Parameters) ModemOption {
	return func(m *Modem) {
		m.params = &p
	}
}

// WithOutputPower sets the RF output power in dBm (0-15).
func WithOutputPower(dbm uint8) ModemOption {
	return func(m *Modem) {
		m.power = &dbm
	}
}

// Parameters are the RF transmission knobs programmed by AT+PARAMETER.
// Ranges per the RYLR AT reference: SF 7-12, BW 0-9, CR 1-4, preamble 4-7.
type Parameters struct {
	SpreadingFactor    uint8
	Bandwidth          uint8
	CodingRate         uint8
	ProgrammedPreamble uint8
}

// String renders the parameters in AT argument order.
func (p Parameters) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", p.SpreadingFactor, p.Bandwidth, p.CodingRate, p.ProgrammedPreamble)
}
