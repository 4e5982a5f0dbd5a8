/*
Package rylr drives a REYAX RYLR-series LoRa modem (RYLR896/RYLR998) over its serial AT command set, adapting it to the chirp.Transceiver contract.

The modem owns the LoRa PHY outright; this driver only talks newline-delimited ASCII over UART:

	-> AT+ADDRESS=1
	<- +OK
	-> AT+SEND=2,5,hello
	<- +OK
	<- +RCV=2,5,howdy,-42,11

Because the modem frames the air its own way, the 4-byte header chirp nodes expect does not exist on its channel. Send hands the modem a bare payload (addresses ride the AT command instead) and Receive synthesizes a header from the +RCV envelope, so the node loop sees the same shape it would get from an RFM9x.

The modem's line framing is ASCII; payloads containing CR or LF will confuse it. Keep payloads printable.
*/
package rylr

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/protocol"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// DefaultBaudRate is the RYLR factory UART speed.
const DefaultBaudRate = 115200

// maxModemPayload is the AT+SEND data cap. The modem refuses anything longer with +ERR.
const maxModemPayload = 240

// responseTimeout bounds how long a command waits for its +OK / +ERR verdict.
// The modem answers in milliseconds; a full second means the UART is gone.
const responseTimeout = time.Second

// inbound is one parsed +RCV envelope.
type inbound struct {
	src     chirp.Address
	payload []byte
	rssi    chirp.RSSI
	snr     int8
}

// A Modem is an RYLR-series transceiver on the far side of a serial port. Satisfies chirp.Transceiver.
// Like the radio it fronts, a Modem expects a single driving goroutine.
type Modem struct {
	log  *zerolog.Logger
	port Port

	local, dest chirp.Address
	lastRSSI    chirp.RSSI

	// optional config applied during Configure
	networkID *uint8
	band      *uint32
	params    *Parameters
	power     *uint8

	pending []inbound // +RCV envelopes that arrived while awaiting a command verdict
	rbuf    []byte    // residual UART bytes between reads
}

// Port is the sliver of a serial port the driver needs. go.bug.st/serial.Port satisfies it.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
}

// Open opens the named serial port at the RYLR default speed (8N1) and wraps it in a Modem, optionally modified with opts.
func Open(portName string, opts ...ModemOption) (*Modem, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: DefaultBaudRate})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", portName, err)
	}
	return New(port, opts...)
}

// New wraps an already-open port in a Modem, optionally modified with opts.
// Mostly useful for tests and exotic transports; most callers want Open.
func New(port Port, opts ...ModemOption) (*Modem, error) {
	if port == nil {
		return nil, ErrNoPort
	}

	m := &Modem{port: port}

	// apply options
	for _, opt := range opts {
		opt(m)
	}

	// if the logger was not established by the options, generate the default logger
	if m.log == nil {
		l := zerolog.New(zerolog.ConsoleWriter{
			Out:         os.Stdout,
			FieldsOrder: []string{"sublogger"},
			TimeFormat:  "15:04:05",
		}).With().
			Str("sublogger", "rylr").
			Timestamp().
			Caller().
			Logger().Level(zerolog.WarnLevel)
		m.log = &l
	}

	return m, nil
}

// Zerolog pretty prints the state of the modem into the given zerolog event.
// Intended to be given to *zerolog.Event.Func().
func (m *Modem) Zerolog(e *zerolog.Event) {
	e.Stringer("node", m.local).Stringer("destination", m.dest)
	if m.networkID != nil {
		e.Uint8("network id", *m.networkID)
	}
	if m.band != nil {
		e.Uint32("band (Hz)", *m.band)
	}
	if m.params != nil {
		e.Str("parameters", m.params.String())
	}
	if m.power != nil {
		e.Uint8("output power (dBm)", *m.power)
	}
}

// Configure pings the modem, claims local as its address, and applies any optioned RF settings.
// Implements chirp.Transceiver.
func (m *Modem) Configure(local, destination chirp.Address) error {
	m.local, m.dest = local, destination

	// make sure anyone is home before programming settings
	if err := m.command("AT"); err != nil {
		return err
	}
	if err := m.command(fmt.Sprintf("AT+ADDRESS=%d", uint8(local))); err != nil {
		return err
	}
	if m.networkID != nil {
		if err := m.command(fmt.Sprintf("AT+NETWORKID=%d", *m.networkID)); err != nil {
			return err
		}
	}
	if m.band != nil {
		if err := m.command(fmt.Sprintf("AT+BAND=%d", *m.band)); err != nil {
			return err
		}
	}
	if m.params != nil {
		if err := m.command("AT+PARAMETER=" + m.params.String()); err != nil {
			return err
		}
	}
	if m.power != nil {
		if err := m.command(fmt.Sprintf("AT+CRFOP=%d", *m.power)); err != nil {
			return err
		}
	}

	m.log.Info().Func(m.Zerolog).Msg("modem configured")
	return nil
}

// Send relays payload to the configured destination with AT+SEND.
// keepListening is accepted and irrelevant; the modem drops back into receive mode on its own.
func (m *Modem) Send(payload []byte, _ bool) error {
	if len(payload) > maxModemPayload {
		return ErrOversized
	}
	return m.command(fmt.Sprintf("AT+SEND=%d,%d,%s", uint8(m.dest), len(payload), payload))
}

// Receive waits up to timeout for one packet relayed by the modem.
// When withHeader is set, a RadioHead-style header is synthesized from the +RCV envelope: to is our own address, from is the +RCV source, id and flags are zero (the modem hides the sender's sequencing).
func (m *Modem) Receive(withHeader bool, timeout time.Duration) ([]byte, bool, error) {
	in, ok := m.popPending()
	if !ok {
		deadline := time.Now().Add(timeout)
		for !ok {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, false, nil
			}
			line, found, err := m.readLine(remaining)
			if err != nil {
				return nil, false, err
			}
			if !found {
				return nil, false, nil
			}
			if !strings.HasPrefix(line, "+RCV=") {
				m.log.Debug().Str("line", line).Msg("modem chatter while listening")
				continue
			}
			if in, err = parseRCV(line); err != nil {
				m.log.Warn().Err(err).Str("line", line).Msg("dropping unparseable +RCV")
				continue
			}
			ok = true
		}
	}

	m.lastRSSI = in.rssi
	m.log.Debug().
		Stringer("from", in.src).
		Int16("rssi", int16(in.rssi)).
		Int8("snr", in.snr).
		Int("payload bytes", len(in.payload)).
		Msg("packet received")

	if withHeader {
		return protocol.Stamp(m.local, in.src, 0, 0, in.payload), true, nil
	}
	return in.payload, true, nil
}

// LastRSSI implements chirp.Transceiver.
func (m *Modem) LastRSSI() chirp.RSSI {
	return m.lastRSSI
}

// popPending dequeues the oldest +RCV envelope shunted aside by command, if any.
func (m *Modem) popPending() (inbound, bool) {
	if len(m.pending) == 0 {
		return inbound{}, false
	}
	in := m.pending[0]
	m.pending = m.pending[1:]
	return in, true
}

// command writes cmd to the modem and waits for its +OK / +ERR verdict.
// Unsolicited +RCV lines that land in the middle are queued for the next Receive rather than lost.
func (m *Modem) command(cmd string) error {
	m.log.Debug().Str("cmd", cmd).Msg("-> modem")
	if _, err := m.port.Write([]byte(cmd + "\r\n")); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, err)
	}

	deadline := time.Now().Add(responseTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%q: %w", cmd, ErrNoResponse)
		}
		line, found, err := m.readLine(remaining)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%q: %w", cmd, ErrNoResponse)
		}
		switch {
		case line == "+OK":
			return nil
		case strings.HasPrefix(line, "+ERR="):
			code, convErr := strconv.Atoi(strings.TrimPrefix(line, "+ERR="))
			if convErr != nil {
				return ErrBadLine(line)
			}
			return ErrModem(code)
		case strings.HasPrefix(line, "+RCV="):
			in, parseErr := parseRCV(line)
			if parseErr != nil {
				m.log.Warn().Err(parseErr).Str("line", line).Msg("dropping unparseable +RCV")
				continue
			}
			m.pending = append(m.pending, in)
		default:
			// boot banners and the like
			m.log.Debug().Str("line", line).Msg("unexpected modem chatter")
		}
	}
}

// readLine returns the next line off the UART, stripped of its CRLF, waiting up to timeout.
// found is false if the port stayed quiet the whole time.
func (m *Modem) readLine(timeout time.Duration) (line string, found bool, err error) {
	deadline := time.Now().Add(timeout)
	for {
		// serve from the residual buffer first
		if i := bytes.IndexByte(m.rbuf, '\n'); i >= 0 {
			line = strings.TrimSuffix(string(m.rbuf[:i]), "\r")
			m.rbuf = m.rbuf[i+1:]
			if line == "" {
				continue
			}
			return line, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false, nil
		}
		if err := m.port.SetReadTimeout(remaining); err != nil {
			return "", false, err
		}
		chunk := make([]byte, 256)
		n, err := m.port.Read(chunk)
		if err != nil {
			return "", false, err
		}
		if n == 0 {
			// serial read timeout
			return "", false, nil
		}
		m.rbuf = append(m.rbuf, chunk[:n]...)
	}
}

// parseRCV pulls apart "+RCV=<src>,<len>,<data>,<rssi>,<snr>".
// Data may itself contain commas, so it is measured out by <len> rather than split.
func parseRCV(line string) (inbound, error) {
	rest, ok := strings.CutPrefix(line, "+RCV=")
	if !ok {
		return inbound{}, ErrBadLine(line)
	}

	srcStr, rest, ok := strings.Cut(rest, ",")
	if !ok {
		return inbound{}, ErrBadLine(line)
	}
	src, err := strconv.ParseUint(srcStr, 10, 16)
	if err != nil {
		return inbound{}, ErrBadLine(line)
	}
	// the modem allows 16-bit addresses, but chirp's addressing plan stops at one byte
	if src > math.MaxUint8 {
		return inbound{}, ErrAddrRange(src)
	}

	lenStr, rest, ok := strings.Cut(rest, ",")
	if !ok {
		return inbound{}, ErrBadLine(line)
	}
	n, err := strconv.Atoi(lenStr)
	if err != nil || n < 0 || n > len(rest) {
		return inbound{}, ErrBadLine(line)
	}
	payload := []byte(rest[:n])

	tail, ok := strings.CutPrefix(rest[n:], ",")
	if !ok {
		return inbound{}, ErrBadLine(line)
	}
	rssiStr, snrStr, ok := strings.Cut(tail, ",")
	if !ok {
		return inbound{}, ErrBadLine(line)
	}
	rssi, err := strconv.ParseInt(rssiStr, 10, 16)
	if err != nil {
		return inbound{}, ErrBadLine(line)
	}
	snr, err := strconv.ParseInt(snrStr, 10, 8)
	if err != nil {
		return inbound{}, ErrBadLine(line)
	}

	return inbound{
		src:     chirp.Address(src),
		payload: payload,
		rssi:    chirp.RSSI(rssi),
		snr:     int8(snr),
	}, nil
}
