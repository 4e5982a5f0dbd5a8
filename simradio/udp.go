package simradio

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
	"os"
	"sync/atomic"
	"time"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/protocol"
	"github.com/rs/zerolog"
)

// readBufLen is sized to the RFM9x FIFO; a longer packet could not exist on the real air.
const readBufLen = 256

// A UDPRadio treats a handful of UDP sockets as the air, so node processes on one machine (or one LAN) can chirp at each other.
// Satisfies chirp.Transceiver.
//
// Every Send is blasted at every peer; addressing lives in the chirp header, not in UDP.
// RSSI is fabricated around the same base as the in-memory Medium.
//
// Send, Receive, and LastRSSI expect a single driving goroutine. Close may be called from anywhere.
type UDPRadio struct {
	log *zerolog.Logger

	laddr netip.AddrPort
	peers []netip.AddrPort

	local, dest chirp.Address
	id          uint8 // sequence stamped on outgoing headers; wraps at 255
	base        chirp.RSSI
	lastRSSI    chirp.RSSI

	net struct {
		open   atomic.Bool        // is the socket usable?
		pconn  net.PacketConn     // the packet-oriented UDP connection standing in for the air
		ctx    context.Context    // the context pconn is running under
		cancel context.CancelFunc // callable to kill ctx
	}
}

// UDPOption function to set various options on a UDPRadio.
type UDPOption func(*UDPRadio)

// WithUDPLogger replaces the radio's default logger with the given logger.
func WithUDPLogger(l *zerolog.Logger) UDPOption {
	return func(r *UDPRadio) {
		r.log = l
	}
}

// WithUDPBaseRSSI recenters the fabricated signal strength range.
func WithUDPBaseRSSI(base chirp.RSSI) UDPOption {
	return func(r *UDPRadio) {
		r.base = base
	}
}

// OpenUDP binds laddr and returns a radio that treats peers as the rest of the channel, optionally modified with opts.
// The returned radio is usable immediately and holds the socket until Close.
func OpenUDP(laddr netip.AddrPort, peers []netip.AddrPort, opts ...UDPOption) (*UDPRadio, error) {
	if !laddr.IsValid() {
		return nil, ErrBadAddr(laddr)
	}
	for _, p := range peers {
		if !p.IsValid() {
			return nil, ErrBadAddr(p)
		}
	}

	// set defaults
	r := &UDPRadio{
		laddr: laddr,
		peers: peers,
		base:  DefaultBaseRSSI,
	}

	// apply options
	for _, opt := range opts {
		opt(r)
	}

	// if the logger was not established by the options, generate the default logger
	if r.log == nil {
		l := zerolog.New(zerolog.ConsoleWriter{
			Out:         os.Stdout,
			FieldsOrder: []string{"sublogger"},
			TimeFormat:  "15:04:05",
		}).With().
			Str("sublogger", "udpradio").
			Timestamp().
			Caller().
			Logger().Level(zerolog.WarnLevel)
		r.log = &l
	}

	// create a context so we can kill this socket
	r.net.ctx, r.net.cancel = context.WithCancel(context.Background())

	// spin up a packet connection
	pconn, err := (&net.ListenConfig{}).ListenPacket(r.net.ctx, "udp", laddr.String())
	if err != nil {
		r.net.cancel()
		return nil, err
	}
	r.net.pconn = pconn
	r.net.open.Store(true)

	r.log.Info().Str("local address", pconn.LocalAddr().String()).Int("peer count", len(peers)).Msg("air is up")

	return r, nil
}

// Addr returns the bound local address.
// Differs from the laddr given to OpenUDP when that laddr asked for port 0.
func (r *UDPRadio) Addr() netip.AddrPort {
	if r.net.pconn == nil {
		return r.laddr
	}
	if ua, ok := r.net.pconn.LocalAddr().(*net.UDPAddr); ok {
		return ua.AddrPort()
	}
	return r.laddr
}

// Zerolog pretty prints the state of the radio into the given zerolog event.
// Intended to be given to *zerolog.Event.Func().
func (r *UDPRadio) Zerolog(e *zerolog.Event) {
	a := zerolog.Arr()
	for _, p := range r.peers {
		a.Str(p.String())
	}
	e.Stringer("local address", r.laddr).
		Array("peers", a).
		Stringer("node", r.local).
		Stringer("destination", r.dest).
		Bool("open", r.net.open.Load())
}

// Close tears down the socket. Ineffectual if already closed.
func (r *UDPRadio) Close() error {
	if !r.net.open.CompareAndSwap(true, false) {
		return nil
	}
	r.net.cancel()
	err := r.net.pconn.Close()
	r.log.Info().AnErr("conn close error", err).Msg("air is down")
	return err
}

// Configure implements chirp.Transceiver.
func (r *UDPRadio) Configure(local, destination chirp.Address) error {
	if !r.net.open.Load() {
		return ErrClosed
	}
	r.local, r.dest = local, destination
	r.log.Debug().Func(r.Zerolog).Msg("radio configured")
	return nil
}

// Send stamps a header on payload and blasts the packet at every peer.
// keepListening is accepted and irrelevant; the socket always listens.
func (r *UDPRadio) Send(payload []byte, _ bool) error {
	if !r.net.open.Load() {
		return ErrClosed
	}
	if len(payload) > chirp.MaxPayloadSize {
		return ErrOversized
	}
	raw := protocol.Stamp(r.dest, r.local, r.id, 0, payload)
	r.id++
	for _, peer := range r.peers {
		if n, err := r.net.pconn.WriteTo(raw, net.UDPAddrFromAddrPort(peer)); err != nil {
			return fmt.Errorf("writing to peer %v: %w", peer, err)
		} else if n != len(raw) {
			r.log.Warn().
				Int("bytes written", n).
				Int("packet length", len(raw)).
				Stringer("peer", peer).
				Msg("bytes written does not equal packet length")
		}
	}
	return nil
}

// Receive waits up to timeout for one packet from any peer.
// Runts too short to carry a header are dropped on the floor, the same way the hardware drops them.
func (r *UDPRadio) Receive(withHeader bool, timeout time.Duration) ([]byte, bool, error) {
	if !r.net.open.Load() {
		return nil, false, ErrClosed
	}
	deadline := time.Now().Add(timeout)
	if err := r.net.pconn.SetReadDeadline(deadline); err != nil {
		return nil, false, err
	}

	buf := make([]byte, readBufLen)
	for {
		n, sender, err := r.net.pconn.ReadFrom(buf)
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			// a quiet channel is not an error
			return nil, false, nil
		case err != nil:
			if !r.net.open.Load() {
				return nil, false, ErrClosed
			}
			return nil, false, err
		case n < protocol.HeaderLen:
			r.log.Debug().Int("bytes", n).Str("sender", sender.String()).Msg("dropping runt packet")
			if !time.Now().Before(deadline) {
				return nil, false, nil
			}
			continue
		}

		raw := buf[:n]
		r.lastRSSI = r.base + chirp.RSSI(rand.IntN(2*rssiJitter+1)-rssiJitter)
		r.log.Debug().Str("sender", sender.String()).Int("message size (bytes)", n).Msg("packet received")
		if withHeader {
			return raw, true, nil
		}
		return raw[protocol.HeaderLen:], true, nil
	}
}

// LastRSSI implements chirp.Transceiver.
func (r *UDPRadio) LastRSSI() chirp.RSSI {
	return r.lastRSSI
}
