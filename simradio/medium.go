/*
Package simradio provides stand-ins for the air itself, so chirp nodes can run anywhere Go does.

Medium is an in-memory channel: every Radio joined to it hears every transmit from the others, arriving with a fabricated RSSI. UDPRadio stretches the same idea across processes by blasting raw packets at a list of peers.

Neither stand-in filters, acknowledges, or retries. Like the real air, a packet transmitted while nobody is polling simply evaporates.
*/
package simradio

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/protocol"
)

// DefaultBaseRSSI is the center of the fabricated signal strength range.
const DefaultBaseRSSI chirp.RSSI = -60

// rssiJitter is the half-width of the fabricated RSSI spread.
const rssiJitter = 10

// inboxDepth bounds each radio's pending-packet buffer.
// On overflow the oldest frame is evicted, like a FIFO whose owner stopped reading.
const inboxDepth = 8

// airFrame is one packet in flight: raw bytes plus the strength it will arrive with.
type airFrame struct {
	raw  []byte
	rssi chirp.RSSI
}

// A Medium is a shared in-memory channel.
// The zero value is not usable; call NewMedium.
type Medium struct {
	mu     sync.Mutex
	radios []*Radio
	base   chirp.RSSI
}

// MediumOption function to set various options on the medium.
type MediumOption func(*Medium)

// WithBaseRSSI recenters the fabricated signal strength range.
func WithBaseRSSI(base chirp.RSSI) MediumOption {
	return func(m *Medium) {
		m.base = base
	}
}

// NewMedium returns an empty channel, ready for radios to Join.
func NewMedium(opts ...MediumOption) *Medium {
	m := &Medium{base: DefaultBaseRSSI}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join adds a fresh radio to the channel and returns it.
func (m *Medium) Join() *Radio {
	r := &Radio{medium: m, inbox: make(chan airFrame, inboxDepth)}
	m.mu.Lock()
	m.radios = append(m.radios, r)
	m.mu.Unlock()
	return r
}

// transmit fans raw out to every radio on the channel except the sender.
// Each receiver gets its own copy of the bytes and its own fabricated RSSI.
func (m *Medium) transmit(sender *Radio, raw []byte) {
	m.mu.Lock()
	targets := slices.Clone(m.radios)
	base := m.base
	m.mu.Unlock()

	for _, r := range targets {
		if r == sender {
			continue
		}
		r.deliver(airFrame{
			raw:  slices.Clone(raw),
			rssi: base + chirp.RSSI(rand.IntN(2*rssiJitter+1)-rssiJitter),
		})
	}
}

// A Radio is one participant on a Medium. Satisfies chirp.Transceiver.
// Like the hardware it stands in for, a Radio expects a single driving goroutine.
type Radio struct {
	medium      *Medium
	local, dest chirp.Address
	id          uint8 // sequence stamped on outgoing headers; wraps at 255
	lastRSSI    chirp.RSSI

	inbox chan airFrame
}

// Configure implements chirp.Transceiver.
func (r *Radio) Configure(local, destination chirp.Address) error {
	r.local, r.dest = local, destination
	return nil
}

// Send stamps a header on payload and fans it out to everyone else on the channel.
// keepListening is accepted and irrelevant; an in-memory radio never stops hearing.
func (r *Radio) Send(payload []byte, _ bool) error {
	if len(payload) > chirp.MaxPayloadSize {
		return ErrOversized
	}
	raw := protocol.Stamp(r.dest, r.local, r.id, 0, payload)
	r.id++
	r.medium.transmit(r, raw)
	return nil
}

// Receive waits up to timeout for a packet off the channel.
func (r *Radio) Receive(withHeader bool, timeout time.Duration) ([]byte, bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-r.inbox:
		r.lastRSSI = f.rssi
		if withHeader {
			return f.raw, true, nil
		}
		return f.raw[protocol.HeaderLen:], true, nil
	case <-t.C:
		return nil, false, nil
	}
}

// LastRSSI implements chirp.Transceiver.
func (r *Radio) LastRSSI() chirp.RSSI {
	return r.lastRSSI
}

// deliver pushes f into the inbox, evicting the oldest pending frame if it is full.
func (r *Radio) deliver(f airFrame) {
	for {
		select {
		case r.inbox <- f:
			return
		default:
		}
		// full; evict one and try again
		select {
		case <-r.inbox:
		default:
		}
	}
}
