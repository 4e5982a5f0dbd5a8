/*
Package chirp is the parent package of the chirp LoRa beacon demo.

It holds the primitives shared by every child package (addresses, signal strength, payload caps) and the narrow capability contracts the node loop drives (Transceiver, Indicator). Child packages are mostly self-contained:

  - protocol: the 4-byte on-air header codec.
  - display: the per-iteration frame model and its render sinks.
  - node: the cooperative scheduler loop that ties everything together.
  - simradio: stand-ins for the air itself (in-memory and UDP).
  - rylr: a driver for REYAX RYLR-series serial AT modems.
*/
package chirp

import (
	"strconv"
	"time"
)

// An Address identifies a single radio on the shared channel.
// RadioHead-style: one byte, with 255 reserved as the catch-all broadcast destination.
type Address uint8

// Broadcast is the conventional catch-all destination address.
const Broadcast Address = 0xFF

func (a Address) String() string {
	if a == Broadcast {
		return "broadcast"
	}
	return strconv.FormatUint(uint64(a), 10)
}

// RSSI is a received signal strength indicator, in dBm.
// More negative is weaker; around -40 is a radio shouting into your ear.
type RSSI int16

// MaxPayloadSize is the largest payload (in bytes) a single packet may carry.
// The RFM9x family caps one on-air packet at 252 bytes and the header spends 4 of them.
const MaxPayloadSize = 248

// A Transceiver is a half-duplex packet radio as the node loop sees it: configure once, then interleave sends and bounded receive polls from a single goroutine.
//
// Implementations own the 4-byte header (destination, source, id, flags); callers only ever hand over and get back payloads (plus the raw header when asked).
// Transceivers are not required to be goroutine-safe.
type Transceiver interface {
	// Configure establishes this radio's own address and the destination stamped on outgoing packets.
	// Must be called before the first Send or Receive.
	Configure(local, destination Address) error
	// Send stamps a header on the payload and blocks until the packet has been handed to the air.
	// If keepListening is set, the radio drops back into receive mode as soon as the send completes rather than idling.
	Send(payload []byte, keepListening bool) error
	// Receive waits up to timeout for one inbound packet.
	// A quiet channel is not an error: expect (nil, false, nil) on timeout.
	// When withHeader is set, data retains the leading 4 header bytes; otherwise data is payload only.
	Receive(withHeader bool, timeout time.Duration) (data []byte, found bool, err error)
	// LastRSSI reports the signal strength of the most recently received packet.
	// Only meaningful immediately after a successful Receive.
	LastRSSI() RSSI
}

// An Indicator is a single boolean lamp (the onboard LED, in the flesh).
// The node loop holds it on while a freshly received packet is displayed and off while listening.
type Indicator interface {
	Set(on bool)
}

// IndicatorFunc adapts a bare function into an Indicator.
type IndicatorFunc func(on bool)

func (f IndicatorFunc) Set(on bool) { f(on) }

// Flash blinks ind the given number of times, holding each state for delay.
// Blocks for the full show. A nil ind is a no-op.
func Flash(ind Indicator, times int, delay time.Duration) {
	if ind == nil {
		return
	}
	for i := 0; i < times; i++ {
		ind.Set(true)
		time.Sleep(delay)
		ind.Set(false)
		time.Sleep(delay)
	}
}
