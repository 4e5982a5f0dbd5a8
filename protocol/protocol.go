/*
Package protocol contains tools for the 4-byte chirp packet header.

The layout is RadioHead-compatible: every on-air packet opens with [destination, source, id, flags] and the payload runs to the end of the packet. Drivers own the header; the node loop only ever sees it after Split.

Payloads are deliberately opaque. Nothing here validates or interprets them because every byte pattern is legal on the air.
*/
package protocol

import (
	"errors"

	"github.com/rflandau/chirp"
	"github.com/rs/zerolog"
)

// HeaderLen is the length (in bytes) of the on-air header.
const HeaderLen = 4

// A Header represents a deconstructed chirp packet header.
// There is no Validate; all 2^32 bit patterns are legal headers.
type Header struct {
	// To is the destination address.
	// Receivers do not filter on it; everyone on the channel hears everything.
	To chirp.Address
	// From is the address of the radio that sent the packet.
	From chirp.Address
	// ID is a sender-scoped sequence number. Wraps at 255.
	ID uint8
	// Flags carries driver-level signalling. Always zero in this implementation, but preserved off the air.
	Flags uint8
}

//#region errors

var (
	ErrTruncated = errors.New("packet is shorter than the 4-byte header")
)

//#endregion errors

// Serialize returns the header in on-air byte order.
//
// Performs a single allocation of HeaderLen size.
func (hdr *Header) Serialize() []byte {
	return []byte{byte(hdr.To), byte(hdr.From), hdr.ID, hdr.Flags}
}

// Deserialize populates hdr from the first HeaderLen bytes of raw.
// Returns ErrTruncated (leaving hdr untouched) if raw cannot hold a full header.
func (hdr *Header) Deserialize(raw []byte) error {
	if len(raw) < HeaderLen {
		return ErrTruncated
	}
	hdr.To = chirp.Address(raw[0])
	hdr.From = chirp.Address(raw[1])
	hdr.ID = raw[2]
	hdr.Flags = raw[3]
	return nil
}

// Zerolog is a helper function to dump hdr's fields onto an existing zerolog event.
// Most often passed to zerolog's .Func().
func (hdr *Header) Zerolog(ev *zerolog.Event) {
	ev.Stringer("to", hdr.To).
		Stringer("from", hdr.From).
		Uint8("id", hdr.ID).
		Uint8("flags", hdr.Flags)
}

// Stamp prefixes payload with a header built from the given fields, returning a complete on-air packet.
// The inverse of Split.
func Stamp(to, from chirp.Address, id, flags uint8, payload []byte) []byte {
	pkt := make([]byte, 0, HeaderLen+len(payload))
	pkt = append(pkt, byte(to), byte(from), id, flags)
	return append(pkt, payload...)
}

// Split divides a with-header packet into its header and payload.
// The returned payload aliases raw; copy it if raw's backing array is going to be reused.
func Split(raw []byte) (Header, []byte, error) {
	var hdr Header
	if err := hdr.Deserialize(raw); err != nil {
		return hdr, nil, err
	}
	return hdr, raw[HeaderLen:], nil
}

// A Packet is one inbound transmission as the node loop sees it: split header, opaque payload, and the strength it arrived with.
type Packet struct {
	Header  Header
	Payload []byte
	RSSI    chirp.RSSI
}

// Zerolog is a helper function to dump pkt onto an existing zerolog event.
// Most often passed to zerolog's .Func().
func (pkt *Packet) Zerolog(ev *zerolog.Event) {
	pkt.Header.Zerolog(ev)
	ev.Bytes("payload", pkt.Payload).Int16("rssi", int16(pkt.RSSI))
}
