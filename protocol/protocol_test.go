package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	randomdata "github.com/Pallinder/go-randomdata"
	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/internal/testsupport"
	"github.com/rflandau/chirp/protocol"
)

// Stamp a packet and split it back apart, checking that nothing is mangled in flight.
func TestStampSplit(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		payload := []byte(randomdata.SillyName())
		raw := protocol.Stamp(2, 1, 7, 0, payload)
		if len(raw) != protocol.HeaderLen+len(payload) {
			t.Fatal("bad packet length", testsupport.ExpectedActual(protocol.HeaderLen+len(payload), len(raw)))
		}
		hdr, got, err := protocol.Split(raw)
		if err != nil {
			t.Fatal(err)
		}
		if hdr.To != 2 || hdr.From != 1 || hdr.ID != 7 || hdr.Flags != 0 {
			t.Errorf("header mangled in flight: %+v", hdr)
		}
		if !bytes.Equal(got, payload) {
			t.Error("payload mangled in flight", testsupport.ExpectedActual(payload, got))
		}
	})
	t.Run("payload is opaque", func(t *testing.T) {
		// arbitrary bytes, NULs and all, must survive untouched
		payload := []byte{0x00, 0xFF, '\n', 0x7F, 0x00}
		_, got, err := protocol.Split(protocol.Stamp(chirp.Broadcast, 5, 0, 0, payload))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, payload) {
			t.Error("payload mangled in flight", testsupport.ExpectedActual(payload, got))
		}
	})
	t.Run("empty payload", func(t *testing.T) {
		hdr, payload, err := protocol.Split(protocol.Stamp(2, 1, 0, 0, nil))
		if err != nil {
			t.Fatal(err)
		}
		if len(payload) != 0 {
			t.Error("expected empty payload", testsupport.ExpectedActual(0, len(payload)))
		}
		if hdr.From != 1 {
			t.Error("bad source", testsupport.ExpectedActual(chirp.Address(1), hdr.From))
		}
	})
	t.Run("wire layout", func(t *testing.T) {
		raw := protocol.Stamp(chirp.Broadcast, 3, 200, 0x80, []byte{0xAA})
		want := []byte{0xFF, 3, 200, 0x80, 0xAA}
		if !bytes.Equal(raw, want) {
			t.Error("wire layout drifted", testsupport.ExpectedActual(want, raw))
		}
		hdr := protocol.Header{To: chirp.Broadcast, From: 3, ID: 200, Flags: 0x80}
		if !bytes.Equal(hdr.Serialize(), want[:protocol.HeaderLen]) {
			t.Error("Serialize disagrees with Stamp", testsupport.ExpectedActual(want[:protocol.HeaderLen], hdr.Serialize()))
		}
	})
}

func TestSplitTruncated(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, {1}, {1, 2}, {1, 2, 3}} {
		if _, _, err := protocol.Split(raw); !errors.Is(err, protocol.ErrTruncated) {
			t.Error("expected ErrTruncated for", len(raw), "bytes", testsupport.ExpectedActual(protocol.ErrTruncated, err))
		}
	}
}

// Deserialize must leave the header untouched when handed a runt.
func TestDeserializeShortLeavesHeader(t *testing.T) {
	hdr := protocol.Header{To: 9, From: 8, ID: 7, Flags: 6}
	if err := hdr.Deserialize([]byte{1, 2}); !errors.Is(err, protocol.ErrTruncated) {
		t.Fatal("expected ErrTruncated", testsupport.ExpectedActual(protocol.ErrTruncated, err))
	}
	if hdr.To != 9 || hdr.From != 8 || hdr.ID != 7 || hdr.Flags != 6 {
		t.Errorf("header clobbered by failed deserialize: %+v", hdr)
	}
}
