package rylr_test

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/internal/testsupport"
	"github.com/rflandau/chirp/protocol"
	"github.com/rflandau/chirp/rylr"
	"github.com/rs/zerolog"
)

//#region fake UART

// scriptPort is a fake UART: writes are recorded, reads are served out of a pre-fed buffer.
// An empty buffer emulates the serial read timeout (a zero-byte read).
type scriptPort struct {
	mu      sync.Mutex
	wrote   []byte
	pending []byte
	readErr error
}

func (p *scriptPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wrote = append(p.wrote, b...)
	return len(b), nil
}

func (p *scriptPort) SetReadTimeout(time.Duration) error { return nil }

// feed queues bytes for future reads.
func (p *scriptPort) feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, s...)
}

// commands returns every CRLF-terminated line written so far.
func (p *scriptPort) commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := strings.TrimSuffix(string(p.wrote), "\r\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\r\n")
}

// reset forgets everything written so far.
func (p *scriptPort) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wrote = nil
}

//#endregion fake UART

func newModem(t *testing.T, opts ...rylr.ModemOption) (*rylr.Modem, *scriptPort) {
	t.Helper()
	p := &scriptPort{}
	l := zerolog.Nop()
	m, err := rylr.New(p, append([]rylr.ModemOption{rylr.WithLogger(&l)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return m, p
}

// configured returns a modem that has already claimed address 1 with destination 2, write log wiped.
func configured(t *testing.T, opts ...rylr.ModemOption) (*rylr.Modem, *scriptPort) {
	t.Helper()
	m, p := newModem(t, opts...)
	p.feed("+OK\r\n+OK\r\n")
	if err := m.Configure(1, 2); err != nil {
		t.Fatal(err)
	}
	p.reset()
	return m, p
}

func TestNewValidation(t *testing.T) {
	if _, err := rylr.New(nil); !errors.Is(err, rylr.ErrNoPort) {
		t.Error("nil port accepted", testsupport.ExpectedActual(rylr.ErrNoPort, err))
	}
}

func TestConfigure(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		m, p := newModem(t)
		p.feed("+OK\r\n+OK\r\n")
		if err := m.Configure(1, 2); err != nil {
			t.Fatal(err)
		}
		want := []string{"AT", "AT+ADDRESS=1"}
		if got := p.commands(); !slices.Equal(got, want) {
			t.Error("bad command sequence", testsupport.ExpectedActual(want, got))
		}
	})
	t.Run("full rf config", func(t *testing.T) {
		m, p := newModem(t,
			rylr.WithNetworkID(5),
			rylr.WithBand(868500000),
			rylr.WithParameters(rylr.Parameters{SpreadingFactor: 9, Bandwidth: 7, CodingRate: 1, ProgrammedPreamble: 4}),
			rylr.WithOutputPower(15))
		p.feed(strings.Repeat("+OK\r\n", 6))
		if err := m.Configure(3, 4); err != nil {
			t.Fatal(err)
		}
		want := []string{
			"AT",
			"AT+ADDRESS=3",
			"AT+NETWORKID=5",
			"AT+BAND=868500000",
			"AT+PARAMETER=9,7,1,4",
			"AT+CRFOP=15",
		}
		if got := p.commands(); !slices.Equal(got, want) {
			t.Error("bad command sequence", testsupport.ExpectedActual(want, got))
		}
	})
	t.Run("modem rejects", func(t *testing.T) {
		m, p := newModem(t)
		p.feed("+ERR=2\r\n")
		err := m.Configure(1, 2)
		if err == nil || !strings.Contains(err.Error(), "+ERR=2") {
			t.Error("rejection not surfaced", testsupport.ExpectedActual[any]("+ERR=2", err))
		}
	})
}

func TestSend(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		m, p := configured(t)
		p.feed("+OK\r\n")
		if err := m.Send([]byte("hello"), true); err != nil {
			t.Fatal(err)
		}
		want := []string{"AT+SEND=2,5,hello"}
		if got := p.commands(); !slices.Equal(got, want) {
			t.Error("bad send", testsupport.ExpectedActual(want, got))
		}
	})
	t.Run("modem error", func(t *testing.T) {
		m, p := configured(t)
		p.feed("+ERR=13\r\n")
		err := m.Send([]byte("hello"), true)
		if err == nil || !strings.Contains(err.Error(), "+ERR=13") {
			t.Error("rejection not surfaced", testsupport.ExpectedActual[any]("+ERR=13", err))
		}
	})
	t.Run("no response", func(t *testing.T) {
		m, _ := configured(t)
		if err := m.Send([]byte("hello"), true); !errors.Is(err, rylr.ErrNoResponse) {
			t.Error("silence not surfaced", testsupport.ExpectedActual(rylr.ErrNoResponse, err))
		}
	})
	t.Run("oversized", func(t *testing.T) {
		m, p := configured(t)
		if err := m.Send(make([]byte, 241), true); !errors.Is(err, rylr.ErrOversized) {
			t.Error("oversized payload not refused", testsupport.ExpectedActual(rylr.ErrOversized, err))
		}
		if got := p.commands(); len(got) != 0 {
			t.Error("oversized payload still hit the UART", testsupport.ExpectedActual(nil, got))
		}
	})
}

func TestReceive(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		m, p := configured(t)
		p.feed("+RCV=2,5,howdy,-42,11\r\n")
		raw, found, err := m.Receive(true, 100*time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("packet never surfaced")
		}
		hdr, payload, err := protocol.Split(raw)
		if err != nil {
			t.Fatal(err)
		}
		// synthesized header: to is us, from is the +RCV source, id and flags zero
		if hdr.To != 1 || hdr.From != 2 || hdr.ID != 0 || hdr.Flags != 0 {
			t.Errorf("bad synthesized header: %+v", hdr)
		}
		if string(payload) != "howdy" {
			t.Error("mangled payload", testsupport.ExpectedActual("howdy", string(payload)))
		}
		if got := m.LastRSSI(); got != -42 {
			t.Error("bad RSSI", testsupport.ExpectedActual(chirp.RSSI(-42), got))
		}
	})
	t.Run("payload only", func(t *testing.T) {
		m, p := configured(t)
		p.feed("+RCV=2,5,howdy,-42,11\r\n")
		data, found, err := m.Receive(false, 100*time.Millisecond)
		if err != nil || !found {
			t.Fatal("receive failed:", found, err)
		}
		if string(data) != "howdy" {
			t.Error("expected bare payload", testsupport.ExpectedActual("howdy", string(data)))
		}
	})
	t.Run("commas in payload", func(t *testing.T) {
		m, p := configured(t)
		p.feed("+RCV=2,3,a,b,-30,8\r\n")
		data, found, err := m.Receive(false, 100*time.Millisecond)
		if err != nil || !found {
			t.Fatal("receive failed:", found, err)
		}
		if string(data) != "a,b" {
			t.Error("comma-bearing payload mangled", testsupport.ExpectedActual("a,b", string(data)))
		}
		if got := m.LastRSSI(); got != -30 {
			t.Error("bad RSSI", testsupport.ExpectedActual(chirp.RSSI(-30), got))
		}
	})
	t.Run("quiet port", func(t *testing.T) {
		m, _ := configured(t)
		data, found, err := m.Receive(true, 20*time.Millisecond)
		if err != nil {
			t.Fatal("quiet port returned an error:", err)
		}
		if found || data != nil {
			t.Error("phantom packet", testsupport.ExpectedActual(nil, data))
		}
	})
	t.Run("chatter skipped", func(t *testing.T) {
		m, p := configured(t)
		p.feed("+READY\r\nwat\r\n+RCV=7,2,yo,-55,3\r\n")
		raw, found, err := m.Receive(true, 100*time.Millisecond)
		if err != nil || !found {
			t.Fatal("receive failed:", found, err)
		}
		hdr, payload, err := protocol.Split(raw)
		if err != nil {
			t.Fatal(err)
		}
		if hdr.From != 7 || string(payload) != "yo" {
			t.Errorf("wrong packet surfaced: %+v %q", hdr, payload)
		}
	})
	t.Run("out-of-range source dropped", func(t *testing.T) {
		m, p := configured(t)
		p.feed("+RCV=300,2,yo,-50,5\r\n")
		_, found, err := m.Receive(true, 20*time.Millisecond)
		if err != nil {
			t.Fatal("drop escalated to an error:", err)
		}
		if found {
			t.Error("packet with an unmappable source was delivered")
		}
	})
	t.Run("dead uart", func(t *testing.T) {
		m, p := configured(t)
		boom := errors.New("uart unplugged")
		p.mu.Lock()
		p.readErr = boom
		p.mu.Unlock()
		if _, _, err := m.Receive(true, 20*time.Millisecond); !errors.Is(err, boom) {
			t.Error("port fault not passed through", testsupport.ExpectedActual(boom, err))
		}
	})
}

// A +RCV landing between a command and its +OK must be queued, not lost.
func TestInterleavedRCV(t *testing.T) {
	m, p := configured(t)
	p.feed("+RCV=9,2,yo,-50,5\r\n+OK\r\n")
	if err := m.Send([]byte("hi"), true); err != nil {
		t.Fatal("send tripped over the interleaved +RCV:", err)
	}
	// the port is empty now; the packet must come out of the pending queue
	raw, found, err := m.Receive(true, 20*time.Millisecond)
	if err != nil || !found {
		t.Fatal("queued packet lost:", found, err)
	}
	hdr, payload, err := protocol.Split(raw)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.From != 9 || string(payload) != "yo" {
		t.Errorf("wrong packet surfaced: %+v %q", hdr, payload)
	}
	if got := m.LastRSSI(); got != -50 {
		t.Error("bad RSSI", testsupport.ExpectedActual(chirp.RSSI(-50), got))
	}
}
