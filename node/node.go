/*
Package node implements the chirp beacon node: a single-goroutine cooperative loop that interleaves a bounded receive poll with a time-gated periodic transmit, the way duty-cycled firmware drives a LoRa breakout.

One iteration of the loop:
 1. push a fresh, blank frame to the display so stale packet text never survives the iteration that drew it
 2. drop the indicator back to idle
 3. poll the radio for up to the receive timeout
 4. if a packet arrived, render its payload and RSSI, light the indicator, and dwell long enough for a human to read the screen
 5. if the transmit interval has elapsed, stamp the counter into a fresh message and send it

There is no receive queue and no concurrency inside the loop. Receive opportunities are bounded by the poll; packets arriving while the node renders or dwells are the driver's problem (and on real hardware, usually lost). That lossiness is inherited deliberately.
*/
package node

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/display"
	"github.com/rflandau/chirp/protocol"
	"github.com/rs/zerolog"
)

// Defaults for the tunable knobs. Timings match the firmware this node apes.
const (
	// DefaultTransmitInterval is how often the node chirps when not overridden.
	DefaultTransmitInterval = time.Second
	// DefaultReceiveTimeout bounds each receive poll.
	DefaultReceiveTimeout = 500 * time.Millisecond
	// DefaultDwell is how long a freshly rendered packet is left on screen before the loop moves on.
	DefaultDwell = 500 * time.Millisecond
)

// Baseline anchors for the two text lines on a 128x64 panel.
const (
	payloadLineY = 10
	rssiLineY    = 25
)

// errorFlashDelay is the hold time for each indicator state while signalling a fatal fault.
const errorFlashDelay = 300 * time.Millisecond

// A Node periodically announces itself on the channel and displays whatever it overhears.
// Build with New, drive with Run.
type Node struct {
	log *zerolog.Logger

	// identity on the channel
	local chirp.Address // our own address
	dest  chirp.Address // where outgoing messages are pointed

	// capabilities handed to us by the caller
	radio     chirp.Transceiver
	screen    display.Display
	indicator chirp.Indicator

	// knobs
	interval    time.Duration // gate between periodic transmits
	pollTimeout time.Duration // bound on each receive poll
	dwell       time.Duration // pause after rendering a packet

	counter atomic.Uint32 // periodic messages sent since Run began
	lastTx  time.Time     // when we last transmitted; loop-owned
	running atomic.Bool   // is Run currently live?
}

// New builds a node that chirps at destination and listens for anything at all, optionally modified with opts.
// The returned node does nothing until Run.
func New(local, destination chirp.Address, radio chirp.Transceiver, screen display.Display, opts ...NodeOption) (*Node, error) {
	if radio == nil {
		return nil, ErrNoRadio
	}
	if screen == nil {
		return nil, ErrNoDisplay
	}

	// set defaults
	n := &Node{
		local:       local,
		dest:        destination,
		radio:       radio,
		screen:      screen,
		interval:    DefaultTransmitInterval,
		pollTimeout: DefaultReceiveTimeout,
		dwell:       DefaultDwell,
	}

	// apply options
	for _, opt := range opts {
		opt(n)
	}

	// if the logger was not established by the options, generate the default logger
	if n.log == nil {
		l := zerolog.New(zerolog.ConsoleWriter{
			Out:         os.Stdout,
			FieldsOrder: []string{"node"},
			TimeFormat:  "15:04:05",
		}).With().
			Uint8("node", uint8(n.local)).
			Timestamp().
			Caller().
			Logger().Level(zerolog.WarnLevel)
		n.log = &l
	}
	// an unset indicator degrades to a no-op lamp
	if n.indicator == nil {
		n.indicator = chirp.IndicatorFunc(func(bool) {})
	}

	n.log.Debug().Func(n.Zerolog).Msg("node created")

	return n, nil
}

//#region getters

// Local returns this node's address on the channel.
func (n *Node) Local() chirp.Address {
	return n.local
}

// Destination returns the address outgoing messages are pointed at.
func (n *Node) Destination() chirp.Address {
	return n.dest
}

// Counter returns the number of periodic messages sent since Run began.
// Safe to call from other goroutines while the node runs.
func (n *Node) Counter() uint32 {
	return n.counter.Load()
}

//#endregion getters

// Zerolog pretty prints the state of the node into the given zerolog event.
// Intended to be given to *zerolog.Event.Func().
func (n *Node) Zerolog(e *zerolog.Event) {
	e.Stringer("local", n.local).
		Stringer("destination", n.dest).
		Dur("interval", n.interval).
		Dur("poll timeout", n.pollTimeout).
		Dur("dwell", n.dwell).
		Uint32("counter", n.counter.Load())
}

// Run drives the node until ctx is cancelled or the hardware faults.
// It configures the radio, announces itself on the channel, then settles into the listen/transmit loop.
//
// Returns ctx.Err() after cancellation. Any other error is a driver fault, reported best-effort on the indicator and screen before returning.
// A node runs at most once at a time; a concurrent second Run returns ErrAlreadyRunning.
func (n *Node) Run(ctx context.Context) error {
	if !n.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer n.running.Store(false)

	if err := n.radio.Configure(n.local, n.dest); err != nil {
		return n.die(fmt.Errorf("configuring radio: %w", err))
	}

	// announce ourselves so anyone on the channel knows we came (back) up.
	// the counter has not advanced yet: startup is message zero.
	hello := fmt.Sprintf("Startup message %d from node %d", n.counter.Load(), uint8(n.local))
	if err := n.radio.Send([]byte(hello), false); err != nil {
		return n.die(fmt.Errorf("startup send: %w", err))
	}
	n.lastTx = time.Now()
	n.log.Info().Msg("waiting for packets...")
	n.indicator.Set(true)

	// sampled sublogger so quiet polls do not flood debug output
	smpl := n.log.Sample(&zerolog.Sometimes).With().Str("sampled", "sometimes").Logger()

	for {
		select {
		case <-ctx.Done():
			n.log.Info().Msg("cancelled; stopping")
			return ctx.Err()
		default:
		}
		if err := n.step(ctx, smpl); err != nil {
			return n.die(err)
		}
	}
}

// step executes one iteration of the node loop: blank the screen, poll for a packet, transmit if it is time.
func (n *Node) step(ctx context.Context, smpl zerolog.Logger) error {
	// fresh frame every pass
	frame := display.NewFrame()
	if err := n.screen.Show(frame); err != nil {
		return fmt.Errorf("display show: %w", err)
	}
	n.indicator.Set(false) // back to listening

	data, found, err := n.radio.Receive(true, n.pollTimeout)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	if found {
		if err := n.render(ctx, frame, data); err != nil {
			return err
		}
	} else {
		smpl.Debug().Msg("no packet this poll")
	}

	// time-gated transmit. time spent rendering and dwelling counts toward the interval.
	if time.Since(n.lastTx) >= n.interval {
		n.lastTx = time.Now()
		c := n.counter.Add(1)
		payload := fmt.Sprintf("msg num %d node %d", c, uint8(n.local))
		if err := n.radio.Send([]byte(payload), true); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		n.log.Debug().Uint32("counter", c).Str("payload", payload).Msg("chirped")
	}

	return nil
}

// render paints a received packet onto the given (blank) frame and holds it there for the dwell.
// Every packet on the channel gets rendered, whoever it was addressed to; payload bytes are treated as opaque text.
func (n *Node) render(ctx context.Context, frame *display.Frame, raw []byte) error {
	hdr, payload, err := protocol.Split(raw)
	if err != nil {
		// drivers should never hand us a runt; drop it and keep the loop alive
		n.log.Warn().Err(err).Hex("raw", raw).Msg("dropping runt packet")
		return nil
	}
	pkt := protocol.Packet{Header: hdr, Payload: payload, RSSI: n.radio.LastRSSI()}
	n.log.Debug().Func(pkt.Zerolog).Msg("received")

	// payload on top, strength underneath
	frame.Append(string(pkt.Payload), 0, payloadLineY)
	frame.Append(fmt.Sprintf("RSSI: %d", pkt.RSSI), 0, rssiLineY)
	if err := n.screen.Show(frame); err != nil {
		return fmt.Errorf("display show: %w", err)
	}
	if err := n.screen.Refresh(); err != nil {
		return fmt.Errorf("display refresh: %w", err)
	}
	n.indicator.Set(true)
	sleep(ctx, n.dwell) // long enough for a human to read the screen
	return nil
}

// die reports a fatal fault on whatever outputs still work, then passes err back unchanged.
// One flash burst means the node is dying; two means the screen would not even take the report.
func (n *Node) die(err error) error {
	n.log.Error().Err(err).Msg("fatal fault")
	chirp.Flash(n.indicator, 1, errorFlashDelay)

	frame := display.NewFrame()
	frame.Append("ERROR:", 0, payloadLineY)
	frame.Append(err.Error(), 0, rssiLineY)
	if showErr := n.screen.Show(frame); showErr != nil {
		chirp.Flash(n.indicator, 2, errorFlashDelay)
		return err
	}
	if refreshErr := n.screen.Refresh(); refreshErr != nil {
		chirp.Flash(n.indicator, 2, errorFlashDelay)
		return err
	}
	return err
}

// sleep blocks for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
