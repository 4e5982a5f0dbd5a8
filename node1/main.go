/*
Standalone chirp node 1: address 1, chirping at node 2 over localhost UDP.

Companion to node2/main.go; run both (each in its own terminal) to watch two processes chirp at each other. Send a SIGINT to kill the program.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/display"
	"github.com/rflandau/chirp/node"
	"github.com/rflandau/chirp/simradio"
	"github.com/rs/zerolog"
)

const (
	local chirp.Address = 1
	dest  chirp.Address = 2
)

func main() {
	laddr := netip.MustParseAddrPort("127.0.0.1:9101")
	peer := netip.MustParseAddrPort("127.0.0.1:9102")

	l := zerolog.New(zerolog.ConsoleWriter{
		Out:         os.Stdout,
		FieldsOrder: []string{"node", "sublogger"},
		TimeFormat:  "15:04:05",
	}).With().
		Uint8("node", uint8(local)).
		Timestamp().
		Caller().
		Logger().Level(zerolog.DebugLevel)

	radio, err := simradio.OpenUDP(laddr, []netip.AddrPort{peer}, simradio.WithUDPLogger(&l))
	if err != nil {
		panic(err)
	}
	defer radio.Close()

	n, err := node.New(local, dest, radio, display.NewConsole(os.Stdout),
		node.WithLogger(&l),
		node.WithIndicator(lamp(&l)))
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt)
		<-done
		fmt.Println("SIGINT captured. Cleaning up....")
		cancel()
	}()

	fmt.Println("Send a SIGINT to kill the program")
	if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.Fatal().Err(err).Msg("node died")
	}
}

// lamp logs indicator transitions, standing in for the onboard LED.
// Repeated sets to the same state are dropped to keep the transcript readable.
func lamp(l *zerolog.Logger) chirp.Indicator {
	var primed, lit bool
	return chirp.IndicatorFunc(func(on bool) {
		if primed && lit == on {
			return
		}
		primed, lit = true, on
		l.Debug().Bool("on", on).Msg("led")
	})
}
