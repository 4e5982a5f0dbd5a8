/*
Two chirp nodes sharing one in-memory channel.

Node 1 chirps at node 2 and vice versa; each prints every packet it overhears to stdout, framed the way the OLED would show it. Send a SIGINT to kill the program.

For the two-process version of this demo, see node1/ and node2/.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/display"
	"github.com/rflandau/chirp/node"
	"github.com/rflandau/chirp/simradio"
	"github.com/rs/zerolog"
)

func main() {
	air := simradio.NewMedium()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, pair := range [][2]chirp.Address{{1, 2}, {2, 1}} {
		local, dest := pair[0], pair[1]

		l := zerolog.New(zerolog.ConsoleWriter{
			Out:         os.Stdout,
			FieldsOrder: []string{"node"},
			TimeFormat:  "15:04:05",
		}).With().
			Uint8("node", uint8(local)).
			Timestamp().
			Caller().
			Logger().Level(zerolog.DebugLevel)

		n, err := node.New(local, dest, air.Join(), display.NewConsole(os.Stdout),
			node.WithLogger(&l),
			node.WithIndicator(lamp(&l)))
		if err != nil {
			panic(err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Error().Err(err).Msg("node died")
			}
		}()
	}

	fmt.Println("Send a SIGINT to kill the program")
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)
	<-done

	fmt.Println("SIGINT captured. Cleaning up....")
	cancel()
	wg.Wait()
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
