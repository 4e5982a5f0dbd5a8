package chirp_test

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rflandau/chirp"
	"github.com/rflandau/chirp/internal/testsupport"
)

func TestAddressString(t *testing.T) {
	for want, addr := range map[string]chirp.Address{
		"0":         0,
		"7":         7,
		"254":       254,
		"broadcast": chirp.Broadcast,
	} {
		if got := addr.String(); got != want {
			t.Error("bad rendering", testsupport.ExpectedActual(want, got))
		}
	}
}

// recLamp records indicator transitions.
type recLamp struct {
	mu     sync.Mutex
	states []bool
}

func (r *recLamp) Set(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, on)
}

func TestFlash(t *testing.T) {
	lamp := &recLamp{}
	chirp.Flash(lamp, 2, time.Millisecond)
	want := []bool{true, false, true, false}
	if !slices.Equal(lamp.states, want) {
		t.Error("bad flash pattern", testsupport.ExpectedActual(want, lamp.states))
	}

	// a nil indicator is a no-op, not a panic
	chirp.Flash(nil, 1, time.Millisecond)
}

func TestIndicatorFunc(t *testing.T) {
	var got []bool
	ind := chirp.IndicatorFunc(func(on bool) { got = append(got, on) })
	ind.Set(true)
	ind.Set(false)
	if !slices.Equal(got, []bool{true, false}) {
		t.Error("adapter dropped a transition", testsupport.ExpectedActual([]bool{true, false}, got))
	}
}
