package node

import (
	"time"

	"github.com/rflandau/chirp"
	"github.com/rs/zerolog"
)

// File options.go provides options that can be passed to the node constructor to configure it.

// NodeOption function to set various options on the node.
// Uses defaults if an option is not set.
type NodeOption func(*Node)

// WithLogger replaces the node's default logger with the given logger.
func WithLogger(l *zerolog.Logger) NodeOption {
	return func(n *Node) {
		n.log = l
	}
}

// WithIndicator attaches a lamp for the node to signal on.
// Without one, indicator calls are dropped on the floor.
func WithIndicator(ind chirp.Indicator) NodeOption {
	return func(n *Node) {
		n.indicator = ind
	}
}

// WithTransmitInterval overwrites DefaultTransmitInterval.
func WithTransmitInterval(d time.Duration) NodeOption {
	return func(n *Node) {
		n.interval = d
	}
}

// WithReceiveTimeout overwrites DefaultReceiveTimeout.
func WithReceiveTimeout(d time.Duration) NodeOption {
	return func(n *Node) {
		n.pollTimeout = d
	}
}

// WithDwell overwrites DefaultDwell.
func WithDwell(d time.Duration) NodeOption {
	return func(n *Node) {
		n.dwell = d
	}
}
