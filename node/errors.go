package node

import "errors"

// File errors.go consolidates the errors the node can return.

var (
	ErrAlreadyRunning = errors.New("this node is already running")
	ErrNoRadio        = errors.New("a node requires a radio")
	ErrNoDisplay      = errors.New("a node requires a display")
)
