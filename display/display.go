/*
Package display models the node's screen: a tiny frame of text lines rebuilt from scratch every loop iteration, handed to a sink with Show and flushed with Refresh.

The Show/Refresh split mirrors small OLED drivers: Show replaces the panel's content (cheap), Refresh forces the panel to redraw it. Refresh may be a no-op for sinks with nothing to flush, but the call order (Show, then Refresh when there is something worth reading) is part of the node loop's contract.
*/
package display

// Dimensions of the usual target panel (the ubiquitous SSD1306-class 128x64 OLED), in pixels.
const (
	DefaultWidth  = 128
	DefaultHeight = 64
)

// A Line is one run of text anchored at a pixel position.
// Y is the text baseline, matching the hardware label libraries this stands in for.
type Line struct {
	Text string
	X, Y int
}

// A Frame is a transient render target: zero or more text lines over a black background.
// The node loop builds a fresh one every iteration, so stale text can never outlive the iteration that drew it.
type Frame struct {
	Lines []Line
}

// NewFrame returns an empty frame (bare background).
func NewFrame() *Frame {
	return &Frame{}
}

// Append adds a line of text with its baseline anchored at (x, y).
func (f *Frame) Append(text string, x, y int) {
	f.Lines = append(f.Lines, Line{Text: text, X: x, Y: y})
}

// A Display is a sink for frames.
//
// Displays are driven from the node's single loop goroutine; Show and Refresh need not be safe against each other.
type Display interface {
	// Show makes f the display's current content, discarding whatever was there before.
	// An empty frame blanks the display.
	Show(f *Frame) error
	// Refresh forces the display to redraw its current content.
	Refresh() error
}
