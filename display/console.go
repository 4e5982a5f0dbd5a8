package display

import (
	"fmt"
	"io"
)

// rule opens and closes each printed frame block.
const rule = "+----------------+"

// Console is a Display that writes frames to a terminal transcript.
//
// A scrolling terminal cannot un-draw, so Show only stages the frame; Refresh prints the staged frame as one block.
// Driven by the node loop this works out nicely: blank listening-iteration frames are staged silently and each received packet appears as exactly one block.
type Console struct {
	w   io.Writer
	cur *Frame
}

// NewConsole returns a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, cur: NewFrame()}
}

// Show stages f as the current content. Nothing is printed until Refresh.
func (c *Console) Show(f *Frame) error {
	if f == nil {
		f = NewFrame()
	}
	c.cur = f
	return nil
}

// Refresh prints the staged frame as a delimited block, one text line per frame line.
func (c *Console) Refresh() error {
	if _, err := fmt.Fprintln(c.w, rule); err != nil {
		return err
	}
	for _, ln := range c.cur.Lines {
		if _, err := fmt.Fprintf(c.w, "| %s\n", ln.Text); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(c.w, rule)
	return err
}
