package display

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Image is a Display that rasterizes frames into an in-memory RGBA image, white 7x13 text on black.
// It is the host-side stand-in for the physical panel: Snapshot returns what the glass would be showing.
//
// Show publishes immediately (there is no in-memory equivalent of waiting on the panel bus), so Refresh has nothing left to do.
// Snapshot is safe to call from other goroutines while the node loop drives Show.
type Image struct {
	bounds image.Rectangle

	mu      sync.Mutex
	current *image.RGBA
}

// NewImage returns an all-black panel of the given dimensions.
func NewImage(width, height int) *Image {
	d := &Image{bounds: image.Rect(0, 0, width, height)}
	d.current = rasterize(d.bounds, NewFrame())
	return d
}

// Show rasterizes f onto a fresh canvas and publishes it as the panel's content.
// A nil or empty frame blanks the panel.
func (d *Image) Show(f *Frame) error {
	if f == nil {
		f = NewFrame()
	}
	img := rasterize(d.bounds, f)
	d.mu.Lock()
	d.current = img
	d.mu.Unlock()
	return nil
}

// Refresh is a no-op; Show already published to the (in-memory) glass.
func (d *Image) Refresh() error {
	return nil
}

// Snapshot returns the image currently on the panel.
// Callers must not modify the returned image.
func (d *Image) Snapshot() image.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// rasterize draws f's lines onto a fresh black canvas.
func rasterize(bounds image.Rectangle, f *Frame) *image.RGBA {
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, image.NewUniform(color.Black), image.Point{}, draw.Src)
	for _, ln := range f.Lines {
		drawText(img, ln.X, ln.Y, ln.Text)
	}
	return img
}

// drawText will write text in a 7x13 pixel font with its baseline at (x, y).
func drawText(img *image.RGBA, x, y int, text string) {
	col := color.RGBA{255, 255, 255, 255}
	point := fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  point,
	}
	d.DrawString(text)
}
