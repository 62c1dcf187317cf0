// Package qrcard renders the share code printed on a laboratory's detail
// card: a QR code (ECC=H, via go-qrcode) with a map pin in the middle.
package qrcard

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	qrcode "github.com/skip2/go-qrcode"
)

// Options tunes the image. Zero values pick the card palette.
type Options struct {
	// Output size (px)
	SizePx int

	Fg  color.RGBA // modules
	Bg  color.RGBA // background, quiet zone included
	Pin color.RGBA

	// PinBoxFrac is the side of the cleared centre square relative to
	// the image, clamped to 0.16..0.30 so ECC=H can still recover it.
	PinBoxFrac float64
}

func (o *Options) defaults() {
	if o.SizePx <= 0 {
		o.SizePx = 512
	}
	if o.PinBoxFrac <= 0 {
		o.PinBoxFrac = 0.24
	}
	o.PinBoxFrac = math.Max(0.16, math.Min(0.30, o.PinBoxFrac))
	if (o.Fg == color.RGBA{}) {
		o.Fg = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	}
	if (o.Bg == color.RGBA{}) {
		o.Bg = color.RGBA{0xff, 0xff, 0xff, 0xff}
	}
	if (o.Pin == color.RGBA{}) {
		o.Pin = color.RGBA{0x4f, 0x46, 0xe5, 0xff}
	}
}

// EncodePNG writes the QR code for link as PNG.
func EncodePNG(w io.Writer, link string, opt Options) error {
	opt.defaults()

	qr, err := qrcode.New(link, qrcode.Highest)
	if err != nil {
		return err
	}
	qr.ForegroundColor = opt.Fg
	qr.BackgroundColor = opt.Bg

	src := qr.Image(opt.SizePx)
	b := src.Bounds()
	W, H := b.Dx(), b.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, W, H))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	box := int(opt.PinBoxFrac * float64(min(W, H)))
	if box%2 == 1 {
		box--
	}
	cx, cy := W/2, H/2
	fillRect(dst, cx-box/2, cy-box/2, box, box, opt.Bg)
	drawPin(dst, cx, cy, box, opt.Pin, opt.Bg)

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, dst)
}

// drawPin draws a teardrop marker: a round head over a point, with a hole
// punched in the head.
func drawPin(dst *image.RGBA, cx, cy, box int, pin, hole color.RGBA) {
	half := box / 2
	r := int(0.42 * float64(half))
	headY := cy - int(0.22*float64(half))
	tipY := cy + int(0.86*float64(half))

	fillCircle(dst, cx, headY, r, pin)
	// Taper from the head's widest row down to the tip.
	for y := headY; y <= tipY; y++ {
		t := float64(y-headY) / float64(tipY-headY)
		w := int(float64(r) * (1 - t))
		for x := cx - w; x <= cx+w; x++ {
			dst.Set(x, y, pin)
		}
	}
	fillCircle(dst, cx, headY, r*2/5, hole)
}

func fillRect(img *image.RGBA, x, y, w, h int, col color.RGBA) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), &image.Uniform{col}, image.Point{}, draw.Src)
}

func fillCircle(img *image.RGBA, cx, cy, r int, col color.RGBA) {
	if r <= 0 {
		return
	}
	r2 := r * r
	b := img.Bounds()
	for y := max(cy-r, b.Min.Y); y <= min(cy+r, b.Max.Y-1); y++ {
		dy := y - cy
		dx := int(math.Sqrt(float64(r2 - dy*dy)))
		for x := max(cx-dx, b.Min.X); x <= min(cx+dx, b.Max.X-1); x++ {
			img.Set(x, y, col)
		}
	}
}
