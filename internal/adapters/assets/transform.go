package assets

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// Output sizes per asset class.
const (
	AvatarSize = 100
	IconSize   = 48
)

// centerSquare crops img to its largest centered square and scales it to size.
func centerSquare(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := w
	if h < w {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2

	cropRect := image.Rect(0, 0, side, side)
	cropped := image.NewRGBA(cropRect)
	draw.Draw(cropped, cropRect, img, image.Point{X: x0, Y: y0}, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), draw.Over, nil)
	return dst
}

// CircleAvatar returns a size×size image with everything outside the
// inscribed circle transparent.
func CircleAvatar(img image.Image, size int) image.Image {
	sq := centerSquare(img, size)
	dc := gg.NewContext(size, size)
	dc.DrawCircle(float64(size)/2, float64(size)/2, float64(size)/2)
	dc.Clip()
	dc.DrawImage(sq, 0, 0)
	return dc.Image()
}

// SquareIcon returns a size×size center crop of img.
func SquareIcon(img image.Image, size int) image.Image {
	return centerSquare(img, size)
}

// Placeholder draws a neutral disc used when no avatar could be loaded.
func Placeholder(size int) image.Image {
	dc := gg.NewContext(size, size)
	dc.DrawCircle(float64(size)/2, float64(size)/2, float64(size)/2)
	dc.Clip()
	dc.SetColor(color.RGBA{R: 0x5a, G: 0x5f, B: 0x6b, A: 0xff})
	dc.DrawRectangle(0, 0, float64(size), float64(size))
	dc.Fill()
	dc.SetColor(color.RGBA{R: 0x9a, G: 0xa0, B: 0xad, A: 0xff})
	dc.DrawCircle(float64(size)/2, float64(size)*0.4, float64(size)*0.18)
	dc.Fill()
	dc.DrawEllipse(float64(size)/2, float64(size)*0.95, float64(size)*0.32, float64(size)*0.28)
	dc.Fill()
	return dc.Image()
}
