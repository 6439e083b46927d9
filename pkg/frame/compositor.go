// Package frame builds the output canvas for a single photograph: the source
// image reoriented and inset by a border, plus a bottom band carrying the
// capture date and the wrapped title.
package frame

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"photoframe/pkg/layout"
)

// Params are the layout knobs for a batch run, all in pixels.
type Params struct {
	BorderPx      int
	BottomExtraPx int
	PadPx         int
	DateFontPx    int
	TitleFontPx   int
}

// DefaultParams mirrors the documented defaults.
func DefaultParams() Params {
	return Params{
		BorderPx:      80,
		BottomExtraPx: 240,
		PadPx:         40,
		DateFontPx:    60,
		TitleFontPx:   80,
	}
}

var (
	background = color.NRGBA{255, 255, 255, 255}
	ink        = color.NRGBA{60, 60, 60, 255}
)

// Open loads an image from disk with its EXIF orientation already applied,
// so downstream geometry works on the upright pixels.
func Open(path string) (image.Image, error) {
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// Compose builds the bordered canvas for one image. The bottom band is at
// least p.BottomExtraPx tall and grows to fit the measured text, so the date
// and title never overflow it. An empty date and title still produce the
// configured minimum band. The source image is not modified.
func Compose(src image.Image, date, title string, p Params, fonts *FontSet) *image.NRGBA {
	img := imaging.Clone(src)
	// Outputs are opaque color; drop any alpha channel the source carried so
	// a transparent PNG cannot punch through the canvas.
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	date = strings.TrimSpace(date)
	title = strings.TrimSpace(title)

	textMaxWidth := w - 2*p.PadPx
	gap := int(math.Round(float64(p.TitleFontPx) * 0.35))
	if gap < 4 {
		gap = 4
	}
	topOffset := int(math.Round(float64(p.BottomExtraPx) * 0.18))
	if topOffset < 0 {
		topOffset = 0
	}

	titleLines := layout.Wrap(fonts.Title, title, textMaxWidth)
	dateHeight := layout.LineHeight(fonts.Date)
	titleHeight := layout.LineHeight(fonts.Title)

	content := topOffset
	if date != "" {
		content += dateHeight
	}
	if date != "" && title != "" {
		content += gap
	}
	if title != "" {
		content += len(titleLines)*titleHeight + (len(titleLines)-1)*gap
	}
	content += topOffset / 2

	bottomExtra := p.BottomExtraPx
	if content > bottomExtra {
		bottomExtra = content
	}

	newWidth := w + 2*p.BorderPx
	newHeight := h + 2*p.BorderPx + bottomExtra

	canvas := imaging.New(newWidth, newHeight, background)
	canvas = imaging.Paste(canvas, img, image.Pt(p.BorderPx, p.BorderPx))

	x := p.BorderPx + p.PadPx
	y := h + 2*p.BorderPx + topOffset
	if date != "" {
		drawLine(canvas, fonts.Date, date, x, y)
		y += dateHeight + gap
	}
	if title != "" {
		for _, line := range titleLines {
			drawLine(canvas, fonts.Title, line, x, y)
			y += titleHeight + gap
		}
	}

	return canvas
}

// drawLine renders one line of text with its top edge at y.
func drawLine(dst *image.NRGBA, face font.Face, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
	}
	d.Dot = fixed.P(x, y+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}
