package frame

import (
	"log"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontConfig lists candidate font files for the two text roles, in priority
// order. It is plain data passed in at startup rather than process-wide
// state, so layouts stay reproducible and tests can inject a stub face.
type FontConfig struct {
	DateCandidates  []string
	TitleCandidates []string
}

// defaultFontCandidates probes a bundled font first, then common platform
// locations. Missing entries are skipped silently.
var defaultFontCandidates = []string{
	"fonts/DejaVuSans.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	`C:\Windows\Fonts\arial.ttf`,
}

// DefaultFontConfig uses the same candidate chain for both roles.
func DefaultFontConfig() FontConfig {
	return FontConfig{
		DateCandidates:  defaultFontCandidates,
		TitleCandidates: defaultFontCandidates,
	}
}

// FontSet carries the resolved date and title faces for one batch run.
type FontSet struct {
	Date  font.Face
	Title font.Face
}

// NewFontSet resolves both faces at the sizes given in p. It never fails:
// when no candidate file loads it falls back to the embedded Go Regular
// font, and as a last resort to the built-in basicfont.
func NewFontSet(cfg FontConfig, p Params) *FontSet {
	return &FontSet{
		Date:  loadFace(cfg.DateCandidates, float64(p.DateFontPx)),
		Title: loadFace(cfg.TitleCandidates, float64(p.TitleFontPx)),
	}
}

func loadFace(candidates []string, size float64) font.Face {
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		ft, err := opentype.Parse(data)
		if err != nil {
			log.Printf("Warning: could not parse font %s: %v", path, err)
			continue
		}
		face, err := opentype.NewFace(ft, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			log.Printf("Warning: could not create face for %s: %v", path, err)
			continue
		}
		return face
	}

	if ft, err := opentype.Parse(goregular.TTF); err == nil {
		if face, err := opentype.NewFace(ft, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull}); err == nil {
			return face
		}
	}

	return basicfont.Face7x13
}
