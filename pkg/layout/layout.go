// Package layout measures and wraps text against a font face and a maximum
// pixel width. It only depends on the font.Face measurement interface, so
// tests can run against the built-in basicfont without touching the
// filesystem.
package layout

import (
	"strings"

	"golang.org/x/image/font"
)

// Wrap splits text into lines that each fit within maxWidth pixels when
// rendered with face. Words wider than maxWidth are broken into the fewest
// character runs that fit; a single character is never split, so a glyph
// wider than maxWidth still comes back as its own line. A non-positive
// maxWidth disables wrapping and returns the text as one line. Empty text
// yields a single empty line so height calculations stay well-defined.
func Wrap(face font.Face, text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	// Normalize first: any word wider than maxWidth becomes several pieces
	// that each fit on their own.
	var pieces []string
	for _, word := range words {
		if measure(face, word) <= maxWidth {
			pieces = append(pieces, word)
			continue
		}
		pieces = append(pieces, splitWord(face, word, maxWidth)...)
	}

	// Greedy packing: keep appending pieces while the line plus a separating
	// space still fits.
	var lines []string
	current := pieces[0]
	for _, piece := range pieces[1:] {
		candidate := current + " " + piece
		if measure(face, candidate) <= maxWidth {
			current = candidate
		} else {
			lines = append(lines, current)
			current = piece
		}
	}
	return append(lines, current)
}

// LineHeight reports the pixel height of a line of text in face, measured as
// the tight bounding box of a two-character probe string. Never returns less
// than 1.
func LineHeight(face font.Face) int {
	bounds, _ := font.BoundString(face, "Ag")
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()
	if h < 1 {
		h = 1
	}
	return h
}

// splitWord breaks a single over-wide word into character runs, greedily
// extending each run while it still fits within maxWidth.
func splitWord(face font.Face, word string, maxWidth int) []string {
	var parts []string
	part := ""
	for _, r := range word {
		candidate := part + string(r)
		if part != "" && measure(face, candidate) > maxWidth {
			parts = append(parts, part)
			part = string(r)
			continue
		}
		part = candidate
	}
	if part != "" {
		parts = append(parts, part)
	}
	return parts
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
