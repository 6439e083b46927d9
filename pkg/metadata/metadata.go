// Package metadata extracts the capture date and title from an image file
// and its optional sidecar. Reads are best-effort: every failure degrades to
// an absent field with a warning log, never an error, so a photo with broken
// or missing metadata still gets framed.
package metadata

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata holds the two fields the compositor consumes. Empty string means
// the field is absent.
type Metadata struct {
	Date  string // capture date formatted YYYY-MM-DD
	Title string
}

// Read extracts both fields for a single image file.
func Read(path string) Metadata {
	return Metadata{
		Date:  ReadCaptureDate(path),
		Title: ReadTitle(path),
	}
}

// ReadCaptureDate returns the original capture date of the image as
// YYYY-MM-DD, preferring the EXIF DateTimeOriginal tag and falling back to
// the generic DateTime tag. Returns "" if the file has no usable timestamp.
func ReadCaptureDate(path string) string {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("Warning: could not open %s for EXIF read: %v", path, err)
		return ""
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		log.Printf("Warning: no EXIF data in %s: %v", path, err)
		return ""
	}

	raw := ""
	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		raw, _ = tag.StringVal()
	}
	if raw == "" {
		if tag, err := x.Get(exif.DateTime); err == nil {
			raw, _ = tag.StringVal()
		}
	}

	date, ok := ReformatTimestamp(raw)
	if !ok {
		if raw != "" {
			log.Printf("Warning: malformed EXIF timestamp %q in %s", raw, path)
		}
		return ""
	}
	return date
}

// ReformatTimestamp parses an EXIF-style "YYYY:MM:DD HH:MM:SS" timestamp and
// reformats it to YYYY-MM-DD. The second return is false when raw does not
// match that pattern. ASCII tag values may carry a trailing NUL; it is
// ignored.
func ReformatTimestamp(raw string) (string, bool) {
	t, err := time.Parse("2006:01:02 15:04:05", strings.TrimSpace(strings.TrimRight(raw, "\x00")))
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// titlePattern matches a Lightroom-style dc:title fragment inside an XMP
// packet. Only the first rdf:li alternative is consumed; attributes on the
// tag are ignored and the inner text may span lines.
var titlePattern = regexp.MustCompile(`(?s)<dc:title>\s*<rdf:Alt>\s*<rdf:li[^>]*>(.*?)</rdf:li>\s*</rdf:Alt>\s*</dc:title>`)

var nestedTag = regexp.MustCompile(`<[^>]*>`)

var entityDecoder = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// ReadTitle returns the dc:title of the image, checking a same-basename .xmp
// sidecar first and then an XMP packet embedded in the image bytes. Returns
// "" when neither source yields text.
func ReadTitle(path string) string {
	if title := titleFromFile(SidecarPath(path)); title != "" {
		return title
	}
	return titleFromFile(path)
}

// SidecarPath returns the XMP sidecar path for an image, sharing its base
// name with a .xmp extension.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".xmp"
}

// titleFromFile scans a file's raw bytes for the first dc:title fragment.
// Works for standalone sidecars and for packets embedded in image binaries
// alike, so no format-specific parsing is needed.
func titleFromFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: could not read %s for XMP title: %v", path, err)
		}
		return ""
	}

	m := titlePattern.FindSubmatch(data)
	if m == nil {
		return ""
	}
	return cleanTitle(string(m[1]))
}

// cleanTitle strips nested tags, decodes the five standard XML entities, and
// collapses internal whitespace (including newlines) to single spaces.
func cleanTitle(s string) string {
	s = nestedTag.ReplaceAllString(s, "")
	s = entityDecoder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
