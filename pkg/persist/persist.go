// Package persist writes composited canvases to disk, choosing encoder
// parameters per output format family and carrying source metadata forward
// where the format allows it.
package persist

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/jpegli"
	"golang.org/x/image/tiff"
)

// format families, keyed by canonical extension
const (
	familyJPEG = ".jpg"
	familyTIFF = ".tif"
	familyPNG  = ".png"
)

// canonicalExt maps a source extension to its family's canonical extension.
// Unrecognized extensions fall back to the JPEG family.
func canonicalExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return familyJPEG
	case ".tif", ".tiff":
		return familyTIFF
	case ".png":
		return familyPNG
	default:
		return familyJPEG
	}
}

// CanonicalName rewrites a source filename with its family's canonical
// extension, e.g. "trip.TIFF" becomes "trip.tif" and "scan.heic" becomes
// "scan.jpg".
func CanonicalName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + canonicalExt(ext)
}

// Save encodes canvas into outDir using the format family of srcPath and
// returns the path written. Existing files are overwritten. Encoding and I/O
// errors propagate to the caller; metadata passthrough failures only log.
func Save(canvas image.Image, srcPath, outDir string) (string, error) {
	outPath := filepath.Join(outDir, CanonicalName(filepath.Base(srcPath)))

	var err error
	switch canonicalExt(filepath.Ext(srcPath)) {
	case familyTIFF:
		err = saveTIFF(canvas, outPath)
	case familyPNG:
		err = savePNG(canvas, srcPath, outPath)
	default:
		err = saveJPEG(canvas, srcPath, outPath)
	}
	if err != nil {
		return "", err
	}
	return outPath, nil
}

// saveJPEG encodes at maximum quality with chroma subsampling disabled, then
// splices the source's EXIF and ICC segments into the result when the source
// is itself a JPEG.
func saveJPEG(canvas image.Image, srcPath, outPath string) error {
	var buf bytes.Buffer
	err := jpegli.Encode(&buf, canvas, &jpegli.EncodingOptions{
		Quality:           100,
		ChromaSubsampling: image.YCbCrSubsampleRatio444,
	})
	if err != nil {
		return fmt.Errorf("encode JPEG: %w", err)
	}

	data := buf.Bytes()
	if isJPEGFile(srcPath) {
		merged, err := carryJPEGMetadata(srcPath, data)
		if err != nil {
			log.Printf("Warning: could not carry metadata from %s: %v", srcPath, err)
		} else {
			data = merged
		}
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

// saveTIFF uses deflate with a horizontal predictor, the lossless setting
// the TIFF encoder offers (its LZW support is decode-only).
func saveTIFF(canvas image.Image, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if err := tiff.Encode(f, canvas, opts); err != nil {
		return fmt.Errorf("encode TIFF: %w", err)
	}
	return nil
}

// savePNG prioritizes encode speed over file size, and carries the source's
// iCCP chunk forward when present.
func savePNG(canvas image.Image, srcPath, outPath string) error {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, canvas); err != nil {
		return fmt.Errorf("encode PNG: %w", err)
	}

	data := buf.Bytes()
	if chunk := sourceICCPChunk(srcPath); chunk != nil {
		data = spliceAfterIHDR(data, chunk)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

// isJPEGFile checks the SOI signature so garbage with a .jpg extension does
// not get fed to the segment parser.
func isJPEGFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var sig [2]byte
	if _, err := io.ReadFull(f, sig[:]); err != nil {
		return false
	}
	return sig[0] == 0xFF && sig[1] == 0xD8
}
