package persist

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"photo.JPEG", "photo.jpg"},
		{"scan.tiff", "scan.tif"},
		{"scan.TIF", "scan.tif"},
		{"shot.png", "shot.png"},
		{"shot.PNG", "shot.png"},
		{"phone.heic", "phone.jpg"},
		{"noext", "noext.jpg"},
	}
	for _, tc := range tests {
		if got := CanonicalName(tc.in); got != tc.want {
			t.Errorf("CanonicalName(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func testCanvas() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 12, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 12; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 20), uint8(y * 25), 128, 255})
		}
	}
	return img
}

func writeSourcePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, testCanvas()); err != nil {
		t.Fatalf("encode source: %v", err)
	}
}

func TestSavePNGRoundTrips(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "shot.png")
	writeSourcePNG(t, srcPath)

	outPath, err := Save(testCanvas(), srcPath, dir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(outPath) != "shot.png" {
		t.Errorf("Output name = %q, expected shot.png", filepath.Base(outPath))
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	if decoded.Bounds() != testCanvas().Bounds() {
		t.Errorf("Decoded bounds = %v, expected %v", decoded.Bounds(), testCanvas().Bounds())
	}
}

func TestSaveUnrecognizedExtensionFallsBackToJPEG(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "phone.heic")
	// Source content does not matter for the family decision.
	if err := os.WriteFile(srcPath, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	outPath, err := Save(testCanvas(), srcPath, dir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(outPath) != "phone.jpg" {
		t.Errorf("Output name = %q, expected phone.jpg", filepath.Base(outPath))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("Output does not start with a JPEG SOI marker")
	}
}

func TestSaveTIFFIsDecodable(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "scan.tiff")
	if err := os.WriteFile(srcPath, []byte("placeholder"), 0644); err != nil {
		t.Fatal(err)
	}

	outPath, err := Save(testCanvas(), srcPath, dir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(outPath) != "scan.tif" {
		t.Errorf("Output name = %q, expected scan.tif", filepath.Base(outPath))
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("output is not a valid TIFF: %v", err)
	}
	if decoded.Bounds() != testCanvas().Bounds() {
		t.Errorf("Decoded bounds = %v, expected %v", decoded.Bounds(), testCanvas().Bounds())
	}
}

func TestSaveOverwritesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "shot.png")
	writeSourcePNG(t, srcPath)

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(outDir, "shot.png")
	if err := os.WriteFile(stale, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Save(testCanvas(), srcPath, outDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(stale)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(data, []byte("stale")) {
		t.Error("Existing output was not overwritten")
	}
}

// appSegment frames payload as a JPEG APPn segment for the given marker.
func appSegment(marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	return append(seg, payload...)
}

func TestSaveJPEGCarriesSourceSegments(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "shot.jpg")

	// Enough of a TIFF header for the payload to be plausible; the carry is
	// byte-for-byte either way.
	exifPayload := append([]byte("Exif\x00\x00"), 'I', 'I', 0x2A, 0x00, 0x08, 0, 0, 0, 0, 0)
	iccPayload := append([]byte("ICC_PROFILE\x00\x01\x01"), []byte("profile-body")...)

	var src bytes.Buffer
	src.Write([]byte{0xFF, 0xD8})
	src.Write(appSegment(0xE1, exifPayload))
	src.Write(appSegment(0xE2, iccPayload))
	src.Write([]byte{0xFF, 0xD9})
	if err := os.WriteFile(srcPath, src.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	outPath, err := Save(testCanvas(), srcPath, outDir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, exifPayload) {
		t.Error("EXIF segment from the source is missing in the output")
	}
	if !bytes.Contains(data, iccPayload) {
		t.Error("ICC segment from the source is missing in the output")
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output with carried segments is not a valid JPEG: %v", err)
	}
}

// pngChunk frames data as a PNG chunk with a correct CRC so decoders accept
// the result.
func pngChunk(typ string, data []byte) []byte {
	chunk := make([]byte, 0, 12+len(data))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(data)))
	chunk = append(chunk, typ...)
	chunk = append(chunk, data...)
	return binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))
}

func TestSavePNGCarriesICCProfile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "shot.png")

	var src bytes.Buffer
	if err := png.Encode(&src, testCanvas()); err != nil {
		t.Fatal(err)
	}
	chunk := pngChunk("iCCP", []byte("icc\x00\x00profile-body"))
	if err := os.WriteFile(srcPath, spliceAfterIHDR(src.Bytes(), chunk), 0644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	outPath, err := Save(testCanvas(), srcPath, outDir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, chunk) {
		t.Error("iCCP chunk from the source is missing in the output")
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output with carried chunk is not a valid PNG: %v", err)
	}
}

func TestIsJPEGFileSignatureCheck(t *testing.T) {
	dir := t.TempDir()

	full := filepath.Join(dir, "full.jpg")
	if err := os.WriteFile(full, []byte{0xFF, 0xD8, 0xFF, 0xD9}, 0644); err != nil {
		t.Fatal(err)
	}
	if !isJPEGFile(full) {
		t.Error("Expected SOI-prefixed file to be recognized")
	}

	// A single byte must not pass on the strength of a zero-valued tail.
	short := filepath.Join(dir, "short.jpg")
	if err := os.WriteFile(short, []byte{0xFF}, 0644); err != nil {
		t.Fatal(err)
	}
	if isJPEGFile(short) {
		t.Error("One-byte file recognized as JPEG")
	}

	if isJPEGFile(filepath.Join(dir, "missing.jpg")) {
		t.Error("Missing file recognized as JPEG")
	}
}

func TestSourceICCPChunkAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")
	writeSourcePNG(t, path)

	if chunk := sourceICCPChunk(path); chunk != nil {
		t.Errorf("Expected no iCCP chunk in plain PNG, got %d bytes", len(chunk))
	}
	if chunk := sourceICCPChunk(filepath.Join(dir, "missing.png")); chunk != nil {
		t.Error("Expected nil for missing file")
	}
}

func TestSpliceAfterIHDRKeepsPNGDecodable(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testCanvas()); err != nil {
		t.Fatal(err)
	}

	// Minimal ancillary chunk: zero-length data, type "iCCP" is not needed
	// for validity of the splice position, a private type works the same.
	chunk := []byte{0, 0, 0, 0, 'p', 'r', 'V', 't', 0x15, 0x8a, 0x16, 0x6f}
	spliced := spliceAfterIHDR(buf.Bytes(), chunk)

	if len(spliced) != buf.Len()+len(chunk) {
		t.Fatalf("Spliced length = %d, expected %d", len(spliced), buf.Len()+len(chunk))
	}
	if !bytes.HasPrefix(spliced, pngSignature) {
		t.Error("Splice corrupted the PNG signature")
	}
	// The original IHDR must still be first.
	if !bytes.Equal(spliced[:33], buf.Bytes()[:33]) {
		t.Error("Splice moved or altered the IHDR chunk")
	}
	if !bytes.Equal(spliced[33:33+len(chunk)], chunk) {
		t.Error("Chunk not inserted immediately after IHDR")
	}
}
