package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// JPEG segment markers carried forward verbatim.
const (
	markerSOI  = 0xD8
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
)

var (
	exifPrefix = []byte("Exif\x00\x00")
	iccPrefix  = []byte("ICC_PROFILE\x00")
)

// carryJPEGMetadata copies the source JPEG's raw EXIF (APP1) and ICC (APP2)
// segments into the freshly encoded JPEG, inserting them after the SOI and
// any leading APP0. Returns encoded unchanged when the source has neither.
func carryJPEGMetadata(srcPath string, encoded []byte) ([]byte, error) {
	srcData, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	carried, err := metadataSegments(srcData)
	if err != nil {
		return nil, err
	}
	if len(carried) == 0 {
		return encoded, nil
	}

	parser := jpegstructure.NewJpegMediaParser()
	intfc, err := parser.ParseBytes(encoded)
	if err != nil {
		return nil, fmt.Errorf("parse encoded JPEG: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)
	segments := sl.Segments()

	// Skip SOI and a leading JFIF APP0 if the encoder wrote one.
	idx := 0
	for idx < len(segments) && (segments[idx].MarkerId == markerSOI || segments[idx].MarkerId == markerAPP0) {
		idx++
	}

	merged := make([]*jpegstructure.Segment, 0, len(segments)+len(carried))
	merged = append(merged, segments[:idx]...)
	merged = append(merged, carried...)
	merged = append(merged, segments[idx:]...)

	var out bytes.Buffer
	if err := jpegstructure.NewSegmentList(merged).Write(&out); err != nil {
		return nil, fmt.Errorf("write merged JPEG: %w", err)
	}
	return out.Bytes(), nil
}

// metadataSegments extracts the EXIF and ICC segments of a JPEG.
func metadataSegments(data []byte) ([]*jpegstructure.Segment, error) {
	parser := jpegstructure.NewJpegMediaParser()
	intfc, err := parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse source JPEG: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	var carried []*jpegstructure.Segment
	for _, s := range sl.Segments() {
		switch {
		case s.MarkerId == markerAPP1 && bytes.HasPrefix(s.Data, exifPrefix):
			carried = append(carried, s)
		case s.MarkerId == markerAPP2 && bytes.HasPrefix(s.Data, iccPrefix):
			carried = append(carried, s)
		}
	}
	return carried, nil
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// sourceICCPChunk returns the verbatim iCCP chunk (length, type, data, CRC)
// of a PNG file, or nil when the file is not a PNG or carries no profile.
func sourceICCPChunk(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil || !bytes.HasPrefix(data, pngSignature) {
		return nil
	}

	off := len(pngSignature)
	for off+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[off:]))
		typ := string(data[off+4 : off+8])
		end := off + 12 + length
		if end > len(data) {
			return nil
		}
		switch typ {
		case "iCCP":
			return data[off:end]
		case "IDAT", "IEND":
			return nil
		}
		off = end
	}
	return nil
}

// spliceAfterIHDR inserts a verbatim chunk right after the IHDR chunk of an
// encoded PNG. The chunk keeps its original CRC since it is copied intact.
func spliceAfterIHDR(encoded, chunk []byte) []byte {
	if !bytes.HasPrefix(encoded, pngSignature) || len(encoded) < len(pngSignature)+8 {
		return encoded
	}
	ihdrLen := int(binary.BigEndian.Uint32(encoded[len(pngSignature):]))
	cut := len(pngSignature) + 12 + ihdrLen
	if cut > len(encoded) {
		return encoded
	}

	out := make([]byte, 0, len(encoded)+len(chunk))
	out = append(out, encoded[:cut]...)
	out = append(out, chunk...)
	out = append(out, encoded[cut:]...)
	return out
}
