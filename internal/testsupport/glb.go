package testsupport

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zip"
)

// GLB returns a minimal binary glTF container with the given JSON chunk.
func GLB(t testing.TB, jsonChunk string) []byte {
	t.Helper()

	for len(jsonChunk)%4 != 0 {
		jsonChunk += " "
	}
	var buf bytes.Buffer
	buf.WriteString("glTF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(12+8+len(jsonChunk)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(jsonChunk)))
	buf.WriteString("JSON")
	buf.WriteString(jsonChunk)
	return buf.Bytes()
}

// SampleGLB is a small valid GLB asset.
func SampleGLB(t testing.TB) []byte {
	t.Helper()
	return GLB(t, `{"asset":{"version":"2.0"}}`)
}

// USDZ returns a zip archive whose first entry is a USD layer, the shape a
// successful conversion produces.
func USDZ(t testing.TB, payload string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "scene.usdc", Method: zip.Store})
	if err != nil {
		t.Fatalf("create usdz entry: %v", err)
	}
	if _, err := w.Write([]byte(payload)); err != nil {
		t.Fatalf("write usdz entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close usdz: %v", err)
	}
	return buf.Bytes()
}
