package qr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/makiuchi-d/gozxing"
	gzqrcode "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// Generate writes a QR artifact for the given identity under dir and
// returns its path. The encoded payload is the identity string verbatim —
// no checksum, no signature — and the file is named after it.
func Generate(identity, dir string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("identity required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create qr directory: %w", err)
	}
	path := filepath.Join(dir, identity+".png")
	if err := qrcode.WriteFile(identity, qrcode.Medium, 256, path); err != nil {
		return "", fmt.Errorf("write qr artifact: %w", err)
	}
	return path, nil
}

// DecodeFrame decodes the first QR payload visible in an encoded frame.
// Frames with no decodable code report ok=false; that is the normal case
// while an operator positions a code, not an error.
func DecodeFrame(frame []byte) (string, bool) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return "", false
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	result, err := gzqrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil || result.GetText() == "" {
		return "", false
	}
	return result.GetText(), true
}
