package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// MaxImageWidth caps inlined images. Larger previews are scaled down to keep
// print documents small.
const MaxImageWidth = 1024

// Downscale returns a PNG no wider than maxWidth. Images already within the
// limit, and data that is not a decodable PNG or JPEG, come back unchanged.
func Downscale(data []byte, maxWidth int) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, "", fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	if b.Dx() <= maxWidth {
		return data, "image/" + format, nil
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return data, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// DataURI embeds data as a data: URI.
func DataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
