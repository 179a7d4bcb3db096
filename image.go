package uipilot

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// Image is a screenshot payload attached to a user turn.
type Image struct {
	data     []byte
	mimeType string
}

// NewImage creates an Image, detecting the MIME type from magic bytes.
// Screenshots arrive as PNG from screencap and JPEG/WebP from compressed
// capture paths.
func NewImage(data []byte) (Image, error) {
	mime, err := detectImageMimeType(data)
	if err != nil {
		return Image{}, err
	}
	return Image{data: data, mimeType: mime}, nil
}

// Data returns the raw image bytes.
func (i Image) Data() []byte { return i.data }

// MimeType returns the detected MIME type.
func (i Image) MimeType() string { return i.mimeType }

// Base64 returns the base64 encoded image data.
func (i Image) Base64() string { return base64.StdEncoding.EncodeToString(i.data) }

// DataURL returns a data: URL suitable for OpenAI style image parts.
func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.mimeType, i.Base64())
}

func (i Image) String() string {
	return fmt.Sprintf("image (%d bytes, %s)", len(i.data), i.mimeType)
}

func detectImageMimeType(data []byte) (string, error) {
	if len(data) < 12 {
		return "", goerr.Wrap(ErrInvalidImage, "data too short to detect format", goerr.V("size", len(data)))
	}

	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg", nil
	}
	if bytes.Equal(data[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png", nil
	}
	if bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp", nil
	}

	return "", goerr.Wrap(ErrInvalidImage, "unsupported image format")
}
