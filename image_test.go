package uipilot_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/uipilot"
)

func TestNewImage(t *testing.T) {
	type testCase struct {
		data     []byte
		mimeType string
	}

	runTest := func(tc testCase) func(t *testing.T) {
		return func(t *testing.T) {
			img, err := uipilot.NewImage(tc.data)
			gt.NoError(t, err)
			gt.V(t, img.MimeType()).Equal(tc.mimeType)
			gt.V(t, len(img.Data())).Equal(len(tc.data))
		}
	}

	t.Run("png", runTest(testCase{
		data:     append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 8)...),
		mimeType: "image/png",
	}))

	t.Run("jpeg", runTest(testCase{
		data:     append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 8)...),
		mimeType: "image/jpeg",
	}))

	t.Run("webp", runTest(testCase{
		data:     []byte("RIFF\x00\x00\x00\x00WEBPVP8 "),
		mimeType: "image/webp",
	}))
}

func TestNewImageErrors(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, err := uipilot.NewImage([]byte{0x89, 0x50})
		gt.True(t, errors.Is(err, uipilot.ErrInvalidImage))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := uipilot.NewImage([]byte("this is not an image"))
		gt.True(t, errors.Is(err, uipilot.ErrInvalidImage))
	})
}

func TestImageDataURL(t *testing.T) {
	data := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 8)...)
	img, err := uipilot.NewImage(data)
	gt.NoError(t, err)

	url := img.DataURL()
	gt.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	gt.True(t, strings.Contains(url, img.Base64()))
}
