package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	return img
}

func TestConvertImageToBase64(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	encoded := ConvertImageToBase64(data)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestDetectImageMime(t *testing.T) {
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage()))

	mime, err := DetectImageMime(pngBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	var jpegBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, testImage(), nil))

	mime, err = DetectImageMime(jpegBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}

func TestDetectImageMimeRejectsGarbage(t *testing.T) {
	_, err := DetectImageMime([]byte("definitely not an image"))
	assert.Error(t, err)

	_, err = DetectImageMime(nil)
	assert.Error(t, err)
}

func TestConvertToWebP(t *testing.T) {
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, testImage()))

	webpData, err := ConvertToWebP(pngBuf.Bytes(), 80)
	require.NoError(t, err)
	require.NotEmpty(t, webpData)

	// 등록된 WebP 디코더로 다시 읽혀야 함
	mime, err := DetectImageMime(webpData)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", mime)
}

func TestConvertToWebPRejectsGarbage(t *testing.T) {
	_, err := ConvertToWebP([]byte("nope"), 80)
	assert.Error(t, err)
}
