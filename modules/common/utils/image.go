package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // GIF 디코더 등록
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"log"

	_ "github.com/gen2brain/webp" // WebP 디코더 등록 (pure Go)
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	base64Str := base64.StdEncoding.EncodeToString(imageData)
	log.Printf("🔄 Image converted to base64: %d chars", len(base64Str))
	return base64Str
}

// DetectImageMime - 이미지 헤더를 디코딩해서 실제 MIME 타입 판별
// 디코딩 불가능한 데이터는 에러 (PNG, JPEG, GIF, WebP 지원)
func DetectImageMime(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image header: %w", err)
	}
	return "image/" + format, nil
}

// ConvertToWebP - 이미지 바이너리(PNG/JPEG/WebP)를 WebP로 변환
func ConvertToWebP(imageData []byte, quality float32) ([]byte, error) {
	log.Printf("🔄 Converting image to WebP (quality: %.1f)", quality)

	// 디코딩 (포맷 자동 감지)
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	// WebP 인코딩
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()

	log.Printf("✅ %s converted to WebP: %d bytes → %d bytes (%.1f%% reduction)",
		format, len(imageData), len(webpData),
		float64(len(imageData)-len(webpData))/float64(len(imageData))*100)

	return webpData, nil
}
