package imageservice

import "errors"

// 출력 포맷은 엔드포인트별로 고정
const (
	// GenerateMimeType - 생성 엔드포인트 출력 포맷
	GenerateMimeType = "image/jpeg"
	// EditMimeType - 편집 엔드포인트 출력 포맷
	EditMimeType = "image/png"
)

// AspectRatios - 지원하는 이미지 비율 (5종 고정)
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// 사용자에게 노출되는 에러 - 상세 원인은 로그로만 남김
var (
	ErrGenerationFailed = errors.New("Failed to generate image. Please try again.")
	ErrEditFailed       = errors.New("Failed to edit image. Please try again.")
)

// IsValidAspectRatio - 비율 값 검증
func IsValidAspectRatio(ratio string) bool {
	for _, r := range AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
