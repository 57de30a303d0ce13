package imageservice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"google.golang.org/genai"

	"lumen-studio-server/modules/common/config"
)

// Service - Gemini 기반 이미지 생성/편집 클라이언트 (stateless)
type Service struct {
	genaiClient *genai.Client
	imageModel  string
	editModel   string
}

// NewService - Genai 클라이언트 초기화
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Genai client: %w", err)
	}

	log.Println("✅ [ImageService] Service initialized")
	return &Service{
		genaiClient: genaiClient,
		imageModel:  cfg.GeminiImageModel,
		editModel:   cfg.GeminiEditModel,
	}, nil
}

// GenerateImage - 프롬프트 기반 이미지 생성 (Imagen)
// 성공 시 base64 인코딩된 JPEG 바이트 반환
func (s *Service) GenerateImage(ctx context.Context, prompt string, aspectRatio string) (string, error) {
	if !IsValidAspectRatio(aspectRatio) {
		aspectRatio = "1:1" // 기본값
	}

	log.Printf("🎨 [ImageService] Generating image - model: %s, ratio: %s, prompt: %s",
		s.imageModel, aspectRatio, truncateString(prompt, 50))

	result, err := s.genaiClient.Models.GenerateImages(
		ctx,
		s.imageModel,
		prompt,
		&genai.GenerateImagesConfig{
			NumberOfImages: 1,
			OutputMIMEType: GenerateMimeType,
			AspectRatio:    aspectRatio,
		},
	)
	if err != nil {
		// 상세 원인은 로그로만, 사용자에게는 일반 메시지
		log.Printf("❌ [ImageService] Gemini API error: %v", err)
		return "", ErrGenerationFailed
	}

	// 첫 번째 생성 이미지 추출
	for _, generated := range result.GeneratedImages {
		if generated.Image != nil && len(generated.Image.ImageBytes) > 0 {
			imageBase64 := base64.StdEncoding.EncodeToString(generated.Image.ImageBytes)
			log.Printf("✅ [ImageService] Image generated: %d bytes", len(generated.Image.ImageBytes))
			return imageBase64, nil
		}
	}

	// 이미지 없음 (컨텐츠 필터 등)
	log.Printf("❌ [ImageService] No image generated (candidates: %d)", len(result.GeneratedImages))
	return "", ErrGenerationFailed
}

// EditImage - 보유 중인 이미지 + 지시문으로 편집 (Gemini flash-image)
// 성공 시 base64 인코딩된 PNG 바이트 반환
func (s *Service) EditImage(ctx context.Context, instruction string, imageBase64 string, mimeType string) (string, error) {
	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		log.Printf("❌ [ImageService] Failed to decode source image: %v", err)
		return "", ErrEditFailed
	}

	log.Printf("🖌️ [ImageService] Editing image - model: %s, source: %s %d bytes, instruction: %s",
		s.editModel, mimeType, len(imageData), truncateString(instruction, 50))

	content := &genai.Content{
		Parts: []*genai.Part{
			genai.NewPartFromBytes(imageData, mimeType),
			genai.NewPartFromText(instruction),
		},
	}

	result, err := s.genaiClient.Models.GenerateContent(
		ctx,
		s.editModel,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	)
	if err != nil {
		log.Printf("❌ [ImageService] Gemini API error: %v", err)
		return "", ErrEditFailed
	}

	// 응답 parts에서 첫 번째 인라인 이미지 추출
	edited, ok := extractInlineImage(result)
	if !ok {
		log.Printf("❌ [ImageService] No image part in edit response (candidates: %d)", len(result.Candidates))
		return "", ErrEditFailed
	}

	log.Printf("✅ [ImageService] Image edited: %d bytes", len(edited))
	return base64.StdEncoding.EncodeToString(edited), nil
}

// extractInlineImage - 응답 candidates를 순회하며 첫 InlineData part 반환
func extractInlineImage(resp *genai.GenerateContentResponse) ([]byte, bool) {
	if resp == nil {
		return nil, false
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, true
			}
		}
	}
	return nil, false
}

// Helper functions
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
