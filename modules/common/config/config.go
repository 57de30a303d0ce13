package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Gemini API
	GeminiAPIKey     string
	GeminiImageModel string
	GeminiEditModel  string

	// Server
	Port string

	// Preview
	PreviewQuality float32
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	// PreviewQuality 파싱
	previewQuality := float32(80) // 기본값
	if qStr := os.Getenv("PREVIEW_QUALITY"); qStr != "" {
		if parsed, err := strconv.ParseFloat(qStr, 32); err == nil {
			previewQuality = float32(parsed)
		}
	}

	cfg := &Config{
		// Gemini API
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "imagen-4.0-generate-001"),
		GeminiEditModel:  getEnv("GEMINI_EDIT_MODEL", "gemini-2.5-flash-image"),

		// Server
		Port: getEnv("PORT", "8080"),

		// Preview
		PreviewQuality: previewQuality,
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Image model: %s", cfg.GeminiImageModel)
	log.Printf("   Edit model: %s", cfg.GeminiEditModel)
	log.Printf("   Port: %s", cfg.Port)

	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
