package studio

import "lumen-studio-server/modules/session"

// GenerateRequest - 이미지 생성 요청
type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
}

// EditRequest - 이미지 편집 요청 (소스 이미지는 세션이 보유)
type EditRequest struct {
	Instruction string `json:"instruction"`
}

// ModeRequest - 탭 전환 요청
type ModeRequest struct {
	Mode string `json:"mode"`
}

// SessionResponse - 세션 ID + 상태 스냅샷 응답
type SessionResponse struct {
	Success      bool          `json:"success"`
	SessionID    string        `json:"sessionId,omitempty"`
	State        session.State `json:"state"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// PreviewResponse - WebP 프리뷰 응답
type PreviewResponse struct {
	Success      bool   `json:"success"`
	PreviewURL   string `json:"previewUrl,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// DownloadFilenameStem - 다운로드 파일명 (확장자는 원본 인코딩 따라감)
const DownloadFilenameStem = "studio-image"

// MaxUploadBytes - 업로드 제한 (32MB)
const MaxUploadBytes = 32 << 20
