package session

import (
	"errors"
	"strings"

	"lumen-studio-server/modules/imageservice"
)

// Mode - UI 모드 (generate | edit)
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeEdit     Mode = "edit"
)

// 검증 에러 - 네트워크 호출 없이 즉시 반환됨
var (
	ErrBusy             = errors.New("another operation is already in progress")
	ErrEmptyPrompt      = errors.New("Please enter a prompt.")
	ErrEmptyInstruction = errors.New("Please enter an edit instruction.")
	ErrNoImage          = errors.New("No image loaded. Generate or upload an image first.")
	ErrInvalidMode      = errors.New("unknown mode")
	ErrInvalidRatio     = errors.New("unsupported aspect ratio")
)

// ImagePayload - base64 인코딩 바이트 + MIME 타입
type ImagePayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// State - 단일 세션의 전체 UI 상태
// 모든 전이 함수는 State를 받아 새 State를 반환한다 (값 복사, in-place 변경 없음)
type State struct {
	Mode         Mode          `json:"mode"`
	Prompt       string        `json:"prompt"`
	EditPrompt   string        `json:"editPrompt"`
	AspectRatio  string        `json:"aspectRatio"`
	CurrentImage *ImagePayload `json:"currentImage,omitempty"`
	IsLoading    bool          `json:"isLoading"`
	Error        string        `json:"error,omitempty"`
}

// NewState - 초기 상태
func NewState() State {
	return State{
		Mode:        ModeGenerate,
		AspectRatio: "1:1",
	}
}

// SwitchMode - 탭 전환 (generate ↔ edit)
// 에러만 지우고 이미지/프롬프트는 유지한다
func SwitchMode(s State, mode Mode) (State, error) {
	if mode != ModeGenerate && mode != ModeEdit {
		return s, ErrInvalidMode
	}
	s.Mode = mode
	s.Error = ""
	return s, nil
}

// SwitchToEdit - "이 이미지 편집하기" 전환, 이미지가 있을 때만 가능
func SwitchToEdit(s State) (State, error) {
	if s.CurrentImage == nil {
		return s, ErrNoImage
	}
	s.Mode = ModeEdit
	return s, nil
}

// BeginGenerate - 생성 시작
// 에러를 지우고 로딩을 걸며, 현재 이미지를 먼저 비운다
// (실패한 생성은 이미지가 비워진 채로 남는 것이 의도된 동작)
func BeginGenerate(s State, prompt string, aspectRatio string) (State, error) {
	if s.IsLoading {
		return s, ErrBusy
	}
	if strings.TrimSpace(prompt) == "" {
		return s, ErrEmptyPrompt
	}
	if !imageservice.IsValidAspectRatio(aspectRatio) {
		return s, ErrInvalidRatio
	}
	s.Prompt = prompt
	s.AspectRatio = aspectRatio
	s.Error = ""
	s.IsLoading = true
	s.CurrentImage = nil
	return s, nil
}

// ResolveGenerate - 생성 성공: 새 이미지를 저장하고 편집 소스로도 사용
func ResolveGenerate(s State, imageBase64 string) State {
	s.CurrentImage = &ImagePayload{
		Data:     imageBase64,
		MimeType: imageservice.GenerateMimeType,
	}
	s.IsLoading = false
	return s
}

// BeginEdit - 편집 시작, 지시문과 기존 이미지 필요
func BeginEdit(s State, instruction string) (State, error) {
	if s.IsLoading {
		return s, ErrBusy
	}
	if strings.TrimSpace(instruction) == "" {
		return s, ErrEmptyInstruction
	}
	if s.CurrentImage == nil {
		return s, ErrNoImage
	}
	s.EditPrompt = instruction
	s.Error = ""
	s.IsLoading = true
	return s, nil
}

// ResolveEdit - 편집 성공: 현재 이미지를 교체, 다음 편집의 소스가 됨 (체이닝)
func ResolveEdit(s State, imageBase64 string) State {
	s.CurrentImage = &ImagePayload{
		Data:     imageBase64,
		MimeType: imageservice.EditMimeType,
	}
	s.IsLoading = false
	return s
}

// BeginUpload - 업로드 시작 (파일 타입 검증은 호출자 책임)
func BeginUpload(s State) (State, error) {
	if s.IsLoading {
		return s, ErrBusy
	}
	s.Error = ""
	s.IsLoading = true
	return s, nil
}

// CompleteUpload - 업로드 성공: 이미지 저장 후 edit 모드로 강제 전환
func CompleteUpload(s State, img ImagePayload) State {
	s.CurrentImage = &img
	s.Mode = ModeEdit
	s.IsLoading = false
	return s
}

// FailUpload - 업로드가 시작되기 전의 실패 (비이미지 파일, 폼 파싱 오류 등)
// 다른 액션이 진행 중이면 로딩/에러를 건드리지 않고 거부
func FailUpload(s State, message string) (State, error) {
	if s.IsLoading {
		return s, ErrBusy
	}
	return Fail(s, message), nil
}

// Fail - 실패 종결: 로딩 해제 + 에러 슬롯 채움
// 진행 중이던 액션에 대해서만 종결이며 세션은 계속 사용 가능
func Fail(s State, message string) State {
	s.Error = message
	s.IsLoading = false
	return s
}

// DismissError - 에러만 지움
func DismissError(s State) State {
	s.Error = ""
	return s
}
