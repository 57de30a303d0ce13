package studio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"lumen-studio-server/modules/common/utils"
	"lumen-studio-server/modules/session"
)

// Generator - 원격 이미지 생성/편집 호출 (imageservice.Service가 구현)
type Generator interface {
	GenerateImage(ctx context.Context, prompt string, aspectRatio string) (string, error)
	EditImage(ctx context.Context, instruction string, imageBase64 string, mimeType string) (string, error)
}

// 사용자에게 노출되는 로컬 에러 메시지
const (
	msgNotImageFile = "Please select an image file."
	msgDecodeFailed = "Failed to read the selected file. Please try again."
)

// Handler - 스튜디오 세션 API
type Handler struct {
	manager        *session.Manager
	generator      Generator
	previewQuality float32
}

// NewHandler - 핸들러 생성
func NewHandler(manager *session.Manager, generator Generator, previewQuality float32) *Handler {
	return &Handler{
		manager:        manager,
		generator:      generator,
		previewQuality: previewQuality,
	}
}

// RegisterRoutes - 라우터에 Studio 엔드포인트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/studio/session", h.CreateSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}", h.GetState).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/generate", h.Generate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/edit", h.Edit).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/upload", h.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/mode", h.SetMode).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/switch-to-edit", h.SwitchToEdit).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/dismiss-error", h.DismissError).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/download", h.Download).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/studio/session/{sessionId}/preview", h.Preview).Methods("GET", "OPTIONS")
	log.Println("✅ Studio routes registered: /api/studio/session/*")
}

// CreateSession - POST /api/studio/session
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.manager.Create()
	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     sess.Snapshot(),
	})
}

// GetState - GET /api/studio/session/{sessionId}
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}
	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     sess.Snapshot(),
	})
}

// Generate - POST /api/studio/session/{sessionId}/generate
// 프롬프트 기반 생성. 호출 전 현재 이미지를 비우고, 종료 시 항상 로딩 해제
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Studio] Invalid generate request: %v", err)
		writeSessionResponse(w, http.StatusBadRequest, SessionResponse{
			Success:      false,
			State:        sess.Snapshot(),
			ErrorMessage: "Invalid request format",
		})
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}

	// 검증 + 로딩 게이트 (실패 시 네트워크 호출 없음)
	state, err := sess.Apply(func(s session.State) (session.State, error) {
		return session.BeginGenerate(s, req.Prompt, req.AspectRatio)
	})
	if err != nil {
		h.rejectAction(w, sess, err)
		return
	}

	log.Printf("🎨 [Studio] Generate: session=%s, ratio=%s, prompt=%s",
		sess.ID(), req.AspectRatio, truncateString(req.Prompt, 30))

	imageBase64, genErr := h.generator.GenerateImage(r.Context(), req.Prompt, req.AspectRatio)
	if genErr != nil {
		state, _ = sess.Apply(func(s session.State) (session.State, error) {
			return session.Fail(s, genErr.Error()), nil
		})
		writeSessionResponse(w, http.StatusOK, SessionResponse{
			Success:      false,
			SessionID:    sess.ID(),
			State:        state,
			ErrorMessage: genErr.Error(),
		})
		return
	}

	state, _ = sess.Apply(func(s session.State) (session.State, error) {
		return session.ResolveGenerate(s, imageBase64), nil
	})
	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     state,
	})
}

// Edit - POST /api/studio/session/{sessionId}/edit
// 세션이 보유한 이미지를 소스로 편집. 성공 시 편집 소스도 새 이미지로 교체 (체이닝)
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Studio] Invalid edit request: %v", err)
		writeSessionResponse(w, http.StatusBadRequest, SessionResponse{
			Success:      false,
			State:        sess.Snapshot(),
			ErrorMessage: "Invalid request format",
		})
		return
	}

	// 소스 이미지는 로딩을 걸기 전의 상태에서 가져옴
	var source session.ImagePayload
	state, err := sess.Apply(func(s session.State) (session.State, error) {
		next, err := session.BeginEdit(s, req.Instruction)
		if err != nil {
			return next, err
		}
		source = *s.CurrentImage
		return next, nil
	})
	if err != nil {
		h.rejectAction(w, sess, err)
		return
	}

	log.Printf("🖌️ [Studio] Edit: session=%s, source=%s, instruction=%s",
		sess.ID(), source.MimeType, truncateString(req.Instruction, 30))

	imageBase64, editErr := h.generator.EditImage(r.Context(), req.Instruction, source.Data, source.MimeType)
	if editErr != nil {
		// 실패 시 기존 이미지는 그대로 유지됨
		state, _ = sess.Apply(func(s session.State) (session.State, error) {
			return session.Fail(s, editErr.Error()), nil
		})
		writeSessionResponse(w, http.StatusOK, SessionResponse{
			Success:      false,
			SessionID:    sess.ID(),
			State:        state,
			ErrorMessage: editErr.Error(),
		})
		return
	}

	state, _ = sess.Apply(func(s session.State) (session.State, error) {
		return session.ResolveEdit(s, imageBase64), nil
	})
	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     state,
	})
}

// Upload - POST /api/studio/session/{sessionId}/upload (multipart)
// 이미지 타입 검증 → base64 변환 → edit 모드로 강제 전환
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		log.Printf("❌ [Studio] Failed to parse upload form: %v", err)
		h.rejectUpload(w, sess, msgDecodeFailed)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		log.Printf("❌ [Studio] Missing upload file: %v", err)
		h.rejectUpload(w, sess, msgDecodeFailed)
		return
	}
	defer file.Close()

	// 선언된 타입 검증 (이미지가 아니면 로딩 없이 즉시 에러)
	declared := header.Header.Get("Content-Type")
	if !strings.HasPrefix(declared, "image/") {
		log.Printf("⚠️ [Studio] Rejected non-image upload: %s (%s)", header.Filename, declared)
		h.rejectUpload(w, sess, msgNotImageFile)
		return
	}

	state, err := sess.Apply(session.BeginUpload)
	if err != nil {
		h.rejectAction(w, sess, err)
		return
	}

	fileData, err := io.ReadAll(file)
	if err != nil {
		log.Printf("❌ [Studio] Failed to read upload: %v", err)
		h.storeFailure(w, sess, http.StatusBadRequest, msgDecodeFailed)
		return
	}

	// 실제 이미지 헤더 디코딩으로 MIME 확정 (선언값은 신뢰하지 않음)
	mimeType, err := utils.DetectImageMime(fileData)
	if err != nil {
		log.Printf("❌ [Studio] Upload is not a decodable image: %v", err)
		h.storeFailure(w, sess, http.StatusBadRequest, msgNotImageFile)
		return
	}

	payload := session.ImagePayload{
		Data:     utils.ConvertImageToBase64(fileData),
		MimeType: mimeType,
	}
	state, _ = sess.Apply(func(s session.State) (session.State, error) {
		return session.CompleteUpload(s, payload), nil
	})

	log.Printf("📷 [Studio] Upload stored: session=%s, %s, %d bytes", sess.ID(), mimeType, len(fileData))

	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     state,
	})
}

// SetMode - POST /api/studio/session/{sessionId}/mode (탭 전환)
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSessionResponse(w, http.StatusBadRequest, SessionResponse{
			Success:      false,
			State:        sess.Snapshot(),
			ErrorMessage: "Invalid request format",
		})
		return
	}

	state, err := sess.Apply(func(s session.State) (session.State, error) {
		return session.SwitchMode(s, session.Mode(req.Mode))
	})
	if err != nil {
		writeSessionResponse(w, http.StatusBadRequest, SessionResponse{
			Success:      false,
			SessionID:    sess.ID(),
			State:        sess.Snapshot(),
			ErrorMessage: err.Error(),
		})
		return
	}
	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     state,
	})
}

// SwitchToEdit - POST /api/studio/session/{sessionId}/switch-to-edit
// 현재 이미지가 있을 때만 가능
func (h *Handler) SwitchToEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	state, err := sess.Apply(session.SwitchToEdit)
	if err != nil {
		writeSessionResponse(w, http.StatusBadRequest, SessionResponse{
			Success:      false,
			SessionID:    sess.ID(),
			State:        sess.Snapshot(),
			ErrorMessage: err.Error(),
		})
		return
	}
	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     state,
	})
}

// DismissError - POST /api/studio/session/{sessionId}/dismiss-error
func (h *Handler) DismissError(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	state, _ := sess.Apply(func(s session.State) (session.State, error) {
		return session.DismissError(s), nil
	})
	writeSessionResponse(w, http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sess.ID(),
		State:     state,
	})
}

// Download - GET /api/studio/session/{sessionId}/download
// 현재 이미지를 고정 파일명 + 원본 인코딩으로 내려줌
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	state := sess.Snapshot()
	if state.CurrentImage == nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "No image to download",
		})
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(state.CurrentImage.Data)
	if err != nil {
		log.Printf("❌ [Studio] Failed to decode stored image: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Failed to decode stored image",
		})
		return
	}

	filename := DownloadFilenameStem + extensionForMime(state.CurrentImage.MimeType)
	w.Header().Set("Content-Type", state.CurrentImage.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(imageData)
}

// Preview - GET /api/studio/session/{sessionId}/preview
// 현재 이미지의 WebP 압축본을 data URL로 반환 (가벼운 미리보기용)
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	state := sess.Snapshot()
	if state.CurrentImage == nil {
		writePreviewResponse(w, http.StatusNotFound, PreviewResponse{
			Success:      false,
			ErrorMessage: "No image to preview",
		})
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(state.CurrentImage.Data)
	if err != nil {
		log.Printf("❌ [Studio] Failed to decode stored image: %v", err)
		writePreviewResponse(w, http.StatusInternalServerError, PreviewResponse{
			Success:      false,
			ErrorMessage: "Failed to decode stored image",
		})
		return
	}

	webpData, err := utils.ConvertToWebP(imageData, h.previewQuality)
	if err != nil {
		log.Printf("❌ [Studio] Failed to build preview: %v", err)
		writePreviewResponse(w, http.StatusInternalServerError, PreviewResponse{
			Success:      false,
			ErrorMessage: "Failed to build preview",
		})
		return
	}

	writePreviewResponse(w, http.StatusOK, PreviewResponse{
		Success:    true,
		PreviewURL: "data:image/webp;base64," + base64.StdEncoding.EncodeToString(webpData),
	})
}

// lookupSession - 경로의 sessionId로 세션 조회, 없으면 404 응답까지 처리
func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	vars := mux.Vars(r)
	sess, err := h.manager.Get(vars["sessionId"])
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Session not found",
		})
		return nil, false
	}
	return sess, true
}

// rejectAction - Begin* 전이 실패 응답
// 로딩 중이면 상태 변경 없이 409, 검증 실패면 에러 슬롯 채우고 400
func (h *Handler) rejectAction(w http.ResponseWriter, sess *session.Session, err error) {
	if errors.Is(err, session.ErrBusy) {
		writeSessionResponse(w, http.StatusConflict, SessionResponse{
			Success:      false,
			SessionID:    sess.ID(),
			State:        sess.Snapshot(),
			ErrorMessage: err.Error(),
		})
		return
	}
	h.storeFailure(w, sess, http.StatusBadRequest, err.Error())
}

// rejectUpload - 업로드 시작 전 실패 응답
// 다른 액션이 진행 중이면 상태를 건드리지 않고 409 (로딩 게이트 유지)
func (h *Handler) rejectUpload(w http.ResponseWriter, sess *session.Session, message string) {
	state, err := sess.Apply(func(s session.State) (session.State, error) {
		return session.FailUpload(s, message)
	})
	if err != nil {
		h.rejectAction(w, sess, err)
		return
	}
	writeSessionResponse(w, http.StatusBadRequest, SessionResponse{
		Success:      false,
		SessionID:    sess.ID(),
		State:        state,
		ErrorMessage: message,
	})
}

// storeFailure - 에러 슬롯을 채우고 (로딩 해제 포함) 응답
func (h *Handler) storeFailure(w http.ResponseWriter, sess *session.Session, status int, message string) {
	state, _ := sess.Apply(func(s session.State) (session.State, error) {
		return session.Fail(s, message), nil
	})
	writeSessionResponse(w, status, SessionResponse{
		Success:      false,
		SessionID:    sess.ID(),
		State:        state,
		ErrorMessage: message,
	})
}

func writeSessionResponse(w http.ResponseWriter, status int, resp SessionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writePreviewResponse(w http.ResponseWriter, status int, resp PreviewResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// extensionForMime - MIME 타입별 다운로드 확장자
func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

// Helper functions
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
