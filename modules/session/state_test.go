package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumen-studio-server/modules/imageservice"
)

func TestNewState(t *testing.T) {
	s := NewState()
	assert.Equal(t, ModeGenerate, s.Mode)
	assert.Equal(t, "1:1", s.AspectRatio)
	assert.Nil(t, s.CurrentImage)
	assert.False(t, s.IsLoading)
	assert.Empty(t, s.Error)
}

func TestSwitchModeClearsErrorOnly(t *testing.T) {
	s := NewState()
	s.Error = "boom"
	s.Prompt = "a red circle"
	s.CurrentImage = &ImagePayload{Data: "abc", MimeType: "image/jpeg"}

	next, err := SwitchMode(s, ModeEdit)
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, next.Mode)
	assert.Empty(t, next.Error)
	// 이미지와 프롬프트는 유지
	assert.Equal(t, "a red circle", next.Prompt)
	assert.NotNil(t, next.CurrentImage)

	_, err = SwitchMode(s, Mode("banana"))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestSwitchToEditRequiresImage(t *testing.T) {
	s := NewState()
	_, err := SwitchToEdit(s)
	assert.ErrorIs(t, err, ErrNoImage)

	s.CurrentImage = &ImagePayload{Data: "abc", MimeType: "image/jpeg"}
	next, err := SwitchToEdit(s)
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, next.Mode)
	assert.Equal(t, s.CurrentImage, next.CurrentImage)
}

func TestBeginGenerateValidation(t *testing.T) {
	s := NewState()

	_, err := BeginGenerate(s, "", "1:1")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = BeginGenerate(s, "   ", "1:1")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = BeginGenerate(s, "a red circle", "2:1")
	assert.ErrorIs(t, err, ErrInvalidRatio)
}

func TestBeginGenerateClearsImageEagerly(t *testing.T) {
	s := NewState()
	s.Error = "old error"
	s.CurrentImage = &ImagePayload{Data: "old", MimeType: "image/png"}

	next, err := BeginGenerate(s, "a red circle", "1:1")
	require.NoError(t, err)
	assert.True(t, next.IsLoading)
	assert.Empty(t, next.Error)
	// 실패하더라도 이미지는 비워진 채로 남아야 하므로 호출 전에 비움
	assert.Nil(t, next.CurrentImage)
	assert.Equal(t, "a red circle", next.Prompt)
	assert.Equal(t, "1:1", next.AspectRatio)
}

func TestBeginGenerateBusyGate(t *testing.T) {
	s := NewState()
	s.IsLoading = true

	_, err := BeginGenerate(s, "a red circle", "1:1")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = BeginEdit(s, "add a hat")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = BeginUpload(s)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestResolveGenerateSetsJpegImage(t *testing.T) {
	s := NewState()
	s, err := BeginGenerate(s, "a red circle", "1:1")
	require.NoError(t, err)

	next := ResolveGenerate(s, "bWFnaWM=")
	assert.False(t, next.IsLoading)
	require.NotNil(t, next.CurrentImage)
	assert.Equal(t, "bWFnaWM=", next.CurrentImage.Data)
	assert.Equal(t, imageservice.GenerateMimeType, next.CurrentImage.MimeType)
}

func TestBeginEditValidation(t *testing.T) {
	s := NewState()

	// 이미지가 없으면 편집 불가
	_, err := BeginEdit(s, "add a hat")
	assert.ErrorIs(t, err, ErrNoImage)

	// 지시문이 비면 편집 불가
	s.CurrentImage = &ImagePayload{Data: "abc", MimeType: "image/jpeg"}
	_, err = BeginEdit(s, "  ")
	assert.ErrorIs(t, err, ErrEmptyInstruction)

	next, err := BeginEdit(s, "add a hat")
	require.NoError(t, err)
	assert.True(t, next.IsLoading)
	assert.Equal(t, "add a hat", next.EditPrompt)
	// 편집은 기존 이미지를 유지한 채 시작
	assert.NotNil(t, next.CurrentImage)
}

func TestResolveEditChainsSource(t *testing.T) {
	s := NewState()
	s.CurrentImage = &ImagePayload{Data: "first", MimeType: "image/jpeg"}

	s, err := BeginEdit(s, "add a hat")
	require.NoError(t, err)

	next := ResolveEdit(s, "second")
	assert.False(t, next.IsLoading)
	require.NotNil(t, next.CurrentImage)
	assert.Equal(t, "second", next.CurrentImage.Data)
	assert.Equal(t, imageservice.EditMimeType, next.CurrentImage.MimeType)

	// 체이닝: 다음 편집의 소스는 직전 출력
	chained, err := BeginEdit(next, "remove the hat")
	require.NoError(t, err)
	assert.Equal(t, "second", chained.CurrentImage.Data)
}

func TestFailKeepsSessionUsable(t *testing.T) {
	s := NewState()
	s.CurrentImage = &ImagePayload{Data: "keep", MimeType: "image/png"}
	s, err := BeginEdit(s, "add a hat")
	require.NoError(t, err)

	next := Fail(s, "Failed to edit image. Please try again.")
	assert.False(t, next.IsLoading)
	assert.Equal(t, "Failed to edit image. Please try again.", next.Error)
	// 편집 실패는 기존 이미지를 건드리지 않음
	require.NotNil(t, next.CurrentImage)
	assert.Equal(t, "keep", next.CurrentImage.Data)

	// 세션은 계속 사용 가능
	_, err = BeginEdit(next, "try again")
	assert.NoError(t, err)
}

func TestCompleteUploadForcesEditMode(t *testing.T) {
	s := NewState()
	s, err := BeginUpload(s)
	require.NoError(t, err)
	assert.True(t, s.IsLoading)

	next := CompleteUpload(s, ImagePayload{Data: "dXBsb2Fk", MimeType: "image/webp"})
	assert.False(t, next.IsLoading)
	assert.Equal(t, ModeEdit, next.Mode)
	require.NotNil(t, next.CurrentImage)
	// 업로드는 파일의 원래 MIME을 유지
	assert.Equal(t, "image/webp", next.CurrentImage.MimeType)
}

func TestFailUploadRefusedWhileLoading(t *testing.T) {
	s := NewState()
	s, err := BeginGenerate(s, "a red circle", "1:1")
	require.NoError(t, err)

	// 다른 액션이 진행 중이면 업로드 실패가 로딩 게이트를 풀면 안 됨
	_, err = FailUpload(s, "Please select an image file.")
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, s.IsLoading)
	assert.Empty(t, s.Error)
}

func TestFailUploadStoresErrorWhenIdle(t *testing.T) {
	s := NewState()
	s.CurrentImage = &ImagePayload{Data: "keep", MimeType: "image/png"}

	next, err := FailUpload(s, "Please select an image file.")
	require.NoError(t, err)
	assert.False(t, next.IsLoading)
	assert.Equal(t, "Please select an image file.", next.Error)
	// 모드와 이미지는 그대로
	assert.Equal(t, s.Mode, next.Mode)
	assert.Equal(t, s.CurrentImage, next.CurrentImage)
}

func TestDismissError(t *testing.T) {
	s := NewState()
	s.Error = "boom"
	s.CurrentImage = &ImagePayload{Data: "abc", MimeType: "image/png"}

	next := DismissError(s)
	assert.Empty(t, next.Error)
	assert.NotNil(t, next.CurrentImage)
	assert.Equal(t, s.Mode, next.Mode)
}
