package gifticon

import (
	"errors"

	"github.com/zombor/giftguard/internal/extract"
)

var (
	// ErrNotFound is returned when no gifticon has the requested ID.
	ErrNotFound = errors.New("gifticon not found")
	// ErrDuplicate is returned when storage rejects a gifticon that is
	// already stored. It is not retried.
	ErrDuplicate = errors.New("gifticon already stored")
	// ErrNoText is returned when recognition produced no text.
	ErrNoText = extract.ErrNoText
	// ErrRecognition wraps failures of the text recognition backend.
	ErrRecognition = errors.New("text recognition failed")
	// ErrImageAccess wraps failures to read or store the source image.
	ErrImageAccess = errors.New("image not accessible")
)

// FailureMessage maps an outcome of the service to the message shown to the
// user. Each failure kind has its own message.
func FailureMessage(err error) string {
	var incomplete *extract.IncompleteError
	switch {
	case err == nil:
		return "기프티콘 저장 완료."
	case errors.Is(err, ErrNoText):
		return "이미지에서 텍스트를 찾지 못했어요."
	case errors.As(err, &incomplete):
		return "필수 정보(메뉴, 사용처, 유효기간) 추출 실패."
	case errors.Is(err, ErrDuplicate):
		return "DB에 저장할 수 없습니다. (중복 또는 DB 오류)"
	case errors.Is(err, ErrNotFound):
		return "기프티콘을 찾을 수 없습니다."
	case errors.Is(err, ErrRecognition):
		return "텍스트 인식 중 오류가 발생했습니다."
	case errors.Is(err, ErrImageAccess):
		return "이미지를 열 수 없습니다. (권한/경로)"
	default:
		return "처리 중 오류가 발생했습니다."
	}
}
