package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNoCandidates - 랭킹할 프롬프트 후보가 없음
	ErrNoCandidates = errors.New("no prompt candidates to rank")
	// ErrEmptyInput - 평가할 이미지가 없음
	ErrEmptyInput = errors.New("no images provided for evaluation")
	// ErrEmptyResult - 생성기가 이미지를 하나도 반환하지 않음 (정상 결과지만 해당 단계 중단)
	ErrEmptyResult = errors.New("generator returned no images")
)

// TransientServiceError - 네트워크/레이트리밋 등 재시도 가능한 외부 호출 실패
type TransientServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *TransientServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Service, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// MalformedResponseError - 외부 모델 응답 파싱 실패 (재시도 안 함)
type MalformedResponseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v (raw: %s)", e.Stage, e.Err, truncate(e.Raw, 200))
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Malformed - MalformedResponseError 생성 헬퍼
func Malformed(stage, raw string, err error) error {
	return &MalformedResponseError{Stage: stage, Raw: raw, Err: err}
}

// ExecutionFailure - 생성된 렌더 스크립트 실행 실패 (크래시, 타임아웃, 성공 마커 없음)
type ExecutionFailure struct {
	Reason   string
	ExitCode int
	Stderr   string
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("script execution failed: %s (exit %d)", e.Reason, e.ExitCode)
}

// RankingIntegrityError - 심사 결과의 best가 입력 후보와 일치하지 않고 복구 불가
type RankingIntegrityError struct {
	Judged string
}

func (e *RankingIntegrityError) Error() string {
	return fmt.Sprintf("ranking judge picked a prompt outside the candidate set: %q", truncate(e.Judged, 120))
}

// EnhancementFailure - 프롬프트 강화 호출 실패
type EnhancementFailure struct {
	Err error
}

func (e *EnhancementFailure) Error() string { return fmt.Sprintf("prompt enhancement failed: %v", e.Err) }
func (e *EnhancementFailure) Unwrap() error { return e.Err }

// GenerationFailure - 이미지 생성 전송/인증 실패
type GenerationFailure struct {
	Engine string
	Err    error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("%s image generation failed: %v", e.Engine, e.Err)
}
func (e *GenerationFailure) Unwrap() error { return e.Err }

// IsTransient - 재시도 대상인지 판별
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientServiceError
	if errors.As(err, &transient) {
		return true
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return IsTransientStatus(statusFromMessage(err.Error())) || hasRateLimitText(err.Error())
}

// IsTransientStatus - 429 / 5xx 는 재시도 대상
func IsTransientStatus(code int) bool {
	return code == 429 || (code >= 500 && code <= 599)
}

func hasRateLimitText(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "connection reset")
}

// statusFromMessage - "Error 429" 같은 문자열에서 상태 코드 추출
func statusFromMessage(msg string) int {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if strings.Contains(msg, fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
