package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Part - 텍스트 또는 이미지 한 조각
type Part struct {
	Text     string
	Image    []byte
	MIMEType string
}

// Text - 텍스트 파트 생성
func Text(s string) Part { return Part{Text: s} }

// Image - 이미지 파트 생성
func Image(data []byte, mime string) Part {
	if mime == "" {
		mime = "image/png"
	}
	return Part{Image: data, MIMEType: mime}
}

// IsImage - 이미지 파트 여부
func (p Part) IsImage() bool { return len(p.Image) > 0 }

// Request - 텍스트 생성 요청
type Request struct {
	System      string
	Parts       []Part
	JSON        bool // JSON 객체 응답 강제
	Temperature float32
}

// Completer - 텍스트 생성 서비스 (enhance, rank, evaluate, script 생성에 공통 사용)
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc - 함수형 Completer (테스트 스텁 용)
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StripFences - ```json ... ``` 같은 마크다운 코드 펜스 제거
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		// 첫 줄은 언어 태그 (json, python ...)
		if tag := strings.TrimSpace(t[:nl]); !strings.ContainsAny(tag, "{[") {
			t = t[nl+1:]
		}
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// DecodeJSON - 펜스 제거 후 첫 JSON 값을 v 로 디코드
// 앞뒤에 설명 문장이 붙은 응답도 허용
func DecodeJSON(raw string, v any) error {
	text := StripFences(raw)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON value in response")
	}
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return nil
}
