package fallback

import (
	"encoding/json"
	"strconv"
	"strings"
)

// 외부 모델 JSON 응답은 숫자가 문자열로 오거나 필드가 빠지는 경우가 많아서
// map[string]any 값을 안전하게 변환하는 헬퍼 모음

// SafeString returns a trimmed string or the provided fallback.
func SafeString(value any, fallback string) string {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return fallback
}

// SafeFloat converts common number shapes into float64 with a fallback.
func SafeFloat(value any, fallback float64) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimSuffix(s, "/10")
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return fallback
}

// SafeInt converts common number shapes into int with a fallback.
// 음수도 허용 (인덱스 검증은 호출자가 함)
func SafeInt(value any, fallback int) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case float32:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := strconv.Atoi(v.String()); err == nil {
			return n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// SafeBool accepts JSON booleans and "true"/"false"-like strings.
func SafeBool(value any, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return fallback
}

// SafeStrings returns string items of a JSON array; a single string becomes a one-item list.
func SafeStrings(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := SafeString(item, ""); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

// SafeMap returns value as a JSON object or nil.
func SafeMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return nil
}

// SafeAspectRatio provides a sane default aspect ratio for posters.
func SafeAspectRatio(value any) string {
	ratio := SafeString(value, "9:16")
	switch ratio {
	case "1:1", "3:4", "4:3", "9:16", "16:9":
		return ratio
	}
	return "9:16"
}
