package textlayer

import (
	"regexp"
	"strings"
	"unicode"
)

// 생성된 스크립트에서 항상 제거하는 문자 (인코딩 문제 유발)
var invisibleRunes = map[rune]bool{
	'\u2060': true, // word joiner
	'\u200b': true, // zero width space
	'\u200c': true, // zero width non-joiner
	'\u200d': true, // zero width joiner
	'\ufeff': true, // BOM
	'\u00a0': true, // nbsp
}

var (
	fenceLine = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_+-]*[ \t]*$\n?")
	mainGuard = regexp.MustCompile(`(?m)^if\s+__name__\s*==\s*['"]__main__['"]\s*:`)
)

// Sanitize - 생성된 스크립트를 실행 가능한 평문으로 정리
// 보이지 않는 유니코드/제어 문자, 마크다운 펜스 제거 + 줄바꿈 정규화
func Sanitize(src string) string {
	if src == "" {
		return ""
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")

	var b strings.Builder
	b.Grow(len(src))
	for _, r := range src {
		if invisibleRunes[r] {
			continue
		}
		if r != '\n' && r != '\t' && (unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r)) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := fenceLine.ReplaceAllString(b.String(), "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

// stripMainGuard - 스크립트 자체의 __main__ 블록 제거 (러너 푸터가 대신 호출)
func stripMainGuard(src string) string {
	loc := mainGuard.FindStringIndex(src)
	if loc == nil {
		return src
	}
	return strings.TrimRight(src[:loc[0]], "\n ")
}
