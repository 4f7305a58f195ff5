package textlayer

import (
	"fmt"
	"regexp"
	"strings"
)

// 렌더 스크립트가 import 할 수 있는 최상위 모듈
// sys, traceback 은 러너 푸터가 사용
var allowedImports = map[string]bool{
	"PIL":       true,
	"cairo":     true,
	"os":        true,
	"math":      true,
	"sys":       true,
	"traceback": true,
}

// os 는 경로 처리용으로만 허용
var allowedFromOS = map[string]bool{
	"path": true,
}

// 내장 open() 은 입력/출력 이미지 경로에만 허용
var allowedOpenArgs = map[string]bool{
	"input_image_path":  true,
	"output_image_path": true,
}

var (
	importLine = regexp.MustCompile(`^\s*import\s+(.+)$`)
	fromLine   = regexp.MustCompile(`^\s*from\s+([A-Za-z_][\w.]*)\s+import\s+(.+)$`)
	openCall   = regexp.MustCompile(`(?:^|[^\w.])open\s*\(\s*([A-Za-z_]\w*)?`)
	// os 를 값으로 넘기면 (o = os, f(os)) 속성 검사를 우회할 수 있음
	bareOS = regexp.MustCompile(`\bos\b\s*(?:[^\s.]|$)`)
	// 동적 실행/프로세스/네트워크/리플렉션 경로는 허용 목록과 무관하게 거부
	forbiddenCalls = []*regexp.Regexp{
		regexp.MustCompile(`__import__`),
		regexp.MustCompile(`__builtins__`),
		regexp.MustCompile(`__subclasses__`),
		regexp.MustCompile(`__globals__`),
		regexp.MustCompile(`\bexec\s*\(`),
		regexp.MustCompile(`\beval\s*\(`),
		regexp.MustCompile(`\bcompile\s*\(`),
		regexp.MustCompile(`\bgetattr\s*\(`),
		regexp.MustCompile(`\bsetattr\s*\(`),
		regexp.MustCompile(`\bdelattr\s*\(`),
		regexp.MustCompile(`\bglobals\s*\(`),
		regexp.MustCompile(`\blocals\s*\(`),
		regexp.MustCompile(`\bvars\s*\(`),
		regexp.MustCompile(`\bbreakpoint\s*\(`),
		regexp.MustCompile(`\bsubprocess\b`),
		regexp.MustCompile(`\bsocket\b`),
		regexp.MustCompile(`\bos\.(system|popen|exec\w*|spawn\w*|fork|kill|remove|unlink|rmdir|removedirs|rename|replace|chmod|chown|environ|putenv)\b`),
		regexp.MustCompile(`\bimportlib\b`),
		regexp.MustCompile(`\bctypes\b`),
	}
)

// SandboxViolation - 실행 전에 거부된 스크립트
type SandboxViolation struct {
	Line   int
	Reason string
}

func (v *SandboxViolation) Error() string {
	return fmt.Sprintf("sandbox: line %d: %s", v.Line, v.Reason)
}

// CheckScript - import 허용 목록과 금지 호출 검사. 한 줄의 ; 로 나뉜 문장도 각각 검사
func CheckScript(src string) error {
	for i, line := range strings.Split(src, "\n") {
		for _, stmt := range splitStatements(stripComment(line)) {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if reason := checkStatement(stmt); reason != "" {
				return &SandboxViolation{Line: i + 1, Reason: reason}
			}
		}
	}
	return nil
}

func checkStatement(stmt string) string {
	if m := fromLine.FindStringSubmatch(stmt); m != nil {
		root := rootModule(m[1])
		if !allowedImports[root] {
			return fmt.Sprintf("import of %q is not allowed", root)
		}
		if m[1] == "os" {
			for _, item := range strings.Split(strings.Trim(m[2], " ()"), ",") {
				name := strings.Fields(item)
				if len(name) > 0 && !allowedFromOS[name[0]] {
					return fmt.Sprintf("import of os.%s is not allowed", name[0])
				}
			}
		}
	} else if m := importLine.FindStringSubmatch(stmt); m != nil {
		for _, item := range strings.Split(m[1], ",") {
			name := strings.Fields(item)
			if len(name) == 0 {
				continue
			}
			root := rootModule(name[0])
			if !allowedImports[root] {
				return fmt.Sprintf("import of %q is not allowed", root)
			}
			if root == "os" && len(name) > 1 && name[0] == "os" {
				return "aliasing os is not allowed"
			}
		}
	} else if loc := bareOS.FindString(stmt); loc != "" {
		return fmt.Sprintf("use of %q is not allowed", strings.TrimSpace(loc))
	}

	for _, re := range forbiddenCalls {
		if loc := re.FindString(stmt); loc != "" {
			return fmt.Sprintf("use of %q is not allowed", loc)
		}
	}

	for _, m := range openCall.FindAllStringSubmatch(stmt, -1) {
		if !allowedOpenArgs[m[1]] {
			return "open() is only allowed on the input and output image paths"
		}
	}
	return ""
}

func rootModule(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return name
}

// splitStatements - 따옴표 밖의 ; 기준으로 분리
func splitStatements(line string) []string {
	var (
		out   []string
		quote rune
		start int
	)
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			out = append(out, line[start:i])
			start = i + 1
		}
	}
	return append(out, line[start:])
}

// stripComment - 문자열 밖의 # 주석 제거 (따옴표 안의 # 은 유지)
func stripComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}
