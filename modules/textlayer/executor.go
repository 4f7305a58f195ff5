package textlayer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/tempfile"
	"poster-studio-server/modules/common/utils"
)

const (
	successMarker  = "SUCCESS:"
	maxStderrBytes = 4096
)

// runnerFooter - 스크립트 끝에 붙는 실행부. argv: input, output, prompt
const runnerFooter = `

if __name__ == "__main__":
    import sys
    import traceback
    try:
        main(sys.argv[1], sys.argv[2], sys.argv[3])
        print("SUCCESS: Script executed successfully")
    except Exception as e:
        print(f"ERROR: {e}")
        traceback.print_exc()
        sys.exit(1)
`

// ExecResult - 스크립트 실행 결과. 실패도 값으로 전달 (에러 아님)
type ExecResult struct {
	OK       bool
	Output   []byte
	Reason   string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Executor - 렌더 스크립트를 격리된 하위 프로세스로 실행
type Executor struct {
	Interpreter string
	Timeout     time.Duration
	TempDir     string
	// WaitDelay - 타임아웃 kill 후 파이프 정리 대기 시간
	WaitDelay time.Duration
}

// NewExecutor - 기본 python3 / 60s
func NewExecutor(interpreter string, timeout time.Duration, tempDir string) *Executor {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Executor{Interpreter: interpreter, Timeout: timeout, TempDir: tempDir, WaitDelay: 2 * time.Second}
}

// Run - script 를 실행해 input 위에 렌더한 새 이미지를 얻는다
// 입력 바이트는 실행 전용 디렉터리에 복사되므로 호출자의 원본은 변하지 않는다
func (e *Executor) Run(ctx context.Context, script string, input []byte, prompt string) ExecResult {
	start := time.Now()
	fail := func(reason string, exitCode int, stdout, stderr string) ExecResult {
		log.Warn().Msgf("❌ [TextLayer] Script execution failed: %s (exit %d)", reason, exitCode)
		if stderr != "" {
			log.Debug().Msgf("[TextLayer] stderr: %s", stderr)
		}
		return ExecResult{Reason: reason, ExitCode: exitCode, Stdout: stdout, Stderr: stderr, Duration: time.Since(start)}
	}

	cleaned := stripMainGuard(Sanitize(script))
	if cleaned == "" {
		return fail("empty script", -1, "", "")
	}
	if err := CheckScript(cleaned); err != nil {
		return fail(err.Error(), -1, "", "")
	}

	parent := e.TempDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir, err := tempfile.Dir(parent, "text_layer")
	if err != nil {
		return fail("create work dir: "+err.Error(), -1, "", "")
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, "render.py")
	inputPath := filepath.Join(dir, "input.png")
	outputPath := filepath.Join(dir, "output.png")
	if err := os.WriteFile(scriptPath, []byte(cleaned+runnerFooter), 0o600); err != nil {
		return fail("write script: "+err.Error(), -1, "", "")
	}
	if err := os.WriteFile(inputPath, input, 0o600); err != nil {
		return fail("write input: "+err.Error(), -1, "", "")
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.Interpreter, scriptPath, inputPath, outputPath, prompt)
	cmd.Dir = dir
	cmd.Env = scrubbedEnv(dir)
	cmd.WaitDelay = e.WaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Info().Msgf("🐍 [TextLayer] Running render script (%s, timeout %s)", e.Interpreter, e.Timeout)
	runErr := cmd.Run()
	errText := tail(stderr.String(), maxStderrBytes)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fail("timeout after "+e.Timeout.String(), -1, stdout.String(), errText)
	}
	if ctx.Err() != nil {
		return fail("cancelled", -1, stdout.String(), errText)
	}
	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return fail("process error: "+runErr.Error(), exitCode, stdout.String(), errText)
	}
	if !strings.Contains(stdout.String(), successMarker) {
		return fail("missing success marker", 0, stdout.String(), errText)
	}

	output, err := os.ReadFile(outputPath)
	if err != nil {
		return fail("missing output image", 0, stdout.String(), errText)
	}
	if _, err := utils.DecodeImage(output); err != nil {
		return fail("output is not a decodable image", 0, stdout.String(), errText)
	}

	log.Info().Msgf("✅ [TextLayer] Script executed in %s", time.Since(start).Round(time.Millisecond))
	return ExecResult{OK: true, Output: output, Stdout: stdout.String(), Stderr: errText, Duration: time.Since(start)}
}

// scrubbedEnv - PATH 와 로케일만 넘기고 HOME/TMPDIR 은 작업 디렉터리로
func scrubbedEnv(dir string) []string {
	env := []string{
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONIOENCODING=utf-8",
	}
	for _, key := range []string{"PATH", "LANG", "LC_ALL", "FONTCONFIG_PATH"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Err - 실패한 실행을 apperr.ExecutionFailure 로 (성공이면 nil)
func (r ExecResult) Err() error {
	if r.OK {
		return nil
	}
	return &apperr.ExecutionFailure{Reason: r.Reason, ExitCode: r.ExitCode, Stderr: r.Stderr}
}
