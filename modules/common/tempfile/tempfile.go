package tempfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Name - 충돌 방지 파일명: <prefix>_<unixmillis>_<random8>.<ext>
func Name(prefix, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%s_%d_%s", sanitize(prefix), time.Now().UnixMilli(), random)
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// Create - dir 안에 새 파일을 O_EXCL 로 생성 (이름 충돌 시 재시도)
func Create(dir, prefix, ext string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", dir, err)
	}
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, Name(prefix, ext))
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create temp file: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to create unique temp file in %s", dir)
}

// WriteFile - 새 임시 파일에 data 를 쓰고 경로 반환
func WriteFile(dir, prefix, ext string, data []byte) (string, error) {
	f, err := Create(dir, prefix, ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}

// Dir - 실행 단위 전용 하위 디렉터리 생성
func Dir(parent, prefix string) (string, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir %s: %w", parent, err)
	}
	for i := 0; i < 5; i++ {
		path := filepath.Join(parent, Name(prefix, ""))
		err := os.Mkdir(path, 0o700)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create run dir: %w", err)
		}
	}
	return "", fmt.Errorf("failed to create unique run dir in %s", parent)
}

func sanitize(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "tmp"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, prefix)
}
