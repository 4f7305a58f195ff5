package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"poster-studio-server/modules/common/tempfile"
)

// FileSink - JSON 배열 파일 하나에 기록 전체를 저장
// 쓰기는 같은 디렉터리의 임시 파일에 쓴 뒤 rename
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink - path 에 저장하는 FileSink
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// LoadAll - 파일이 없거나 비어 있으면 빈 목록
func (f *FileSink) LoadAll(ctx context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Append - 기존 목록 + rec 을 원자적으로 다시 씀
func (f *FileSink) Append(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.read()
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	tmp, err := tempfile.WriteFile(filepath.Dir(f.path), "history", "json.tmp", data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

func (f *FileSink) read() ([]Record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", f.path, err)
	}
	return records, nil
}
