package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/tempfile"
)

// LocalStore - 업로드된 로고/제품/결과 파일을 디스크에 보관
// 경로: <dir>/<kind>/<prefix>_<unixmillis>_<random8>.<ext>
type LocalStore struct {
	dir string
}

// NewLocalStore - dir 아래에 저장하는 LocalStore
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Save - 새 파일로 저장하고 경로 반환. 같은 이름이 와도 덮어쓰지 않음
func (s *LocalStore) Save(kind, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty %s upload", kind)
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	prefix := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	path, err := tempfile.WriteFile(filepath.Join(s.dir, kind), prefix, strings.ToLower(ext), data)
	if err != nil {
		return "", fmt.Errorf("failed to store %s upload: %w", kind, err)
	}
	log.Debug().Msgf("[Storage] Saved %s upload: %s (%d bytes)", kind, path, len(data))
	return path, nil
}
