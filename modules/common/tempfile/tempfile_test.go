package tempfile

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameFormat(t *testing.T) {
	name := Name("dynamic input", ".png")
	assert.Regexp(t, regexp.MustCompile(`^dynamic_input_\d{13}_[0-9a-f]{8}\.png$`), name)
	assert.Regexp(t, regexp.MustCompile(`^tmp_\d{13}_[0-9a-f]{8}$`), Name("", ""))
}

func TestConcurrentWritesNeverCollide(t *testing.T) {
	dir := t.TempDir()
	var (
		mu    sync.Mutex
		paths = map[string]bool{}
		wg    sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := WriteFile(dir, "poster", "png", []byte("x"))
			assert.NoError(t, err)
			mu.Lock()
			paths[p] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, paths, 200)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 200)
}

func TestDirCreatesPrivateDirectory(t *testing.T) {
	parent := t.TempDir()
	d, err := Dir(parent, "script")
	require.NoError(t, err)
	assert.Equal(t, parent, filepath.Dir(d))
	info, err := os.Stat(d)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
