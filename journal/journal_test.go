package journal

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 11, 9, 13, 14, 15, 0, time.Local)
}

func TestPrintf(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer(nil)
	j := New(buf)
	j.SetClock(fixedClock)
	require.NoError(t, j.Printf("RECV: Sequence Num: %d ACK Num: %d [%s]", 1000, 1001, "SYN"))
	require.NoError(t, j.Printf("Motion detected\n"))
	assert.Equal(t,
		"2024-11-09-13:14:15 RECV: Sequence Num: 1000 ACK Num: 1001 [SYN]\n"+
			"2024-11-09-13:14:15 Motion detected\n",
		buf.String())
	assert.Equal(t, uint64(2), j.Lines())
	assert.Equal(t, int64(buf.Len()), j.Size())
}

func TestNil(t *testing.T) {
	t.Parallel()

	var j *Journal
	assert.NoError(t, j.Printf("ignored"))
	assert.NoError(t, j.Close())
	assert.Equal(t, uint64(0), j.Lines())
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	j := New(failWriter{})
	err := j.Printf("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, uint64(0), j.Lines())
}

func TestClosed(t *testing.T) {
	t.Parallel()

	j := New(bytes.NewBuffer(nil))
	require.NoError(t, j.Close())
	assert.Error(t, j.Printf("late"))
}

func TestOpenAppend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "light.log")
	for i := 0; i < 2; i++ {
		j, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, path, j.Path())
		require.NoError(t, j.Printf("run=%d", i))
		require.NoError(t, j.Close())
	}
	b, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Equal(t, 2, len(lines))
	assert.True(t, strings.HasSuffix(lines[0], " run=0"))
	assert.True(t, strings.HasSuffix(lines[1], " run=1"))
}

func TestOpenError(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing-dir", "light.log"))
	assert.Error(t, err)
}

func TestConcurrentNoInterleave(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer(nil)
	j := New(&slowWriter{w: buf})
	j.SetClock(fixedClock)
	const n = 50
	wg := sync.WaitGroup{}
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, j.Printf("worker=%02d %s", i, strings.Repeat("x", 40)))
		}(i)
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, n, len(lines))
	seen := make(map[string]bool)
	for _, line := range lines {
		assert.Regexp(t, `^2024-11-09-13:14:15 worker=\d\d x{40}$`, line)
		seen[line[20:29]] = true
	}
	assert.Equal(t, n, len(seen))
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("disk full") }

// slowWriter accepts few bytes per call to expose interleaving if lines were not serialized.
type slowWriter struct {
	w *bytes.Buffer
}

func (s *slowWriter) Write(p []byte) (int, error) {
	if len(p) > 7 {
		p = p[:7]
	}
	time.Sleep(time.Microsecond)
	return s.w.Write(p)
}
