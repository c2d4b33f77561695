// Package journal is append-only human readable protocol log.
// One call = one line, prefixed with local timestamp.
// Appends are serialized so concurrent writers never interleave within a line.
package journal

import (
	"expvar"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/mitchellh/go-homedir"
	"github.com/temoto/lightlink/helpers"
)

const TimeLayout = "2006-01-02-15:04:05"

type Journal struct {
	mu    sync.Mutex
	w     io.Writer
	c     io.Closer
	now   func() time.Time
	path  string
	lines uint64
	size  expvar.Int
}

// Open appends to file at path, creating it if needed. Leading ~ is expanded.
func Open(path string) (*Journal, error) {
	full, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Annotatef(err, "journal path=%s", path)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "journal open path=%s", full)
	}
	j := New(f)
	j.c = f
	j.path = full
	return j, nil
}

func New(w io.Writer) *Journal {
	j := &Journal{now: time.Now}
	j.w = helpers.NewStatWriter(w, &j.size, 0)
	return j
}

// SetClock is used by tests.
func (j *Journal) SetClock(now func() time.Time) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.now = now
	j.mu.Unlock()
}

func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

func (j *Journal) Lines() uint64 {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lines
}

// Size is number of bytes written since open.
func (j *Journal) Size() int64 {
	if j == nil {
		return 0
	}
	return j.size.Value()
}

// Printf appends one line. Write error is returned to caller, journal stays usable.
func (j *Journal) Printf(format string, args ...interface{}) error {
	if j == nil {
		return nil
	}
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w == nil {
		return errors.Errorf("journal closed")
	}
	line := Stamp(j.now()) + " " + msg + "\n"
	if err := helpers.WriteAll(j.w, []byte(line)); err != nil {
		return errors.Annotate(err, "journal write")
	}
	j.lines++
	return nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.w = nil
	if j.c == nil {
		return nil
	}
	c := j.c
	j.c = nil
	return c.Close()
}

func Stamp(t time.Time) string { return t.Format(TimeLayout) }
