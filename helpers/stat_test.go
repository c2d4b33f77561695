package helpers

import (
	"bytes"
	"expvar"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatWriter(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		fix    int64
		writes []int
		expect int64
	}{
		{"empty", 0, []int{0}, 0},
		{"plain", 0, []int{0, 5, 17}, 22},
		{"overhead", 28, []int{5, 17}, 78},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			var counter expvar.Int
			buf := bytes.NewBuffer(nil)
			s := NewStatWriter(buf, &counter, c.fix)
			for _, n := range c.writes {
				_, err := s.Write(make([]byte, n))
				assert.NoError(t, err)
			}
			assert.Equal(t, c.expect, counter.Value())
		})
	}
}
