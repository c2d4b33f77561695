package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptLoop(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		input     string
		expect    []string
		expectErr string
	}{
		{"empty", "", nil, ""},
		{"comments", "# hi\n\n  hello  \nmotion\n", []string{"hello", "motion"}, ""},
		{"quit", "hello\nquit\nmotion\n", []string{"hello", "quit"}, ""},
		{"error-stops", "hello\nbad\nmotion\n", []string{"hello", "bad"}, "line='bad': unknown command"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			var seen []string
			err := ScriptLoop(strings.NewReader(c.input), func(line string) error {
				seen = append(seen, line)
				switch line {
				case "quit":
					return ErrQuit
				case "bad":
					return fmt.Errorf("unknown command")
				}
				return nil
			})
			assert.Equal(t, c.expect, seen)
			if c.expectErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
			}
		})
	}
}
