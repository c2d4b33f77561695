// Package cli runs line oriented interactive tools.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

var ErrQuit = fmt.Errorf("quit")

type Executor func(line string) error

// MainLoop reads commands until exec returns ErrQuit or script ends.
// Terminal stdin gets go-prompt with completion, otherwise stdin is a script.
func MainLoop(tag string, exec Executor, complete func(d prompt.Document) []prompt.Suggest) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return ScriptLoop(os.Stdin, exec)
	}

	for {
		line := strings.TrimSpace(prompt.Input(tag+"> ", complete, prompt.OptionTitle(tag)))
		if line == "" {
			continue
		}
		if err := exec(line); err != nil {
			if errors.Cause(err) == ErrQuit {
				return nil
			}
			os.Stderr.WriteString("error: " + err.Error() + "\n")
		}
	}
}

// ScriptLoop executes each non-empty line of r, # starts comment.
// First error other than ErrQuit stops the script.
func ScriptLoop(r io.Reader, exec Executor) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := exec(line); err != nil {
			if errors.Cause(err) == ErrQuit {
				return nil
			}
			return errors.Annotatef(err, "line='%s'", line)
		}
	}
	return errors.Annotate(scanner.Err(), "script read")
}
