package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/lightlink/log2"
	"github.com/temoto/lightlink/state"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"
)

const appName = "lightlink"

var BuildVersion string = "unknown" // set by ldflags -X

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()

	log := log2.NewStderr(log2.LInfo)
	if err := newApp(log).RunContext(ctx, os.Args); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

func newApp(log *log2.Log) *cli.App {
	configPath := ""
	debug := false
	return &cli.App{
		Name:    appName,
		Usage:   "LED signalling over UDP with a minimal handshake",
		Version: BuildVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "HCL config file, command line arguments override it",
				EnvVars:     []string{"LIGHTLINK_CONFIG"},
				Destination: &configPath,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "verbose diagnostic log",
				Destination: &debug,
			},
		},
		Before: func(c *cli.Context) error {
			if sdnotify("STATUS=starting") || !isatty.IsTerminal(os.Stderr.Fd()) {
				// systemd journal adds timestamps
				log.SetFlags(log2.LServiceFlags)
			} else {
				log.SetFlags(log2.LInteractiveFlags)
			}
			if debug {
				log.SetLevel(log2.LDebug)
			}
			return nil
		},
		Commands: []*cli.Command{
			serverCommand(log, &configPath),
			clientCommand(log, &configPath),
			consoleCommand(log, &configPath),
		},
	}
}

// loadConfig reads optional config file, applies log level and validates role.
func loadConfig(log *log2.Log, path string) (*state.Config, error) {
	var names []string
	if path != "" {
		names = append(names, path)
	}
	config, err := state.ReadConfig(log, state.NewOsFullReader(), names...)
	if err != nil {
		return nil, errors.Annotate(err, "config")
	}
	if config.Log.Debug {
		log.SetLevel(log2.LDebug)
	}
	return config, nil
}

// argPort parses positional argument i when present, otherwise keeps current value.
func argPort(c *cli.Context, i int, current *int) error {
	s := c.Args().Get(i)
	if s == "" {
		return nil
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return errors.NotValidf("port=%s", s)
	}
	if err := state.ValidatePort(port); err != nil {
		return err
	}
	*current = port
	return nil
}

func argString(c *cli.Context, i int, current *string) {
	if s := c.Args().Get(i); s != "" {
		*current = s
	}
}

func usageError(c *cli.Context, format string, args ...interface{}) error {
	return cli.Exit(fmt.Sprintf("usage: %s %s %s\n%s", appName, c.Command.Name, c.Command.ArgsUsage, fmt.Sprintf(format, args...)), 2)
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log2.NewStderr(log2.LError).Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
