package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/lightlink/helpers"
	"github.com/temoto/lightlink/helpers/cli"
	"github.com/temoto/lightlink/journal"
	"github.com/temoto/lightlink/link"
	"github.com/temoto/lightlink/log2"
	"github.com/temoto/lightlink/state"
	ucli "github.com/urfave/cli/v2"
)

const consoleTag = "lightlink"

func consoleCommand(log *log2.Log, configPath *string) *ucli.Command {
	return &ucli.Command{
		Name:      "console",
		Usage:     "send protocol segments by hand and print replies",
		ArgsUsage: "SERVER_IP PORT",
		Action: func(c *ucli.Context) error {
			config, err := loadConfig(log, *configPath)
			if err != nil {
				return err
			}
			argString(c, 0, &config.Client.ServerHost)
			if err := argPort(c, 1, &config.Client.Port); err != nil {
				return usageError(c, "%v", err)
			}
			if err := config.Validate("console"); err != nil {
				return usageError(c, "%v", err)
			}
			return runConsole(c.Context, log, config, c.App.Writer)
		},
	}
}

func runConsole(ctx context.Context, log *log2.Log, config *state.Config, w io.Writer) error {
	var j *journal.Journal
	if config.Journal.Path != "" {
		var err error
		if j, err = journal.Open(config.Journal.Path); err != nil {
			return err
		}
		defer j.Close()
	}
	session, err := newSession(log, config, j)
	if err != nil {
		return err
	}
	defer session.Close()

	con := &console{
		ctx:     ctx,
		session: session,
		w:       w,
		wait:    helpers.IntMillisecondDefault(config.Client.ReplyTimeoutMs, state.DefaultReplyTimeoutMs*time.Millisecond),
	}
	fmt.Fprintf(w, "server %s, type help\n", session.Server())
	return cli.MainLoop(consoleTag, con.exec, con.complete)
}

type console struct {
	ctx     context.Context
	session *link.ClientSession
	w       io.Writer
	wait    time.Duration
}

var consoleSuggest = []prompt.Suggest{
	{Text: "syn", Description: "handshake, updates seq/ack"},
	{Text: "hello", Description: "HELLO segment"},
	{Text: "motion", Description: "MOTION segment"},
	{Text: "data", Description: "DATA segment: data DURATION NUM_BLINKS"},
	{Text: "raw", Description: "raw JSON body in ACK segment: raw {...}"},
	{Text: "fin", Description: "FIN, no reply expected"},
	{Text: "quit", Description: "send FIN and exit"},
}

func (con *console) complete(d prompt.Document) []prompt.Suggest {
	return prompt.FilterHasPrefix(consoleSuggest, d.GetWordBeforeCursor(), true)
}

func (con *console) exec(line string) error {
	if err := con.ctx.Err(); err != nil {
		return cli.ErrQuit
	}
	cmd, rest := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		cmd, rest = line[:i], strings.TrimSpace(line[i+1:])
	}
	switch cmd {
	case "help", "?":
		for _, s := range consoleSuggest {
			fmt.Fprintf(con.w, "  %-8s %s\n", s.Text, s.Description)
		}
		return nil

	case "quit", "exit":
		return cli.ErrQuit

	case "syn":
		if err := con.session.Handshake(con.ctx); err != nil {
			return err
		}
		fmt.Fprintf(con.w, "established seq=%d ack=%d\n", con.session.Seq, con.session.Ack)
		return nil

	case "fin":
		if err := con.session.SendFin(con.ctx); err != nil {
			return err
		}
		fmt.Fprintln(con.w, "FIN sent")
		return nil

	case "hello":
		return con.send(link.NewHello())

	case "motion":
		return con.send(link.NewMotion())

	case "data":
		m, err := parseData(rest)
		if err != nil {
			return err
		}
		return con.send(m)

	case "raw":
		f, err := con.session.Segment(link.Message{})
		if err != nil {
			return err
		}
		f.Body = []byte(rest)
		return con.exchange(f)
	}
	return errors.NotValidf("command=%s, type help", cmd)
}

func (con *console) send(m link.Message) error {
	f, err := con.session.Segment(m)
	if err != nil {
		return err
	}
	return con.exchange(f)
}

func (con *console) exchange(d link.Datagram) error {
	b, err := con.session.Exchange(con.ctx, d, con.wait)
	if err != nil {
		if errors.Cause(err) == context.DeadlineExceeded && con.ctx.Err() == nil {
			fmt.Fprintf(con.w, "no reply within %v\n", con.wait)
			return nil
		}
		return err
	}
	if r, err := link.ParseResponse(b); err == nil && r.Status != "" {
		fmt.Fprintf(con.w, "%s: %s\n", r.Status, r.Message)
		return nil
	}
	if h, err := link.DecodeHeader(b); err == nil {
		fmt.Fprintf(con.w, "segment %s\n", h)
		return nil
	}
	fmt.Fprintf(con.w, "reply %q\n", b)
	return nil
}

func parseData(s string) (link.Message, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return link.Message{}, errors.Errorf("usage: data DURATION NUM_BLINKS")
	}
	duration, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return link.Message{}, errors.NotValidf("duration=%s", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return link.Message{}, errors.NotValidf("num_blinks=%s", fields[1])
	}
	return link.NewData(duration, n), nil
}
