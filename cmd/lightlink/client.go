package main

import (
	"context"

	"github.com/temoto/lightlink/hardware/pin"
	"github.com/temoto/lightlink/helpers"
	"github.com/temoto/lightlink/journal"
	"github.com/temoto/lightlink/link"
	"github.com/temoto/lightlink/log2"
	"github.com/temoto/lightlink/state"
	"github.com/urfave/cli/v2"
)

func clientCommand(log *log2.Log, configPath *string) *cli.Command {
	return &cli.Command{
		Name:      "client",
		Usage:     "handshake with server and report motion sensor events",
		ArgsUsage: "SERVER_IP PORT LOG_LOCATION",
		Action: func(c *cli.Context) error {
			config, err := loadConfig(log, *configPath)
			if err != nil {
				return err
			}
			argString(c, 0, &config.Client.ServerHost)
			if err := argPort(c, 1, &config.Client.Port); err != nil {
				return usageError(c, "%v", err)
			}
			argString(c, 2, &config.Journal.Path)
			if config.Journal.Path == "" {
				return usageError(c, "LOG_LOCATION required")
			}
			if err := config.Validate("client"); err != nil {
				return usageError(c, "%v", err)
			}
			return runClient(c.Context, log, config)
		},
	}
}

// newSession opens client socket. Closing session sends FIN and closes socket.
func newSession(log *log2.Log, config *state.Config, j *journal.Journal) (*link.ClientSession, error) {
	server, err := link.ResolveAddr(config.Client.ServerHost, config.Client.Port)
	if err != nil {
		return nil, err
	}
	stat := &link.Stat{}
	log.SetErrorFunc(func(error) { stat.ErrLog.Add(1) })
	conn, err := link.Listen(":0", link.ConnOptions{Log: log, Stat: stat})
	if err != nil {
		return nil, err
	}
	session, err := link.NewClientSession(link.ClientOptions{
		Conn:             conn,
		Server:           server,
		Journal:          j,
		Log:              log,
		InitialSeq:       uint32(config.Client.InitialSeq),
		HandshakeTimeout: helpers.IntMillisecondDefault(config.Client.HandshakeTimeoutMs, link.DefaultHandshakeTimeout),
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return session, nil
}

func runClient(ctx context.Context, log *log2.Log, config *state.Config) error {
	j, err := journal.Open(config.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	hw, err := pin.Open(&config.Hardware, log, pin.RoleSensor)
	if err != nil {
		return err
	}
	defer hw.Close()

	session, err := newSession(log, config, j)
	if err != nil {
		return err
	}
	// FIN on every exit path, including handshake timeout
	defer session.Close()

	log.Infof("connecting to %s", session.Server())
	if err := session.Handshake(ctx); err != nil {
		if link.IsCanceled(err) {
			return nil
		}
		return err
	}
	log.Infof("connection established seq=%d ack=%d", session.Seq, session.Ack)
	sdnotify("READY=1")
	defer sdnotify("STOPPING=1")

	err = session.Run(ctx, hw.Source, pin.WatchOptions{
		Poll:     helpers.IntMillisecondDefault(config.Client.PollMs, pin.DefaultPoll),
		Cooldown: helpers.IntMillisecondDefault(config.Client.CooldownMs, pin.DefaultCooldown),
		Log:      log,
	})
	if link.IsCanceled(err) {
		log.Infof("client stopped stat=%s", session.Stat())
		return nil
	}
	return err
}
