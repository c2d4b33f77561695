package main

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/lightlink/hardware/pin"
	"github.com/temoto/lightlink/journal"
	"github.com/temoto/lightlink/link"
	"github.com/temoto/lightlink/log2"
	"github.com/temoto/lightlink/state"
	"github.com/temoto/lightlink/tele"
	"github.com/urfave/cli/v2"
)

const metricsNamespace = "lightlink"

func serverCommand(log *log2.Log, configPath *string) *cli.Command {
	mode := ""
	return &cli.Command{
		Name:      "server",
		Usage:     "receive handshakes and messages, drive the LED",
		ArgsUsage: "PORT LOG_LOCATION",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "sequential or concurrent datagram handling",
				Destination: &mode,
			},
		},
		Action: func(c *cli.Context) error {
			config, err := loadConfig(log, *configPath)
			if err != nil {
				return err
			}
			if err := argPort(c, 0, &config.Server.Port); err != nil {
				return usageError(c, "%v", err)
			}
			argString(c, 1, &config.Journal.Path)
			if mode != "" {
				config.Server.Mode = mode
			}
			if config.Journal.Path == "" {
				return usageError(c, "LOG_LOCATION required")
			}
			if err := config.Validate("server"); err != nil {
				return usageError(c, "%v", err)
			}
			return runServer(c.Context, log, config)
		},
	}
}

func runServer(ctx context.Context, log *log2.Log, config *state.Config) error {
	mode, err := link.ParseMode(config.Server.Mode)
	if err != nil {
		return err
	}

	stat := &link.Stat{}
	log.SetErrorFunc(func(error) { stat.ErrLog.Add(1) })

	j, err := journal.Open(config.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	hw, err := pin.Open(&config.Hardware, log, pin.RoleActuator)
	if err != nil {
		return err
	}
	defer hw.Close()

	pub, err := tele.New(config.Tele, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	address := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	conn, err := link.Listen(address, link.ConnOptions{Log: log, Stat: stat, ReadLimit: config.Server.ReadLimit})
	if err != nil {
		return err
	}
	server, err := link.NewServer(link.ServerOptions{
		Conn: conn,
		Handler: &link.Handler{
			Actuator:  hw.Actuator,
			Journal:   j,
			Log:       log,
			Publisher: pub,
			Stat:      stat,
		},
		Log:  log,
		Mode: mode,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}

	if config.Server.MetricsListen != "" {
		stopMetrics, err := serveMetrics(log, stat, config.Server.MetricsListen)
		if err != nil {
			_ = conn.Close()
			return err
		}
		defer stopMetrics()
	}

	log.Infof("server listening on %s mode=%s journal=%s", server.Addr(), server.Mode(), j.Path())
	sdnotify("READY=1")
	err = server.Serve(ctx)
	sdnotify("STOPPING=1")
	log.Infof("server stopped stat=%s", stat)
	return err
}

func serveMetrics(log *log2.Log, stat *link.Stat, address string) (func(), error) {
	reg := prometheus.NewRegistry()
	stat.Register(reg, metricsNamespace)
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Annotatef(err, "metrics listen=%s", address)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error(errors.Annotate(err, "metrics serve"))
		}
	}()
	log.Infof("metrics on http://%s/metrics", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error(errors.Annotate(err, "metrics shutdown"))
		}
	}, nil
}
