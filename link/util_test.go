package link

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/temoto/lightlink/hardware/pin"
	"github.com/temoto/lightlink/journal"
	"github.com/temoto/lightlink/log2"
	"github.com/temoto/lightlink/tele"
)

var testAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *syncBuffer) Lines() []string {
	str := strings.TrimSpace(s.String())
	if str == "" {
		return nil
	}
	return strings.Split(str, "\n")
}

type tenv struct {
	t        testing.TB
	log      *log2.Log
	actuator *pin.MockActuator
	journal  *syncBuffer
	pub      *recordPublisher
	handler  *Handler
}

func testEnv(t testing.TB) *tenv {
	env := &tenv{
		t:        t,
		log:      log2.NewTest(t, log2.LDebug),
		actuator: &pin.MockActuator{},
		journal:  &syncBuffer{},
		pub:      &recordPublisher{},
	}
	env.handler = &Handler{
		Actuator:  env.actuator,
		Journal:   journal.New(env.journal),
		Log:       env.log,
		Publisher: env.pub,
		Stat:      &Stat{},
	}
	return env
}

// startServer listens on loopback and serves until test cleanup.
func (env *tenv) startServer(mode Mode) *Server {
	conn, err := Listen("127.0.0.1:0", ConnOptions{Log: env.log})
	require.NoError(env.t, err)
	srv, err := NewServer(ServerOptions{Conn: conn, Handler: env.handler, Log: env.log, Mode: mode})
	require.NoError(env.t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	env.t.Cleanup(func() {
		cancel()
		require.NoError(env.t, <-done)
	})
	return srv
}

func (env *tenv) listen() *Conn {
	conn, err := Listen("127.0.0.1:0", ConnOptions{Log: env.log})
	require.NoError(env.t, err)
	env.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type recordPublisher struct {
	mu     sync.Mutex
	events []tele.Event
	err    error
}

func (p *recordPublisher) Publish(_ context.Context, e tele.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordPublisher) Close() error { return nil }

func (p *recordPublisher) Events() []tele.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tele.Event(nil), p.events...)
}
