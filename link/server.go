package link

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/lightlink/helpers"
	"github.com/temoto/lightlink/log2"
)

type Mode string

const (
	// one datagram start to finish, actuator drive blocks receiving
	ModeSequential Mode = "sequential"
	// goroutine per datagram
	ModeConcurrent Mode = "concurrent"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSequential:
		return ModeSequential, nil
	case ModeConcurrent:
		return ModeConcurrent, nil
	}
	return "", errors.NotValidf("server mode=%s", s)
}

type ServerOptions struct {
	Conn    *Conn
	Handler *Handler
	Log     *log2.Log
	Mode    Mode
}

type Server struct {
	alive    *alive.Alive
	conn     *Conn
	handler  *Handler
	log      *log2.Log
	mode     Mode
	stopOnce sync.Once
	backoff  helpers.Backoff
}

func NewServer(opt ServerOptions) (*Server, error) {
	if opt.Conn == nil || opt.Handler == nil {
		return nil, errors.NotValidf("code error link.ServerOptions Conn and Handler required")
	}
	mode, err := ParseMode(string(opt.Mode))
	if err != nil {
		return nil, err
	}
	if opt.Handler.Stat == nil {
		opt.Handler.Stat = opt.Conn.Stat()
	}
	return &Server{
		alive:   alive.NewAlive(),
		conn:    opt.Conn,
		handler: opt.Handler,
		log:     opt.Log,
		mode:    mode,
		backoff: helpers.Backoff{Min: 10 * time.Millisecond, Max: time.Second, K: 2},
	}, nil
}

func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }
func (s *Server) Mode() Mode     { return s.mode }
func (s *Server) Stat() *Stat    { return s.handler.Stat }

// Serve processes datagrams until ctx is done or Stop is called.
// Returns after in-flight handlers finished. Normal shutdown returns nil.
func (s *Server) Serve(ctx context.Context) error {
	if !s.alive.Add(1) {
		return ErrClosing
	}
	stopAfter := context.AfterFunc(ctx, s.Stop)
	defer stopAfter()
	s.log.Debugf("serve addr=%s mode=%s", s.Addr(), s.mode)

	err := s.loop(ctx)
	s.alive.Done()
	s.Stop()
	s.alive.Wait()
	return err
}

func (s *Server) loop(ctx context.Context) error {
	for {
		// blocks until datagram or Stop closes socket
		b, from, err := s.conn.Receive(context.Background())
		if !s.alive.IsRunning() {
			return nil
		}
		if err != nil {
			if IsCanceled(err) {
				return nil
			}
			if !IsTransport(err) {
				return errors.Annotate(err, "receive")
			}
			delay := s.backoff.Failure()
			s.log.Errorf("%v, retry in %v", err, delay)
			select {
			case <-time.After(delay):
			case <-s.alive.StopChan():
				return nil
			}
			continue
		}
		s.backoff.Reset()

		switch s.mode {
		case ModeConcurrent:
			if !s.alive.Add(1) {
				return nil
			}
			go func() {
				defer s.alive.Done()
				s.handle(ctx, from, b)
			}()
		default:
			s.handle(ctx, from, b)
		}
	}
}

func (s *Server) handle(ctx context.Context, from net.Addr, b []byte) {
	reply, err := s.handler.Handle(ctx, from, b)
	switch {
	case err == nil:
	case IsFormat(err), IsBadRequest(err):
		s.log.Infof("rejected: %v", err)
	default:
		s.log.Error(err)
	}
	if reply == nil {
		return
	}
	if err := s.conn.Send(ctx, from, reply); err != nil && !IsCanceled(err) {
		s.log.Error(errors.Annotate(err, "reply"))
	}
}

// Stop closes socket to unblock receive. Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.log.Debugf("server stop addr=%s", s.Addr())
		s.alive.Stop()
		if err := s.conn.Close(); err != nil {
			s.log.Error(errors.Annotate(err, "close"))
		}
	})
}
