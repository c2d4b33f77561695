package link

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/hardware/pin"
	"github.com/temoto/lightlink/journal"
	"github.com/temoto/lightlink/log2"
)

const (
	DefaultInitialSeq       uint32 = 1000
	DefaultHandshakeTimeout        = 5 * time.Second
	DefaultFinTimeout              = time.Second
)

type ClientOptions struct {
	Conn    *Conn    // required, owned by session
	Server  net.Addr // required
	Journal *journal.Journal
	Log     *log2.Log

	InitialSeq       uint32 // 0 means DefaultInitialSeq
	HandshakeTimeout time.Duration
}

// ClientSession is the only holder of protocol state: sequence and ack counters.
// Counters change only during Handshake, data segments reuse them as is.
type ClientSession struct {
	Seq uint32
	Ack uint32

	conn    *Conn
	server  net.Addr
	journal *journal.Journal
	log     *log2.Log
	opt     ClientOptions

	mu          sync.Mutex
	established bool
	finOnce     sync.Once
	finErr      error
	closeOnce   sync.Once
	closeErr    error
}

func NewClientSession(opt ClientOptions) (*ClientSession, error) {
	if opt.Conn == nil || opt.Server == nil {
		return nil, errors.NotValidf("code error link.ClientOptions Conn and Server required")
	}
	if opt.InitialSeq == 0 {
		opt.InitialSeq = DefaultInitialSeq
	}
	if opt.HandshakeTimeout <= 0 {
		opt.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &ClientSession{
		Seq:     opt.InitialSeq,
		Ack:     opt.InitialSeq + 1,
		conn:    opt.Conn,
		server:  opt.Server,
		journal: opt.Journal,
		log:     opt.Log,
		opt:     opt,
	}, nil
}

func (c *ClientSession) Established() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.established
}

func (c *ClientSession) Server() net.Addr { return c.server }
func (c *ClientSession) Stat() *Stat      { return c.conn.Stat() }

// Handshake sends SYN, waits for SYN|ACK (other datagrams are ignored) and answers ACK.
// No retry: ErrHandshakeTimeout when SYN|ACK did not arrive within HandshakeTimeout.
func (c *ClientSession) Handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Seq = c.opt.InitialSeq
	c.Ack = c.opt.InitialSeq + 1
	c.established = false

	if err := c.sendHeader(ctx, FlagSYN); err != nil {
		return errors.Annotate(err, "handshake SYN")
	}

	hctx, cancel := context.WithTimeout(ctx, c.opt.HandshakeTimeout)
	defer cancel()
	var peer Header
	for {
		b, from, err := c.conn.Receive(hctx)
		if err != nil {
			if errors.Cause(err) == context.DeadlineExceeded && ctx.Err() == nil {
				return errors.Annotatef(ErrHandshakeTimeout, "server=%s timeout=%v", c.server, c.opt.HandshakeTimeout)
			}
			return errors.Annotate(err, "handshake receive")
		}
		h, err := DecodeHeader(b)
		if err != nil || h.Flags != FlagSynAck {
			c.log.Debugf("handshake ignore from=%s len=%d header=%s err=%v", from, len(b), h, err)
			continue
		}
		peer = h
		break
	}
	c.journalf("RECV: Sequence Num: %d ACK Num: %d [%s]", peer.Seq, peer.Ack, peer.Flags)

	c.Ack = peer.Seq + 1
	c.Seq++
	if err := c.sendHeader(ctx, FlagACK); err != nil {
		return errors.Annotate(err, "handshake ACK")
	}
	c.established = true
	c.log.Debugf("handshake complete server=%s seq=%d ack=%d", c.server, c.Seq, c.Ack)
	return nil
}

func (c *ClientSession) SendMotion(ctx context.Context) error {
	c.journalf("Motion detected at %s", journal.Stamp(time.Now()))
	return c.SendMessage(ctx, NewMotion())
}

func (c *ClientSession) SendData(ctx context.Context, duration float64, numBlinks int) error {
	return c.SendMessage(ctx, NewData(duration, numBlinks))
}

func (c *ClientSession) SendHello(ctx context.Context) error {
	return c.SendMessage(ctx, NewHello())
}

// SendMessage sends ACK data segment with current counters. Fire and forget, reply is not read.
func (c *ClientSession) SendMessage(ctx context.Context, m Message) error {
	f, err := c.Segment(m)
	if err != nil {
		return err
	}
	return errors.Annotatef(c.conn.Send(ctx, c.server, f), "send %s", m.Type)
}

// Segment builds ACK data segment with current counters.
func (c *ClientSession) Segment(m Message) (Framed, error) {
	body, err := m.Marshal()
	if err != nil {
		return Framed{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Framed{Header: Header{Seq: c.Seq, Ack: c.Ack, Flags: FlagACK}, Body: body}, nil
}

// SendFin sends FIN once, later calls return first result.
func (c *ClientSession) SendFin(ctx context.Context) error {
	c.finOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.finErr = errors.Annotate(c.sendHeader(ctx, FlagFIN), "send FIN")
	})
	return c.finErr
}

// Exchange sends d and waits up to wait for any reply. Used by interactive console,
// regular client flow never reads replies.
func (c *ClientSession) Exchange(ctx context.Context, d Datagram, wait time.Duration) ([]byte, error) {
	if err := c.conn.Send(ctx, c.server, d); err != nil {
		return nil, errors.Annotate(err, "exchange send")
	}
	rctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	b, _, err := c.conn.Receive(rctx)
	return b, errors.Annotate(err, "exchange receive")
}

// Run sends MOTION for every event from src until ctx is done.
// Transport errors are logged, sensor keeps working.
func (c *ClientSession) Run(ctx context.Context, src pin.EventSource, opt pin.WatchOptions) error {
	if opt.Log == nil {
		opt.Log = c.log
	}
	c.log.Infof("waiting for motion server=%s", c.server)
	return pin.Watch(ctx, src, opt, func(ctx context.Context) error {
		c.log.Infof("motion detected")
		if err := c.SendMotion(ctx); err != nil {
			if IsTransport(err) {
				c.log.Error(err)
				return nil
			}
			return err
		}
		return nil
	})
}

// Close sends FIN (unless already sent) and closes socket. Safe to call multiple times.
func (c *ClientSession) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultFinTimeout)
		defer cancel()
		finErr := c.SendFin(ctx)
		if finErr != nil {
			c.log.Error(finErr)
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// caller must hold c.mu
func (c *ClientSession) sendHeader(ctx context.Context, flags Flag) error {
	f := Framed{Header: Header{Seq: c.Seq, Ack: c.Ack, Flags: flags}}
	if err := c.conn.Send(ctx, c.server, f); err != nil {
		return err
	}
	c.journalf("SEND: Sequence Num: %d ACK Num: %d [%s]", f.Seq, f.Ack, f.Flags)
	return nil
}

func (c *ClientSession) journalf(format string, args ...interface{}) {
	if err := c.journal.Printf(format, args...); err != nil {
		c.conn.Stat().ErrJournal.Add(1)
		c.log.Error(errors.Annotate(err, "journal"))
	}
}
