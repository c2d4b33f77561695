package link

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/log2"
)

const (
	DefaultReadLimit = 16 << 10
	network          = "udp"
)

var aLongTimeAgo = time.Unix(1, 0)

type ConnOptions struct {
	Log       *log2.Log
	Stat      *Stat
	ReadLimit int
}

// Conn owns datagram socket. Send is safe for concurrent use,
// Receive must be called from one goroutine at a time.
type Conn struct {
	pc        net.PacketConn
	log       *log2.Log
	stat      *Stat
	readLimit int

	sendMu    sync.Mutex
	readMu    sync.Mutex
	readGen   uint64
	closed    uint32
	closeOnce sync.Once
	closeErr  error
}

func NewConn(pc net.PacketConn, opt ConnOptions) *Conn {
	if opt.ReadLimit <= 0 {
		opt.ReadLimit = DefaultReadLimit
	}
	if opt.Stat == nil {
		opt.Stat = &Stat{}
	}
	return &Conn{
		pc:        pc,
		log:       opt.Log,
		stat:      opt.Stat,
		readLimit: opt.ReadLimit,
	}
}

// Listen binds UDP socket, address ":0" picks free port.
func Listen(address string, opt ConnOptions) (*Conn, error) {
	pc, err := net.ListenPacket(network, address)
	if err != nil {
		return nil, errors.Annotatef(err, "listen address=%s", address)
	}
	return NewConn(pc, opt), nil
}

func ResolveAddr(host string, port int) (net.Addr, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	addr, err := net.ResolveUDPAddr(network, address)
	return addr, errors.Annotatef(err, "resolve address=%s", address)
}

func (c *Conn) LocalAddr() net.Addr { return c.pc.LocalAddr() }
func (c *Conn) Stat() *Stat         { return c.stat }
func (c *Conn) Closed() bool        { return atomic.LoadUint32(&c.closed) != 0 }

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		atomic.StoreUint32(&c.closed, 1)
		c.closeErr = c.pc.Close()
	})
	return c.closeErr
}

func (c *Conn) Send(ctx context.Context, to net.Addr, d Datagram) error {
	if c.Closed() {
		return ErrClosing
	}
	b := d.Bytes()
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.pc.SetWriteDeadline(deadline); err != nil {
		return c.transportError("send", to, err)
	}
	c.log.Debugf("send to=%s %s", to, d)
	n, err := c.pc.WriteTo(b, to)
	if err != nil {
		if c.Closed() {
			return ErrClosing
		}
		return c.transportError("send", to, err)
	}
	c.stat.Send.Register(n)
	return nil
}

// Receive blocks until datagram arrives, ctx is done or Conn is closed.
// Returned buffer is owned by caller.
func (c *Conn) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c.readMu.Lock()
	c.readGen++
	gen := c.readGen
	err := c.pc.SetReadDeadline(time.Time{})
	c.readMu.Unlock()
	if err != nil {
		if c.Closed() {
			return nil, nil, ErrClosing
		}
		return nil, nil, c.transportError("receive", nil, err)
	}
	// ctx done interrupts blocked read, late callback from finished call must not touch next one
	stop := context.AfterFunc(ctx, func() {
		c.readMu.Lock()
		if c.readGen == gen {
			_ = c.pc.SetReadDeadline(aLongTimeAgo)
		}
		c.readMu.Unlock()
	})
	defer stop()

	buf := make([]byte, c.readLimit)
	n, from, err := c.pc.ReadFrom(buf)
	c.readMu.Lock()
	c.readGen++
	c.readMu.Unlock()
	if err != nil {
		if c.Closed() {
			return nil, nil, ErrClosing
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, c.transportError("receive", nil, err)
	}
	c.stat.Recv.Register(n)
	c.stat.LastRecv.SetNow()
	return buf[:n], from, nil
}

func (c *Conn) transportError(op string, addr net.Addr, err error) error {
	c.stat.ErrTransport.Add(1)
	te := &TransportError{Op: op, Err: err}
	if addr != nil {
		te.Addr = addr.String()
	}
	return errors.Trace(te)
}
