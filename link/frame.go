package link

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/juju/errors"
)

const HeaderSize = 4 /*seq*/ + 4 /*ack*/ + 4 /*flags*/

type Flag uint32

const (
	FlagSYN Flag = 1 << 0
	FlagACK Flag = 1 << 1
	FlagFIN Flag = 1 << 2

	FlagSynAck = FlagSYN | FlagACK
	FlagMask   = FlagSYN | FlagACK | FlagFIN
)

func (f Flag) String() string {
	f &= FlagMask
	if f == 0 {
		return "-"
	}
	parts := make([]string, 0, 3)
	if f&FlagSYN != 0 {
		parts = append(parts, "SYN")
	}
	if f&FlagACK != 0 {
		parts = append(parts, "ACK")
	}
	if f&FlagFIN != 0 {
		parts = append(parts, "FIN")
	}
	return strings.Join(parts, "|")
}

type Header struct {
	Seq   uint32
	Ack   uint32
	Flags Flag
}

// EncodeHeader packs header in network byte order.
// Only low 3 bits of flags are transmitted.
func EncodeHeader(seq, ack uint32, flags Flag) []byte {
	return appendHeader(make([]byte, 0, HeaderSize), seq, ack, flags)
}

// DecodeHeader reads leading HeaderSize bytes of b, the rest is ignored.
// Unknown flag bits are dropped.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Annotatef(ErrFormat, "header len=%d", len(b))
	}
	return Header{
		Seq:   binary.BigEndian.Uint32(b[0:]),
		Ack:   binary.BigEndian.Uint32(b[4:]),
		Flags: Flag(binary.BigEndian.Uint32(b[8:])) & FlagMask,
	}, nil
}

func (h Header) Marshal() []byte { return EncodeHeader(h.Seq, h.Ack, h.Flags) }

func (h Header) String() string {
	return fmt.Sprintf("seq=%d ack=%d [%s]", h.Seq, h.Ack, h.Flags.String())
}

func appendHeader(b []byte, seq, ack uint32, flags Flag) []byte {
	var buf [HeaderSize]byte
	binary.BigEndian.PutUint32(buf[0:], seq)
	binary.BigEndian.PutUint32(buf[4:], ack)
	binary.BigEndian.PutUint32(buf[8:], uint32(flags&FlagMask))
	return append(b, buf[:]...)
}

// Datagram is one of two wire shapes: Framed (requests, handshake) or Bare (responses).
type Datagram interface {
	Bytes() []byte
	String() string
	datagram()
}

type Framed struct {
	Header
	Body []byte
}

// ParseFramed splits b into header and body. Body shares memory with b.
func ParseFramed(b []byte) (Framed, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Framed{}, err
	}
	f := Framed{Header: h}
	if len(b) > HeaderSize {
		f.Body = b[HeaderSize:]
	}
	return f, nil
}

func (f Framed) Bytes() []byte {
	b := make([]byte, 0, HeaderSize+len(f.Body))
	b = appendHeader(b, f.Header.Seq, f.Header.Ack, f.Header.Flags)
	return append(b, f.Body...)
}

func (f Framed) HasBody() bool { return len(f.Body) != 0 }

func (f Framed) String() string {
	if len(f.Body) == 0 {
		return f.Header.String()
	}
	return fmt.Sprintf("%s body=%s", f.Header.String(), string(f.Body))
}

func (Framed) datagram() {}

type Bare struct {
	Body []byte
}

func (b Bare) Bytes() []byte  { return b.Body }
func (b Bare) String() string { return string(b.Body) }
func (Bare) datagram()        {}
