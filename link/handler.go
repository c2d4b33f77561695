package link

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/hardware/pin"
	"github.com/temoto/lightlink/journal"
	"github.com/temoto/lightlink/log2"
	"github.com/temoto/lightlink/tele"
)

// Handler is server side of the protocol. It keeps no per-session state:
// every datagram is processed only by its own header and body.
// Stat is required, other fields are optional.
type Handler struct {
	Actuator  pin.Actuator
	Journal   *journal.Journal
	Log       *log2.Log
	Publisher tele.Publisher
	Stat      *Stat
}

// Handle returns reply to send back (nil for none) and error describing rejected datagram.
// Both may be non-nil: bad requests are answered with 400 response.
func (h *Handler) Handle(ctx context.Context, from net.Addr, b []byte) (Datagram, error) {
	f, err := ParseFramed(b)
	if err != nil {
		h.Stat.ErrFormat.Add(1)
		return nil, errors.Annotatef(err, "from=%s len=%d", from, len(b))
	}
	h.Log.Debugf("recv from=%s %s", from, f)

	// FIN bit wins over any other flag
	if f.Flags&FlagFIN != 0 {
		h.journalf("RECV: Sequence Num: %d ACK Num: %d [%s]", f.Seq, f.Ack, f.Flags)
		h.journalf("Connection closed by %s", from)
		h.Stat.Fin.Add(1)
		return nil, nil
	}

	switch f.Flags {
	case FlagSYN:
		h.journalf("RECV: Sequence Num: %d ACK Num: %d [%s]", f.Seq, f.Ack, f.Flags)
		reply := Framed{Header: Header{Seq: f.Seq + 1, Ack: f.Seq + 1, Flags: FlagSynAck}}
		h.journalf("SEND: Sequence Num: %d ACK Num: %d [%s]", reply.Seq, reply.Ack, reply.Flags)
		h.Stat.Handshake.Add(1)
		return reply, nil

	case FlagACK:
		h.journalf("RECV: Sequence Num: %d ACK Num: %d [%s]", f.Seq, f.Ack, f.Flags)
		if !f.HasBody() {
			h.Stat.Complete.Add(1)
			h.journalf("Connection established with %s", from)
			return nil, nil
		}
		h.Stat.Message.Add(1)
		r, err := h.dispatch(ctx, from, f.Body)
		return r.Datagram(), err
	}

	h.Stat.ErrFormat.Add(1)
	return nil, errors.Annotatef(ErrFormat, "from=%s unexpected flags=%s", from, f.Flags)
}

func (h *Handler) dispatch(ctx context.Context, from net.Addr, body []byte) (Response, error) {
	h.journalf("Received message: %s", printableBody(body))
	m, err := ParseMessage(body)
	if err != nil {
		h.Stat.ErrBadRequest.Add(1)
		return ResponseBadRequest(TextInvalidJSON), errors.Annotatef(err, "from=%s", from)
	}
	if reason := m.Invalid(); reason != "" {
		return h.badType(from, m, reason)
	}

	switch m.Type {
	case TypeMotion:
		h.journalf("Motion detected at %s", journal.Stamp(time.Now()))
		if r, err := h.drive(ctx, from, m); err != nil {
			return r, err
		}
		return ResponseOK(TextMotionDetected), nil

	case TypeData:
		if m.Duration == nil || m.NumBlinks == nil {
			return h.badType(from, m, "DATA requires duration and num_blinks")
		}
		// DATA is report only, LED is not driven
		half, count := m.Blink()
		h.publish(ctx, from, m.Type, count, half)
		h.journalf("LED blinked %d times for %v seconds.", *m.NumBlinks, *m.Duration)
		return ResponseOK(TextBlinked), nil

	case TypeHello:
		return ResponseOK(TextHello), nil
	}
	return h.badType(from, m, "unknown type")
}

func (h *Handler) badType(from net.Addr, m Message, reason string) (Response, error) {
	h.Stat.ErrBadRequest.Add(1)
	return ResponseBadRequest(TextInvalidType), errors.Annotatef(ErrMessageType, "from=%s %s (%s)", from, reason, m.String())
}

func (h *Handler) drive(ctx context.Context, from net.Addr, m Message) (Response, error) {
	half, count := m.Blink()
	if h.Actuator != nil {
		if err := h.Actuator.Drive(ctx, half, count); err != nil {
			h.Stat.ErrActuator.Add(1)
			err = errors.Annotatef(ErrActuator, "from=%s %s: %v", from, m.String(), err)
			return Response{Status: StatusInternalError, Message: TextActuatorFailure}, err
		}
	} else {
		h.Log.Debugf("no actuator, skip drive half=%v count=%d", half, count)
	}
	h.publish(ctx, from, m.Type, count, half)
	return ResponseOK(""), nil
}

func (h *Handler) publish(ctx context.Context, from net.Addr, typ string, count int, half time.Duration) {
	if h.Publisher == nil {
		return
	}
	e := tele.Event{
		Type:      typ,
		Addr:      from.String(),
		NumBlinks: count,
		Duration:  half.Seconds(),
		Time:      time.Now(),
	}
	if err := h.Publisher.Publish(ctx, e); err != nil {
		h.Log.Errorf("tele publish: %v", err)
	}
}

// journalf writes protocol journal line, failure is logged and counted but never stops handling.
func (h *Handler) journalf(format string, args ...interface{}) {
	if err := h.Journal.Printf(format, args...); err != nil {
		h.Stat.ErrJournal.Add(1)
		h.Log.Error(errors.Annotate(err, "journal"))
	}
}

// one journal line per message, invalid text is escaped
func printableBody(b []byte) string {
	if !utf8.Valid(b) {
		return fmt.Sprintf("%q", b)
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(b)))
	if json.Compact(buf, b) == nil {
		return buf.String()
	}
	return fmt.Sprintf("%q", b)
}
