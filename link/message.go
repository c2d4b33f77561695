package link

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/juju/errors"
	"github.com/temoto/lightlink/helpers"
)

const (
	TypeMotion = "MOTION"
	TypeData   = "DATA"
	TypeHello  = "HELLO"
)

const (
	DefaultNumBlinks = 5
	DefaultDuration  = 0.5 // seconds
)

const (
	StatusOK            = "200 OK"
	StatusBadRequest    = "400 Bad Request"
	StatusInternalError = "500 Internal Server Error"

	TextMotionDetected  = "Motion Detected"
	TextBlinked         = "LED blinked."
	TextHello           = "Hello"
	TextInvalidJSON     = "Invalid JSON data"
	TextInvalidType     = "Invalid message type."
	TextActuatorFailure = "Actuator failure"
)

// Message is application payload of ACK data segment.
// Pointers distinguish absent/null fields from zero values.
type Message struct {
	Type      string   `json:"type,omitempty"`
	Message   string   `json:"message,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	NumBlinks *int     `json:"num_blinks,omitempty"`

	// set by ParseMessage when a known field has wrong JSON type or range
	invalid string
}

func NewMotion() Message { return Message{Type: TypeMotion, Message: TypeMotion} }
func NewHello() Message  { return Message{Type: TypeHello} }
func NewData(duration float64, numBlinks int) Message {
	return Message{Type: TypeData, Duration: &duration, NumBlinks: &numBlinks}
}

func (m Message) Marshal() ([]byte, error) {
	b, err := json.Marshal(m)
	return b, errors.Annotate(err, "message marshal")
}

// Blink returns actuator parameters with MOTION defaults for absent fields.
func (m Message) Blink() (halfPeriod time.Duration, count int) {
	d, n := DefaultDuration, DefaultNumBlinks
	if m.Duration != nil {
		d = *m.Duration
	}
	if m.NumBlinks != nil {
		n = *m.NumBlinks
	}
	return helpers.FloatSeconds(d), n
}

// Invalid returns reason when some field could not be used, empty string otherwise.
func (m Message) Invalid() string { return m.invalid }

func (m Message) String() string {
	s := "type=" + m.Type
	if m.Duration != nil {
		s += fmt.Sprintf(" duration=%v", *m.Duration)
	}
	if m.NumBlinks != nil {
		s += fmt.Sprintf(" num_blinks=%d", *m.NumBlinks)
	}
	return s
}

// ParseMessage decodes JSON object body.
// ErrEncoding for invalid UTF-8, ErrParse for anything that is not a JSON object.
// Fields with unexpected JSON types do not fail parsing, see Message.Invalid().
func ParseMessage(b []byte) (Message, error) {
	var m Message
	if !utf8.Valid(b) {
		return m, errors.Annotatef(ErrEncoding, "body len=%d", len(b))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return m, errors.Annotatef(ErrParse, "json: %v", err)
	}
	if fields == nil { // literal null
		return m, errors.Annotate(ErrParse, "json: null")
	}

	if raw, ok := fields["type"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &m.Type); err != nil {
			m.invalid = "type is not string"
		}
	}
	if raw, ok := fields["message"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &m.Message); err != nil {
			m.invalid = "message is not string"
		}
	}
	if raw, ok := fields["duration"]; ok && !isNull(raw) {
		var d float64
		if err := json.Unmarshal(raw, &d); err != nil || d < 0 || math.IsInf(d, 0) {
			m.invalid = "duration must be non-negative number"
		} else {
			m.Duration = &d
		}
	}
	if raw, ok := fields["num_blinks"]; ok && !isNull(raw) {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			m.invalid = "num_blinks must be non-negative integer"
		} else {
			n := int(f)
			m.NumBlinks = &n
		}
	}
	return m, nil
}

func isNull(raw json.RawMessage) bool { return string(raw) == "null" }

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (r Response) OK() bool { return r.Status == StatusOK }

// Marshal produces fixed text layout, peers compare responses as strings:
// `{"status": "...", "message": "..."}`
func (r Response) Marshal() []byte {
	status, _ := json.Marshal(r.Status)
	message, _ := json.Marshal(r.Message)
	b := make([]byte, 0, 32+len(status)+len(message))
	b = append(b, `{"status": `...)
	b = append(b, status...)
	b = append(b, `, "message": `...)
	b = append(b, message...)
	return append(b, '}')
}

func (r Response) Datagram() Bare { return Bare{Body: r.Marshal()} }

func ParseResponse(b []byte) (Response, error) {
	var r Response
	if !utf8.Valid(b) {
		return r, errors.Annotate(ErrEncoding, "response")
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, errors.Annotatef(ErrParse, "response json: %v", err)
	}
	return r, nil
}

func ResponseOK(text string) Response { return Response{Status: StatusOK, Message: text} }
func ResponseBadRequest(text string) Response {
	return Response{Status: StatusBadRequest, Message: text}
}
