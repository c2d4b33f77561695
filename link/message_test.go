package link

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	t.Parallel()

	type Case struct {
		name        string
		input       string
		expectErr   error
		check       func(testing.TB, Message)
		expectValid bool
	}
	cases := []Case{
		{"motion-defaults", `{"type": "MOTION", "message": "MOTION"}`, nil, func(t testing.TB, m Message) {
			assert.Equal(t, TypeMotion, m.Type)
			assert.Equal(t, "MOTION", m.Message)
			half, n := m.Blink()
			assert.Equal(t, 500*time.Millisecond, half)
			assert.Equal(t, 5, n)
		}, true},
		{"motion-explicit", `{"type":"MOTION","num_blinks":3,"duration":0.25}`, nil, func(t testing.TB, m Message) {
			half, n := m.Blink()
			assert.Equal(t, 250*time.Millisecond, half)
			assert.Equal(t, 3, n)
		}, true},
		{"data-null-duration", `{"type":"DATA","num_blinks":2,"duration":null}`, nil, func(t testing.TB, m Message) {
			assert.Nil(t, m.Duration)
			require.NotNil(t, m.NumBlinks)
			assert.Equal(t, 2, *m.NumBlinks)
		}, true},
		{"wrong-type-num-blinks", `{"type":"MOTION","num_blinks":"many"}`, nil, func(t testing.TB, m Message) {
			assert.Nil(t, m.NumBlinks)
		}, false},
		{"fractional-num-blinks", `{"type":"MOTION","num_blinks":2.5}`, nil, nil, false},
		{"negative-duration", `{"type":"DATA","num_blinks":2,"duration":-1}`, nil, nil, false},
		{"message-not-string", `{"type":"MOTION","message":["MOTION"]}`, nil, func(t testing.TB, m Message) {
			assert.Equal(t, "", m.Message)
		}, false},
		{"type-not-string", `{"type":5}`, nil, func(t testing.TB, m Message) {
			assert.Equal(t, "", m.Type)
		}, false},
		{"empty-object", `{}`, nil, func(t testing.TB, m Message) {
			assert.Equal(t, "", m.Type)
		}, true},
		{"malformed", `{"type": "MOTION"`, ErrParse, nil, false},
		{"array", `[1,2]`, ErrParse, nil, false},
		{"null", `null`, ErrParse, nil, false},
		{"not-utf8", "{\"type\": \"\xff\xfe\"}", ErrEncoding, nil, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			m, err := ParseMessage([]byte(c.input))
			if c.expectErr != nil {
				require.Error(t, err)
				assert.Equal(t, c.expectErr, errors.Cause(err))
				assert.True(t, IsBadRequest(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expectValid, m.Invalid() == "", "invalid=%s", m.Invalid())
			if c.check != nil {
				c.check(t, m)
			}
		})
	}
}

func TestMessageMarshal(t *testing.T) {
	t.Parallel()

	b, err := NewMotion().Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MOTION","message":"MOTION"}`, string(b))

	b, err = NewData(0.5, 4).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"DATA","duration":0.5,"num_blinks":4}`, string(b))

	b, err = NewHello().Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"HELLO"}`, string(b))

	// zero values must survive, pointers keep them from omitempty
	b, err = NewData(0, 0).Marshal()
	require.NoError(t, err)
	m, err := ParseMessage(b)
	require.NoError(t, err)
	require.NotNil(t, m.Duration)
	require.NotNil(t, m.NumBlinks)
}

func TestResponseMarshal(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		`{"status": "400 Bad Request", "message": "Invalid JSON data"}`,
		string(ResponseBadRequest(TextInvalidJSON).Marshal()))
	assert.Equal(t,
		`{"status": "200 OK", "message": "Motion Detected"}`,
		string(ResponseOK(TextMotionDetected).Marshal()))

	r, err := ParseResponse(ResponseOK(TextBlinked).Marshal())
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, TextBlinked, r.Message)

	_, err = ParseResponse([]byte("nope"))
	assert.True(t, IsBadRequest(err))
}
