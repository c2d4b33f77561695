package pin

import (
	"io"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/inputevent-go"
	"github.com/temoto/lightlink/log2"
)

const testKey = 28 // KEY_ENTER

func writeEvent(t testing.TB, w io.Writer, code uint16, state inputevent.KeyEventState) {
	ev := inputevent.InputEvent{Type: evKey, Code: code, Value: int32(state)}
	b := (*[inputevent.EventSizeof]byte)(unsafe.Pointer(&ev))[:]
	_, err := w.Write(b)
	require.NoError(t, err)
}

func TestInputEventSource(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	src := newInputEventSource(pr, testKey, log2.NewTest(t, log2.LDebug))

	active, err := src.Active()
	require.NoError(t, err)
	assert.False(t, active)

	// other key is ignored, matching release is read only after it
	writeEvent(t, pw, 30, inputevent.KeyStateDown)
	writeEvent(t, pw, testKey, inputevent.KeyStateUp)
	active, err = src.Active()
	require.NoError(t, err)
	assert.False(t, active)

	writeEvent(t, pw, testKey, inputevent.KeyStateDown)
	assert.Eventually(t, func() bool {
		active, err := src.Active()
		return err == nil && active
	}, time.Second, time.Millisecond)

	writeEvent(t, pw, testKey, inputevent.KeyStateUp)
	assert.Eventually(t, func() bool {
		active, err := src.Active()
		return err == nil && !active
	}, time.Second, time.Millisecond)

	require.NoError(t, src.Close())
}

func TestInputEventSourceLatch(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	src := newInputEventSource(pr, testKey, log2.NewTest(t, log2.LDebug))
	writeEvent(t, pw, testKey, inputevent.KeyStateDown)
	writeEvent(t, pw, testKey, inputevent.KeyStateUp)
	// marker event guarantees both above were handled
	writeEvent(t, pw, 1, inputevent.KeyStateUp)

	active, err := src.Active()
	require.NoError(t, err)
	assert.True(t, active, "short press between polls must be reported")
	active, err = src.Active()
	require.NoError(t, err)
	assert.False(t, active, "latch is reported once")

	require.NoError(t, src.Close())
}

func TestInputEventSourceEOF(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	src := newInputEventSource(pr, testKey, nil)
	require.NoError(t, pw.Close())
	<-src.done
	active, err := src.Active()
	assert.NoError(t, err)
	assert.False(t, active)
	require.NoError(t, src.Close())
}
