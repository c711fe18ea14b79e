package lcd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	writes []byte
}

func (r *recordingConn) WriteByte(b byte) error {
	r.writes = append(r.writes, b)
	return nil
}

func newTestDisplay(t *testing.T) (*Display, *recordingConn) {
	t.Helper()
	conn := &recordingConn{}
	d, err := New(conn, 16, 2)
	require.NoError(t, err)
	d.sleep = func(time.Duration) {}
	conn.writes = nil
	return d, conn
}

// decode reconstructs the bytes sent to the controller from the recorded
// expander traffic: each byte arrives as two EN-pulsed nibbles.
func decode(writes []byte) (bytes []byte, modes []byte) {
	var nibbles []byte
	var nibbleModes []byte
	for _, w := range writes {
		if w&pinEnable != 0 {
			nibbles = append(nibbles, w&0xf0)
			nibbleModes = append(nibbleModes, w&pinRS)
		}
	}
	for i := 0; i+1 < len(nibbles); i += 2 {
		bytes = append(bytes, nibbles[i]|nibbles[i+1]>>4)
		modes = append(modes, nibbleModes[i])
	}
	return bytes, modes
}

func TestInitSequence(t *testing.T) {
	conn := &recordingConn{}
	_, err := New(conn, 16, 2)
	require.NoError(t, err)

	bytes, modes := decode(conn.writes)
	want := []byte{
		0x33, 0x32,
		cmdDisplayControl | flagDisplayOn,
		cmdFunctionSet | flag2Line,
		cmdEntryModeSet | flagEntryLeft,
		cmdClearDisplay,
	}
	assert.Equal(t, want, bytes)
	for _, m := range modes {
		assert.EqualValues(t, 0, m, "init writes are all instructions")
	}
}

func TestClear(t *testing.T) {
	d, conn := newTestDisplay(t)
	require.NoError(t, d.Clear())

	bytes, _ := decode(conn.writes)
	assert.Equal(t, []byte{cmdClearDisplay}, bytes)
}

func TestMessage(t *testing.T) {
	d, conn := newTestDisplay(t)
	require.NoError(t, d.Message("Hi"))

	bytes, modes := decode(conn.writes)
	require.Equal(t, []byte{cmdSetDDRAMAddr, 'H', 'i'}, bytes)
	assert.EqualValues(t, 0, modes[0])
	assert.EqualValues(t, pinRS, modes[1])
	assert.EqualValues(t, pinRS, modes[2])
}

func TestMessageSecondRow(t *testing.T) {
	d, conn := newTestDisplay(t)
	require.NoError(t, d.Message("a\nb"))

	bytes, _ := decode(conn.writes)
	assert.Equal(t, []byte{cmdSetDDRAMAddr, 'a', cmdSetDDRAMAddr | rowOffsets[1], 'b'}, bytes)
}

func TestMessageTruncatesOverflow(t *testing.T) {
	d, conn := newTestDisplay(t)
	require.NoError(t, d.Message("0123456789abcdefOVERFLOW"))

	bytes, _ := decode(conn.writes)
	// address set + exactly 16 characters
	assert.Len(t, bytes, 17)
}

func TestBacklightBit(t *testing.T) {
	d, conn := newTestDisplay(t)

	require.NoError(t, d.Message("x"))
	for _, w := range conn.writes {
		assert.NotZero(t, w&pinBacklight)
	}

	require.NoError(t, d.SetBacklight(false))
	conn.writes = nil
	require.NoError(t, d.Message("x"))
	for _, w := range conn.writes {
		assert.Zero(t, w&pinBacklight)
	}
}
