package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeen(t *testing.T) {
	d := New(time.Minute, 100)
	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))
}

func TestSeenEmptyID(t *testing.T) {
	d := New(time.Minute, 100)
	// empty ids carry no identity and are never deduplicated
	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))
	assert.Equal(t, 0, d.Len())
}

func TestSeenPayload(t *testing.T) {
	d := New(time.Minute, 100)
	msg := []byte(`{"command":"pump_on","duration":"10"}`)
	assert.False(t, d.SeenPayload(msg))
	assert.True(t, d.SeenPayload(msg))
	assert.False(t, d.SeenPayload([]byte(`{"command":"lamp_on","duration":"10"}`)))
}

func TestTTLExpiry(t *testing.T) {
	d := New(10*time.Millisecond, 100)
	assert.False(t, d.Seen("a"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.Seen("a"))
}

func TestEviction(t *testing.T) {
	d := New(time.Hour, 10)
	for i := 0; i < 50; i++ {
		d.Seen(fmt.Sprintf("id-%d", i))
	}
	assert.LessOrEqual(t, d.Len(), 11)
}
