package realtime

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"securebank/cmd/internal/auth/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_NotifyReachesOnlyAccountConnections(t *testing.T) {
	t.Parallel()

	h := NewHub(quietLogger())
	a1 := NewClient("acct-a", "c1", 4)
	a2 := NewClient("acct-a", "c2", 4)
	b1 := NewClient("acct-b", "c3", 4)
	for _, c := range []*Client{a1, a2, b1} {
		h.Join(c)
	}
	assert.Equal(t, 2, h.Connections("acct-a"))

	h.Notify("acct-a", session.EventSuperseded)

	for _, c := range []*Client{a1, a2} {
		require.Len(t, c.Send, 1)
		ev := <-c.Send
		assert.Equal(t, TypeSuperseded, ev.Type)
	}
	assert.Len(t, b1.Send, 0)
}

func TestHub_LeaveClosesClientAndStopsDelivery(t *testing.T) {
	t.Parallel()

	h := NewHub(quietLogger())
	c := NewClient("acct-a", "c1", 4)
	h.Join(c)
	h.Leave(c)

	select {
	case <-c.Done():
	default:
		t.Fatalf("expected client to be closed")
	}
	assert.Equal(t, 0, h.Connections("acct-a"))

	h.Notify("acct-a", session.EventRevoked)
	assert.Len(t, c.Send, 0)

	// Leave is idempotent.
	h.Leave(c)
}

func TestHub_NotifyNeverBlocks(t *testing.T) {
	t.Parallel()

	h := NewHub(quietLogger())
	c := NewClient("acct-a", "c1", 1)
	h.Join(c)

	for i := 0; i < 10; i++ {
		h.Notify("acct-a", session.EventSuperseded)
	}
	assert.Len(t, c.Send, 1)
}

func TestHub_ConcurrentJoinLeaveNotify(t *testing.T) {
	t.Parallel()

	h := NewHub(quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		c := NewClient("acct-a", uuid.NewString(), 2)
		go func() {
			defer wg.Done()
			h.Join(c)
			h.Leave(c)
		}()
		go func() {
			defer wg.Done()
			h.Notify("acct-a", session.EventRevoked)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Connections("acct-a"))
}

func TestFrameLimiter_Window(t *testing.T) {
	t.Parallel()

	rl := newFrameLimiter(2, time.Second)
	now := time.Unix(100, 0)
	assert.True(t, rl.allow(now))
	assert.True(t, rl.allow(now.Add(500*time.Millisecond)))
	assert.False(t, rl.allow(now.Add(900*time.Millisecond)))

	// The first frame ages out exactly one window later; the second still counts.
	assert.True(t, rl.allow(now.Add(time.Second)))
	assert.False(t, rl.allow(now.Add(1200*time.Millisecond)))
	assert.True(t, rl.allow(now.Add(1500*time.Millisecond)))
}

func TestFrameLimiter_Defaults(t *testing.T) {
	t.Parallel()

	rl := newFrameLimiter(0, 0)
	now := time.Unix(100, 0)
	for i := 0; i < rateLimitEvents; i++ {
		require.True(t, rl.allow(now), "frame %d", i)
	}
	assert.False(t, rl.allow(now))
	assert.True(t, rl.allow(now.Add(rateLimitWindow)))
}

func TestDeriveOriginPatterns(t *testing.T) {
	t.Parallel()

	got := deriveOriginPatterns([]string{"http://localhost:3000", "https://bank.example.com", "http://localhost"})
	assert.Equal(t, []string{"bank.example.com", "localhost"}, got)
	assert.Equal(t, []string{"*"}, deriveOriginPatterns([]string{"*"}))
}
