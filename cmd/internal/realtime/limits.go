package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit). Clients only send tiny control events.
	maxFrameBytes = 4 << 10 // 4 KiB

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Inbound frames allowed per connection per window.
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second
)

// frameLimiter is a sliding-log limiter over a fixed ring of timestamps.
// It belongs to one read loop and is not safe for concurrent use.
type frameLimiter struct {
	stamps []time.Time
	next   int
	n      int
	window time.Duration
}

func newFrameLimiter(limit int, window time.Duration) *frameLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &frameLimiter{stamps: make([]time.Time, limit), window: window}
}

// allow records a frame at now unless the ring is full of frames younger than the window.
func (l *frameLimiter) allow(now time.Time) bool {
	if l.n == len(l.stamps) {
		// next is the oldest entry once the ring is full.
		if now.Sub(l.stamps[l.next]) < l.window {
			return false
		}
	} else {
		l.n++
	}
	l.stamps[l.next] = now
	l.next = (l.next + 1) % len(l.stamps)
	return true
}
