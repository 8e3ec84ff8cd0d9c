package realtime

import (
	"log/slog"
	"sync"
	"time"

	"securebank/cmd/internal/auth/session"
)

// Hub tracks live connections per account and fans session lifecycle events
// out to them. It implements session.Notifier.
type Hub struct {
	log *slog.Logger
	now func() time.Time

	mu       sync.RWMutex
	accounts map[string]map[string]*Client
}

var _ session.Notifier = (*Hub)(nil)

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		accounts: make(map[string]map[string]*Client),
	}
}

// Join registers a client under its account.
func (h *Hub) Join(c *Client) {
	if h == nil || c == nil || c.AccountID == "" || c.ConnID == "" {
		return
	}

	h.mu.Lock()
	conns := h.accounts[c.AccountID]
	if conns == nil {
		conns = make(map[string]*Client)
		h.accounts[c.AccountID] = conns
	}
	conns[c.ConnID] = c
	h.mu.Unlock()

	h.log.Debug("ws.client.join", "account_id", c.AccountID, "conn_id", c.ConnID)
}

// Leave removes a client and then signals it to stop.
func (h *Hub) Leave(c *Client) {
	if h == nil || c == nil {
		return
	}

	h.mu.Lock()
	if conns := h.accounts[c.AccountID]; conns != nil {
		delete(conns, c.ConnID)
		if len(conns) == 0 {
			delete(h.accounts, c.AccountID)
		}
	}
	h.mu.Unlock()

	// Close after removal so a concurrent Notify never sends to a torn-down client.
	c.Close()

	h.log.Debug("ws.client.leave", "account_id", c.AccountID, "conn_id", c.ConnID)
}

// Notify pushes kind to every connection of accountID. It never blocks;
// full queues drop the event.
func (h *Hub) Notify(accountID string, kind session.EventKind) {
	if h == nil || accountID == "" {
		return
	}
	ev := newEvent(string(kind), h.now())

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.accounts[accountID] {
		if !c.offer(ev) {
			h.log.Info("ws.event.drop", "account_id", accountID, "conn_id", c.ConnID, "type", ev.Type)
		}
	}
}

// Connections returns the number of live connections for accountID.
func (h *Hub) Connections(accountID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.accounts[accountID])
}
