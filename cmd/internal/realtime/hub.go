package realtime

import (
	"log/slog"
	"sync"
)

// Hub maps profile ids to their live groups. Empty groups are removed.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	groups map[string]*Group
}

// NewHub constructs a Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:    log,
		groups: make(map[string]*Group),
	}
}

// Join adds client to the group of profileID, creating it if needed.
func (h *Hub) Join(profileID string, client *Client) *Group {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[profileID]
	if !ok {
		g = NewGroup(h.log, profileID)
		h.groups[profileID] = g
	}
	g.Join(client)
	return g
}

// Leave removes sessionID from g and drops g from the hub once it is empty.
func (h *Hub) Leave(g *Group, sessionID string) {
	if g == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if g.Leave(sessionID) == 0 && h.groups[g.ProfileID] == g {
		delete(h.groups, g.ProfileID)
	}
}

// Group returns the live group of profileID, or nil.
func (h *Hub) Group(profileID string) *Group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.groups[profileID]
}

// Profiles returns the number of profiles with at least one connection.
func (h *Hub) Profiles() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}
