package realtime

import (
	"log/slog"
	"sync"
)

// Group is the set of live connections of one profile.
//
// Join and Leave are safe under concurrent Broadcast. Broadcast never blocks:
// a member whose queue is full misses the envelope.
type Group struct {
	log       *slog.Logger
	ProfileID string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewGroup constructs an empty group.
func NewGroup(log *slog.Logger, profileID string) *Group {
	return &Group{
		log:       log,
		ProfileID: profileID,
		members:   make(map[string]*Client),
	}
}

// Join adds a client.
func (g *Group) Join(client *Client) {
	if g == nil || client == nil || client.SessionID == "" {
		return
	}

	g.mu.Lock()
	g.members[client.SessionID] = client
	g.mu.Unlock()

	g.log.Debug("relay.member.join", "profile_id", g.ProfileID, "session_id", client.SessionID)
}

// Leave removes a client, signals its shutdown and returns the remaining size.
func (g *Group) Leave(sessionID string) int {
	if g == nil || sessionID == "" {
		return 0
	}

	g.mu.Lock()
	cl := g.members[sessionID]
	delete(g.members, sessionID)
	n := len(g.members)
	g.mu.Unlock()

	// Close after removal so no broadcaster holds a closing client.
	if cl != nil {
		cl.Close()
	}

	g.log.Debug("relay.member.leave", "profile_id", g.ProfileID, "session_id", sessionID)
	return n
}

// Len returns the number of members.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// Broadcast fans env out to every member except the one with sessionID
// except. It reports how many members got the envelope and how many were
// dropped for backpressure.
func (g *Group) Broadcast(env Envelope, except string) (sent, dropped int) {
	if g == nil {
		return 0, 0
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, m := range g.members {
		if m == nil || id == except {
			continue
		}

		select {
		case <-m.Done():
			continue
		default:
		}

		select {
		case m.Send <- env:
			sent++
		default:
			dropped++
		}
	}
	return sent, dropped
}
