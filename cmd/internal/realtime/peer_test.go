package realtime

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"unileap/cmd/internal/websession"
)

type textElement struct {
	mu      sync.Mutex
	text    string
	visible bool
}

func (e *textElement) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
}

func (e *textElement) SetVisible(visible bool) {
	e.mu.Lock()
	e.visible = visible
	e.mu.Unlock()
}

func (e *textElement) get() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, e.visible
}

func newNavigation(t *testing.T) (websession.Navigation, map[websession.Slot]*textElement) {
	t.Helper()
	els := make(map[websession.Slot]*textElement)
	b := make(websession.Bindings)
	for _, s := range websession.RequiredSlots {
		el := &textElement{}
		els[s] = el
		b[s] = el
	}
	nav, err := websession.NewNavigation(b)
	if err != nil {
		t.Fatalf("NewNavigation: %v", err)
	}
	return nav, els
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Two processes share a session file and learn about each other's writes
// through the relay.
func TestPeer_ManagersStayInSync(t *testing.T) {
	ts, _ := startRelay(t, DefaultConfig())
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	newSide := func(origin string) (*websession.Manager, map[websession.Slot]*textElement) {
		fs, err := websession.NewFileStore(path)
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		peer := mustDialPeer(t, ts, "shared-profile", origin)
		nav, els := newNavigation(t)
		store := websession.Announcing(fs, peer, origin, testLogger())
		m, err := websession.NewManager(store, nav, websession.NavigatorFunc(func(string) {}),
			websession.WithLogger(testLogger()), websession.WithOrigin(origin))
		if err != nil {
			t.Fatalf("NewManager: %v", err)
		}
		stop, err := m.Watch(ctx, peer)
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		t.Cleanup(stop)
		m.RenderNavigation(ctx)
		return m, els
	}

	a, _ := newSide("cli-a")
	_, elsB := newSide("cli-b")

	if _, visible := elsB[websession.SlotAnonymous].get(); !visible {
		t.Fatalf("expected anonymous view before login")
	}

	a.SaveSession(ctx, "tok-1", websession.User{Name: "Ada Lovelace", Email: "ada@example.com"})
	waitFor(t, "login to reach the other side", func() bool {
		txt, _ := elsB[websession.SlotInitials].get()
		_, visible := elsB[websession.SlotAuthenticated].get()
		return txt == "AL" && visible
	})

	a.ClearSession(ctx)
	waitFor(t, "logout to reach the other side", func() bool {
		_, visible := elsB[websession.SlotAnonymous].get()
		return visible
	})
}

func TestPeer_SubscribeAfterClose(t *testing.T) {
	ts, _ := startRelay(t, DefaultConfig())
	p := mustDialPeer(t, ts, "p", "tab")
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := p.Subscribe(context.Background(), "tab", func(websession.Change) {}); err != ErrPeerClosed {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}
