package websession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type fakeElement struct {
	mu      sync.Mutex
	text    string
	visible bool
	writes  int
}

func (e *fakeElement) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
	e.writes++
}

func (e *fakeElement) SetVisible(visible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = visible
	e.writes++
}

func (e *fakeElement) state() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, e.visible
}

type recordingNavigator struct {
	mu        sync.Mutex
	locations []string
}

func (n *recordingNavigator) Navigate(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.locations = append(n.locations, location)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.locations...)
}

func fullBindings() (Bindings, map[Slot]*fakeElement) {
	els := make(map[Slot]*fakeElement)
	b := make(Bindings)
	for _, s := range append(append([]Slot(nil), RequiredSlots...), SlotMenu) {
		el := &fakeElement{}
		els[s] = el
		b[s] = el
	}
	return b, els
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, store Storage) (*Manager, map[Slot]*fakeElement, *recordingNavigator) {
	t.Helper()
	b, els := fullBindings()
	nav, err := NewNavigation(b)
	if err != nil {
		t.Fatalf("NewNavigation: %v", err)
	}
	router := &recordingNavigator{}
	m, err := NewManager(store, nav, router, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, els, router
}

// failingStore fails every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}
func (failingStore) Set(context.Context, map[string]string) error { return errStoreDown }
func (failingStore) Remove(context.Context, ...string) error      { return errStoreDown }
