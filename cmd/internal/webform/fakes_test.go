package webform

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"unileap/cmd/internal/accountclient"
	"unileap/cmd/internal/websession"
)

type recordingView struct {
	mu          sync.Mutex
	fieldErrors map[string]string
	banners     map[BannerKind]string
	submitting  bool
	busyCalls   []bool
	strength    Strength
}

func newRecordingView() *recordingView {
	return &recordingView{
		fieldErrors: make(map[string]string),
		banners:     make(map[BannerKind]string),
	}
}

func (v *recordingView) ShowFieldError(field, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors[field] = msg
}

func (v *recordingView) HideFieldError(field string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.fieldErrors, field)
}

func (v *recordingView) ClearFieldErrors() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors = make(map[string]string)
}

func (v *recordingView) ShowBanner(kind BannerKind, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.banners[kind] = msg
}

func (v *recordingView) HideBanner(kind BannerKind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.banners, kind)
}

func (v *recordingView) SetSubmitting(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitting = busy
	v.busyCalls = append(v.busyCalls, busy)
}

func (v *recordingView) SetStrength(s Strength) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.strength = s
}

func (v *recordingView) fields() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, 0, len(v.fieldErrors))
	for f := range v.fieldErrors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// manualScheduler records timers; tests fire them explicitly.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) pending(d time.Duration) []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if t.d == d && !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (s *manualScheduler) fire(d time.Duration) int {
	ts := s.pending(d)
	for _, t := range ts {
		t.fired = true
		t.f()
	}
	return len(ts)
}

type stubAccounts struct {
	mu      sync.Mutex
	calls   int
	resp    accountclient.AuthResponse
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (a *stubAccounts) Login(ctx context.Context, email, password string) (accountclient.AuthResponse, error) {
	return a.respond()
}

func (a *stubAccounts) Signup(ctx context.Context, name, email, password string) (accountclient.AuthResponse, error) {
	return a.respond()
}

func (a *stubAccounts) respond() (accountclient.AuthResponse, error) {
	a.mu.Lock()
	a.calls++
	block, entered := a.block, a.entered
	a.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	return a.resp, a.err
}

func (a *stubAccounts) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type nopElement struct{}

func (nopElement) SetText(string)  {}
func (nopElement) SetVisible(bool) {}

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

type harness struct {
	view     *recordingView
	accounts *stubAccounts
	store    *websession.MemoryStore
	sched    *manualScheduler
	nav      *recordingNavigator
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	b := make(websession.Bindings)
	for _, s := range websession.RequiredSlots {
		b[s] = nopElement{}
	}
	navigation, err := websession.NewNavigation(b)
	if err != nil {
		t.Fatalf("NewNavigation: %v", err)
	}

	h := &harness{
		view:     newRecordingView(),
		accounts: &stubAccounts{},
		store:    websession.NewMemoryStore(log),
		sched:    &manualScheduler{},
		nav:      &recordingNavigator{},
	}
	mgr, err := websession.NewManager(h.store.Tab("tab"), navigation, h.nav, websession.WithLogger(log))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.deps = Deps{
		View:      h.view,
		Accounts:  h.accounts,
		Sessions:  mgr,
		Navigator: h.nav,
		Scheduler: h.sched,
		Log:       log,
	}
	return h
}
