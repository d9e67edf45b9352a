package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"unileap/cmd/internal/auth/session"
	"unileap/cmd/internal/websession"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startRelay(t *testing.T, cfg Config, opts ...GatewayOption) (*httptest.Server, *Gateway) {
	t.Helper()
	gw := NewGateway(testLogger(), nil, cfg, opts...)
	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, gw
}

func wsURL(t *testing.T, base string) string {
	t.Helper()
	u, err := url.Parse(base)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"
	return u.String()
}

func mustDialPeer(t *testing.T, ts *httptest.Server, profile, origin string) *Peer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := Dial(ctx, wsURL(t, ts.URL), profile, origin, PeerOptions{Log: testLogger()})
	if err != nil {
		t.Fatalf("Dial(%s,%s): %v", profile, origin, err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func dialRaw(t *testing.T, ts *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	h := http.Header{}
	if origin != "" {
		h.Set("Origin", origin)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return websocket.Dial(ctx, wsURL(t, ts.URL), &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
		HTTPHeader:   h,
	})
}

func writeEnvelopeWS(t *testing.T, conn *websocket.Conn, env Envelope) {
	t.Helper()
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
}

func readUntilType(t *testing.T, conn *websocket.Conn, typ string, maxReads int) Envelope {
	t.Helper()
	for i := 0; i < maxReads; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, b, err := conn.Read(ctx)
		cancel()
		if err != nil {
			t.Fatalf("conn.Read: %v", err)
		}
		var env Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Type == typ {
			return env
		}
	}
	t.Fatalf("did not receive envelope type %q", typ)
	return Envelope{}
}

func mustEnvelope(t *testing.T, typ string, payload any) Envelope {
	t.Helper()
	env, err := NewEnvelope(typ, payload, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func recvChange(t *testing.T, ch <-chan websession.Change) websession.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for change")
		return websession.Change{}
	}
}

func assertNoChange(t *testing.T, ch <-chan websession.Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRelay_FanOutExcludesSender(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	ts, gw := startRelay(t, DefaultConfig(), WithMetrics(metrics))

	a := mustDialPeer(t, ts, "profile-1", "tab-a")
	b := mustDialPeer(t, ts, "profile-1", "tab-b")
	other := mustDialPeer(t, ts, "profile-2", "tab-c")

	if a.SessionID() == "" || a.SessionID() == b.SessionID() {
		t.Fatalf("expected distinct session ids, got %q and %q", a.SessionID(), b.SessionID())
	}

	ctx := context.Background()
	gotA := make(chan websession.Change, 4)
	gotB := make(chan websession.Change, 4)
	gotOther := make(chan websession.Change, 4)
	for _, s := range []struct {
		p      *Peer
		origin string
		ch     chan websession.Change
	}{{a, "tab-a", gotA}, {b, "tab-b", gotB}, {other, "tab-c", gotOther}} {
		ch := s.ch
		if _, err := s.p.Subscribe(ctx, s.origin, func(c websession.Change) { ch <- c }); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	if err := a.Announce(ctx, websession.Change{Key: websession.TokenKey, Origin: "tab-a"}); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	c := recvChange(t, gotB)
	if c.Key != websession.TokenKey || c.Origin != "tab-a" {
		t.Fatalf("unexpected change %+v", c)
	}
	assertNoChange(t, gotA)
	assertNoChange(t, gotOther)

	if got := testutil.ToFloat64(metrics.relayed); got != 1 {
		t.Fatalf("expected 1 relayed, got %v", got)
	}
	if gw.Hub().Profiles() != 2 {
		t.Fatalf("expected 2 live profiles, got %d", gw.Hub().Profiles())
	}
}

func TestRelay_EmptyOriginDefaultsToHelloOrigin(t *testing.T) {
	ts, _ := startRelay(t, DefaultConfig())

	a := mustDialPeer(t, ts, "p", "tab-a")
	b := mustDialPeer(t, ts, "p", "tab-b")

	got := make(chan websession.Change, 1)
	if _, err := b.Subscribe(context.Background(), "tab-b", func(c websession.Change) { got <- c }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := a.Announce(context.Background(), websession.Change{Key: ""}); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	c := recvChange(t, got)
	if c.Key != "" || c.Origin != "tab-a" {
		t.Fatalf("expected clear from tab-a, got %+v", c)
	}
}

func TestRelay_GroupRemovedWhenEmpty(t *testing.T) {
	ts, gw := startRelay(t, DefaultConfig())

	p := mustDialPeer(t, ts, "solo", "tab")
	if gw.Hub().Group("solo") == nil {
		t.Fatalf("expected live group")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for gw.Hub().Group("solo") != nil {
		if time.Now().After(deadline) {
			t.Fatalf("group was not removed after last peer left")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRelay_StorageChangedRequiresHello(t *testing.T) {
	ts, _ := startRelay(t, DefaultConfig())

	conn, res, err := dialRaw(t, ts, ts.URL)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	writeEnvelopeWS(t, conn, mustEnvelope(t, TypeStorageChanged, StorageChangedPayload{Key: "authToken"}))
	env := readUntilType(t, conn, TypeError, 2)

	var p ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if p.Code != "hello_required" {
		t.Fatalf("expected hello_required, got %q", p.Code)
	}
}

func TestRelay_BadEnvelope(t *testing.T) {
	ts, _ := startRelay(t, DefaultConfig())

	conn, res, err := dialRaw(t, ts, ts.URL)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	env := mustEnvelope(t, TypeHello, HelloPayload{ProfileID: "p"})
	env.V = 2
	writeEnvelopeWS(t, conn, env)

	errEnv := readUntilType(t, conn, TypeError, 2)
	var p ErrorPayload
	_ = json.Unmarshal(errEnv.Payload, &p)
	if p.Code != "bad_envelope" {
		t.Fatalf("expected bad_envelope, got %q", p.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	errEnv = readUntilType(t, conn, TypeError, 2)
	_ = json.Unmarshal(errEnv.Payload, &p)
	if p.Code != "bad_json" {
		t.Fatalf("expected bad_json, got %q", p.Code)
	}
}

func TestRelay_HelloRequiresProfile(t *testing.T) {
	ts, _ := startRelay(t, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := Dial(ctx, wsURL(t, ts.URL), "  ", "tab", PeerOptions{}); err == nil {
		t.Fatalf("expected error for empty profile id")
	}

	conn, res, err := dialRaw(t, ts, ts.URL)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	writeEnvelopeWS(t, conn, mustEnvelope(t, TypeHello, HelloPayload{ProfileID: strings.Repeat("x", maxProfileIDChars+1)}))

	// The error envelope races the close frame; either proves the rejection.
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, b, err := conn.Read(ctx)
		cancel()
		if err != nil {
			if got := websocket.CloseStatus(err); got != websocket.StatusPolicyViolation {
				t.Fatalf("expected policy violation close, got %v (%v)", got, err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if env.Type != TypeError {
			continue
		}
		var p ErrorPayload
		_ = json.Unmarshal(env.Payload, &p)
		if p.Code != "hello_failed" {
			t.Fatalf("expected hello_failed, got %q", p.Code)
		}
		return
	}
	t.Fatalf("hello with oversized profile id was not rejected")
}

func TestRelay_OriginPolicy(t *testing.T) {
	ts, _ := startRelay(t, DefaultConfig())

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{name: "missing origin", origin: "", ok: false},
		{name: "foreign origin", origin: "https://evil.example", ok: false},
		{name: "allowed host any port", origin: ts.URL, ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn, res, err := dialRaw(t, ts, tc.origin)
			if res != nil && res.Body != nil {
				_ = res.Body.Close()
			}
			if tc.ok {
				if err != nil {
					t.Fatalf("expected upgrade, got %v", err)
				}
				_ = conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			if err == nil {
				_ = conn.Close(websocket.StatusNormalClosure, "bye")
				t.Fatalf("expected rejection")
			}
			if res == nil || res.StatusCode != http.StatusForbidden {
				t.Fatalf("expected 403, got %v", res)
			}
		})
	}
}

func TestRelay_RateLimitClosesConnection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateEvents = 3
	cfg.RateWindow = time.Minute
	ts, _ := startRelay(t, cfg)

	p := mustDialPeer(t, ts, "p", "tab") // hello counts as one event
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = p.Announce(ctx, websession.Change{Key: "k"})
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("expected relay to close a flooding peer")
	}
	if err := p.Announce(ctx, websession.Change{Key: "k"}); err != ErrPeerClosed {
		t.Fatalf("expected ErrPeerClosed, got %v", err)
	}
}

func TestRelay_RequireAuth(t *testing.T) {
	scfg := session.DefaultConfig()
	scfg.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()
	tokens, err := session.NewPasetoV4PublicManager(scfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}
	svc := session.NewService(scfg, session.NewMemoryStore(), tokens)

	cfg := DefaultConfig()
	cfg.RequireAuth = true
	ts, _ := startRelay(t, cfg, WithTokenValidator(svc))

	conn, res, err := dialRaw(t, ts, ts.URL)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err == nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		t.Fatalf("expected unauthorized upgrade to fail")
	}
	if res == nil || res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", res)
	}

	issued, err := svc.IssueSession(context.Background(), time.Now().UTC(), "01HZZZZZZZZZZZZZZZZZZZZZZZ", session.DeviceContext{})
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := Dial(ctx, wsURL(t, ts.URL), "p", "tab", PeerOptions{Token: issued.Token})
	if err != nil {
		t.Fatalf("Dial with token: %v", err)
	}
	_ = p.Close()

	if err := svc.RevokeSession(context.Background(), time.Now().UTC(), issued.SessionID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, err := Dial(ctx, wsURL(t, ts.URL), "p", "tab", PeerOptions{Token: issued.Token}); err == nil {
		t.Fatalf("expected revoked token to be rejected")
	}
}

func TestDeriveOriginPatterns(t *testing.T) {
	got := deriveOriginPatterns([]string{"http://localhost:3000", "https://LOCALHOST", "*", "", "example.com"})
	want := []string{"example.com", "example.com:*", "localhost", "localhost:*"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestHTTPOriginOf(t *testing.T) {
	tests := map[string]string{
		"ws://127.0.0.1:5500/ws":  "http://127.0.0.1:5500",
		"wss://unileap.example/ws": "https://unileap.example",
		"::bad":                    "",
	}
	for in, want := range tests {
		if got := httpOriginOf(in); got != want {
			t.Fatalf("httpOriginOf(%q)=%q, want %q", in, got, want)
		}
	}
}
