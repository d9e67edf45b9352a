package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"

	"unileap/cmd/internal/accountclient"
	authapi "unileap/cmd/internal/auth/api"
	"unileap/cmd/internal/auth/session"
	"unileap/cmd/internal/realtime"
	"unileap/cmd/internal/websession"
	"unileap/cmd/security/password"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:5500", want: "http://127.0.0.1:5500"},
		{name: "port only", in: ":5500", want: "http://127.0.0.1:5500"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:5500", want: "ws://127.0.0.1:5500"},
		{in: "https://unileap.example.com", want: "wss://unileap.example.com"},
		{in: "127.0.0.1:5500", want: "ws://127.0.0.1:5500"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func testComponents(t *testing.T) Components {
	t.Helper()

	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	pw.Params.Parallelism = 1

	sess := session.DefaultConfig()
	sess.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()

	return Components{
		Session:  sess,
		Auth:     authapi.DefaultConfig(),
		Relay:    realtime.DefaultConfig(),
		Password: pw,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), DefaultConfig(), testComponents(t), log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getBody(t *testing.T, url string) (int, string, http.Header) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = res.Body.Close() }()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, string(b), res.Header
}

func TestApp_SignupLoginMeLogout(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	c, err := accountclient.New(ts.URL + "/api/auth")
	if err != nil {
		t.Fatalf("accountclient.New: %v", err)
	}

	res, err := c.Signup(ctx, "Ada Lovelace", "ada@example.com", "engine-1843")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if !res.Success || res.Token == "" || res.User == nil || res.User.Name != "Ada Lovelace" {
		t.Fatalf("unexpected signup response %+v", res)
	}

	dup, err := c.Signup(ctx, "Ada Again", "ADA@example.com", "engine-1843")
	if err != nil {
		t.Fatalf("Signup duplicate: %v", err)
	}
	if dup.Success || dup.Message != "User already exists with this email" {
		t.Fatalf("unexpected duplicate response %+v", dup)
	}

	bad, err := c.Login(ctx, "ada@example.com", "wrong-password")
	if err != nil {
		t.Fatalf("Login bad: %v", err)
	}
	if bad.Success || bad.Message != "Invalid email or password" {
		t.Fatalf("unexpected bad login response %+v", bad)
	}

	login, err := c.Login(ctx, "ada@example.com", "engine-1843")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !login.Success || login.Token == "" {
		t.Fatalf("unexpected login response %+v", login)
	}

	me, err := c.Me(ctx, login.Token)
	if err != nil || !me.Success || me.User == nil || me.User.Email != "ada@example.com" {
		t.Fatalf("Me: %+v %v", me, err)
	}

	if err := c.Logout(ctx, login.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if me, err := c.Me(ctx, login.Token); err != nil || me.Success {
		t.Fatalf("expected revoked token to fail, got %+v %v", me, err)
	}
}

func TestApp_NotFoundJSON(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/nope", "/api/unknown", "/test-auth"} {
		status, body, hdr := getBody(t, ts.URL+path)
		if status != http.StatusNotFound {
			t.Fatalf("%s: status=%d", path, status)
		}
		if ct := hdr.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Fatalf("%s: content-type=%q", path, ct)
		}
		var eb errorBody
		if err := json.Unmarshal([]byte(body), &eb); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
		if eb.Success || eb.Message != "Route not found" {
			t.Fatalf("%s: unexpected body %+v", path, eb)
		}
		if hdr.Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing request id", path)
		}
	}
}

func TestApp_PagesCoursesAndProbes(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/", "/login", "/signup", "/courses"} {
		status, body, hdr := getBody(t, ts.URL+path)
		if status != http.StatusOK || !strings.Contains(body, "<html") {
			t.Fatalf("%s: status=%d", path, status)
		}
		if hdr.Get("X-Frame-Options") != "DENY" {
			t.Fatalf("%s: missing security headers", path)
		}
	}

	status, body, _ := getBody(t, ts.URL+"/api/courses?category=web-dev")
	if status != http.StatusOK {
		t.Fatalf("courses status=%d", status)
	}
	var list struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("decode courses: %v", err)
	}
	if !list.Success || list.Count != 4 {
		t.Fatalf("unexpected courses body %s", body)
	}

	if status, body, _ := getBody(t, ts.URL+"/healthz"); status != http.StatusOK || body != "ok\n" {
		t.Fatalf("healthz: %d %q", status, body)
	}
	if status, _, _ := getBody(t, ts.URL+"/readyz"); status != http.StatusOK {
		t.Fatalf("readyz: %d", status)
	}
}

func TestApp_MetricsExposeAuthAndRelay(t *testing.T) {
	ts := newTestServer(t)

	c, err := accountclient.New(ts.URL + "/api/auth")
	if err != nil {
		t.Fatalf("accountclient.New: %v", err)
	}
	if _, err := c.Login(context.Background(), "nobody@example.com", "whatever-1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	status, body, _ := getBody(t, ts.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("metrics status=%d", status)
	}
	for _, want := range []string{"unileap_auth_requests_total", "unileap_relay_connections", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}

func TestApp_RelayAcrossTabs(t *testing.T) {
	ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := realtime.Dial(ctx, wsURL, "profile", "tab-a", realtime.PeerOptions{})
	if err != nil {
		t.Fatalf("Dial a: %v", err)
	}
	defer func() { _ = a.Close() }()
	b, err := realtime.Dial(ctx, wsURL, "profile", "tab-b", realtime.PeerOptions{})
	if err != nil {
		t.Fatalf("Dial b: %v", err)
	}
	defer func() { _ = b.Close() }()

	got := make(chan websession.Change, 1)
	if _, err := b.Subscribe(ctx, "tab-b", func(c websession.Change) { got <- c }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := a.Announce(ctx, websession.Change{Key: websession.UserKey}); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	select {
	case c := <-got:
		if c.Key != websession.UserKey || c.Origin != "tab-a" {
			t.Fatalf("unexpected change %+v", c)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for relayed change")
	}
}
