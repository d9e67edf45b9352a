package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"

	"unileap/cmd/internal/app"
	authapi "unileap/cmd/internal/auth/api"
	"unileap/cmd/internal/auth/session"
	"unileap/cmd/internal/realtime"
	"unileap/cmd/security/password"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	pw.Params.Parallelism = 1

	sess := session.DefaultConfig()
	sess.PasetoV4SecretKeyHex = paseto.NewV4AsymmetricSecretKey().ExportHex()

	comp := app.Components{
		Session:  sess,
		Auth:     authapi.DefaultConfig(),
		Relay:    realtime.DefaultConfig(),
		Password: pw,
	}
	a, err := app.New(context.Background(), app.DefaultConfig(), comp, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	ts := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		ts.Close()
		a.Close()
	})
	return ts
}

// ctl runs one unileapctl invocation and returns its stdout.
func ctl(ctx context.Context, t *testing.T, server, storage string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	base := []string{"--server", server, "--storage-path", storage}
	err := run(ctx, append(base, args...), strings.NewReader(""), &out, io.Discard)
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return -1
}

func TestRun_Usage(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		args []string
		code int
	}{
		{name: "help", args: []string{"--help"}, code: 0},
		{name: "no command", args: nil, code: 2},
		{name: "unknown command", args: []string{"browse"}, code: 2},
		{name: "unknown store", args: []string{"--store", "cookie", "whoami"}, code: 2},
		{name: "bad flag", args: []string{"--nope"}, code: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(ctx, tc.args, strings.NewReader(""), io.Discard, io.Discard)
			if got := exitCode(err); got != tc.code {
				t.Fatalf("exit code=%d want=%d (err=%v)", got, tc.code, err)
			}
		})
	}
}

func TestRun_SignupWhoamiCoursesLogout(t *testing.T) {
	ctx := context.Background()
	ts := newSite(t)
	storage := filepath.Join(t.TempDir(), "storage.json")

	out, err := ctl(ctx, t, ts.URL, storage, "--relay=false", "signup",
		"--name", "Ada Lovelace", "--email", "ada@example.com", "--password", "engine-1843", "--accept-terms")
	if err != nil {
		t.Fatalf("signup: %v\n%s", err, out)
	}
	for _, want := range []string{"Strong password", "Account created successfully! Redirecting...", "AL", "ada@example.com"} {
		if !strings.Contains(out, want) {
			t.Fatalf("signup output missing %q:\n%s", want, out)
		}
	}

	out, err = ctl(ctx, t, ts.URL, storage, "--relay=false", "whoami", "--menu")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "Ada Lovelace") || !strings.Contains(out, "Logout") {
		t.Fatalf("whoami output:\n%s", out)
	}

	out, err = ctl(ctx, t, ts.URL, storage, "--relay=false", "courses", "--category", "python")
	if err != nil {
		t.Fatalf("courses: %v", err)
	}
	if !strings.Contains(out, "python (1)") || !strings.Contains(out, "Django") {
		t.Fatalf("courses output:\n%s", out)
	}

	if _, err = ctl(ctx, t, ts.URL, storage, "--relay=false", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	out, err = ctl(ctx, t, ts.URL, storage, "--relay=false", "whoami")
	if exitCode(err) != 1 {
		t.Fatalf("whoami after logout: err=%v", err)
	}
	if !strings.Contains(out, "Sign Up") {
		t.Fatalf("anonymous output:\n%s", out)
	}

	out, err = ctl(ctx, t, ts.URL, storage, "--relay=false", "login", "--email", "ada@example.com", "--password", "wrong-one")
	if exitCode(err) != 1 || !strings.Contains(out, "Invalid email or password") {
		t.Fatalf("bad login: err=%v\n%s", err, out)
	}
}

func TestRun_SignupInvalidInput(t *testing.T) {
	ctx := context.Background()
	ts := newSite(t)
	storage := filepath.Join(t.TempDir(), "storage.json")

	out, err := ctl(ctx, t, ts.URL, storage, "--relay=false", "signup",
		"--name", "Ada", "--email", "ada@example.com", "--password", "secret1", "--confirm", "secret2", "--accept-terms")
	if exitCode(err) != 2 {
		t.Fatalf("expected exit 2, got %v", err)
	}
	if !strings.Contains(out, "Passwords do not match") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestRun_WatchFollowsOtherTab(t *testing.T) {
	ts := newSite(t)
	storage := filepath.Join(t.TempDir(), "storage.json")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if out, err := ctl(ctx, t, ts.URL, storage, "--relay=false", "signup",
		"--name", "Grace Hopper", "--email", "grace@example.com", "--password", "cobol-1959", "--accept-terms"); err != nil {
		t.Fatalf("signup: %v\n%s", err, out)
	}
	if _, err := ctl(ctx, t, ts.URL, storage, "--relay=false", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	var watchOut syncBuffer
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- run(watchCtx, []string{"--server", ts.URL, "--storage-path", storage, "watch"},
			strings.NewReader(""), &watchOut, io.Discard)
	}()

	waitFor(t, 5*time.Second, func() bool { return strings.Contains(watchOut.String(), "Sign Up") })

	if out, err := ctl(ctx, t, ts.URL, storage, "login", "--email", "grace@example.com", "--password", "cobol-1959"); err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	waitFor(t, 5*time.Second, func() bool { return strings.Contains(watchOut.String(), "Grace Hopper") })

	stopWatch()
	select {
	case err := <-watchErr:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not stop")
	}
}

func TestRun_WatchNeedsFeed(t *testing.T) {
	storage := filepath.Join(t.TempDir(), "storage.json")
	_, err := ctl(context.Background(), t, "http://127.0.0.1:1", storage, "--relay=false", "watch")
	if err == nil || !strings.Contains(err.Error(), "--relay") {
		t.Fatalf("expected feed error, got %v", err)
	}
}

func TestRelayURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:5500":    "ws://127.0.0.1:5500/ws",
		"https://unileap.example/": "wss://unileap.example/ws",
	}
	for in, want := range cases {
		if got := relayURL(in); got != want {
			t.Fatalf("relayURL(%q)=%q want=%q", in, got, want)
		}
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", d)
}
