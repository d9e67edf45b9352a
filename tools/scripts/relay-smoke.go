// Package main provides a CI-friendly WebSocket smoke test for the unileap
// session relay.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello/ack session establishment
//   - storage_changed fanout to another connection of the same profile
//   - no echo to the sender
//   - no leak into another profile
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/pflag"
)

const (
	subprotocol  = "unileap.relay.v1"
	version      = 1
	maxReadBytes = 8 << 10

	typeHello          = "hello"
	typeHelloAck       = "hello_ack"
	typeStorageChanged = "storage_changed"
	typeError          = "error"
)

type envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

type helloPayload struct {
	ProfileID string `json:"profile_id"`
	Origin    string `json:"origin"`
}

type helloAckPayload struct {
	SessionID string `json:"session_id"`
}

type storageChangedPayload struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string

	inbox chan envelope
	errCh chan error
}

func main() {
	var (
		wsURL   = pflag.String("url", "ws://127.0.0.1:5500/ws", "WebSocket URL")
		origin  = pflag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		profile = pflag.String("profile", fmt.Sprintf("smoke-%d", time.Now().UnixNano()), "Profile id shared by A and B")
		key     = pflag.String("key", "authToken", "Storage key to announce")
		timeout = pflag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = pflag.BoolP("verbose", "v", false, "Verbose output")
	)
	pflag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid --url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid --origin: %v", err)
	}

	root := context.Background()

	a := mustConnect(root, "A", *wsURL, *origin, *profile, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *wsURL, *origin, *profile, *timeout)
	defer closeWS(b.conn)

	c := mustConnect(root, "C", *wsURL, *origin, *profile+"-other", *timeout)
	defer closeWS(c.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s C=%s origin=%q\n", a.sessionID, b.sessionID, c.sessionID, *origin)
	}

	mustWriteWithTimeout(root, a.conn, mustEnvelope("A-change", typeStorageChanged, storageChangedPayload{Key: *key}), *timeout)

	got := b.mustReadUntilType(root, typeStorageChanged, *timeout)
	var p storageChangedPayload
	if err := json.Unmarshal(got.Payload, &p); err != nil {
		fatalf("unmarshal storage_changed payload: %v", err)
	}
	if p.Key != *key || p.Origin != "A" {
		fatalf("storage_changed mismatch: got key=%q origin=%q want key=%q origin=%q", p.Key, p.Origin, *key, "A")
	}

	mustAssertNoType(root, a, typeStorageChanged, 1200*time.Millisecond)
	mustAssertNoType(root, c, typeStorageChanged, 1200*time.Millisecond)

	fmt.Printf("OK: A=%s B=%s profile=%s key=%s\n", a.sessionID, b.sessionID, *profile, *key)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, wsURL, origin, profileID string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, subprotocol)
	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan envelope, 64),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	mustWriteWithTimeout(parent, conn, mustEnvelope(name+"-hello", typeHello, helloPayload{ProfileID: profileID, Origin: name}), stepTimeout)
	ack := c.mustReadUntilType(parent, typeHelloAck, stepTimeout)

	var p helloAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello_ack payload (%s): %v", name, err)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("hello_ack missing session_id (%s)", name)
	}
	c.sessionID = p.SessionID
	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}

			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if env.V != version {
				c.fail(fmt.Errorf("bad envelope version: %d", env.V))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			if env.Type == wantType {
				return env
			}
			if env.Type == typeError {
				var ep errorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
		}
	}
}

func mustAssertNoType(parent context.Context, c *smokeClient, forbiddenType string, wait time.Duration) {
	ctx, cancel := context.WithTimeout(parent, wait)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.errCh:
			fatalf("connection closed unexpectedly (%s): %v", c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed unexpectedly (%s)", c.name)
			}
			if env.Type == forbiddenType {
				fatalf("unexpected %s received (%s)", forbiddenType, c.name)
			}
		}
	}
}

func mustEnvelope(id, typ string, payload any) envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		fatalf("marshal payload: %v", err)
	}
	return envelope{V: version, Type: typ, ID: id, TS: time.Now().UTC(), Payload: b}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
