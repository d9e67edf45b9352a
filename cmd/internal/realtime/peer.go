package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"unileap/cmd/internal/websession"
)

const (
	peerSubscriberQueue = 64
	peerHelloTimeout    = 5 * time.Second
	peerWriteTimeout    = 5 * time.Second
)

// ErrPeerClosed is returned after Close or once the connection dropped.
var ErrPeerClosed = errors.New("realtime: peer closed")

// PeerOptions tunes Dial. The zero value is usable.
type PeerOptions struct {
	Log *slog.Logger

	// Token is sent as a bearer token on upgrade.
	Token string

	// Origin overrides the Origin header, which defaults to the relay's own
	// http(s) origin.
	Origin string

	HTTPClient   *http.Client
	HelloTimeout time.Duration
}

// Peer is a relay client for one profile. It implements websession.Announcer
// and websession.ChangeFeed.
type Peer struct {
	log       *slog.Logger
	conn      *websocket.Conn
	profileID string
	origin    string
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	subs   map[int]*peerSubscriber
	nextID int
}

type peerSubscriber struct {
	origin string
	queue  chan websession.Change
	done   chan struct{}
	once   sync.Once
}

// Dial connects to the relay at rawURL (ws:// or wss://), says hello as
// origin of profileID and waits for the acknowledgement.
func Dial(ctx context.Context, rawURL, profileID, origin string, opts PeerOptions) (*Peer, error) {
	if strings.TrimSpace(profileID) == "" {
		return nil, errors.New("realtime: empty profile id")
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.HelloTimeout <= 0 {
		opts.HelloTimeout = peerHelloTimeout
	}

	hdr := http.Header{}
	httpOrigin := opts.Origin
	if httpOrigin == "" {
		httpOrigin = httpOriginOf(rawURL)
	}
	if httpOrigin != "" {
		hdr.Set("Origin", httpOrigin)
	}
	if opts.Token != "" {
		hdr.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, res, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
		HTTPHeader:   hdr,
		HTTPClient:   opts.HTTPClient,
	})
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}
	conn.SetReadLimit(maxFrameBytes)

	sessionID, err := hello(ctx, conn, profileID, origin, opts.HelloTimeout)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, "hello failed")
		return nil, err
	}

	pctx, cancel := context.WithCancel(context.Background())
	p := &Peer{
		log:       opts.Log,
		conn:      conn,
		profileID: profileID,
		origin:    origin,
		sessionID: sessionID,
		ctx:       pctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		subs:      make(map[int]*peerSubscriber),
	}
	go p.readLoop()
	return p, nil
}

func hello(ctx context.Context, conn *websocket.Conn, profileID, origin string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env, err := NewEnvelope(TypeHello, HelloPayload{ProfileID: profileID, Origin: origin}, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := writeEnvelope(ctx, conn, env, timeout); err != nil {
		return "", fmt.Errorf("realtime: hello: %w", err)
	}

	for {
		in, err := readEnvelope(ctx, conn)
		if err != nil {
			return "", fmt.Errorf("realtime: hello: %w", err)
		}
		switch in.Type {
		case TypeHelloAck:
			var ack HelloAckPayload
			if err := json.Unmarshal(in.Payload, &ack); err != nil {
				return "", fmt.Errorf("realtime: hello_ack: %w", err)
			}
			return ack.SessionID, nil
		case TypeError:
			var p ErrorPayload
			_ = json.Unmarshal(in.Payload, &p)
			return "", fmt.Errorf("realtime: hello rejected: %s: %s", p.Code, p.Message)
		}
	}
}

// SessionID is the relay's id for this connection.
func (p *Peer) SessionID() string { return p.sessionID }

// Done is closed once the connection is gone.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Announce implements websession.Announcer.
func (p *Peer) Announce(ctx context.Context, c websession.Change) error {
	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}
	if c.Origin == "" {
		c.Origin = p.origin
	}
	env, err := NewEnvelope(TypeStorageChanged, StorageChangedPayload{Key: c.Key, Origin: c.Origin}, time.Now().UTC())
	if err != nil {
		return err
	}
	return writeEnvelope(ctx, p.conn, env, peerWriteTimeout)
}

// Subscribe implements websession.ChangeFeed.
func (p *Peer) Subscribe(ctx context.Context, origin string, fn func(websession.Change)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-p.done:
		return nil, ErrPeerClosed
	default:
	}

	sub := &peerSubscriber{
		origin: origin,
		queue:  make(chan websession.Change, peerSubscriberQueue),
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = sub
	p.mu.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(sub.done)
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-p.done:
				unsubscribe()
				return
			case <-sub.done:
				return
			case c := <-sub.queue:
				fn(c)
			}
		}
	}()

	return unsubscribe, nil
}

// Close ends the connection and stops every subscriber.
func (p *Peer) Close() error {
	select {
	case <-p.done:
		p.cancel()
		return nil
	default:
	}

	err := p.conn.Close(websocket.StatusNormalClosure, "bye")
	p.cancel()
	<-p.done
	if websocket.CloseStatus(err) != -1 || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (p *Peer) readLoop() {
	defer close(p.done)

	for {
		env, err := readEnvelope(p.ctx, p.conn)
		if err != nil {
			if classifyReadErr(err) == readErrBadJSON {
				continue
			}
			if p.ctx.Err() == nil {
				p.log.Warn("relay.peer.read.fail", "session_id", p.sessionID, "err", err)
			}
			return
		}

		switch env.Type {
		case TypeStorageChanged:
			var sc StorageChangedPayload
			if err := json.Unmarshal(env.Payload, &sc); err != nil {
				continue
			}
			p.dispatch(websession.Change{Key: sc.Key, Origin: sc.Origin})
		case TypeError:
			var ep ErrorPayload
			_ = json.Unmarshal(env.Payload, &ep)
			p.log.Warn("relay.peer.error", "code", ep.Code, "message", ep.Message)
		}
	}
}

// dispatch never blocks the read loop. A dropped change is harmless because
// handlers re-read the store.
func (p *Peer) dispatch(c websession.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subs {
		if sub.origin == c.Origin {
			continue
		}
		select {
		case sub.queue <- c:
		default:
			p.log.Warn("relay.peer.dispatch.drop", "key", c.Key, "origin", c.Origin)
		}
	}
}

// httpOriginOf maps ws://host/path to http://host.
func httpOriginOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}
