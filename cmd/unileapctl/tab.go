package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"unileap/cmd/internal/console"
	"unileap/cmd/internal/realtime"
	"unileap/cmd/internal/websession"
)

// tab is one terminal "browser tab": a session manager over the profile
// store, its navigation elements and, when available, a change feed.
type tab struct {
	origin string
	mgr    *websession.Manager
	nav    *console.Nav
	router websession.Navigator

	// feed is nil when no other tab can be heard.
	feed websession.ChangeFeed
	// done closes when the feed's transport is gone. Nil means never.
	done <-chan struct{}

	navigated chan string
	closers   []func() error
}

// openTab builds a tab. With needFeed, a missing change feed is an error;
// otherwise the tab falls back to the bare store.
func (c *cli) openTab(ctx context.Context, needFeed bool) (*tab, error) {
	t := &tab{
		origin:    ulid.Make().String(),
		nav:       console.NewNav(),
		navigated: make(chan string, 4),
	}

	store, err := c.openStore(ctx, t, needFeed)
	if err != nil {
		t.Close()
		return nil, err
	}

	nav, err := websession.NewNavigation(t.nav.Bindings())
	if err != nil {
		t.Close()
		return nil, err
	}
	t.router = websession.NavigatorFunc(func(loc string) {
		c.log.Debug("unileapctl.navigate", "location", loc, "origin", t.origin)
		select {
		case t.navigated <- loc:
		default:
		}
	})
	t.mgr, err = websession.NewManager(store, nav, t.router,
		websession.WithLogger(c.log),
		websession.WithOrigin(t.origin),
		websession.WithFrameLock(t.nav.FrameLock()),
	)
	if err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (c *cli) openStore(ctx context.Context, t *tab, needFeed bool) (websession.Storage, error) {
	if c.opts.store == storeRedis {
		ropts, err := redis.ParseURL(c.opts.redisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(ropts)
		t.closers = append(t.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rs, err := websession.NewRedisStore(rdb, websession.RedisOptions{
			Prefix: "unileap:storage:" + c.opts.profile,
			Origin: t.origin,
			Log:    c.log,
		})
		if err != nil {
			return nil, err
		}
		t.feed = rs
		return rs, nil
	}

	fs, err := websession.NewFileStore(c.opts.storagePath)
	if err != nil {
		return nil, err
	}
	if !c.opts.relay {
		if needFeed {
			return nil, errors.New("watch needs --relay or --store=redis")
		}
		return fs, nil
	}

	token, _, _ := fs.Get(ctx, websession.TokenKey)
	peer, err := realtime.Dial(ctx, relayURL(c.opts.server), c.opts.profile, t.origin, realtime.PeerOptions{
		Log:   c.log,
		Token: token,
	})
	if err != nil {
		if needFeed {
			return nil, fmt.Errorf("relay: %w", err)
		}
		c.log.Warn("unileapctl.relay.unavailable", "err", err)
		return fs, nil
	}
	t.closers = append(t.closers, peer.Close)
	t.feed = peer
	t.done = peer.Done()
	return websession.Announcing(fs, peer, t.origin, c.log), nil
}

// waitNavigation blocks until the manager or a form navigates, or d passes.
func (t *tab) waitNavigation(ctx context.Context, d time.Duration) (string, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case loc := <-t.navigated:
		return loc, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func (t *tab) Close() {
	for i := len(t.closers) - 1; i >= 0; i-- {
		_ = t.closers[i]()
	}
	t.closers = nil
}

// relayURL maps the site base URL to its websocket relay endpoint.
func relayURL(server string) string {
	switch {
	case strings.HasPrefix(server, "https://"):
		server = "wss://" + strings.TrimPrefix(server, "https://")
	case strings.HasPrefix(server, "http://"):
		server = "ws://" + strings.TrimPrefix(server, "http://")
	}
	return strings.TrimRight(server, "/") + "/ws"
}
