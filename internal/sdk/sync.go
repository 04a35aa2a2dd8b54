package sdk

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/setavenger/zkwizard/internal/rollup"
)

// confirmedRollupID is the newest rollup with at least MinConfirmation
// confirmations. -1 when there is none yet.
func (c *Client) confirmedRollupID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	confirmed := c.status.LatestRollupID - int64(c.opts.MinConfirmation-1)
	if confirmed < -1 {
		confirmed = -1
	}
	return confirmed
}

// requestSync wakes the sync loop without blocking.
func (c *Client) requestSync() {
	select {
	case c.syncNow <- struct{}{}:
	default:
	}
}

// notify wakes everyone waiting in awaitUserSynchronised.
func (c *Client) notify() {
	c.mu.Lock()
	close(c.updated)
	c.updated = make(chan struct{})
	c.mu.Unlock()
}

func (c *Client) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.syncOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("sync failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.syncNow:
		}
	}
}

// syncOnce refreshes the server status and pulls the notes of every local
// user up to the confirmed rollup.
func (c *Client) syncOnce(ctx context.Context) error {
	defer c.notify()

	status, err := c.fetchStatus(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.status = *status
	c.mu.Unlock()

	confirmed := c.confirmedRollupID()

	users, err := c.listUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	for _, rec := range users {
		if rec.SyncedRollupID >= confirmed {
			continue
		}
		if err := c.syncUser(ctx, rec.PublicKey, confirmed); err != nil {
			return fmt.Errorf("failed to sync user %s: %w", rec.PublicKey, err)
		}
	}
	return nil
}

func (c *Client) syncUser(ctx context.Context, pub PublicKey, to int64) error {
	c.dbMu.Lock()
	defer c.dbMu.Unlock()

	rec, err := c.loadUser(pub)
	if err != nil {
		return err
	}
	from := rec.SyncedRollupID + 1

	var resp rollup.NotesResponse
	path := fmt.Sprintf("/api/accounts/%s/notes?from=%d&to=%d", pub, from, to)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return err
	}

	rec.Notes = append(rec.Notes, resp.Notes...)
	rec.SyncedRollupID = to
	if err := c.db.Put(userKey(pub), rec); err != nil {
		return err
	}

	c.logger.Debug().
		Str("user", pub.String()).
		Int64("from", from).
		Int64("to", to).
		Int("new_notes", len(resp.Notes)).
		Msg("user synchronised")
	return nil
}

// watchRollups subscribes to rollup events so syncs happen right after a
// rollup is published. Without the websocket the poll interval applies.
func (c *Client) watchRollups(ctx context.Context) {
	wsURL, err := websocketURL(c.opts.ServerURL)
	if err != nil {
		c.logger.Debug().Err(err).Msg("no websocket url, polling only")
		return
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", wsURL).Msg("rollup events unavailable, polling only")
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var event rollup.RollupEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("rollup event stream closed")
			}
			return
		}
		c.logger.Trace().Int64("rollup", event.RollupID).Msg("rollup published")
		c.requestSync()
	}
}

func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/rollups"
	return u.String(), nil
}
