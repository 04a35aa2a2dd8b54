package sdk

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/storage"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// User is a local account handle bound to a privacy public key.
type User interface {
	ID() PublicKey
	// AwaitSynchronised blocks until the user's notes are synchronised up to
	// the latest confirmed rollup.
	AwaitSynchronised(ctx context.Context) error
}

type userRecord struct {
	PublicKey      PublicKey     `json:"publicKey"`
	PrivateKey     []byte        `json:"privateKey"`
	SyncedRollupID int64         `json:"syncedRollupId"`
	Notes          []rollup.Note `json:"notes"`
	CreatedAt      time.Time     `json:"createdAt"`
}

func userKey(pub PublicKey) []byte {
	return []byte("user/" + pub.String())
}

type user struct {
	c   *Client
	pub PublicKey
}

func (u *user) ID() PublicKey {
	return u.pub
}

func (u *user) AwaitSynchronised(ctx context.Context) error {
	return u.c.awaitUserSynchronised(ctx, u.pub)
}

// UserExists reports whether a local user for pub exists.
func (c *Client) UserExists(_ context.Context, pub PublicKey) (bool, error) {
	return c.db.Has(userKey(pub))
}

// GetUser returns the handle of an existing local user.
func (c *Client) GetUser(ctx context.Context, pub PublicKey) (User, error) {
	ok, err := c.UserExists(ctx, pub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user{c: c, pub: pub}, nil
}

// AddUser creates a local user for the key pair of privateKey and starts
// synchronising it from the first rollup.
func (c *Client) AddUser(_ context.Context, privateKey []byte) (User, error) {
	signer, err := NewSchnorrSigner(privateKey)
	if err != nil {
		return nil, err
	}
	pub := signer.PublicKey()

	c.dbMu.Lock()
	exists, err := c.db.Has(userKey(pub))
	if err == nil && !exists {
		err = c.db.Put(userKey(pub), &userRecord{
			PublicKey:      pub,
			PrivateKey:     signer.PrivateKey(),
			SyncedRollupID: -1,
			CreatedAt:      time.Now(),
		})
	}
	c.dbMu.Unlock()

	if err != nil {
		return nil, errors.Wrap(err, "failed to store user")
	}
	if exists {
		return nil, ErrUserExists
	}

	c.logger.Info().Str("user", pub.String()).Msg("user added")
	c.requestSync()
	return &user{c: c, pub: pub}, nil
}

// GetBalance sums the synchronised notes of pub for assetID.
func (c *Client) GetBalance(_ context.Context, pub PublicKey, assetID uint32) (*big.Int, error) {
	rec, err := c.loadUser(pub)
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	for _, note := range rec.Notes {
		if note.AssetID == assetID && note.Value != nil {
			balance.Add(balance, note.Value)
		}
	}
	return balance, nil
}

// IsUserSynchronised reports whether pub is synchronised to the latest
// confirmed rollup.
func (c *Client) IsUserSynchronised(pub PublicKey) (bool, error) {
	rec, err := c.loadUser(pub)
	if err != nil {
		return false, err
	}
	return rec.SyncedRollupID >= c.confirmedRollupID(), nil
}

func (c *Client) awaitUserSynchronised(ctx context.Context, pub PublicKey) error {
	for {
		c.mu.RLock()
		updated := c.updated
		running := c.running
		c.mu.RUnlock()

		synced, err := c.IsUserSynchronised(pub)
		if err != nil {
			return err
		}
		if synced {
			return nil
		}
		if !running {
			return ErrNotRunning
		}

		c.requestSync()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-updated:
		}
	}
}

func (c *Client) loadUser(pub PublicKey) (*userRecord, error) {
	var rec userRecord
	err := c.db.Get(userKey(pub), &rec)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) listUsers() ([]*userRecord, error) {
	var users []*userRecord
	err := c.db.Iterate([]byte("user/"), func(_, value []byte) error {
		var rec userRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		users = append(users, &rec)
		return nil
	})
	return users, err
}
