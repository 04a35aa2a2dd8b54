// Package sdk is the account and transaction sdk the wizard drives. It derives
// rollup keys from wallet signatures, keeps a local user db, synchronises notes
// from the rollup server and submits transactions.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/storage"
	"github.com/setavenger/zkwizard/internal/units"
	"github.com/setavenger/zkwizard/internal/wallet"
)

// Flavour selects how the sdk runs. Only the plain in-process flavour exists.
type Flavour string

const FlavourPlain Flavour = "plain"

var (
	ErrNotRunning     = errors.New("sdk is not running")
	ErrAlreadyRunning = errors.New("sdk is already running")
	ErrDestroyed      = errors.New("sdk was destroyed")
	ErrUnknownAsset   = errors.New("unknown asset")
)

// Options configure a Client.
type Options struct {
	ServerURL       string
	PollInterval    time.Duration
	MemoryDB        bool
	Flavour         Flavour
	MinConfirmation int
	// DataDir holds the user db when MemoryDB is false.
	DataDir    string
	HTTPClient *http.Client
}

// ServerError is a non 2xx answer of the rollup server.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("rollup server returned %d: %s", e.StatusCode, e.Message)
}

// Client is the sdk instance.
type Client struct {
	opts     Options
	provider wallet.Provider
	http     *http.Client
	db       *storage.Store
	logger   zerolog.Logger

	// dbMu serialises read-modify-write cycles on user records
	dbMu sync.Mutex

	mu        sync.RWMutex
	status    rollup.Status
	running   bool
	destroyed bool
	updated   chan struct{}
	syncNow   chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Client. Call Run before using anything that talks to the
// rollup server.
func New(provider wallet.Provider, opts Options) (*Client, error) {
	if provider == nil {
		return nil, wallet.ErrNoProvider
	}
	if opts.ServerURL == "" {
		return nil, errors.New("missing server url")
	}
	if opts.Flavour == "" {
		opts.Flavour = FlavourPlain
	}
	if opts.Flavour != FlavourPlain {
		return nil, errors.Errorf("unsupported sdk flavour %q", opts.Flavour)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MinConfirmation < 1 {
		opts.MinConfirmation = 1
	}
	opts.ServerURL = strings.TrimRight(opts.ServerURL, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	dbDir := ""
	if !opts.MemoryDB {
		if opts.DataDir == "" {
			return nil, errors.New("persistent user db needs a data dir")
		}
		dbDir = filepath.Clean(opts.DataDir)
	}
	db, err := storage.Open(dbDir, opts.MemoryDB)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open user db")
	}

	return &Client{
		opts:     opts,
		provider: provider,
		http:     httpClient,
		db:       db,
		logger:   logging.Component("sdk"),
		updated:  make(chan struct{}),
		syncNow:  make(chan struct{}, 1),
	}, nil
}

// Run contacts the rollup server and starts the background synchroniser.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.destroyed:
		c.mu.Unlock()
		return ErrDestroyed
	case c.running:
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.mu.Unlock()

	status, err := c.fetchStatus(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to reach rollup server")
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.status = *status
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.syncLoop(loopCtx)
	}()
	go func() {
		defer c.wg.Done()
		c.watchRollups(loopCtx)
	}()

	c.logger.Info().
		Str("server", c.opts.ServerURL).
		Int64("latest_rollup", status.LatestRollupID).
		Dur("poll_interval", c.opts.PollInterval).
		Bool("memory_db", c.opts.MemoryDB).
		Msg("sdk running")
	return nil
}

// Destroy stops the synchroniser and closes the user db.
func (c *Client) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.running = false
	c.destroyed = true
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	// wake up anyone still waiting for a sync
	c.notify()
	return c.db.Close()
}

func (c *Client) isRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// MarshalZerologObject lets the sdk state be dumped with logger.Object.
func (c *Client) MarshalZerologObject(e *zerolog.Event) {
	c.mu.RLock()
	status := c.status
	running := c.running
	c.mu.RUnlock()

	e.Str("server", c.opts.ServerURL).
		Str("flavour", string(c.opts.Flavour)).
		Bool("running", running).
		Bool("memory_db", c.opts.MemoryDB).
		Int("min_confirmation", c.opts.MinConfirmation).
		Int64("latest_rollup", status.LatestRollupID).
		Int("pending_txs", status.PendingTxs)

	if users, err := c.listUsers(); err == nil {
		e.Int("users", len(users))
	}
}

// IsAccountRegistered asks the server whether pub owns a registered account.
func (c *Client) IsAccountRegistered(ctx context.Context, pub PublicKey, includePending bool) (bool, error) {
	var resp rollup.RegisteredResponse
	path := fmt.Sprintf("/api/accounts/%s/registered?pending=%t", pub, includePending)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return false, err
	}
	return resp.Registered, nil
}

// DepositFees returns the deposit fees for assetID indexed by settlement time.
func (c *Client) DepositFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error) {
	fees, err := c.fetchFees(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return fees.Deposit, nil
}

// RegisterFees returns the registration fees indexed by settlement time.
func (c *Client) RegisterFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error) {
	fees, err := c.fetchFees(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return fees.Register, nil
}

func (c *Client) fetchFees(ctx context.Context, assetID uint32) (*rollup.Fees, error) {
	var fees rollup.Fees
	if err := c.getJSON(ctx, fmt.Sprintf("/api/fees?assetId=%d", assetID), &fees); err != nil {
		return nil, err
	}
	return &fees, nil
}

// SubmitTx sends a signed transaction to the rollup server.
func (c *Client) SubmitTx(ctx context.Context, tx *rollup.Tx) (rollup.TxID, error) {
	if !c.isRunning() {
		return rollup.TxID{}, ErrNotRunning
	}
	var resp rollup.SubmitResponse
	if err := c.postJSON(ctx, "/api/txs", tx, &resp); err != nil {
		return rollup.TxID{}, err
	}
	c.logger.Info().Str("tx_id", resp.TxID.String()).Str("type", string(tx.Type)).Msg("tx submitted")
	c.requestSync()
	return resp.TxID, nil
}

// TxReceipt returns the settlement state of a submitted transaction.
func (c *Client) TxReceipt(ctx context.Context, id rollup.TxID) (*rollup.TxReceipt, error) {
	var receipt rollup.TxReceipt
	if err := c.getJSON(ctx, "/api/txs/"+id.String(), &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// SignWithWallet asks the wallet of addr to approve spending funds for the tx
// with the given digest.
func (c *Client) SignWithWallet(ctx context.Context, addr wallet.EthAddress, digest []byte) ([]byte, error) {
	return c.provider.SignPersonalMessage(ctx, addr, rollup.WalletApprovalMessage(digest))
}

// AssetIDBySymbol looks up an asset reported by the server.
func (c *Client) AssetIDBySymbol(symbol string) (uint32, error) {
	asset, err := c.findAsset(func(a rollup.Asset) bool {
		return strings.EqualFold(a.Symbol, symbol)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "symbol %s", symbol)
	}
	return asset.ID, nil
}

// AssetIDByAddress looks up an asset by its chain address. The zero address is ETH.
func (c *Client) AssetIDByAddress(addr wallet.EthAddress) (uint32, error) {
	asset, err := c.findAsset(func(a rollup.Asset) bool {
		return a.Address == addr
	})
	if err != nil {
		return 0, errors.Wrapf(err, "address %s", addr)
	}
	return asset.ID, nil
}

// FromBaseUnits formats value with the decimals of assetID.
func (c *Client) FromBaseUnits(value *big.Int, assetID uint32) string {
	return units.FromBaseUnits(value, c.decimals(assetID))
}

// ToBaseUnits parses a decimal amount of assetID.
func (c *Client) ToBaseUnits(amount string, assetID uint32) (*big.Int, error) {
	return units.ToBaseUnits(amount, c.decimals(assetID))
}

func (c *Client) decimals(assetID uint32) int32 {
	asset, err := c.findAsset(func(a rollup.Asset) bool { return a.ID == assetID })
	if err != nil {
		return units.EtherDecimals
	}
	return asset.Decimals
}

func (c *Client) findAsset(match func(rollup.Asset) bool) (rollup.Asset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.status.Assets {
		if match(a) {
			return a, nil
		}
	}
	return rollup.Asset{}, ErrUnknownAsset
}

func (c *Client) fetchStatus(ctx context.Context) (*rollup.Status, error) {
	var status rollup.Status
	if err := c.getJSON(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.ServerURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.ServerURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body rollup.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return &ServerError{StatusCode: resp.StatusCode, Message: body.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", req.URL.Path)
	}
	return nil
}
