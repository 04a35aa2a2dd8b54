// Package controller is the interface between the GUI and the wallet, sdk and
// transaction helpers. It holds the state of the five step wizard and decides
// which panels can be shown.
package controller

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/rs/zerolog"

	"github.com/setavenger/zkwizard/internal/configs"
	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/transactions"
	"github.com/setavenger/zkwizard/internal/wallet"
)

var (
	ErrNoWallet          = errors.New("no wallet available")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrNoPrivacyKey      = errors.New("privacy key pair not generated")
	ErrNoAccount         = errors.New("account not loaded")
	ErrNoSpendingKey     = errors.New("spending key pair not generated")
	ErrAlreadyRegistered = errors.New("account already registered")
	ErrNotSynchronised   = errors.New("account not synchronised")
	ErrBusy              = errors.New("another step is still running")
	ErrReset             = errors.New("wizard was reset while the step was running")
)

// SDK is what the wizard needs from the sdk.
type SDK interface {
	transactions.SDK

	Run(ctx context.Context) error
	Destroy() error

	GenerateAccountKeyPair(ctx context.Context, addr wallet.EthAddress) (*sdk.KeyPair, error)
	GenerateSpendingKeyPair(ctx context.Context, addr wallet.EthAddress) (*sdk.KeyPair, error)

	UserExists(ctx context.Context, pub sdk.PublicKey) (bool, error)
	GetUser(ctx context.Context, pub sdk.PublicKey) (sdk.User, error)
	AddUser(ctx context.Context, privateKey []byte) (sdk.User, error)

	IsAccountRegistered(ctx context.Context, pub sdk.PublicKey, includePending bool) (bool, error)
	GetBalance(ctx context.Context, pub sdk.PublicKey, assetID uint32) (*big.Int, error)
	AssetIDBySymbol(symbol string) (uint32, error)
	FromBaseUnits(value *big.Int, assetID uint32) string
	TxReceipt(ctx context.Context, id rollup.TxID) (*rollup.TxReceipt, error)
}

// SDKFactory builds the sdk once the wallet is connected.
type SDKFactory func(provider wallet.Provider, opts sdk.Options) (SDK, error)

// NewSDK is the SDKFactory of the real sdk.
func NewSDK(provider wallet.Provider, opts sdk.Options) (SDK, error) {
	client, err := sdk.New(provider, opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type (
	registerFunc func(
		ctx context.Context,
		s transactions.SDK,
		accountPublicKey sdk.PublicKey,
		alias string,
		accountPrivateKey []byte,
		spendingPublicKey sdk.PublicKey,
		recoveryPublicKey sdk.PublicKey,
		assetAddress wallet.EthAddress,
		depositQuantity *big.Int,
		speed rollup.SettlementTime,
		depositor wallet.EthAddress,
	) (rollup.TxID, error)

	depositFunc func(
		ctx context.Context,
		s transactions.SDK,
		depositor wallet.EthAddress,
		recipient sdk.PublicKey,
		amount *big.Int,
		speed rollup.SettlementTime,
	) (rollup.TxID, error)
)

// Manager holds the wizard state. Handlers may be called from any goroutine
// but only one runs at a time.
type Manager struct {
	cfg    *configs.Config
	newSDK SDKFactory
	logger zerolog.Logger

	registerAccount registerFunc
	depositEth      depositFunc

	mu sync.Mutex
	// generation is bumped by Reset, handlers from an older generation
	// drop their results
	generation uint64
	busy       bool
	listeners  []func()

	provider   wallet.Provider
	connecting bool
	ethAccount wallet.EthAddress
	sdk        SDK

	keyPair  *sdk.KeyPair
	keyOwner wallet.EthAddress

	user       sdk.User
	registered bool
	synced     bool
	balance    string

	spendingKeys   *sdk.KeyPair
	spendingSigner *sdk.SchnorrSigner

	history TxHistory
}

// NewManager creates the wizard. provider may be nil when no wallet exists
// yet, see SetProvider.
func NewManager(cfg *configs.Config, provider wallet.Provider, newSDK SDKFactory) *Manager {
	if newSDK == nil {
		newSDK = NewSDK
	}
	return &Manager{
		cfg:             cfg,
		newSDK:          newSDK,
		logger:          logging.Component("wizard"),
		registerAccount: transactions.RegisterAccount,
		depositEth:      transactions.DepositEth,
		provider:        provider,
	}
}

// SetProvider installs the wallet once it was created or imported. The
// wizard starts over.
func (m *Manager) SetProvider(provider wallet.Provider) {
	m.Reset()
	m.mu.Lock()
	m.provider = provider
	m.mu.Unlock()
	m.changed()
}

// OnChange registers fn to be called after every state change.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Reset drops everything but the wallet, like reloading the page. It is
// called when the wallet accounts change.
func (m *Manager) Reset() {
	m.mu.Lock()
	client := m.sdk
	m.generation++
	m.busy = false
	m.connecting = false
	m.ethAccount = wallet.EthAddress{}
	m.sdk = nil
	m.keyPair = nil
	m.keyOwner = wallet.EthAddress{}
	m.user = nil
	m.registered = false
	m.synced = false
	m.balance = ""
	m.spendingKeys = nil
	m.spendingSigner = nil
	m.history = nil
	m.mu.Unlock()

	if client != nil {
		m.destroySDK(client)
	}
	m.logger.Info().Msg("wizard reset")
	m.changed()
}

// Close releases the sdk and the wallet.
func (m *Manager) Close() error {
	m.Reset()
	m.mu.Lock()
	provider := m.provider
	m.mu.Unlock()
	if provider != nil {
		return provider.Close()
	}
	return nil
}

func (m *Manager) destroySDK(client SDK) {
	if err := client.Destroy(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to destroy sdk")
	}
}

// begin marks a handler as running and returns its generation.
func (m *Manager) begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return 0, ErrBusy
	}
	m.busy = true
	return m.generation, nil
}

func (m *Manager) end(gen uint64) {
	m.mu.Lock()
	if gen == m.generation {
		m.busy = false
	}
	m.mu.Unlock()
	m.changed()
}

// commit applies fn to the state unless the wizard was reset since gen.
func (m *Manager) commit(gen uint64, fn func()) error {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return ErrReset
	}
	fn()
	m.mu.Unlock()
	m.changed()
	return nil
}

func (m *Manager) changed() {
	m.mu.Lock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (m *Manager) sdkOptions() sdk.Options {
	opts := sdk.Options{
		ServerURL:       m.cfg.ServerURL,
		PollInterval:    m.cfg.PollInterval,
		MemoryDB:        m.cfg.MemoryDB,
		Flavour:         sdk.FlavourPlain,
		MinConfirmation: m.cfg.MinConfirmation,
	}
	if !opts.MemoryDB {
		opts.DataDir = m.cfg.SDKDataDir()
	}
	return opts
}
