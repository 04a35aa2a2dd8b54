package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/setavenger/zkwizard/internal/logging"
)

var (
	ErrNoProvider     = errors.New("no wallet provider available")
	ErrUserRejected   = errors.New("user rejected the request")
	ErrLocked         = errors.New("wallet is locked, request accounts first")
	ErrUnknownAccount = errors.New("unknown account")
)

// Provider is the wallet boundary the wizard and the sdk talk to. It plays
// the role of an injected browser wallet.
type Provider interface {
	// RequestAccounts asks the user to connect and returns the accounts.
	RequestAccounts(ctx context.Context) ([]EthAddress, error)
	// Accounts returns the connected accounts without prompting.
	Accounts() []EthAddress
	// SignPersonalMessage signs msg with addr using the personal_sign scheme.
	SignPersonalMessage(ctx context.Context, addr EthAddress, msg []byte) ([]byte, error)
	// OnAccountsChanged registers fn to be called when the accounts change.
	OnAccountsChanged(fn func(accounts []EthAddress))
	Close() error
}

// Approver asks the user for consent. The GUI implements it with dialogs.
type Approver interface {
	// ApproveConnect returns the keystore password or ErrUserRejected.
	ApproveConnect(ctx context.Context, address EthAddress) ([]byte, error)
	// ApproveSignature returns nil when the user accepts signing message.
	ApproveSignature(ctx context.Context, address EthAddress, message string) error
}

// LocalProvider is a Provider backed by the encrypted keystore in the data dir.
type LocalProvider struct {
	path     string
	approver Approver

	mu        sync.Mutex
	key       *btcec.PrivateKey
	account   EthAddress
	listeners []func([]EthAddress)
	watcher   *keystoreWatcher
}

// NewLocalProvider returns ErrNoProvider when no keystore exists at path.
func NewLocalProvider(path string, approver Approver) (*LocalProvider, error) {
	if !KeystoreExists(path) {
		return nil, ErrNoProvider
	}
	file, err := ReadKeystore(path)
	if err != nil {
		return nil, err
	}

	p := &LocalProvider{
		path:     path,
		approver: approver,
		account:  file.Address,
	}

	p.watcher, err = watchKeystore(path, p.keystoreChanged)
	if err != nil {
		logging.L.Warn().Err(err).Str("path", path).Msg("account change notifications disabled")
	}
	return p, nil
}

func (p *LocalProvider) RequestAccounts(ctx context.Context) ([]EthAddress, error) {
	p.mu.Lock()
	if p.key != nil {
		account := p.account
		p.mu.Unlock()
		return []EthAddress{account}, nil
	}
	account := p.account
	p.mu.Unlock()

	password, err := p.approver.ApproveConnect(ctx, account)
	if err != nil {
		return nil, err
	}
	defer clear(password)

	mnemonic, err := UnlockKeystore(p.path, password)
	if err != nil {
		return nil, err
	}

	key, err := DeriveAccountKey(mnemonic, 0)
	if err != nil {
		return nil, err
	}
	derived := AddressFromPubKey(key.PubKey())
	if derived != account {
		return nil, fmt.Errorf("keystore address %s does not match derived %s", account, derived)
	}

	p.mu.Lock()
	p.key = key
	p.mu.Unlock()

	logging.L.Info().Str("account", account.Hex()).Msg("wallet connected")
	return []EthAddress{account}, nil
}

func (p *LocalProvider) Accounts() []EthAddress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.key == nil {
		return nil
	}
	return []EthAddress{p.account}
}

func (p *LocalProvider) SignPersonalMessage(ctx context.Context, addr EthAddress, msg []byte) ([]byte, error) {
	p.mu.Lock()
	key, account := p.key, p.account
	p.mu.Unlock()

	if key == nil {
		return nil, ErrLocked
	}
	if addr != account {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}

	if err := p.approver.ApproveSignature(ctx, addr, string(msg)); err != nil {
		return nil, err
	}
	return SignPersonal(key, msg)
}

func (p *LocalProvider) OnAccountsChanged(fn func([]EthAddress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *LocalProvider) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// keystoreChanged locks the wallet again and notifies the listeners.
func (p *LocalProvider) keystoreChanged() {
	p.mu.Lock()
	p.key = nil
	if file, err := ReadKeystore(p.path); err == nil {
		p.account = file.Address
	}
	listeners := append([]func([]EthAddress){}, p.listeners...)
	p.mu.Unlock()

	logging.L.Info().Str("path", p.path).Msg("keystore changed, accounts reset")
	for _, fn := range listeners {
		fn(nil)
	}
}
