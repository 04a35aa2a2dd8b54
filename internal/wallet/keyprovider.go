package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// KeyProvider is an always unlocked Provider over a single key. It never
// prompts, which makes it suitable for scripted deposits against a sandbox.
type KeyProvider struct {
	key     *btcec.PrivateKey
	account EthAddress
}

func NewKeyProvider(key *btcec.PrivateKey) *KeyProvider {
	return &KeyProvider{key: key, account: AddressFromPubKey(key.PubKey())}
}

// NewMnemonicProvider derives account index of mnemonic.
func NewMnemonicProvider(mnemonic string, index uint32) (*KeyProvider, error) {
	key, err := DeriveAccountKey(mnemonic, index)
	if err != nil {
		return nil, err
	}
	return NewKeyProvider(key), nil
}

func (p *KeyProvider) RequestAccounts(context.Context) ([]EthAddress, error) {
	return []EthAddress{p.account}, nil
}

func (p *KeyProvider) Accounts() []EthAddress {
	return []EthAddress{p.account}
}

func (p *KeyProvider) SignPersonalMessage(_ context.Context, addr EthAddress, msg []byte) ([]byte, error) {
	if addr != p.account {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	return SignPersonal(p.key, msg)
}

// OnAccountsChanged is a no-op, the account never changes.
func (p *KeyProvider) OnAccountsChanged(func([]EthAddress)) {}

func (p *KeyProvider) Close() error { return nil }
