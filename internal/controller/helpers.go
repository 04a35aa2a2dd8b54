package controller

import (
	"encoding/hex"

	"github.com/rs/zerolog"

	"github.com/setavenger/zkwizard/internal/wallet"
)

/* Snapshots so the GUI never reaches into the state directly */

// AccountInfo is the content of the account info table. Empty strings are
// values that do not exist yet.
type AccountInfo struct {
	EthAddress         string
	Balance            string
	PrivacyPublicKey   string
	PrivacyPrivateKey  string
	SpendingPublicKey  string
	SpendingPrivateKey string
	Registered         bool
	LastTx             *TxHistoryItem
}

func (m *Manager) AccountInfo() AccountInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var info AccountInfo
	if m.sdk != nil {
		info.EthAddress = m.ethAccount.Hex()
	}
	info.Balance = m.balance
	if m.keyPair != nil {
		info.PrivacyPublicKey = m.keyPair.PublicKey.String()
		info.PrivacyPrivateKey = hex.EncodeToString(m.keyPair.PrivateKey)
	}
	if m.spendingKeys != nil {
		info.SpendingPublicKey = m.spendingKeys.PublicKey.String()
		info.SpendingPrivateKey = hex.EncodeToString(m.spendingKeys.PrivateKey)
	}
	info.Registered = m.registered
	info.LastTx = m.history.Last()
	return info
}

// EthAccount returns the connected account.
func (m *Manager) EthAccount() (wallet.EthAddress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ethAccount, m.sdk != nil
}

func (m *Manager) HasWallet() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider != nil
}

// LogSDK dumps the sdk state at info level.
func (m *Manager) LogSDK() {
	m.mu.Lock()
	client := m.sdk
	m.mu.Unlock()

	if client == nil {
		m.logger.Info().Msg("sdk not started")
		return
	}
	if o, ok := client.(zerolog.LogObjectMarshaler); ok {
		m.logger.Info().Object("sdk", o).Msg("sdk")
		return
	}
	m.logger.Info().Msgf("sdk %T", client)
}
