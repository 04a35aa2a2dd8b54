package controller

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/units"
	"github.com/setavenger/zkwizard/internal/wallet"
)

// RegisterAccount registers the configured alias for the privacy key with the
// spending key and a throwaway recovery key, funding it with the configured
// deposit at instant speed.
func (m *Manager) RegisterAccount(ctx context.Context) error {
	m.mu.Lock()
	var (
		client     = m.sdk
		account    = m.ethAccount
		keyPair    = m.keyPair
		signer     = m.spendingSigner
		user       = m.user
		registered = m.registered
		synced     = m.synced
	)
	m.mu.Unlock()

	switch {
	case client == nil:
		return ErrNotConnected
	case keyPair == nil:
		return ErrNoPrivacyKey
	case user == nil:
		return ErrNoAccount
	case signer == nil:
		return ErrNoSpendingKey
	case registered:
		return ErrAlreadyRegistered
	case !synced:
		return ErrNotSynchronised
	}

	deposit, err := m.depositAmount()
	if err != nil {
		return err
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(gen)

	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return fmt.Errorf("failed to generate recovery key: %w", err)
	}
	recoverySigner, err := client.CreateSchnorrSigner(seed)
	if err != nil {
		m.logger.Err(err).Msg("failed to create recovery signer")
		return err
	}

	txID, err := m.registerAccount(
		ctx,
		client,
		keyPair.PublicKey,
		m.cfg.Alias,
		keyPair.PrivateKey,
		signer.PublicKey(),
		recoverySigner.PublicKey(),
		wallet.ZeroAddress,
		deposit,
		rollup.Instant,
		account,
	)
	if err != nil {
		m.logFailure(err, "registration failed")
		return err
	}

	m.logger.Info().
		Str("tx_id", txID.String()).
		Str("alias", m.cfg.Alias).
		Str("explorer", m.cfg.ExplorerLink(txID.String())).
		Msg("registration submitted")

	item := m.newHistoryItem(TxKindRegister, txID, deposit)
	if err := m.commit(gen, func() { m.history = append(m.history, item) }); err != nil {
		return err
	}

	// pending registrations count, the tx may not be in a rollup yet
	registered, err = client.IsAccountRegistered(ctx, keyPair.PublicKey, true)
	if err != nil {
		m.logger.Err(err).Msg("failed to check registration")
		return err
	}
	return m.commit(gen, func() { m.registered = registered })
}

// DepositEth deposits the configured amount into the account at instant
// speed.
func (m *Manager) DepositEth(ctx context.Context) error {
	m.mu.Lock()
	client, account, keyPair := m.sdk, m.ethAccount, m.keyPair
	signer, user := m.spendingSigner, m.user
	m.mu.Unlock()

	switch {
	case client == nil:
		return ErrNotConnected
	case keyPair == nil:
		return ErrNoPrivacyKey
	case user == nil:
		return ErrNoAccount
	case signer == nil:
		return ErrNoSpendingKey
	}

	amount, err := m.depositAmount()
	if err != nil {
		return err
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(gen)

	txID, err := m.depositEth(ctx, client, account, keyPair.PublicKey, amount, rollup.Instant)
	if err != nil {
		m.logFailure(err, "deposit failed")
		return err
	}

	m.logger.Info().
		Str("tx_id", txID.String()).
		Str("amount", units.FromBaseUnits(amount, units.EtherDecimals)).
		Str("explorer", m.cfg.ExplorerLink(txID.String())).
		Msg("deposit submitted")

	item := m.newHistoryItem(TxKindDeposit, txID, amount)
	return m.commit(gen, func() { m.history = append(m.history, item) })
}

func (m *Manager) depositAmount() (*big.Int, error) {
	amount, err := units.ParseEther(m.cfg.DepositETH)
	if err != nil {
		m.logger.Err(err).Str("deposit_eth", m.cfg.DepositETH).Msg("invalid deposit amount in config")
		return nil, err
	}
	return amount, nil
}

func (m *Manager) logFailure(err error, msg string) {
	if isRejection(err) {
		m.logger.Info().Err(err).Msg(msg)
		return
	}
	m.logger.Err(err).Msg(msg)
}
