package controller

import (
	"context"
	"errors"

	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/wallet"
)

// Connect asks the wallet for its accounts and starts the sdk. On failure the
// wizard stays unconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	provider, connected := m.provider, m.sdk != nil
	m.mu.Unlock()

	if provider == nil {
		m.logger.Warn().Msg("connect without wallet")
		return ErrNoWallet
	}
	if connected {
		return nil
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(gen)

	m.commit(gen, func() { m.connecting = true })
	defer m.commit(gen, func() { m.connecting = false })

	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		m.logger.Err(err).Msg("wallet connection failed")
		return err
	}
	if len(accounts) == 0 {
		m.logger.Error().Msg("wallet returned no accounts")
		return ErrNoWallet
	}
	account := accounts[0]

	client, err := m.newSDK(provider, m.sdkOptions())
	if err != nil {
		m.logger.Err(err).Msg("failed to create sdk")
		return err
	}
	if err := client.Run(ctx); err != nil {
		m.logger.Err(err).Str("server", m.cfg.ServerURL).Msg("failed to start sdk")
		m.destroySDK(client)
		return err
	}

	err = m.commit(gen, func() {
		m.ethAccount = account
		m.sdk = client
	})
	if err != nil {
		m.destroySDK(client)
		return err
	}

	m.logger.Info().Str("account", account.Hex()).Str("server", m.cfg.ServerURL).Msg("wallet connected")
	return nil
}

// Login derives the privacy key pair of the connected account.
func (m *Manager) Login(ctx context.Context) error {
	m.mu.Lock()
	client, account := m.sdk, m.ethAccount
	m.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(gen)

	keyPair, err := client.GenerateAccountKeyPair(ctx, account)
	if err != nil {
		m.logger.Err(err).Msg("failed to generate privacy key pair")
		return err
	}

	m.logger.Info().Str("public_key", keyPair.PublicKey.String()).Msg("privacy key pair generated")
	return m.commit(gen, func() {
		m.keyPair = keyPair
		m.keyOwner = account
	})
}

// SyncAndShowBalance loads or creates the user of the privacy key, checks
// its registration, waits for it to be synchronised and reads the ETH
// balance.
func (m *Manager) SyncAndShowBalance(ctx context.Context) error {
	m.mu.Lock()
	client, keyPair := m.sdk, m.keyPair
	m.mu.Unlock()

	switch {
	case client == nil:
		return ErrNotConnected
	case keyPair == nil:
		return ErrNoPrivacyKey
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(gen)

	pub := keyPair.PublicKey
	logger := m.logger.With().Str("user", pub.String()).Logger()

	exists, err := client.UserExists(ctx, pub)
	if err != nil {
		logger.Err(err).Msg("failed to look up user")
		return err
	}
	var user sdk.User
	if exists {
		user, err = client.GetUser(ctx, pub)
	} else {
		user, err = client.AddUser(ctx, keyPair.PrivateKey)
	}
	if err != nil {
		logger.Err(err).Bool("existed", exists).Msg("failed to load user")
		return err
	}
	if err := m.commit(gen, func() { m.user = user }); err != nil {
		return err
	}

	registered, err := client.IsAccountRegistered(ctx, pub, false)
	if err != nil {
		logger.Err(err).Msg("failed to check registration")
		return err
	}
	if err := m.commit(gen, func() { m.registered = registered }); err != nil {
		return err
	}

	if err := user.AwaitSynchronised(ctx); err != nil {
		logger.Err(err).Msg("synchronisation failed")
		return err
	}

	assetID, err := client.AssetIDBySymbol("ETH")
	if err != nil {
		logger.Err(err).Msg("ETH not supported by the rollup")
		return err
	}
	balance, err := client.GetBalance(ctx, pub, assetID)
	if err != nil {
		logger.Err(err).Msg("failed to read balance")
		return err
	}
	formatted := client.FromBaseUnits(balance, assetID)

	logger.Info().Str("balance", formatted).Bool("registered", registered).Msg("zkETH balance")
	return m.commit(gen, func() {
		m.synced = true
		m.balance = formatted
	})
}

// DeriveSpendingKey derives the spending key pair and its signer.
func (m *Manager) DeriveSpendingKey(ctx context.Context) error {
	m.mu.Lock()
	client, account, user := m.sdk, m.ethAccount, m.user
	m.mu.Unlock()

	switch {
	case client == nil:
		return ErrNotConnected
	case user == nil:
		return ErrNoAccount
	}

	gen, err := m.begin()
	if err != nil {
		return err
	}
	defer m.end(gen)

	keys, err := client.GenerateSpendingKeyPair(ctx, account)
	if err != nil {
		m.logger.Err(err).Msg("failed to generate spending key pair")
		return err
	}
	signer, err := client.CreateSchnorrSigner(keys.PrivateKey)
	if err != nil {
		m.logger.Err(err).Msg("failed to create spending signer")
		return err
	}

	m.logger.Info().Str("public_key", signer.PublicKey().String()).Msg("spending signer added")
	return m.commit(gen, func() {
		m.spendingKeys = keys
		m.spendingSigner = signer
	})
}

// isRejection reports errors caused by the user declining a wallet prompt.
func isRejection(err error) bool {
	return errors.Is(err, wallet.ErrUserRejected)
}
