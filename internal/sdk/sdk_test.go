package sdk_test

import (
	"bytes"
	"context"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/sandbox"
	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/storage"
	"github.com/setavenger/zkwizard/internal/transactions"
	"github.com/setavenger/zkwizard/internal/wallet"
)

const testMnemonic = "test test test test test test test test test test test junk"

var oneEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func startSandbox(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := storage.Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger, err := sandbox.NewLedger(db, oneEth)
	require.NoError(t, err)

	srv := httptest.NewServer(sandbox.NewServer(ledger, time.Hour).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, serverURL string) (*sdk.Client, *wallet.KeyProvider) {
	t.Helper()
	provider, err := wallet.NewMnemonicProvider(testMnemonic, 0)
	require.NoError(t, err)

	c, err := sdk.New(provider, sdk.Options{
		ServerURL:       serverURL,
		PollInterval:    50 * time.Millisecond,
		MemoryDB:        true,
		MinConfirmation: 1,
	})
	require.NoError(t, err)
	return c, provider
}

func TestKeyDerivationIsDeterministic(t *testing.T) {
	c, provider := newClient(t, "http://localhost:1")
	defer c.Destroy()
	addr := provider.Accounts()[0]
	ctx := context.Background()

	first, err := c.GenerateAccountKeyPair(ctx, addr)
	require.NoError(t, err)
	second, err := c.GenerateAccountKeyPair(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey, second.PublicKey)
	assert.Equal(t, first.PrivateKey, second.PrivateKey)

	spending, err := c.GenerateSpendingKeyPair(ctx, addr)
	require.NoError(t, err)
	assert.NotEqual(t, first.PublicKey, spending.PublicKey, "account and spending keys must differ")

	other, err := wallet.NewMnemonicProvider(testMnemonic, 1)
	require.NoError(t, err)
	_, err = c.GenerateAccountKeyPair(ctx, other.Accounts()[0])
	assert.ErrorIs(t, err, wallet.ErrUnknownAccount)
}

func TestSchnorrSigner(t *testing.T) {
	kp, err := sdk.KeyPairFromSeed(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	signer, err := sdk.NewSchnorrSigner(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, signer.PublicKey())

	digest := wallet.Keccak256([]byte("digest"))
	sig, err := signer.Sign(digest)
	require.NoError(t, err)

	ok, err := sdk.VerifySchnorr(kp.PublicKey, digest, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = sdk.VerifySchnorr(kp.PublicKey, wallet.Keccak256([]byte("other")), sig)
	assert.False(t, ok)

	// a raw 32 byte seed is accepted as well
	fromSeed, err := sdk.NewSchnorrSigner(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, fromSeed.PublicKey())

	_, err = sdk.NewSchnorrSigner([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := sdk.New(nil, sdk.Options{ServerURL: "http://localhost:1", MemoryDB: true})
	assert.ErrorIs(t, err, wallet.ErrNoProvider)

	provider, err := wallet.NewMnemonicProvider(testMnemonic, 0)
	require.NoError(t, err)
	_, err = sdk.New(provider, sdk.Options{MemoryDB: true})
	assert.Error(t, err)
	_, err = sdk.New(provider, sdk.Options{ServerURL: "http://localhost:1", MemoryDB: true, Flavour: "hosted"})
	assert.Error(t, err)
	_, err = sdk.New(provider, sdk.Options{ServerURL: "http://localhost:1"})
	assert.Error(t, err, "persistent db without data dir")
}

func TestRunFailsWithoutServer(t *testing.T) {
	c, _ := newClient(t, "http://127.0.0.1:1")
	defer c.Destroy()
	assert.Error(t, c.Run(context.Background()))

	_, err := c.SubmitTx(context.Background(), &rollup.Tx{})
	assert.ErrorIs(t, err, sdk.ErrNotRunning)
}

func TestUsers(t *testing.T) {
	srv := startSandbox(t)
	c, provider := newClient(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, c.Run(ctx))
	defer c.Destroy()

	kp, err := c.GenerateAccountKeyPair(ctx, provider.Accounts()[0])
	require.NoError(t, err)

	exists, err := c.UserExists(ctx, kp.PublicKey)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.GetUser(ctx, kp.PublicKey)
	assert.ErrorIs(t, err, sdk.ErrUserNotFound)

	user, err := c.AddUser(ctx, kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, user.ID())

	_, err = c.AddUser(ctx, kp.PrivateKey)
	assert.ErrorIs(t, err, sdk.ErrUserExists)

	again, err := c.GetUser(ctx, kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, user.ID(), again.ID())

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, user.AwaitSynchronised(waitCtx))

	ethID, err := c.AssetIDBySymbol("ETH")
	require.NoError(t, err)
	balance, err := c.GetBalance(ctx, kp.PublicKey, ethID)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
	assert.Equal(t, "0", c.FromBaseUnits(balance, ethID))

	_, err = c.AssetIDBySymbol("DAI")
	assert.ErrorIs(t, err, sdk.ErrUnknownAsset)
}

func TestRegisterAndDepositRoundTrip(t *testing.T) {
	srv := startSandbox(t)
	c, provider := newClient(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, c.Run(ctx))
	defer c.Destroy()

	addr := provider.Accounts()[0]
	account, err := c.GenerateAccountKeyPair(ctx, addr)
	require.NoError(t, err)
	spending, err := c.GenerateSpendingKeyPair(ctx, addr)
	require.NoError(t, err)
	recovery, err := c.CreateSchnorrSigner(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)

	user, err := c.AddUser(ctx, account.PrivateKey)
	require.NoError(t, err)

	registered, err := c.IsAccountRegistered(ctx, account.PublicKey, true)
	require.NoError(t, err)
	assert.False(t, registered)

	deposit, err := c.ToBaseUnits("0.01", rollup.EthAssetID)
	require.NoError(t, err)

	_, err = transactions.RegisterAccount(
		ctx, c,
		account.PublicKey, "test232", account.PrivateKey,
		spending.PublicKey, recovery.PublicKey(),
		wallet.ZeroAddress, deposit, rollup.Instant, addr,
	)
	require.NoError(t, err)

	registered, err = c.IsAccountRegistered(ctx, account.PublicKey, false)
	require.NoError(t, err)
	assert.True(t, registered)

	txID, err := transactions.DepositEth(ctx, c, addr, account.PublicKey, deposit, rollup.Instant)
	require.NoError(t, err)

	receipt, err := c.TxReceipt(ctx, txID)
	require.NoError(t, err)
	assert.True(t, receipt.Settled)
	assert.Equal(t, rollup.TxTypeDeposit, receipt.Type)

	_, err = c.TxReceipt(ctx, rollup.TxID{1})
	var serverErr *sdk.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, 404, serverErr.StatusCode)

	// both instant txs are settled, wait until the notes arrive
	require.Eventually(t, func() bool {
		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := user.AwaitSynchronised(waitCtx); err != nil {
			return false
		}
		balance, err := c.GetBalance(ctx, account.PublicKey, rollup.EthAssetID)
		return err == nil && c.FromBaseUnits(balance, rollup.EthAssetID) == "0.02"
	}, 10*time.Second, 50*time.Millisecond)
}

func TestDestroyWakesWaiters(t *testing.T) {
	srv := startSandbox(t)
	c, provider := newClient(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, c.Run(ctx))

	kp, err := c.GenerateAccountKeyPair(ctx, provider.Accounts()[0])
	require.NoError(t, err)
	user, err := c.AddUser(ctx, kp.PrivateKey)
	require.NoError(t, err)

	require.NoError(t, c.Destroy())
	require.NoError(t, c.Destroy())
	assert.ErrorIs(t, c.Run(ctx), sdk.ErrDestroyed)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.Error(t, user.AwaitSynchronised(waitCtx))
	assert.NoError(t, waitCtx.Err(), "must not block until the deadline")
}
