package sandbox

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/storage"
	"github.com/setavenger/zkwizard/internal/wallet"
)

const testMnemonic = "test test test test test test test test test test test junk"

var oneEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := storage.Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l, err := NewLedger(db, oneEth)
	require.NoError(t, err)
	return l
}

func testProvider(t *testing.T, index uint32) *wallet.KeyProvider {
	t.Helper()
	p, err := wallet.NewMnemonicProvider(testMnemonic, index)
	require.NoError(t, err)
	return p
}

func testKeyPair(t *testing.T, b byte) *sdk.KeyPair {
	t.Helper()
	kp, err := sdk.KeyPairFromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return kp
}

func signedDeposit(t *testing.T, p *wallet.KeyProvider, to rollup.PublicKey, value int64, speed rollup.SettlementTime) *rollup.Tx {
	t.Helper()
	d := &rollup.DepositTx{
		Depositor: p.Accounts()[0],
		Recipient: to,
		AssetID:   rollup.EthAssetID,
		Value:     big.NewInt(value),
		Fee:       big.NewInt(depositFees[speed]),
		Speed:     speed,
	}
	sig, err := p.SignPersonalMessage(context.Background(), d.Depositor, rollup.WalletApprovalMessage(d.Digest()))
	require.NoError(t, err)
	d.WalletSignature = sig
	return &rollup.Tx{Type: rollup.TxTypeDeposit, Deposit: d}
}

func signedRegister(t *testing.T, p *wallet.KeyProvider, account *sdk.KeyPair, alias string, deposit int64) *rollup.Tx {
	t.Helper()
	r := &rollup.RegisterTx{
		AccountPublicKey:  account.PublicKey,
		Alias:             alias,
		SpendingPublicKey: testKeyPair(t, 0x20).PublicKey,
		RecoveryPublicKey: testKeyPair(t, 0x30).PublicKey,
		AssetID:           rollup.EthAssetID,
		Deposit:           big.NewInt(deposit),
		Fee:               big.NewInt(registerFees[rollup.Instant]),
		Depositor:         p.Accounts()[0],
		Speed:             rollup.Instant,
	}
	signer, err := sdk.NewSchnorrSigner(account.PrivateKey)
	require.NoError(t, err)
	r.AccountSignature, err = signer.Sign(r.Digest())
	require.NoError(t, err)

	r.WalletSignature, err = p.SignPersonalMessage(context.Background(), r.Depositor, rollup.WalletApprovalMessage(r.DepositDigest()))
	require.NoError(t, err)
	return &rollup.Tx{Type: rollup.TxTypeRegister, Register: r}
}

func TestLedgerDeposit(t *testing.T) {
	l := newTestLedger(t)
	p := testProvider(t, 0)
	owner := testKeyPair(t, 1).PublicKey

	var published []int64
	l.OnRollup(func(id int64) { published = append(published, id) })

	id, err := l.Submit(signedDeposit(t, p, owner, 1000, rollup.NextRollup))
	require.NoError(t, err)
	assert.Equal(t, 1, l.Status().PendingTxs)
	assert.Equal(t, int64(-1), l.Status().LatestRollupID)

	receipt, err := l.Receipt(id)
	require.NoError(t, err)
	assert.False(t, receipt.Settled)
	assert.Equal(t, int64(-1), receipt.RollupID)

	expected := new(big.Int).Sub(oneEth, big.NewInt(1000+depositFees[rollup.NextRollup]))
	assert.Equal(t, 0, expected.Cmp(l.L1Balance(p.Accounts()[0])), "value and fee debited on submit")

	ok, err := l.Publish()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{0}, published)

	ok, err = l.Publish()
	require.NoError(t, err)
	assert.False(t, ok, "nothing pending")

	receipt, err = l.Receipt(id)
	require.NoError(t, err)
	assert.True(t, receipt.Settled)
	assert.Equal(t, int64(0), receipt.RollupID)

	notes := l.Notes(owner, 0, 0)
	require.Len(t, notes, 1)
	assert.Equal(t, int64(1000), notes[0].Value.Int64())
	assert.Empty(t, l.Notes(owner, 1, 5))
	assert.Empty(t, l.Notes(testKeyPair(t, 2).PublicKey, 0, 0))
}

func TestLedgerInstantPublishes(t *testing.T) {
	l := newTestLedger(t)
	p := testProvider(t, 0)

	_, err := l.Submit(signedDeposit(t, p, testKeyPair(t, 1).PublicKey, 1, rollup.Instant))
	require.NoError(t, err)
	assert.Equal(t, int64(0), l.Status().LatestRollupID)
	assert.Zero(t, l.Status().PendingTxs)
}

func TestLedgerRejectsDeposits(t *testing.T) {
	l := newTestLedger(t)
	p := testProvider(t, 0)
	owner := testKeyPair(t, 1).PublicKey

	tx := signedDeposit(t, p, owner, 1, rollup.Instant)
	tx.Deposit.Value = big.NewInt(2)
	_, err := l.Submit(tx)
	assert.ErrorIs(t, err, ErrBadSignature, "signature over other value")

	tx = signedDeposit(t, p, owner, 1, rollup.Instant)
	tx.Deposit.Depositor = testProvider(t, 1).Accounts()[0]
	_, err = l.Submit(tx)
	assert.ErrorIs(t, err, ErrBadSignature, "signed by someone else")

	tx = signedDeposit(t, p, owner, 1, rollup.Instant)
	tx.Deposit.Fee = big.NewInt(1)
	_, err = l.Submit(tx)
	assert.ErrorIs(t, err, ErrInsufficientFee)

	_, err = l.Submit(signedDeposit(t, p, owner, oneEth.Int64(), rollup.Instant))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = l.Submit(&rollup.Tx{Type: rollup.TxTypeDeposit})
	assert.ErrorIs(t, err, ErrInvalidTx)

	assert.Equal(t, 0, oneEth.Cmp(l.L1Balance(p.Accounts()[0])), "rejected txs must not debit")
	assert.Equal(t, int64(-1), l.Status().LatestRollupID)
}

func TestLedgerRegister(t *testing.T) {
	l := newTestLedger(t)
	p := testProvider(t, 0)
	account := testKeyPair(t, 1)

	assert.False(t, l.IsRegistered(account.PublicKey, true))

	_, err := l.Submit(signedRegister(t, p, account, "test232", 10_000))
	require.NoError(t, err)

	assert.True(t, l.IsRegistered(account.PublicKey, false))
	notes := l.Notes(account.PublicKey, 0, 0)
	require.Len(t, notes, 1)
	assert.Equal(t, int64(10_000), notes[0].Value.Int64())

	_, err = l.Submit(signedRegister(t, p, account, "other", 0))
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = l.Submit(signedRegister(t, p, testKeyPair(t, 2), "test232", 0))
	assert.ErrorIs(t, err, ErrAliasTaken)

	tx := signedRegister(t, p, testKeyPair(t, 3), "third", 0)
	tx.Register.AccountSignature[0] ^= 0xff
	_, err = l.Submit(tx)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestLedgerPendingRegistration(t *testing.T) {
	l := newTestLedger(t)
	p := testProvider(t, 0)
	account := testKeyPair(t, 1)

	tx := signedRegister(t, p, account, "slow", 0)
	tx.Register.Speed = rollup.NextRollup
	tx.Register.Fee = big.NewInt(registerFees[rollup.NextRollup])
	signer, err := sdk.NewSchnorrSigner(account.PrivateKey)
	require.NoError(t, err)
	tx.Register.AccountSignature, err = signer.Sign(tx.Register.Digest())
	require.NoError(t, err)
	tx.Register.WalletSignature, err = p.SignPersonalMessage(context.Background(), tx.Register.Depositor, rollup.WalletApprovalMessage(tx.Register.DepositDigest()))
	require.NoError(t, err)

	_, err = l.Submit(tx)
	require.NoError(t, err)

	assert.False(t, l.IsRegistered(account.PublicKey, false))
	assert.True(t, l.IsRegistered(account.PublicKey, true))

	_, err = l.Submit(signedRegister(t, p, testKeyPair(t, 2), "slow", 0))
	assert.ErrorIs(t, err, ErrAliasTaken, "pending alias is reserved")
}

func TestLedgerReload(t *testing.T) {
	dir := t.TempDir()
	p := testProvider(t, 0)
	owner := testKeyPair(t, 1).PublicKey

	db, err := storage.Open(dir, false)
	require.NoError(t, err)
	l, err := NewLedger(db, oneEth)
	require.NoError(t, err)
	_, err = l.Submit(signedDeposit(t, p, owner, 42, rollup.Instant))
	require.NoError(t, err)
	_, err = l.Submit(signedDeposit(t, p, owner, 7, rollup.NextRollup))
	require.NoError(t, err)
	balance := l.L1Balance(p.Accounts()[0])
	require.NoError(t, db.Close())

	db, err = storage.Open(dir, false)
	require.NoError(t, err)
	defer db.Close()
	l, err = NewLedger(db, oneEth)
	require.NoError(t, err)

	status := l.Status()
	assert.Equal(t, int64(0), status.LatestRollupID)
	assert.Equal(t, 1, status.PendingTxs)
	assert.Equal(t, 0, balance.Cmp(l.L1Balance(p.Accounts()[0])))
	require.Len(t, l.Notes(owner, 0, 10), 1)

	_, err = l.Publish()
	require.NoError(t, err)
	assert.Len(t, l.Notes(owner, 0, 10), 2)
}

func TestLedgerSubmitRollsBackWhenStoreFails(t *testing.T) {
	db, err := storage.Open("", true)
	require.NoError(t, err)
	l, err := NewLedger(db, oneEth)
	require.NoError(t, err)

	p := testProvider(t, 0)
	depositor := p.Accounts()[0]
	require.NoError(t, db.Close())

	_, err = l.Submit(signedDeposit(t, p, testKeyPair(t, 1).PublicKey, 1000, rollup.NextRollup))
	require.Error(t, err)

	assert.Equal(t, 0, l.Status().PendingTxs)
	assert.Equal(t, 0, oneEth.Cmp(l.L1Balance(depositor)), "nothing debited")

	l.mu.RLock()
	defer l.mu.RUnlock()
	assert.Empty(t, l.state.Receipts)
	assert.Zero(t, l.state.Seq)
	_, tracked := l.state.L1[depositor]
	assert.False(t, tracked)
}
