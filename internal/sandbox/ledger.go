// Package sandbox runs a local rollup server the wizard can register accounts
// and deposit funds against. It checks signatures and balances but publishes
// rollups without proofs.
package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/storage"
	"github.com/setavenger/zkwizard/internal/units"
	"github.com/setavenger/zkwizard/internal/wallet"
)

var (
	ErrInvalidTx         = errors.New("invalid tx")
	ErrBadSignature      = errors.New("bad signature")
	ErrInsufficientFee   = errors.New("fee below quote")
	ErrInsufficientFunds = errors.New("insufficient l1 funds")
	ErrAccountExists     = errors.New("account already registered")
	ErrAliasTaken        = errors.New("alias already taken")
	ErrUnknownTx         = errors.New("unknown tx")
)

// fee quotes in wei, indexed by rollup.SettlementTime
var (
	depositFees  = [...]int64{100_000_000_000_000, 1_000_000_000_000_000}
	registerFees = [...]int64{200_000_000_000_000, 2_000_000_000_000_000}
)

var ethAsset = rollup.Asset{
	ID:       rollup.EthAssetID,
	Symbol:   "ETH",
	Address:  wallet.ZeroAddress,
	Decimals: units.EtherDecimals,
}

const (
	stateKey     = "ledger/state"
	rollupPrefix = "rollup/"
)

type account struct {
	Alias       string           `json:"alias"`
	SpendingKey rollup.PublicKey `json:"spendingKey"`
	RecoveryKey rollup.PublicKey `json:"recoveryKey"`
	RollupID    int64            `json:"rollupId"`
}

type pendingTx struct {
	ID rollup.TxID `json:"id"`
	Tx *rollup.Tx  `json:"tx"`
}

type rollupBlock struct {
	ID          int64         `json:"id"`
	TxIDs       []rollup.TxID `json:"txIds"`
	Notes       []rollup.Note `json:"notes"`
	PublishedAt time.Time     `json:"publishedAt"`
}

// ledgerState is everything but the published rollups.
type ledgerState struct {
	Seq            uint64                           `json:"seq"`
	LatestRollupID int64                            `json:"latestRollupId"`
	L1             map[wallet.EthAddress]*big.Int   `json:"l1"`
	Pending        []pendingTx                      `json:"pending"`
	Accounts       map[rollup.PublicKey]account     `json:"accounts"`
	Receipts       map[rollup.TxID]rollup.TxReceipt `json:"receipts"`
}

// Ledger is the state of the sandbox rollup.
type Ledger struct {
	db     *storage.Store
	faucet *big.Int
	logger zerolog.Logger

	mu       sync.RWMutex
	state    ledgerState
	notes    []rollup.Note
	onRollup []func(rollupID int64)
}

// NewLedger loads the ledger from db. Depositors seen for the first time are
// credited faucet wei on L1.
func NewLedger(db *storage.Store, faucet *big.Int) (*Ledger, error) {
	l := &Ledger{
		db:     db,
		faucet: new(big.Int).Set(faucet),
		logger: logging.Component("ledger"),
		state: ledgerState{
			LatestRollupID: -1,
			L1:             map[wallet.EthAddress]*big.Int{},
			Accounts:       map[rollup.PublicKey]account{},
			Receipts:       map[rollup.TxID]rollup.TxReceipt{},
		},
	}

	err := db.Get([]byte(stateKey), &l.state)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	err = db.Iterate([]byte(rollupPrefix), func(_, value []byte) error {
		var block rollupBlock
		if err := json.Unmarshal(value, &block); err != nil {
			return err
		}
		l.notes = append(l.notes, block.Notes...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rollups: %w", err)
	}

	l.logger.Info().
		Int64("latest_rollup", l.state.LatestRollupID).
		Int("pending", len(l.state.Pending)).
		Int("accounts", len(l.state.Accounts)).
		Msg("ledger loaded")
	return l, nil
}

// OnRollup registers fn to be called after every published rollup.
func (l *Ledger) OnRollup(fn func(rollupID int64)) {
	l.mu.Lock()
	l.onRollup = append(l.onRollup, fn)
	l.mu.Unlock()
}

func (l *Ledger) Status() rollup.Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return rollup.Status{
		LatestRollupID: l.state.LatestRollupID,
		PendingTxs:     len(l.state.Pending),
		Assets:         []rollup.Asset{ethAsset},
	}
}

func (l *Ledger) Fees(assetID uint32) (*rollup.Fees, error) {
	if assetID != ethAsset.ID {
		return nil, fmt.Errorf("%w: unknown asset %d", ErrInvalidTx, assetID)
	}
	fees := &rollup.Fees{}
	for i := range depositFees {
		fees.Deposit = append(fees.Deposit, rollup.AssetValue{AssetID: assetID, Value: big.NewInt(depositFees[i])})
		fees.Register = append(fees.Register, rollup.AssetValue{AssetID: assetID, Value: big.NewInt(registerFees[i])})
	}
	return fees, nil
}

// IsRegistered reports whether pub has a settled registration, or with
// includePending also a pending one.
func (l *Ledger) IsRegistered(pub rollup.PublicKey, includePending bool) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.state.Accounts[pub]; ok {
		return true
	}
	return includePending && l.pendingRegistration(pub, "")
}

// Notes returns the notes of owner published in rollups from..to inclusive.
func (l *Ledger) Notes(owner rollup.PublicKey, from, to int64) []rollup.Note {
	l.mu.RLock()
	defer l.mu.RUnlock()
	notes := []rollup.Note{}
	for _, n := range l.notes {
		if n.Owner == owner && n.RollupID >= from && n.RollupID <= to {
			notes = append(notes, n)
		}
	}
	return notes
}

func (l *Ledger) Receipt(id rollup.TxID) (rollup.TxReceipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.state.Receipts[id]
	if !ok {
		return rollup.TxReceipt{}, ErrUnknownTx
	}
	return r, nil
}

// L1Balance is the chain balance of addr. Unknown addresses hold the faucet
// amount.
func (l *Ledger) L1Balance(addr wallet.EthAddress) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if b, ok := l.state.L1[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int).Set(l.faucet)
}

// Submit checks tx and queues it. Instant txs are published in a rollup
// right away.
func (l *Ledger) Submit(tx *rollup.Tx) (rollup.TxID, error) {
	if err := tx.Validate(); err != nil {
		return rollup.TxID{}, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}

	l.mu.Lock()
	var (
		id  rollup.TxID
		err error
	)
	undo := l.checkpoint(depositorOf(tx))
	switch tx.Type {
	case rollup.TxTypeDeposit:
		err = l.checkDeposit(tx.Deposit)
	case rollup.TxTypeRegister:
		err = l.checkRegister(tx.Register)
	}
	if err == nil {
		id = l.queue(tx)
		err = l.persistState()
	}
	if err != nil {
		undo()
	}
	l.mu.Unlock()

	if err != nil {
		return rollup.TxID{}, err
	}

	l.logger.Info().Str("tx_id", id.String()).Str("type", string(tx.Type)).Msg("tx accepted")

	// the tx is stored, a failed rollup leaves it for the block ticker
	if speedOf(tx) == rollup.Instant {
		if _, err := l.Publish(); err != nil {
			l.logger.Err(err).Str("tx_id", id.String()).Msg("instant rollup failed")
		}
	}
	return id, nil
}

// checkpoint records the parts of the state a submit touches and returns a
// func restoring them. Callers hold l.mu.
func (l *Ledger) checkpoint(depositor wallet.EthAddress) func() {
	balance, hadBalance := l.state.L1[depositor]
	pending, seq := l.state.Pending, l.state.Seq

	return func() {
		if hadBalance {
			l.state.L1[depositor] = balance
		} else {
			delete(l.state.L1, depositor)
		}
		for _, p := range l.state.Pending[len(pending):] {
			delete(l.state.Receipts, p.ID)
		}
		l.state.Pending = pending
		l.state.Seq = seq
	}
}

// Publish rolls all pending txs into a new rollup. It returns false when
// nothing was pending.
func (l *Ledger) Publish() (bool, error) {
	l.mu.Lock()
	if len(l.state.Pending) == 0 {
		l.mu.Unlock()
		return false, nil
	}

	block := rollupBlock{
		ID:          l.state.LatestRollupID + 1,
		PublishedAt: time.Now(),
	}
	for _, p := range l.state.Pending {
		block.TxIDs = append(block.TxIDs, p.ID)
		if note := l.settle(block.ID, p); note != nil {
			block.Notes = append(block.Notes, *note)
		}
	}

	err := l.db.Put(rollupKey(block.ID), &block)
	if err == nil {
		l.state.LatestRollupID = block.ID
		l.state.Pending = nil
		l.notes = append(l.notes, block.Notes...)
		err = l.persistState()
	}
	listeners := append([]func(int64){}, l.onRollup...)
	l.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("failed to publish rollup: %w", err)
	}

	l.logger.Info().Int64("rollup", block.ID).Int("txs", len(block.TxIDs)).Msg("rollup published")
	for _, fn := range listeners {
		fn(block.ID)
	}
	return true, nil
}

func (l *Ledger) checkDeposit(d *rollup.DepositTx) error {
	if d.AssetID != ethAsset.ID {
		return fmt.Errorf("%w: unknown asset %d", ErrInvalidTx, d.AssetID)
	}
	if d.Fee.Cmp(big.NewInt(depositFees[d.Speed])) < 0 {
		return ErrInsufficientFee
	}
	if err := checkWalletSignature(d.Depositor, d.Digest(), d.WalletSignature); err != nil {
		return err
	}
	return l.debit(d.Depositor, new(big.Int).Add(d.Value, d.Fee))
}

func (l *Ledger) checkRegister(r *rollup.RegisterTx) error {
	if r.AssetID != ethAsset.ID {
		return fmt.Errorf("%w: unknown asset %d", ErrInvalidTx, r.AssetID)
	}
	if r.Fee.Cmp(big.NewInt(registerFees[r.Speed])) < 0 {
		return ErrInsufficientFee
	}
	if _, ok := l.state.Accounts[r.AccountPublicKey]; ok || l.pendingRegistration(r.AccountPublicKey, "") {
		return ErrAccountExists
	}
	if l.aliasTaken(r.Alias) {
		return ErrAliasTaken
	}

	ok, err := sdk.VerifySchnorr(r.AccountPublicKey, r.Digest(), r.AccountSignature)
	if err != nil || !ok {
		return fmt.Errorf("%w: account signature", ErrBadSignature)
	}

	total := new(big.Int).Add(r.Deposit, r.Fee)
	if total.Sign() == 0 {
		return nil
	}
	if err := checkWalletSignature(r.Depositor, r.DepositDigest(), r.WalletSignature); err != nil {
		return err
	}
	return l.debit(r.Depositor, total)
}

func checkWalletSignature(depositor wallet.EthAddress, digest, sig []byte) error {
	signer, err := wallet.RecoverPersonalSigner(rollup.WalletApprovalMessage(digest), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if signer != depositor {
		return fmt.Errorf("%w: signed by %s, not %s", ErrBadSignature, signer, depositor)
	}
	return nil
}

// debit takes amount from the L1 balance of addr. Callers hold l.mu.
func (l *Ledger) debit(addr wallet.EthAddress, amount *big.Int) error {
	balance, ok := l.state.L1[addr]
	if !ok {
		balance = new(big.Int).Set(l.faucet)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s ETH", ErrInsufficientFunds, addr, units.FromBaseUnits(balance, units.EtherDecimals))
	}
	l.state.L1[addr] = new(big.Int).Sub(balance, amount)
	return nil
}

// pendingRegistration reports whether a pending registration uses pub or
// alias. Callers hold l.mu.
func (l *Ledger) pendingRegistration(pub rollup.PublicKey, alias string) bool {
	for _, p := range l.state.Pending {
		r := p.Tx.Register
		if r == nil {
			continue
		}
		if r.AccountPublicKey == pub || (alias != "" && r.Alias == alias) {
			return true
		}
	}
	return false
}

func (l *Ledger) aliasTaken(alias string) bool {
	for _, a := range l.state.Accounts {
		if a.Alias == alias {
			return true
		}
	}
	return l.pendingRegistration(rollup.PublicKey{}, alias)
}

func (l *Ledger) queue(tx *rollup.Tx) rollup.TxID {
	l.state.Seq++
	id := tx.ID(l.state.Seq)
	l.state.Pending = append(l.state.Pending, pendingTx{ID: id, Tx: tx})
	l.state.Receipts[id] = rollup.TxReceipt{TxID: id, Type: tx.Type, RollupID: -1}
	return id
}

// settle applies a pending tx in rollup rollupID and returns the note it
// creates, if any. Callers hold l.mu.
func (l *Ledger) settle(rollupID int64, p pendingTx) *rollup.Note {
	l.state.Receipts[p.ID] = rollup.TxReceipt{TxID: p.ID, Type: p.Tx.Type, RollupID: rollupID, Settled: true}

	switch p.Tx.Type {
	case rollup.TxTypeDeposit:
		d := p.Tx.Deposit
		return &rollup.Note{RollupID: rollupID, TxID: p.ID, Owner: d.Recipient, AssetID: d.AssetID, Value: d.Value}
	case rollup.TxTypeRegister:
		r := p.Tx.Register
		l.state.Accounts[r.AccountPublicKey] = account{
			Alias:       r.Alias,
			SpendingKey: r.SpendingPublicKey,
			RecoveryKey: r.RecoveryPublicKey,
			RollupID:    rollupID,
		}
		if r.Deposit.Sign() > 0 {
			return &rollup.Note{RollupID: rollupID, TxID: p.ID, Owner: r.AccountPublicKey, AssetID: r.AssetID, Value: r.Deposit}
		}
	}
	return nil
}

func (l *Ledger) persistState() error {
	if err := l.db.Put([]byte(stateKey), &l.state); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

func rollupKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", rollupPrefix, id))
}

func depositorOf(tx *rollup.Tx) wallet.EthAddress {
	if tx.Deposit != nil {
		return tx.Deposit.Depositor
	}
	return tx.Register.Depositor
}

func speedOf(tx *rollup.Tx) rollup.SettlementTime {
	if tx.Deposit != nil {
		return tx.Deposit.Speed
	}
	return tx.Register.Speed
}
