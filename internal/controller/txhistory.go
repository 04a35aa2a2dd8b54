package controller

import (
	"context"
	"math/big"
	"time"

	"github.com/setavenger/zkwizard/internal/rollup"
)

type TxKind string

const (
	TxKindRegister TxKind = "register"
	TxKindDeposit  TxKind = "deposit"
)

// TxHistoryItem is a transaction submitted during this session.
type TxHistoryItem struct {
	Kind        TxKind      `json:"kind"`
	TxID        rollup.TxID `json:"txid"`
	Amount      *big.Int    `json:"amount"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Explorer    string      `json:"explorer"`
	// RollupID is -1 until the tx is settled
	RollupID int64 `json:"rollup_id"`
	Settled  bool  `json:"settled"`
}

type TxHistory []TxHistoryItem

// Last returns the most recent item, nil when empty.
func (h TxHistory) Last() *TxHistoryItem {
	if len(h) == 0 {
		return nil
	}
	item := h[len(h)-1]
	return &item
}

func (m *Manager) newHistoryItem(kind TxKind, txID rollup.TxID, amount *big.Int) TxHistoryItem {
	return TxHistoryItem{
		Kind:        kind,
		TxID:        txID,
		Amount:      new(big.Int).Set(amount),
		SubmittedAt: time.Now(),
		Explorer:    m.cfg.ExplorerLink(txID.String()),
		RollupID:    -1,
	}
}

// History returns a copy of the submitted transactions, oldest first.
func (m *Manager) History() TxHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(TxHistory{}, m.history...)
}

// RefreshHistory asks the rollup server which submitted transactions have
// settled. It does not take the busy slot, it only touches the history.
func (m *Manager) RefreshHistory(ctx context.Context) error {
	m.mu.Lock()
	client, gen := m.sdk, m.generation
	var pending []rollup.TxID
	for _, item := range m.history {
		if !item.Settled {
			pending = append(pending, item.TxID)
		}
	}
	m.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}

	receipts := make(map[rollup.TxID]*rollup.TxReceipt, len(pending))
	for _, id := range pending {
		receipt, err := client.TxReceipt(ctx, id)
		if err != nil {
			m.logger.Warn().Err(err).Str("tx_id", id.String()).Msg("failed to fetch receipt")
			return err
		}
		receipts[id] = receipt
	}
	if len(receipts) == 0 {
		return nil
	}

	return m.commit(gen, func() {
		for i := range m.history {
			if r, ok := receipts[m.history[i].TxID]; ok {
				m.history[i].RollupID = r.RollupID
				m.history[i].Settled = r.Settled
			}
		}
	})
}
