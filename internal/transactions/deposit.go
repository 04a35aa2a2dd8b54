package transactions

import (
	"context"
	"fmt"
	"math/big"

	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/wallet"
)

// DepositEth deposits amount wei from depositor into the account of
// recipient. The settlement fee is paid on top of amount.
func DepositEth(
	ctx context.Context,
	s SDK,
	depositor wallet.EthAddress,
	recipient sdk.PublicKey,
	amount *big.Int,
	speed rollup.SettlementTime,
) (rollup.TxID, error) {
	if amount == nil || amount.Sign() <= 0 {
		return rollup.TxID{}, fmt.Errorf("deposit amount must be positive")
	}

	assetID, err := s.AssetIDByAddress(wallet.ZeroAddress)
	if err != nil {
		return rollup.TxID{}, err
	}

	fees, err := s.DepositFees(ctx, assetID)
	if err != nil {
		return rollup.TxID{}, fmt.Errorf("failed to get deposit fees: %w", err)
	}
	fee, err := feeFor(fees, speed)
	if err != nil {
		return rollup.TxID{}, err
	}

	deposit := &rollup.DepositTx{
		Depositor: depositor,
		Recipient: recipient,
		AssetID:   assetID,
		Value:     new(big.Int).Set(amount),
		Fee:       fee,
		Speed:     speed,
	}

	deposit.WalletSignature, err = s.SignWithWallet(ctx, depositor, deposit.Digest())
	if err != nil {
		return rollup.TxID{}, fmt.Errorf("deposit not approved: %w", err)
	}

	txID, err := s.SubmitTx(ctx, &rollup.Tx{Type: rollup.TxTypeDeposit, Deposit: deposit})
	if err != nil {
		return rollup.TxID{}, fmt.Errorf("failed to submit deposit: %w", err)
	}

	logSubmitted("deposit", txID, speed)
	return txID, nil
}
