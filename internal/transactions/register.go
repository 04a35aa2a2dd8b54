package transactions

import (
	"context"
	"fmt"
	"math/big"

	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/wallet"
)

// RegisterAccount registers alias for accountPublicKey with the given
// spending and recovery keys. depositQuantity of the asset at assetAddress
// is deposited from depositor in the same tx; the registration fee is paid
// on top of it. The zero address selects ETH. The tx is signed with
// accountPrivateKey.
func RegisterAccount(
	ctx context.Context,
	s SDK,
	accountPublicKey sdk.PublicKey,
	alias string,
	accountPrivateKey []byte,
	spendingPublicKey sdk.PublicKey,
	recoveryPublicKey sdk.PublicKey,
	assetAddress wallet.EthAddress,
	depositQuantity *big.Int,
	speed rollup.SettlementTime,
	depositor wallet.EthAddress,
) (rollup.TxID, error) {
	if err := rollup.ValidateAlias(alias); err != nil {
		return rollup.TxID{}, err
	}
	if depositQuantity == nil || depositQuantity.Sign() < 0 {
		return rollup.TxID{}, fmt.Errorf("deposit quantity must not be negative")
	}

	signer, err := s.CreateSchnorrSigner(accountPrivateKey)
	if err != nil {
		return rollup.TxID{}, err
	}
	if signer.PublicKey() != accountPublicKey {
		return rollup.TxID{}, fmt.Errorf("account private key does not match %s", accountPublicKey)
	}

	assetID, err := s.AssetIDByAddress(assetAddress)
	if err != nil {
		return rollup.TxID{}, err
	}

	fees, err := s.RegisterFees(ctx, assetID)
	if err != nil {
		return rollup.TxID{}, fmt.Errorf("failed to get register fees: %w", err)
	}
	fee, err := feeFor(fees, speed)
	if err != nil {
		return rollup.TxID{}, err
	}

	register := &rollup.RegisterTx{
		AccountPublicKey:  accountPublicKey,
		Alias:             alias,
		SpendingPublicKey: spendingPublicKey,
		RecoveryPublicKey: recoveryPublicKey,
		AssetID:           assetID,
		Deposit:           new(big.Int).Set(depositQuantity),
		Fee:               fee,
		Depositor:         depositor,
		Speed:             speed,
	}

	register.AccountSignature, err = signer.Sign(register.Digest())
	if err != nil {
		return rollup.TxID{}, err
	}

	// the depositor pays deposit and fee, so its wallet has to approve
	if register.Deposit.Sign() > 0 || register.Fee.Sign() > 0 {
		register.WalletSignature, err = s.SignWithWallet(ctx, depositor, register.DepositDigest())
		if err != nil {
			return rollup.TxID{}, fmt.Errorf("registration deposit not approved: %w", err)
		}
	}

	txID, err := s.SubmitTx(ctx, &rollup.Tx{Type: rollup.TxTypeRegister, Register: register})
	if err != nil {
		return rollup.TxID{}, fmt.Errorf("failed to submit registration: %w", err)
	}

	logSubmitted("registration", txID, speed)
	return txID, nil
}
