// Package transactions builds, signs and submits the deposit and account
// registration transactions of the tutorial.
package transactions

import (
	"context"
	"fmt"
	"math/big"

	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/sdk"
	"github.com/setavenger/zkwizard/internal/wallet"
)

// SDK is the part of the sdk the helpers need.
type SDK interface {
	AssetIDByAddress(addr wallet.EthAddress) (uint32, error)
	DepositFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error)
	RegisterFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error)
	SignWithWallet(ctx context.Context, addr wallet.EthAddress, digest []byte) ([]byte, error)
	CreateSchnorrSigner(privateKey []byte) (*sdk.SchnorrSigner, error)
	SubmitTx(ctx context.Context, tx *rollup.Tx) (rollup.TxID, error)
}

// feeFor picks the fee for speed out of fees indexed by settlement time.
func feeFor(fees []rollup.AssetValue, speed rollup.SettlementTime) (*big.Int, error) {
	if !speed.Valid() || int(speed) >= len(fees) || fees[speed].Value == nil {
		return nil, fmt.Errorf("no fee quoted for settlement time %s", speed)
	}
	return new(big.Int).Set(fees[speed].Value), nil
}

func logSubmitted(kind string, txID rollup.TxID, speed rollup.SettlementTime) {
	logging.L.Info().
		Str("tx_id", txID.String()).
		Str("speed", speed.String()).
		Msg(kind + " submitted")
}
