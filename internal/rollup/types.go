// Package rollup holds the wire types exchanged between the sdk client and
// the rollup server.
package rollup

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/setavenger/zkwizard/internal/wallet"
)

// PublicKey is a compressed account public key (32 bytes).
type PublicKey [32]byte

func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return pk, fmt.Errorf("invalid public key: %w", err)
	}
	if len(b) != len(pk) {
		return pk, fmt.Errorf("invalid public key length %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (k PublicKey) String() string {
	return "0x" + hex.EncodeToString(k[:])
}

func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TxID identifies a submitted transaction.
type TxID [32]byte

func ParseTxID(s string) (TxID, error) {
	var id TxID
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("invalid tx id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

func (id TxID) String() string {
	return hex.EncodeToString(id[:])
}

func (id TxID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TxID) UnmarshalText(text []byte) error {
	parsed, err := ParseTxID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SettlementTime picks the fee tier of a transaction.
type SettlementTime int

const (
	// NextRollup batches the tx into the next scheduled rollup.
	NextRollup SettlementTime = iota
	// Instant pays for a rollup to be published right away.
	Instant
)

func (s SettlementTime) String() string {
	switch s {
	case NextRollup:
		return "NEXT_ROLLUP"
	case Instant:
		return "INSTANT"
	default:
		return fmt.Sprintf("SettlementTime(%d)", int(s))
	}
}

func (s SettlementTime) Valid() bool {
	return s == NextRollup || s == Instant
}

// AssetValue is an amount of an asset in base units.
type AssetValue struct {
	AssetID uint32   `json:"assetId"`
	Value   *big.Int `json:"value"`
}

// Asset describes a supported asset.
type Asset struct {
	ID       uint32            `json:"id"`
	Symbol   string            `json:"symbol"`
	Address  wallet.EthAddress `json:"address"`
	Decimals int32             `json:"decimals"`
}

// EthAssetID is the id of ETH on the rollup.
const EthAssetID uint32 = 0

// Status is returned by GET /api/status.
type Status struct {
	LatestRollupID int64   `json:"latestRollupId"`
	PendingTxs     int     `json:"pendingTxs"`
	Assets         []Asset `json:"assets"`
}

// Fees lists fees indexed by SettlementTime.
type Fees struct {
	Deposit  []AssetValue `json:"deposit"`
	Register []AssetValue `json:"register"`
}

type TxType string

const (
	TxTypeDeposit  TxType = "deposit"
	TxTypeRegister TxType = "register"
)

// DepositTx moves funds from a chain account into an account public key.
type DepositTx struct {
	Depositor       wallet.EthAddress `json:"depositor"`
	Recipient       PublicKey         `json:"recipient"`
	AssetID         uint32            `json:"assetId"`
	Value           *big.Int          `json:"value"`
	Fee             *big.Int          `json:"fee"`
	Speed           SettlementTime    `json:"speed"`
	WalletSignature []byte            `json:"walletSignature"`
}

// RegisterTx binds an alias and a spending key to an account public key,
// optionally funding it with a deposit from Depositor.
type RegisterTx struct {
	AccountPublicKey  PublicKey         `json:"accountPublicKey"`
	Alias             string            `json:"alias"`
	SpendingPublicKey PublicKey         `json:"spendingPublicKey"`
	RecoveryPublicKey PublicKey         `json:"recoveryPublicKey"`
	AssetID           uint32            `json:"assetId"`
	Deposit           *big.Int          `json:"deposit"`
	Fee               *big.Int          `json:"fee"`
	Depositor         wallet.EthAddress `json:"depositor"`
	Speed             SettlementTime    `json:"speed"`
	AccountSignature  []byte            `json:"accountSignature"`
	WalletSignature   []byte            `json:"walletSignature,omitempty"`
}

// Tx is the body of POST /api/txs.
type Tx struct {
	Type     TxType      `json:"type"`
	Deposit  *DepositTx  `json:"deposit,omitempty"`
	Register *RegisterTx `json:"register,omitempty"`
}

type SubmitResponse struct {
	TxID TxID `json:"txId"`
}

// Note is a value note owned by an account public key.
type Note struct {
	RollupID int64     `json:"rollupId"`
	TxID     TxID      `json:"txId"`
	Owner    PublicKey `json:"owner"`
	AssetID  uint32    `json:"assetId"`
	Value    *big.Int  `json:"value"`
}

type NotesResponse struct {
	Notes          []Note `json:"notes"`
	LatestRollupID int64  `json:"latestRollupId"`
}

type RegisteredResponse struct {
	Registered bool `json:"registered"`
}

// TxReceipt is returned by GET /api/txs/{id}.
type TxReceipt struct {
	TxID     TxID   `json:"txId"`
	Type     TxType `json:"type"`
	RollupID int64  `json:"rollupId"` // -1 while pending
	Settled  bool   `json:"settled"`
}

// RollupEvent is pushed on the websocket when a rollup is published.
type RollupEvent struct {
	RollupID int64 `json:"rollupId"`
}

// ErrorResponse is the body of non 2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Digest is the hash the depositor's wallet signs.
func (tx *DepositTx) Digest() []byte {
	h := sha256.New()
	h.Write([]byte("deposit"))
	h.Write(tx.Depositor[:])
	h.Write(tx.Recipient[:])
	writeUint32(h, tx.AssetID)
	writeBig(h, tx.Value)
	writeBig(h, tx.Fee)
	writeUint32(h, uint32(tx.Speed))
	return h.Sum(nil)
}

// Digest is the hash signed with the account private key.
func (tx *RegisterTx) Digest() []byte {
	h := sha256.New()
	h.Write([]byte("register"))
	h.Write(tx.AccountPublicKey[:])
	h.Write([]byte(tx.Alias))
	h.Write(tx.SpendingPublicKey[:])
	h.Write(tx.RecoveryPublicKey[:])
	writeUint32(h, tx.AssetID)
	writeBig(h, tx.Deposit)
	writeBig(h, tx.Fee)
	h.Write(tx.Depositor[:])
	writeUint32(h, uint32(tx.Speed))
	return h.Sum(nil)
}

// DepositDigest is the hash the depositor's wallet signs for the funding
// part of a registration.
func (tx *RegisterTx) DepositDigest() []byte {
	h := sha256.New()
	h.Write([]byte("register-deposit"))
	h.Write(tx.Digest())
	return h.Sum(nil)
}

// ID derives the transaction id from its contents and the sequence number
// the server accepted it under, so identical deposits get distinct ids.
func (tx *Tx) ID(seq uint64) TxID {
	h := sha256.New()
	h.Write([]byte(tx.Type))
	switch tx.Type {
	case TxTypeDeposit:
		h.Write(tx.Deposit.Digest())
	case TxTypeRegister:
		h.Write(tx.Register.Digest())
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	h.Write(b[:])

	var id TxID
	copy(id[:], h.Sum(nil))
	return id
}

// Validate checks the shape of the tx, not its signatures or balances.
func (tx *Tx) Validate() error {
	switch tx.Type {
	case TxTypeDeposit:
		if tx.Deposit == nil || tx.Register != nil {
			return fmt.Errorf("deposit tx must carry exactly a deposit body")
		}
		d := tx.Deposit
		if err := checkAmount("value", d.Value, false); err != nil {
			return err
		}
		if err := checkAmount("fee", d.Fee, true); err != nil {
			return err
		}
		if !d.Speed.Valid() {
			return fmt.Errorf("invalid settlement time %d", d.Speed)
		}
		if d.Recipient.IsZero() {
			return fmt.Errorf("missing recipient")
		}
	case TxTypeRegister:
		if tx.Register == nil || tx.Deposit != nil {
			return fmt.Errorf("register tx must carry exactly a register body")
		}
		r := tx.Register
		if err := checkAmount("deposit", r.Deposit, true); err != nil {
			return err
		}
		if err := checkAmount("fee", r.Fee, true); err != nil {
			return err
		}
		if !r.Speed.Valid() {
			return fmt.Errorf("invalid settlement time %d", r.Speed)
		}
		if r.AccountPublicKey.IsZero() || r.SpendingPublicKey.IsZero() {
			return fmt.Errorf("missing account or spending key")
		}
		if err := ValidateAlias(r.Alias); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown tx type %q", tx.Type)
	}
	return nil
}

func checkAmount(name string, v *big.Int, zeroOK bool) error {
	switch {
	case v == nil:
		return fmt.Errorf("missing %s", name)
	case v.Sign() < 0:
		return fmt.Errorf("negative %s", name)
	case v.Sign() == 0 && !zeroOK:
		return fmt.Errorf("%s must be positive", name)
	case v.BitLen() > 256:
		return fmt.Errorf("%s out of range", name)
	}
	return nil
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func writeUint32(w byteWriter, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeBig(w byteWriter, v *big.Int) {
	var b [32]byte
	if v != nil {
		v.FillBytes(b[:])
	}
	w.Write(b[:])
}

var aliasPattern = regexp.MustCompile(`^[a-z0-9]{1,20}$`)

// ValidateAlias checks an account alias: 1 to 20 lowercase alphanumerics.
func ValidateAlias(alias string) error {
	if !aliasPattern.MatchString(alias) {
		return fmt.Errorf("invalid alias %q: use 1 to 20 lowercase letters or digits", alias)
	}
	return nil
}

// WalletApprovalMessage is the personal message a depositor signs to let the
// rollup pull funds for the tx with the given digest.
func WalletApprovalMessage(digest []byte) []byte {
	return []byte(fmt.Sprintf(
		"Signing this message will allow your pending funds to be spent in rollup transaction:\n\n0x%x",
		digest,
	))
}
