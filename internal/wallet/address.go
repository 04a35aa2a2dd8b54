package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/sha3"
)

// EthAddress is a 20 byte chain account address.
type EthAddress [20]byte

// ZeroAddress is the all zero address. As an asset address it denotes ETH.
var ZeroAddress EthAddress

// Keccak256 hashes the concatenation of data with legacy keccak-256.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// AddressFromPubKey derives the chain address of a secp256k1 public key.
func AddressFromPubKey(pub *btcec.PublicKey) EthAddress {
	var addr EthAddress
	// drop the 0x04 prefix of the uncompressed encoding
	copy(addr[:], Keccak256(pub.SerializeUncompressed()[1:])[12:])
	return addr
}

// ParseEthAddress parses a 0x prefixed or bare 40 character hex address.
// Mixed case input must carry a valid EIP-55 checksum.
func ParseEthAddress(s string) (EthAddress, error) {
	var addr EthAddress
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 40 {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("invalid address: %w", err)
	}
	copy(addr[:], b)

	if raw != strings.ToLower(raw) && raw != strings.ToUpper(raw) {
		if addr.Hex()[2:] != raw {
			return EthAddress{}, fmt.Errorf("invalid address checksum: %s", s)
		}
	}
	return addr, nil
}

// Hex returns the EIP-55 checksummed form.
func (a EthAddress) Hex() string {
	lower := hex.EncodeToString(a[:])
	hash := Keccak256([]byte(lower))

	out := []byte(lower)
	for i := range out {
		if out[i] < 'a' {
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0xf >= 8 {
			out[i] -= 'a' - 'A'
		}
	}
	return "0x" + string(out)
}

func (a EthAddress) String() string {
	return a.Hex()
}

func (a EthAddress) IsZero() bool {
	return a == ZeroAddress
}

func (a EthAddress) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *EthAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseEthAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
