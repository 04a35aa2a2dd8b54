package wallet

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// SignatureLength is the size of an R || S || V signature.
const SignatureLength = 65

var ErrInvalidSignature = errors.New("invalid signature")

// PersonalMessageHash is the hash signed by personal_sign:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func PersonalMessageHash(msg []byte) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return Keccak256([]byte(prefix), msg)
}

// SignPersonal signs msg the way a browser wallet answers personal_sign and
// returns R || S || V with V in {27, 28}.
func SignPersonal(key *btcec.PrivateKey, msg []byte) ([]byte, error) {
	compact := ecdsa.SignCompact(key, PersonalMessageHash(msg), false)
	// compact is V || R || S
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

// RecoverPersonalSigner returns the address that produced sig over msg.
func RecoverPersonalSigner(msg, sig []byte) (EthAddress, error) {
	if len(sig) != SignatureLength {
		return EthAddress{}, ErrInvalidSignature
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return EthAddress{}, ErrInvalidSignature
	}

	compact := make([]byte, SignatureLength)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, PersonalMessageHash(msg))
	if err != nil {
		return EthAddress{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return AddressFromPubKey(pub), nil
}
