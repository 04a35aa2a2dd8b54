package sdk

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"
)

// SchnorrSigner signs rollup digests with an account or spending key.
type SchnorrSigner struct {
	priv *eddsa.PrivateKey
	pub  PublicKey
}

// CreateSchnorrSigner accepts a serialised private key or a raw 32 byte seed.
func (c *Client) CreateSchnorrSigner(privateKey []byte) (*SchnorrSigner, error) {
	return NewSchnorrSigner(privateKey)
}

func NewSchnorrSigner(privateKey []byte) (*SchnorrSigner, error) {
	if len(privateKey) == 32 {
		kp, err := KeyPairFromSeed(privateKey)
		if err != nil {
			return nil, err
		}
		privateKey = kp.PrivateKey
	}
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return &SchnorrSigner{priv: priv, pub: keyPairOf(priv).PublicKey}, nil
}

func (s *SchnorrSigner) PublicKey() PublicKey {
	return s.pub
}

func (s *SchnorrSigner) PrivateKey() []byte {
	return s.priv.Bytes()
}

// Sign signs digest. The digest is reduced into the scalar field first so
// it can be fed to MiMC.
func (s *SchnorrSigner) Sign(digest []byte) ([]byte, error) {
	sig, err := s.priv.Sign(fieldMessage(digest), mimc.NewMiMC())
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// VerifySchnorr checks a signature produced by SchnorrSigner.Sign.
func VerifySchnorr(pub PublicKey, digest, sig []byte) (bool, error) {
	var pk eddsa.PublicKey
	if _, err := pk.SetBytes(pub[:]); err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}
	return pk.Verify(sig, fieldMessage(digest), mimc.NewMiMC())
}

func fieldMessage(digest []byte) []byte {
	var e fr.Element
	e.SetBytes(digest)
	b := e.Bytes()
	return b[:]
}
