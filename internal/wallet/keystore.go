package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for the keystore. N is a variable so tests can lower it.
var scryptN = 1 << 18

const (
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12

	keystoreVersion = 1
)

var (
	ErrKeystoreExists  = errors.New("keystore already exists")
	ErrInvalidPassword = errors.New("invalid password")
)

// KeystoreFile is the on disk layout of the encrypted wallet.
type KeystoreFile struct {
	Version    int        `json:"version"`
	Address    EthAddress `json:"address"`
	Salt       string     `json:"salt"`
	Nonce      string     `json:"nonce"`
	CipherText string     `json:"cipherText"`
	CreatedAt  string     `json:"createdAt"`
}

type keystoreSecret struct {
	Mnemonic string `json:"mnemonic"`
}

// KeystoreExists reports whether a non-empty keystore file is present at path.
func KeystoreExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// CreateKeystore encrypts mnemonic with password and writes it to path.
// Returns the address of the first account.
// password must be []byte for security (caller should zero it after use)
func CreateKeystore(path, mnemonic string, password []byte) (EthAddress, error) {
	if KeystoreExists(path) {
		return EthAddress{}, ErrKeystoreExists
	}
	if len(password) == 0 {
		return EthAddress{}, errors.New("password cannot be empty")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return EthAddress{}, errors.New("invalid mnemonic")
	}

	key, err := DeriveAccountKey(mnemonic, 0)
	if err != nil {
		return EthAddress{}, err
	}
	address := AddressFromPubKey(key.PubKey())

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return EthAddress{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EthAddress{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := newGCM(password, salt)
	if err != nil {
		return EthAddress{}, err
	}

	plaintext, err := json.Marshal(keystoreSecret{Mnemonic: mnemonic})
	if err != nil {
		return EthAddress{}, fmt.Errorf("failed to marshal keystore secret: %w", err)
	}
	defer clear(plaintext)

	file := KeystoreFile{
		Version:    keystoreVersion,
		Address:    address,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(aesGCM.Seal(nil, nonce, plaintext, nil)),
		CreatedAt:  time.Now().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return EthAddress{}, fmt.Errorf("failed to marshal keystore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return EthAddress{}, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return EthAddress{}, fmt.Errorf("failed to write keystore: %w", err)
	}

	return address, nil
}

// ImportKeystore stores a seed phrase typed in by the user. Extra whitespace
// and upper case letters are tolerated.
func ImportKeystore(path, mnemonic string, password []byte) (EthAddress, error) {
	words := strings.Fields(strings.ToLower(mnemonic))
	return CreateKeystore(path, strings.Join(words, " "), password)
}

// ReadKeystore reads the keystore without decrypting it.
func ReadKeystore(path string) (*KeystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	var file KeystoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keystore: %w", err)
	}
	if file.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", file.Version)
	}
	return &file, nil
}

// UnlockKeystore decrypts the keystore at path and returns the mnemonic.
// password must be []byte for security (caller should zero it after use)
func UnlockKeystore(path string, password []byte) (string, error) {
	file, err := ReadKeystore(path)
	if err != nil {
		return "", err
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(file.Nonce)
	if err != nil {
		return "", fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(file.CipherText)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aesGCM, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidPassword
	}
	defer clear(plaintext)

	var secret keystoreSecret
	if err := json.Unmarshal(plaintext, &secret); err != nil {
		return "", fmt.Errorf("failed to unmarshal keystore secret: %w", err)
	}
	return secret.Mnemonic, nil
}

func newGCM(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
