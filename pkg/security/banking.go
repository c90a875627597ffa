package security

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sibusisodube/canopay-backend/pkg/types"
)

// BankingVault seals banking details before they are written to the database
// and opens them again for the disbursement export. The key is a 32-byte
// XChaCha20-Poly1305 key supplied hex-encoded through configuration.
type BankingVault struct {
	key []byte
}

// NewBankingVault validates and decodes the hex key.
func NewBankingVault(hexKey string) (*BankingVault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding banking key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("banking key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &BankingVault{key: key}, nil
}

// Seal encrypts the banking details. The nonce is prepended to the ciphertext.
func (v *BankingVault) Seal(details types.BankingDetails) ([]byte, error) {
	if v == nil || len(v.key) == 0 {
		return nil, errors.New("banking vault not initialized")
	}
	plaintext, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed blob back into banking details.
func (v *BankingVault) Open(sealed []byte) (*types.BankingDetails, error) {
	if v == nil || len(v.key) == 0 {
		return nil, errors.New("banking vault not initialized")
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed banking details too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening banking details: %w", err)
	}
	var details types.BankingDetails
	if err := json.Unmarshal(plaintext, &details); err != nil {
		return nil, err
	}
	return &details, nil
}
