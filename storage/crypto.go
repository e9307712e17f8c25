package storage

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// envelopeVersion leads every sealed message. ECIES refuses zero-length
// input, so the version byte doubles as padding that lets empty payloads
// round-trip.
const envelopeVersion = 0x01

// Encrypt seals plaintext for the holder of publicKey using ECIES over
// secp256k1. Fresh ephemeral key material is drawn per call, so two
// encryptions of the same plaintext differ.
func Encrypt(publicKey, plaintext []byte) ([]byte, error) {
	pub, err := parsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(plaintext)+1)
	sealed = append(sealed, envelopeVersion)
	sealed = append(sealed, plaintext...)
	ciphertext, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(onCurve(pub.ToECDSA())), sealed, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return ciphertext, nil
}

// Decrypt opens ciphertext with privateKey. A ciphertext produced for a
// different key, corrupted in transit, or carrying an unknown envelope
// version fails with ErrDecryption. A malformed key fails the same way: the
// caller cannot distinguish a bad key from a ciphertext that key cannot
// open.
func Decrypt(privateKey, ciphertext []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	key := priv.ToECDSA()
	key.PublicKey = *onCurve(&key.PublicKey)
	sealed, err := ecies.ImportECDSA(key).Decrypt(ciphertext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if len(sealed) == 0 || sealed[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown envelope version", ErrDecryption)
	}
	return sealed[1:], nil
}

// parsePublicKey accepts SEC-encoded keys (33-byte compressed or 65-byte
// uncompressed), raw 64-byte coordinate pairs, or the hex encoding of any of
// those. Key material crosses process boundaries as hex strings far more
// often than as raw bytes.
func parsePublicKey(raw []byte) (*btcec.PublicKey, error) {
	data := maybeUnhex(raw, 66, 128, 130)
	if len(data) == 64 {
		data = append([]byte{0x04}, data...)
	}
	pub, err := btcec.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}

// parsePrivateKey accepts a 32-byte scalar or its hex encoding.
func parsePrivateKey(raw []byte) (*btcec.PrivateKey, error) {
	data := maybeUnhex(raw, 64)
	if len(data) != 32 {
		return nil, fmt.Errorf("parse private key: want 32 bytes, got %d", len(data))
	}
	priv, _ := btcec.PrivKeyFromBytes(data)
	return priv, nil
}

// onCurve rebinds a key to the curve instance the ECIES parameter table is
// keyed by; btcec and the ledger crypto package expose distinct instances of
// the same secp256k1 curve.
func onCurve(pub *ecdsa.PublicKey) *ecdsa.PublicKey {
	return &ecdsa.PublicKey{Curve: gethcrypto.S256(), X: pub.X, Y: pub.Y}
}

// maybeUnhex decodes raw as hex when it is valid hex of one of the given
// lengths, otherwise returns it unchanged.
func maybeUnhex(raw []byte, hexLengths ...int) []byte {
	for _, n := range hexLengths {
		if len(raw) != n {
			continue
		}
		decoded := make([]byte, n/2)
		if _, err := hex.Decode(decoded, raw); err == nil {
			return decoded
		}
	}
	return raw
}
