package storage

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
)

func testKeyPair(t *testing.T) (pub, priv []byte) {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return key.PubKey().SerializeUncompressed(), key.Serialize()
}

func TestEncryptDecryptIdentity(t *testing.T) {
	pub, priv := testKeyPair(t)
	payloads := [][]byte{
		[]byte("asdfasdf"),
		[]byte(""),
		bytes.Repeat([]byte{0x00, 0xff}, 512),
	}

	for _, plaintext := range payloads {
		ciphertext, err := Encrypt(pub, plaintext)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		decrypted, err := Decrypt(priv, ciphertext)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("Expected round trip to return %q but got %q", plaintext, decrypted)
		}
	}
}

func TestEncryptIsNotDeterministic(t *testing.T) {
	pub, _ := testKeyPair(t)
	plaintext := []byte("same message")

	first, err := Encrypt(pub, plaintext)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := Encrypt(pub, plaintext)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("Expected fresh ephemeral key material to produce different ciphertexts")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	pub, _ := testKeyPair(t)
	_, otherPriv := testKeyPair(t)

	ciphertext, err := Encrypt(pub, []byte("secret"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := Decrypt(otherPriv, ciphertext); !errors.Is(err, ErrDecryption) {
		t.Errorf("Expected ErrDecryption but got %v", err)
	}
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	pub, priv := testKeyPair(t)
	ciphertext, err := Encrypt(pub, []byte("secret"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0x01
	if _, err := Decrypt(priv, ciphertext); !errors.Is(err, ErrDecryption) {
		t.Errorf("Expected ErrDecryption but got %v", err)
	}
}

func TestHexEncodedKeys(t *testing.T) {
	pub, priv := testKeyPair(t)
	// 64-byte coordinate form without the 0x04 prefix, hex encoded, as key
	// material usually crosses process boundaries.
	coordHex := []byte(hex.EncodeToString(pub[1:]))
	privHex := []byte(hex.EncodeToString(priv))

	ciphertext, err := Encrypt(coordHex, []byte("hello"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	decrypted, err := Decrypt(privHex, ciphertext)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(decrypted) != "hello" {
		t.Errorf("Expected %q but got %q", "hello", decrypted)
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	if _, err := Encrypt([]byte("not a key"), []byte("m")); err == nil {
		t.Error("Expected error for malformed public key")
	}
}

func TestDecryptMalformedKey(t *testing.T) {
	pub, _ := testKeyPair(t)
	ciphertext, err := Encrypt(pub, []byte("secret"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := Decrypt([]byte("not a key"), ciphertext); !errors.Is(err, ErrDecryption) {
		t.Errorf("Expected ErrDecryption but got %v", err)
	}
}
