// Package storage encrypts artifacts for a designated recipient and moves
// them through the content-addressed store. Only content identifiers leave
// this package; ciphertext lives in the store, plaintext only in memory.
package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/skalenetwork/hmt-escrow/ipfs"
	"github.com/skalenetwork/hmt-escrow/metrics"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

var (
	// ErrStorage reports a content-store failure. Retryable; no on-chain
	// state changed as a result of the failed call.
	ErrStorage = Err("content store failure")
	// ErrDecryption reports a ciphertext that was not produced for the
	// given key or is corrupted. Not retryable.
	ErrDecryption = Err("ciphertext not decryptable with the given key")
)

// Store is a stateless encrypt-then-upload service over a content-addressed
// backend.
type Store struct {
	ipfs *ipfs.Client
}

func NewStore(client *ipfs.Client) *Store {
	return &Store{ipfs: client}
}

// Upload encrypts plaintext for publicKey and writes the ciphertext to the
// content store, returning the content identifier. On ErrStorage the caller
// must assume nothing was recorded anywhere.
func (s *Store) Upload(ctx context.Context, plaintext, publicKey []byte) (cid string, err error) {
	defer func() { metrics.ObserveStorage("upload", err) }()

	ciphertext, err := Encrypt(publicKey, plaintext)
	if err != nil {
		return "", err
	}
	cid, err = s.ipfs.AddBytes(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	log.Printf("storage: uploaded %d byte payload as %s", len(plaintext), cid)
	return cid, nil
}

// Download fetches the ciphertext stored under cid and opens it with
// privateKey.
func (s *Store) Download(ctx context.Context, cid string, privateKey []byte) (plaintext []byte, err error) {
	defer func() { metrics.ObserveStorage("download", err) }()

	ciphertext, err := s.ipfs.Cat(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return Decrypt(privateKey, ciphertext)
}
