package escrow

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Credentials is the gas payer's identity: its account address and the
// matching signing key. The key lives only in process memory for the
// lifetime of the jobs holding it; it is never logged, serialized, or
// persisted.
type Credentials struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// NewCredentials parses a hex address and private key and checks that they
// belong together.
func NewCredentials(addressHex, keyHex string) (Credentials, error) {
	if !common.IsHexAddress(addressHex) {
		return Credentials{}, fmt.Errorf("%w: malformed gas payer address", ErrValidation)
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: malformed gas payer key", ErrValidation)
	}
	addr := common.HexToAddress(addressHex)
	if crypto.PubkeyToAddress(key.PublicKey) != addr {
		return Credentials{}, fmt.Errorf("%w: gas payer key does not match address %s", ErrValidation, addr.Hex())
	}
	return Credentials{Address: addr, Key: key}, nil
}

// String identifies the gas payer without exposing key material.
func (c Credentials) String() string {
	return c.Address.Hex()
}
