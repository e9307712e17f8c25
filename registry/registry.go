// Package registry keeps off-chain bookkeeping for escrow contracts a
// process has driven: address, manifest identifier, last known status and
// paid total. After a crash an operator reconciles these records against
// on-chain state instead of blindly retrying submissions. The ledger
// contract stays authoritative; the registry is never consulted for
// control flow.
package registry

import (
	"context"
	"time"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// ErrNotFound reports a missing escrow record.
var ErrNotFound = Err("escrow record not found")

// Record is one escrow contract's bookkeeping row.
type Record struct {
	EscrowAddress string    `json:"escrow_address"`
	ManifestCID   string    `json:"manifest_cid"`
	ResultsCID    string    `json:"results_cid,omitempty"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`     // base units
	PaidTotal     string    `json:"paid_total"` // base units
	GasPayer      string    `json:"gas_payer"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists escrow records.
type Store interface {
	// Put inserts or replaces a record keyed by escrow address.
	Put(ctx context.Context, rec Record) error
	// Get returns the record for an escrow address, or ErrNotFound.
	Get(ctx context.Context, escrowAddress string) (Record, error)
	// List returns all records, most recently updated first.
	List(ctx context.Context) ([]Record, error)
}
