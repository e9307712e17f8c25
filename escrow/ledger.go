package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// LedgerClient is the boundary to the escrow contract. Implementations must
// be safe for concurrent use by multiple jobs, block until the transaction
// is confirmed or rejected, and return errors wrapping the kinds in
// errors.go (ErrDeployment from CreateEscrow, ErrInsufficientFunds or
// ErrContractCall from Fund, ErrContractCall elsewhere) so callers can match
// with errors.Is. Gas and fee mechanics live behind this interface.
type LedgerClient interface {
	// CreateEscrow deploys a new escrow contract anchored to the given
	// manifest content identifier and returns its address.
	CreateEscrow(ctx context.Context, manifestCID string, reputationOracle, recordingOracle common.Address, stake decimal.Decimal) (common.Address, error)

	// Setup registers the trusted handler addresses on the contract.
	Setup(ctx context.Context, escrow common.Address, trustedHandlers []common.Address) error

	// Fund transfers amount base units of the job token into the contract.
	Fund(ctx context.Context, escrow common.Address, amount *big.Int) error

	// RecordResults anchors an intermediate results content identifier.
	RecordResults(ctx context.Context, escrow common.Address, resultsCID string) error

	// BulkPayout submits one payout transaction carrying parallel
	// recipient and base-unit amount slices, in caller order, plus the
	// final results content identifier.
	BulkPayout(ctx context.Context, escrow common.Address, recipients []common.Address, amounts []*big.Int, resultsCID string) error

	// Complete marks the contract finished. The contract rejects the call
	// while any balance remains.
	Complete(ctx context.Context, escrow common.Address) error

	// Abort releases the contract before any payout obligations exist.
	Abort(ctx context.Context, escrow common.Address) error

	// Refund returns the remaining balance to the requester.
	Refund(ctx context.Context, escrow common.Address) error

	// Balance reads the contract's current token balance in base units.
	Balance(ctx context.Context, escrow common.Address) (*big.Int, error)
}
