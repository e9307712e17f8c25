package escrow

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// Error kinds surfaced by Job operations. Every failure leaves the job's
// lifecycle status unchanged, so the same operation can be retried once the
// cause is resolved.
var (
	// ErrValidation reports malformed input detected before any external
	// call: bad manifest, missing deployment, mismatched credentials.
	ErrValidation = Err("invalid input")

	// ErrDeployment reports that the ledger rejected contract creation.
	ErrDeployment = Err("ledger rejected contract creation")

	// ErrContractCall reports that the ledger rejected a contract call.
	// Inspect the wrapped cause: transient network trouble is retryable,
	// authorization and state-precondition rejections are not.
	ErrContractCall = Err("ledger rejected contract call")

	// ErrInsufficientFunds reports that the gas payer's token balance
	// cannot cover the escrow amount.
	ErrInsufficientFunds = Err("token balance insufficient")

	// ErrInsufficientBalance reports payouts that sum past the current
	// escrow balance.
	ErrInsufficientBalance = Err("payouts exceed escrow balance")

	// ErrDuplicateRecipient reports a recipient repeated within one bulk
	// payout call.
	ErrDuplicateRecipient = Err("recipient repeated in payout set")

	// ErrPrecision reports an amount with a fractional base-unit
	// remainder; money is never silently rounded.
	ErrPrecision = Err("amount not representable in base units")
)
