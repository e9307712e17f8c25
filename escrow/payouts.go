package escrow

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// BaseUnitDecimals is the ledger token's fixed precision: one whole token is
// 10^18 base units.
const BaseUnitDecimals = 18

// Payout is one recipient's share of a bulk payout, in whole-token decimal
// units.
type Payout struct {
	Recipient common.Address
	Amount    decimal.Decimal
}

// ToBaseUnits converts a whole-token decimal amount to base units. Amounts
// with a fractional base-unit remainder fail with ErrPrecision rather than
// being rounded.
func ToBaseUnits(amount decimal.Decimal) (*big.Int, error) {
	shifted := amount.Shift(BaseUnitDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: %s has more than %d decimal places", ErrPrecision, amount, BaseUnitDecimals)
	}
	return shifted.BigInt(), nil
}

// PreparePayouts validates a payout set against the current escrow balance
// and converts it to the ledger's parallel-slice form. Input order is
// preserved so on-chain event ordering matches caller intent. The balance
// argument is never mutated.
func PreparePayouts(payouts []Payout, balance *big.Int) ([]common.Address, []*big.Int, error) {
	if len(payouts) == 0 {
		return nil, nil, fmt.Errorf("%w: empty payout set", ErrValidation)
	}

	recipients := make([]common.Address, 0, len(payouts))
	amounts := make([]*big.Int, 0, len(payouts))
	seen := make(map[common.Address]struct{}, len(payouts))
	total := new(big.Int)

	for _, p := range payouts {
		if _, dup := seen[p.Recipient]; dup {
			return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateRecipient, p.Recipient.Hex())
		}
		seen[p.Recipient] = struct{}{}

		if !p.Amount.IsPositive() {
			return nil, nil, fmt.Errorf("%w: payout to %s must be positive, got %s", ErrValidation, p.Recipient.Hex(), p.Amount)
		}
		converted, err := ToBaseUnits(p.Amount)
		if err != nil {
			return nil, nil, err
		}

		recipients = append(recipients, p.Recipient)
		amounts = append(amounts, converted)
		total.Add(total, converted)
	}

	if balance == nil || total.Cmp(balance) > 0 {
		return nil, nil, fmt.Errorf("%w: total %s exceeds balance %s", ErrInsufficientBalance, total, balance)
	}
	return recipients, amounts, nil
}
