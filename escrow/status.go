package escrow

// Status is a job's lifecycle state. A job only advances on a confirmed
// ledger acknowledgement; failed calls leave it where it was.
type Status string

const (
	// StatusLaunched: constructed in memory, nothing on-chain yet.
	StatusLaunched Status = "launched"
	// StatusPending: contract deployed, encrypted manifest anchored.
	StatusPending Status = "pending"
	// StatusPartial: some results stored and/or some balance paid out.
	StatusPartial Status = "partial"
	// StatusPaid: full escrow balance distributed.
	StatusPaid Status = "paid"
	// StatusComplete: terminal success.
	StatusComplete Status = "complete"
	// StatusCancelled: terminal, reached through abort or refund.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}
