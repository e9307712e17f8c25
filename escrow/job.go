// Package escrow drives a single escrow transaction between a requester,
// workers, and two oracles through its lifecycle: deploy, setup, fund,
// intermediate results, bulk payout, and completion or cancellation. The
// on-chain contract is the durable record; a Job is the in-memory state
// machine coordinating it with encrypted off-chain artifact storage.
package escrow

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/skalenetwork/hmt-escrow/manifest"
	"github.com/skalenetwork/hmt-escrow/metrics"
)

// ContentStore encrypts artifacts for a recipient and moves them through
// content-addressed storage. storage.Store is the production implementation.
type ContentStore interface {
	Upload(ctx context.Context, plaintext, publicKey []byte) (string, error)
	Download(ctx context.Context, cid string, privateKey []byte) ([]byte, error)
}

// Job coordinates one escrow contract instance. A Job is single-owner: one
// logical thread of control drives its transitions. Multiple jobs may share
// a LedgerClient.
type Job struct {
	manifest *manifest.Manifest
	store    ContentStore
	ledger   LedgerClient
	creds    Credentials

	status        Status
	escrowAddress common.Address
	amount        decimal.Decimal
	oracleStake   decimal.Decimal
	balance       *big.Int

	manifestCID string
	resultsCID  string
	setupDone   bool
}

// NewJob builds a job in the Launched state from a validated manifest. The
// escrow amount (task price times task count) is computed here once and
// never changes.
func NewJob(m *manifest.Manifest, store ContentStore, ledger LedgerClient, creds Credentials) (*Job, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if store == nil || ledger == nil {
		return nil, fmt.Errorf("%w: job requires a content store and a ledger client", ErrValidation)
	}
	if creds.Key == nil {
		return nil, fmt.Errorf("%w: job requires gas payer credentials", ErrValidation)
	}
	return &Job{
		manifest:    m,
		store:       store,
		ledger:      ledger,
		creds:       creds,
		status:      StatusLaunched,
		amount:      m.Amount(),
		oracleStake: m.OracleStake,
		balance:     new(big.Int),
	}, nil
}

// ResumeJob rebuilds a job for a contract deployed by an earlier process.
// The caller supplies the lifecycle status it last recorded; the balance is
// read fresh from the ledger, which stays authoritative. This is the
// reconciliation path after a restart, instead of blind re-submission.
func ResumeJob(ctx context.Context, m *manifest.Manifest, store ContentStore, ledger LedgerClient, creds Credentials, escrowAddr common.Address, status Status) (*Job, error) {
	j, err := NewJob(m, store, ledger, creds)
	if err != nil {
		return nil, err
	}
	if escrowAddr == (common.Address{}) {
		return nil, fmt.Errorf("%w: resume requires an escrow address", ErrValidation)
	}
	j.escrowAddress = escrowAddr
	j.status = status
	// Trusted-handler registration leaves no trace in the lifecycle status,
	// so a resumed job cannot know whether it already ran. The next Setup
	// re-registers; the contract call is idempotent.
	j.setupDone = false
	if err := j.refreshBalance(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

// Status returns the current lifecycle state.
func (j *Job) Status() Status { return j.status }

// EscrowAddress returns the deployed contract address, or the zero address
// before deploy.
func (j *Job) EscrowAddress() common.Address { return j.escrowAddress }

// Amount returns the job's total escrow value in whole-token decimal units.
func (j *Job) Amount() decimal.Decimal { return j.amount }

// Balance returns the cached escrow balance in base units. The ledger is
// the authoritative source; the cache refreshes on fund and refund.
func (j *Job) Balance() *big.Int { return new(big.Int).Set(j.balance) }

// ManifestCID returns the content identifier of the encrypted manifest, set
// by Deploy.
func (j *Job) ManifestCID() string { return j.manifestCID }

// ResultsCID returns the most recently anchored results content identifier.
func (j *Job) ResultsCID() string { return j.resultsCID }

// Deploy encrypts the serialized manifest for recipientPublicKey, uploads
// it, and creates the escrow contract anchored to the resulting content
// identifier. The upload must succeed before any ledger call is attempted,
// so a storage failure leaves no partial on-chain state.
func (j *Job) Deploy(ctx context.Context, recipientPublicKey []byte) error {
	if j.status != StatusLaunched {
		return fmt.Errorf("%w: deploy only valid from %s, job is %s", ErrValidation, StatusLaunched, j.status)
	}

	raw, err := j.manifest.Serialize()
	if err != nil {
		return err
	}
	cid, err := j.store.Upload(ctx, raw, recipientPublicKey)
	if err != nil {
		return err
	}

	addr, err := j.ledger.CreateEscrow(ctx, cid, j.manifest.ReputationOracleAddr, j.manifest.RecordingOracleAddr, j.oracleStake)
	metrics.ObserveLedger("create_escrow", err)
	if err != nil {
		return err
	}

	j.escrowAddress = addr
	j.manifestCID = cid
	j.status = StatusPending
	log.Printf("escrow: deployed contract %s (manifest %s)", addr.Hex(), cid)
	return nil
}

// Setup registers the reputation oracle, recording oracle, and gas payer as
// trusted handlers on the contract. Re-invoking after success is a no-op.
func (j *Job) Setup(ctx context.Context) error {
	if err := j.requireDeployed("setup"); err != nil {
		return err
	}
	if j.setupDone {
		return nil
	}

	handlers := []common.Address{
		j.manifest.ReputationOracleAddr,
		j.manifest.RecordingOracleAddr,
		j.creds.Address,
	}
	err := j.ledger.Setup(ctx, j.escrowAddress, handlers)
	metrics.ObserveLedger("setup", err)
	if err != nil {
		return err
	}
	j.setupDone = true
	log.Printf("escrow: contract %s trusted handlers configured", j.escrowAddress.Hex())
	return nil
}

// Fund transfers the full escrow amount into the contract and refreshes the
// cached balance from the ledger.
func (j *Job) Fund(ctx context.Context) error {
	if err := j.requireDeployed("fund"); err != nil {
		return err
	}
	if j.status.Terminal() {
		return fmt.Errorf("%w: fund not valid once job is %s", ErrValidation, j.status)
	}
	amount, err := ToBaseUnits(j.amount)
	if err != nil {
		return err
	}

	err = j.ledger.Fund(ctx, j.escrowAddress, amount)
	metrics.ObserveLedger("fund", err)
	if err != nil {
		return err
	}
	// The transfer is confirmed at this point; a failed balance read must
	// not make the operation look failed. Fall back to local arithmetic.
	if err := j.refreshBalance(ctx); err != nil {
		log.Printf("escrow: contract %s balance read failed after fund, using local total: %v", j.escrowAddress.Hex(), err)
		j.balance.Add(j.balance, amount)
	}
	log.Printf("escrow: contract %s funded, balance %s", j.escrowAddress.Hex(), j.balance)
	return nil
}

// Launch runs deploy, setup, and fund in sequence, stopping at the first
// failure.
func (j *Job) Launch(ctx context.Context, recipientPublicKey []byte) error {
	if err := j.Deploy(ctx, recipientPublicKey); err != nil {
		return err
	}
	if err := j.Setup(ctx); err != nil {
		return err
	}
	return j.Fund(ctx)
}

// StoreIntermediateResults encrypts results for recipientPublicKey, uploads
// them, and anchors the content identifier on-chain. Lifecycle status does
// not change. If a confirmed upload is retried after a storage failure the
// fresh identifier is re-anchored; identifiers differ per upload because
// encryption draws fresh ephemeral keys.
func (j *Job) StoreIntermediateResults(ctx context.Context, results, recipientPublicKey []byte) error {
	if err := j.requireDeployed("store intermediate results"); err != nil {
		return err
	}
	if j.status.Terminal() {
		return fmt.Errorf("%w: store intermediate results not valid once job is %s", ErrValidation, j.status)
	}
	cid, err := j.store.Upload(ctx, results, recipientPublicKey)
	if err != nil {
		return err
	}

	err = j.ledger.RecordResults(ctx, j.escrowAddress, cid)
	metrics.ObserveLedger("record_results", err)
	if err != nil {
		return err
	}
	j.resultsCID = cid
	log.Printf("escrow: contract %s intermediate results anchored at %s", j.escrowAddress.Hex(), cid)
	return nil
}

// BulkPayout validates payouts against the cached balance, uploads the
// encrypted final results, and submits one payout transaction. On success
// the balance drops by the total paid and the job moves to Partial, or Paid
// when the balance reaches zero.
//
// The call is at-most-once per logical payout: recipients are deduplicated
// within one call only, and a confirmed payout must not be re-submitted or
// it will double-pay.
func (j *Job) BulkPayout(ctx context.Context, payouts []Payout, finalResults, recipientPublicKey []byte) error {
	if err := j.requireDeployed("bulk payout"); err != nil {
		return err
	}
	if j.status.Terminal() || j.status == StatusPaid {
		return fmt.Errorf("%w: bulk payout not valid once job is %s", ErrValidation, j.status)
	}

	recipients, amounts, err := PreparePayouts(payouts, j.balance)
	if err != nil {
		return err
	}
	cid, err := j.store.Upload(ctx, finalResults, recipientPublicKey)
	if err != nil {
		return err
	}

	err = j.ledger.BulkPayout(ctx, j.escrowAddress, recipients, amounts, cid)
	metrics.ObserveLedger("bulk_payout", err)
	if err != nil {
		return err
	}

	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a)
	}
	j.balance.Sub(j.balance, total)
	j.resultsCID = cid
	if j.balance.Sign() == 0 {
		j.status = StatusPaid
	} else {
		j.status = StatusPartial
	}
	log.Printf("escrow: contract %s paid %s to %d recipients, balance %s, status %s",
		j.escrowAddress.Hex(), total, len(recipients), j.balance, j.status)
	return nil
}

// Complete marks the contract finished on-chain. The contract itself rejects
// the call while any balance remains, so invoking before Paid surfaces the
// ledger's rejection and leaves status unchanged.
func (j *Job) Complete(ctx context.Context) error {
	if err := j.requireDeployed("complete"); err != nil {
		return err
	}
	err := j.ledger.Complete(ctx, j.escrowAddress)
	metrics.ObserveLedger("complete", err)
	if err != nil {
		return err
	}
	j.status = StatusComplete
	log.Printf("escrow: contract %s complete", j.escrowAddress.Hex())
	return nil
}

// Abort releases the contract before funds are distributed. Aborting a job
// that never deployed just cancels it locally; once payouts have begun the
// contract rejects the call.
func (j *Job) Abort(ctx context.Context) error {
	if j.status.Terminal() {
		return fmt.Errorf("%w: abort not valid once job is %s", ErrValidation, j.status)
	}
	if j.status == StatusLaunched {
		j.status = StatusCancelled
		log.Printf("escrow: job aborted before deployment")
		return nil
	}

	err := j.ledger.Abort(ctx, j.escrowAddress)
	metrics.ObserveLedger("abort", err)
	if err != nil {
		return err
	}
	j.status = StatusCancelled
	log.Printf("escrow: contract %s aborted", j.escrowAddress.Hex())
	return nil
}

// Refund returns the remaining escrow balance to the requester and cancels
// the job. The contract rejects the call when the balance is zero or the
// caller is not authorized.
func (j *Job) Refund(ctx context.Context) error {
	if err := j.requireDeployed("refund"); err != nil {
		return err
	}
	if j.status.Terminal() {
		return fmt.Errorf("%w: refund not valid once job is %s", ErrValidation, j.status)
	}

	err := j.ledger.Refund(ctx, j.escrowAddress)
	metrics.ObserveLedger("refund", err)
	if err != nil {
		return err
	}
	// A confirmed refund returns the whole remaining balance.
	j.balance.SetInt64(0)
	j.status = StatusCancelled
	log.Printf("escrow: contract %s refunded to requester", j.escrowAddress.Hex())
	return nil
}

// refreshBalance replaces the cached balance with the ledger's.
func (j *Job) refreshBalance(ctx context.Context) error {
	bal, err := j.ledger.Balance(ctx, j.escrowAddress)
	metrics.ObserveLedger("balance", err)
	if err != nil {
		return err
	}
	j.balance = new(big.Int).Set(bal)
	return nil
}

func (j *Job) requireDeployed(op string) error {
	if j.escrowAddress == (common.Address{}) {
		return fmt.Errorf("%w: %s requires a deployed contract", ErrValidation, op)
	}
	return nil
}
