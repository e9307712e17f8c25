// Command escrow drives one escrow contract through its lifecycle from the
// command line: launch (deploy + setup + fund), payout, complete, abort,
// refund, status. Contract bookkeeping lives in the registry so later
// invocations can resume a contract by address.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/skalenetwork/hmt-escrow/config"
	"github.com/skalenetwork/hmt-escrow/escrow"
	"github.com/skalenetwork/hmt-escrow/ipfs"
	"github.com/skalenetwork/hmt-escrow/ledger"
	"github.com/skalenetwork/hmt-escrow/manifest"
	"github.com/skalenetwork/hmt-escrow/registry"
	"github.com/skalenetwork/hmt-escrow/storage"
)

func main() {
	var (
		manifestPath = flag.String("manifest", "", "path to the job manifest JSON")
		recipientPub = flag.String("recipient-pub", "", "hex public key encrypting artifacts for the recipient")
		escrowAddr   = flag.String("escrow", "", "escrow contract address (resume an existing contract)")
		payoutsPath  = flag.String("payouts", "", "path to payouts JSON: [{\"recipient\": \"0x..\", \"amount\": \"10\"}]")
		resultsPath  = flag.String("results", "", "path to final results payload")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: escrow [flags] launch|payout|complete|abort|refund|status")
		os.Exit(2)
	}
	command := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	creds, err := escrow.NewCredentials(cfg.GasPayerAddr, cfg.GasPayerKey)
	if err != nil {
		log.Fatal(err)
	}

	m, err := loadManifest(*manifestPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	store := storage.NewStore(ipfs.NewClient(cfg.IPFSAPIURL, timeout))
	ledgerClient := ledger.NewClient(cfg.LedgerGatewayURL, creds.Address, creds.Key, timeout)

	var reg registry.Store
	if cfg.PostgresDSN != "" {
		pg, err := registry.NewPGStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pg.Close()
		reg = pg
	} else {
		reg = registry.NewMemoryStore()
	}

	job, err := openJob(ctx, command, m, store, ledgerClient, creds, reg, *escrowAddr)
	if err != nil {
		log.Fatal(err)
	}

	switch command {
	case "launch":
		err = job.Launch(ctx, []byte(*recipientPub))
	case "payout":
		err = runPayout(ctx, job, *payoutsPath, *resultsPath, *recipientPub)
	case "complete":
		err = job.Complete(ctx)
	case "abort":
		err = job.Abort(ctx)
	case "refund":
		err = job.Refund(ctx)
	case "status":
		fmt.Printf("escrow %s status=%s balance=%s amount=%s\n",
			job.EscrowAddress().Hex(), job.Status(), job.Balance(), job.Amount())
		return
	default:
		log.Fatalf("unknown command %q", command)
	}
	if err != nil {
		log.Fatal(err)
	}

	if putErr := putRecord(ctx, reg, job, creds); putErr != nil {
		log.Printf("warning: escrow registry update failed: %v", putErr)
	}
	fmt.Printf("escrow %s status=%s balance=%s\n", job.EscrowAddress().Hex(), job.Status(), job.Balance())
}

func openJob(ctx context.Context, command string, m *manifest.Manifest, store *storage.Store,
	ledgerClient *ledger.Client, creds escrow.Credentials, reg registry.Store, escrowAddr string) (*escrow.Job, error) {
	if command == "launch" {
		return escrow.NewJob(m, store, ledgerClient, creds)
	}
	if command == "abort" && escrowAddr == "" {
		return escrow.NewJob(m, store, ledgerClient, creds)
	}
	if !common.IsHexAddress(escrowAddr) {
		return nil, fmt.Errorf("command %q requires -escrow with a contract address", command)
	}
	status := escrow.StatusPending
	if rec, err := reg.Get(ctx, escrowAddr); err == nil {
		status = escrow.Status(rec.Status)
	}
	return escrow.ResumeJob(ctx, m, store, ledgerClient, creds, common.HexToAddress(escrowAddr), status)
}

func runPayout(ctx context.Context, job *escrow.Job, payoutsPath, resultsPath, recipientPub string) error {
	if payoutsPath == "" {
		return fmt.Errorf("payout requires -payouts")
	}
	raw, err := os.ReadFile(payoutsPath)
	if err != nil {
		return err
	}
	var entries []struct {
		Recipient string          `json:"recipient"`
		Amount    decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse payouts: %w", err)
	}
	payouts := make([]escrow.Payout, 0, len(entries))
	for _, e := range entries {
		if !common.IsHexAddress(e.Recipient) {
			return fmt.Errorf("malformed payout recipient %q", e.Recipient)
		}
		payouts = append(payouts, escrow.Payout{Recipient: common.HexToAddress(e.Recipient), Amount: e.Amount})
	}

	var results []byte
	if resultsPath != "" {
		if results, err = os.ReadFile(resultsPath); err != nil {
			return err
		}
	}
	return job.BulkPayout(ctx, payouts, results, []byte(recipientPub))
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("-manifest is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return manifest.Deserialize(raw)
}

func putRecord(ctx context.Context, reg registry.Store, job *escrow.Job, creds escrow.Credentials) error {
	if job.EscrowAddress() == (common.Address{}) {
		return nil
	}
	amount, err := escrow.ToBaseUnits(job.Amount())
	if err != nil {
		return err
	}
	paid := new(big.Int).Sub(amount, job.Balance())
	if paid.Sign() < 0 {
		paid.SetInt64(0)
	}
	return reg.Put(ctx, registry.Record{
		EscrowAddress: job.EscrowAddress().Hex(),
		ManifestCID:   job.ManifestCID(),
		ResultsCID:    job.ResultsCID(),
		Status:        string(job.Status()),
		Amount:        amount.String(),
		PaidTotal:     paid.String(),
		GasPayer:      creds.Address.Hex(),
	})
}
