package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/skalenetwork/hmt-escrow/escrow"
)

var testEscrow = common.HexToAddress("0x1CC6FD32C442E2C8D0Ad25D894Ae91bd1cfF707E")

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return NewClient(srv.URL, crypto.PubkeyToAddress(key.PublicKey), key, 5*time.Second)
}

func TestCreateEscrow(t *testing.T) {
	var gotPath string
	var gotBody createEscrowRequest
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		if sig := r.Header.Get("X-Escrow-Signature"); len(sig) != 130 {
			t.Errorf("Expected 65-byte hex signature but got %q", sig)
		} else if _, err := hex.DecodeString(sig); err != nil {
			t.Errorf("Expected hex signature but got %q", sig)
		}
		json.NewEncoder(w).Encode(createEscrowResponse{EscrowAddress: testEscrow.Hex()})
	}))

	rep := common.HexToAddress("0x61F9F0B31eacB420553da8BCC59DC617279731Ac")
	rec := common.HexToAddress("0xD979105297fB0eee83F7433fC09279cb5B94fFC6")
	addr, err := client.CreateEscrow(context.Background(), "bafymanifest", rep, rec, decimal.RequireFromString("0.05"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if addr != testEscrow {
		t.Errorf("Expected escrow address %s but got %s", testEscrow.Hex(), addr.Hex())
	}
	if gotPath != "/v1/factory/escrows" {
		t.Errorf("Expected factory path but got %q", gotPath)
	}
	if gotBody.ManifestCID != "bafymanifest" {
		t.Errorf("Expected manifest cid in request but got %q", gotBody.ManifestCID)
	}
	if gotBody.OracleStake != "0.05" {
		t.Errorf("Expected stake '0.05' but got %q", gotBody.OracleStake)
	}
	if gotBody.RequestID == "" {
		t.Error("Expected a request id")
	}
}

func TestCreateEscrowRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "factory reverted", http.StatusConflict)
	}))

	_, err := client.CreateEscrow(context.Background(), "bafymanifest", common.Address{}, common.Address{}, decimal.Zero)
	if !errors.Is(err, escrow.ErrDeployment) {
		t.Errorf("Expected ErrDeployment but got %v", err)
	}
}

func TestFundInsufficientFunds(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payer balance too low", http.StatusPaymentRequired)
	}))

	err := client.Fund(context.Background(), testEscrow, big.NewInt(1))
	if !errors.Is(err, escrow.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds but got %v", err)
	}
}

func TestBulkPayoutBody(t *testing.T) {
	var gotBody bulkPayoutRequest
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/escrows/"+testEscrow.Hex()+"/payouts" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	recipients := []common.Address{
		common.HexToAddress("0x6b7E3C31F34cF38d1DFC1D9A8A59482028395809"),
		common.HexToAddress("0xa30E4681db25f0f32E8C79b28F2A80A653A556A2"),
	}
	amounts := []*big.Int{big.NewInt(10), big.NewInt(20)}
	if err := client.BulkPayout(context.Background(), testEscrow, recipients, amounts, "bafyresults"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(gotBody.Recipients) != 2 || gotBody.Recipients[0] != recipients[0].Hex() || gotBody.Recipients[1] != recipients[1].Hex() {
		t.Errorf("Expected recipients in caller order but got %v", gotBody.Recipients)
	}
	if len(gotBody.Amounts) != 2 || gotBody.Amounts[0] != "10" || gotBody.Amounts[1] != "20" {
		t.Errorf("Expected amounts ['10', '20'] but got %v", gotBody.Amounts)
	}
	if gotBody.ResultsCID != "bafyresults" {
		t.Errorf("Expected results cid but got %q", gotBody.ResultsCID)
	}
}

func TestSetupRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "caller not trusted", http.StatusForbidden)
	}))

	err := client.Setup(context.Background(), testEscrow, []common.Address{testEscrow})
	if !errors.Is(err, escrow.ErrContractCall) {
		t.Errorf("Expected ErrContractCall but got %v", err)
	}
}

func TestBalance(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET but got %s", r.Method)
		}
		json.NewEncoder(w).Encode(balanceResponse{Balance: "100000000000000000000"})
	}))

	bal, err := client.Balance(context.Background(), testEscrow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want, _ := new(big.Int).SetString("100000000000000000000", 10)
	if bal.Cmp(want) != 0 {
		t.Errorf("Expected balance %s but got %s", want, bal)
	}
}

func TestBalanceMalformed(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(balanceResponse{Balance: "lots"})
	}))

	if _, err := client.Balance(context.Background(), testEscrow); !errors.Is(err, escrow.ErrContractCall) {
		t.Errorf("Expected ErrContractCall but got %v", err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Hour)
	if !rl.allow() || !rl.allow() {
		t.Fatal("Expected first two requests allowed")
	}
	if rl.allow() {
		t.Error("Expected third request within window denied")
	}
	rl.windowStart = time.Now().Add(-2 * time.Hour)
	if !rl.allow() {
		t.Error("Expected request allowed after window reset")
	}
}
