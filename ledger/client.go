// Package ledger implements escrow.LedgerClient against an escrow gateway:
// an HTTP service that owns transaction assembly, gas mechanics, and
// confirmation tracking for the escrow contract family. Every call here
// blocks until the gateway reports the transaction confirmed or rejected.
package ledger

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skalenetwork/hmt-escrow/escrow"
)

// Client talks to one escrow gateway on behalf of one gas payer. Safe for
// concurrent use; each call is independent and the gateway supplies
// transaction sequencing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	gasPayer   common.Address
	key        *ecdsa.PrivateKey
	limiter    *rateLimiter
}

// NewClient returns a gateway client signing requests with the gas payer's
// key.
func NewClient(baseURL string, gasPayer common.Address, key *ecdsa.PrivateKey, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		gasPayer:   gasPayer,
		key:        key,
		limiter:    newRateLimiter(100, time.Minute),
	}
}

type createEscrowRequest struct {
	RequestID        string `json:"request_id"`
	GasPayer         string `json:"gas_payer"`
	ManifestCID      string `json:"manifest_cid"`
	ReputationOracle string `json:"reputation_oracle"`
	RecordingOracle  string `json:"recording_oracle"`
	OracleStake      string `json:"oracle_stake"`
}

type createEscrowResponse struct {
	EscrowAddress string `json:"escrow_address"`
}

// CreateEscrow deploys a new escrow contract through the factory.
func (c *Client) CreateEscrow(ctx context.Context, manifestCID string, reputationOracle, recordingOracle common.Address, stake decimal.Decimal) (common.Address, error) {
	req := createEscrowRequest{
		RequestID:        uuid.NewString(),
		GasPayer:         c.gasPayer.Hex(),
		ManifestCID:      manifestCID,
		ReputationOracle: reputationOracle.Hex(),
		RecordingOracle:  recordingOracle.Hex(),
		OracleStake:      stake.String(),
	}
	var resp createEscrowResponse
	if err := c.post(ctx, "/v1/factory/escrows", req, &resp, escrow.ErrDeployment); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(resp.EscrowAddress) {
		return common.Address{}, fmt.Errorf("%w: gateway returned malformed escrow address %q", escrow.ErrDeployment, resp.EscrowAddress)
	}
	return common.HexToAddress(resp.EscrowAddress), nil
}

type setupRequest struct {
	RequestID       string   `json:"request_id"`
	GasPayer        string   `json:"gas_payer"`
	TrustedHandlers []string `json:"trusted_handlers"`
}

// Setup registers trusted handlers on the contract.
func (c *Client) Setup(ctx context.Context, escrowAddr common.Address, trustedHandlers []common.Address) error {
	handlers := make([]string, len(trustedHandlers))
	for i, h := range trustedHandlers {
		handlers[i] = h.Hex()
	}
	req := setupRequest{RequestID: uuid.NewString(), GasPayer: c.gasPayer.Hex(), TrustedHandlers: handlers}
	return c.post(ctx, c.escrowPath(escrowAddr, "setup"), req, nil, escrow.ErrContractCall)
}

type fundRequest struct {
	RequestID string `json:"request_id"`
	GasPayer  string `json:"gas_payer"`
	Amount    string `json:"amount"`
}

// Fund transfers amount base units of the job token into the contract.
func (c *Client) Fund(ctx context.Context, escrowAddr common.Address, amount *big.Int) error {
	req := fundRequest{RequestID: uuid.NewString(), GasPayer: c.gasPayer.Hex(), Amount: amount.String()}
	return c.post(ctx, c.escrowPath(escrowAddr, "fund"), req, nil, escrow.ErrContractCall)
}

type recordResultsRequest struct {
	RequestID  string `json:"request_id"`
	GasPayer   string `json:"gas_payer"`
	ResultsCID string `json:"results_cid"`
}

// RecordResults anchors an intermediate results content identifier.
func (c *Client) RecordResults(ctx context.Context, escrowAddr common.Address, resultsCID string) error {
	req := recordResultsRequest{RequestID: uuid.NewString(), GasPayer: c.gasPayer.Hex(), ResultsCID: resultsCID}
	return c.post(ctx, c.escrowPath(escrowAddr, "results"), req, nil, escrow.ErrContractCall)
}

type bulkPayoutRequest struct {
	RequestID  string   `json:"request_id"`
	GasPayer   string   `json:"gas_payer"`
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`
	ResultsCID string   `json:"results_cid"`
}

// BulkPayout submits one payout transaction with parallel recipient and
// amount lists in caller order.
func (c *Client) BulkPayout(ctx context.Context, escrowAddr common.Address, recipients []common.Address, amounts []*big.Int, resultsCID string) error {
	rs := make([]string, len(recipients))
	for i, r := range recipients {
		rs[i] = r.Hex()
	}
	as := make([]string, len(amounts))
	for i, a := range amounts {
		as[i] = a.String()
	}
	req := bulkPayoutRequest{
		RequestID:  uuid.NewString(),
		GasPayer:   c.gasPayer.Hex(),
		Recipients: rs,
		Amounts:    as,
		ResultsCID: resultsCID,
	}
	return c.post(ctx, c.escrowPath(escrowAddr, "payouts"), req, nil, escrow.ErrContractCall)
}

type lifecycleRequest struct {
	RequestID string `json:"request_id"`
	GasPayer  string `json:"gas_payer"`
}

// Complete marks the contract finished.
func (c *Client) Complete(ctx context.Context, escrowAddr common.Address) error {
	return c.post(ctx, c.escrowPath(escrowAddr, "complete"), c.lifecycleReq(), nil, escrow.ErrContractCall)
}

// Abort releases the contract without payout obligations.
func (c *Client) Abort(ctx context.Context, escrowAddr common.Address) error {
	return c.post(ctx, c.escrowPath(escrowAddr, "abort"), c.lifecycleReq(), nil, escrow.ErrContractCall)
}

// Refund returns the remaining balance to the requester.
func (c *Client) Refund(ctx context.Context, escrowAddr common.Address) error {
	return c.post(ctx, c.escrowPath(escrowAddr, "refund"), c.lifecycleReq(), nil, escrow.ErrContractCall)
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

// Balance reads the contract's token balance in base units.
func (c *Client) Balance(ctx context.Context, escrowAddr common.Address) (*big.Int, error) {
	reqURL := c.baseURL + c.escrowPath(escrowAddr, "balance")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", escrow.ErrContractCall, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", escrow.ErrContractCall, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.gatewayError(resp, escrow.ErrContractCall)
	}
	var body balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode balance: %v", escrow.ErrContractCall, err)
	}
	bal, ok := new(big.Int).SetString(body.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("%w: gateway returned malformed balance %q", escrow.ErrContractCall, body.Balance)
	}
	return bal, nil
}

func (c *Client) lifecycleReq() lifecycleRequest {
	return lifecycleRequest{RequestID: uuid.NewString(), GasPayer: c.gasPayer.Hex()}
}

func (c *Client) escrowPath(escrowAddr common.Address, op string) string {
	return fmt.Sprintf("/v1/escrows/%s/%s", escrowAddr.Hex(), op)
}

// post sends a signed JSON request and maps gateway rejections to kind.
// Responses other than 2xx never advanced on-chain state; the gateway only
// acknowledges confirmed transactions with 200.
func (c *Client) post(ctx context.Context, path string, payload any, out any, kind error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.sign(req, body); err != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.gatewayError(resp, kind)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", kind, err)
		}
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if !c.limiter.allow() {
		return nil, fmt.Errorf("gateway rate limit exceeded")
	}
	return c.httpClient.Do(req)
}

// sign authenticates the request body with the gas payer's key so the
// gateway can verify the caller controls the account it is spending from.
func (c *Client) sign(req *http.Request, body []byte) error {
	digest := sha256.Sum256(body)
	sig, err := crypto.Sign(digest[:], c.key)
	if err != nil {
		return err
	}
	req.Header.Set("X-Escrow-Signer", c.gasPayer.Hex())
	req.Header.Set("X-Escrow-Signature", hex.EncodeToString(sig))
	return nil
}

func (c *Client) gatewayError(resp *http.Response, kind error) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if resp.StatusCode == http.StatusPaymentRequired {
		kind = escrow.ErrInsufficientFunds
	}
	if msg == "" {
		return fmt.Errorf("%w: gateway returned %s", kind, resp.Status)
	}
	return fmt.Errorf("%w: gateway returned %s: %s", kind, resp.Status, msg)
}
