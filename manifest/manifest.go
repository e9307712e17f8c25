// Package manifest defines the task manifest describing a single escrow job
// and its JSON codec. A manifest is validated once and treated as immutable
// afterwards; the job's total escrow amount is derived from it exactly.
package manifest

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// ErrInvalid reports a manifest that fails validation.
var ErrInvalid = Err("invalid manifest")

// Manifest describes the parameters of one escrow job: what is being asked,
// how each task is priced, and which oracles arbitrate the result.
type Manifest struct {
	JobMode     string `json:"job_mode"`
	RequestType string `json:"request_type"`

	TaskBidPrice  decimal.Decimal `json:"task_bid_price"`
	JobTotalTasks int             `json:"job_total_tasks"`
	OracleStake   decimal.Decimal `json:"oracle_stake"`

	RequesterAddr        common.Address `json:"requester_addr"`
	ReputationOracleAddr common.Address `json:"reputation_oracle_addr"`
	RecordingOracleAddr  common.Address `json:"recording_oracle_addr"`

	InstantResultDeliveryWebhook string `json:"instant_result_delivery_webhook"`
	TaskdataURI                  string `json:"taskdata_uri"`

	ExpirationDate     int64           `json:"expiration_date,omitempty"`
	MinimumTrustServer decimal.Decimal `json:"minimum_trust_server,omitempty"`
	MinimumTrustClient decimal.Decimal `json:"minimum_trust_client,omitempty"`
}

// Validate checks the manifest against the constraints the escrow layer
// relies on. A manifest that passes Validate never changes meaning later.
func (m *Manifest) Validate() error {
	if m.JobMode == "" {
		return fmt.Errorf("%w: job_mode is required", ErrInvalid)
	}
	if m.RequestType == "" {
		return fmt.Errorf("%w: request_type is required", ErrInvalid)
	}
	if !m.TaskBidPrice.IsPositive() {
		return fmt.Errorf("%w: task_bid_price must be positive, got %s", ErrInvalid, m.TaskBidPrice)
	}
	if m.JobTotalTasks <= 0 {
		return fmt.Errorf("%w: job_total_tasks must be positive, got %d", ErrInvalid, m.JobTotalTasks)
	}
	if m.OracleStake.IsNegative() || m.OracleStake.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: oracle_stake must be within [0,1], got %s", ErrInvalid, m.OracleStake)
	}
	if m.ReputationOracleAddr == (common.Address{}) {
		return fmt.Errorf("%w: reputation_oracle_addr is required", ErrInvalid)
	}
	if m.RecordingOracleAddr == (common.Address{}) {
		return fmt.Errorf("%w: recording_oracle_addr is required", ErrInvalid)
	}
	if err := validURI(m.InstantResultDeliveryWebhook); err != nil {
		return fmt.Errorf("%w: instant_result_delivery_webhook: %v", ErrInvalid, err)
	}
	if err := validURI(m.TaskdataURI); err != nil {
		return fmt.Errorf("%w: taskdata_uri: %v", ErrInvalid, err)
	}
	return nil
}

func validURI(raw string) error {
	if raw == "" {
		return fmt.Errorf("missing URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		return fmt.Errorf("URI %q has no scheme", raw)
	}
	return nil
}

// Amount returns the job's total escrow value, task price times task count.
// The arithmetic is exact decimal arithmetic, never floating point.
func (m *Manifest) Amount() decimal.Decimal {
	return m.TaskBidPrice.Mul(decimal.NewFromInt(int64(m.JobTotalTasks)))
}

// Serialize encodes the manifest as canonical JSON bytes.
func (m *Manifest) Serialize() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	return raw, nil
}

// Deserialize decodes and validates a manifest from JSON bytes.
func Deserialize(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
