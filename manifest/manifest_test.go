package manifest

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func testManifest() *Manifest {
	return &Manifest{
		JobMode:                      "batch",
		RequestType:                  "image_label_binary",
		TaskBidPrice:                 decimal.RequireFromString("1.0"),
		JobTotalTasks:                100,
		OracleStake:                  decimal.RequireFromString("0.05"),
		RequesterAddr:                common.HexToAddress("0x1413862c2B7054CDbfdc181B83962CB0FC11fD92"),
		ReputationOracleAddr:         common.HexToAddress("0x61F9F0B31eacB420553da8BCC59DC617279731Ac"),
		RecordingOracleAddr:          common.HexToAddress("0xD979105297fB0eee83F7433fC09279cb5B94fFC6"),
		InstantResultDeliveryWebhook: "http://example.com/webhook",
		TaskdataURI:                  "http://example.com/taskdata",
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid manifest", func(t *testing.T) {
		if err := testManifest().Validate(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("zero price", func(t *testing.T) {
		m := testManifest()
		m.TaskBidPrice = decimal.Zero
		if err := m.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid but got %v", err)
		}
	})

	t.Run("zero tasks", func(t *testing.T) {
		m := testManifest()
		m.JobTotalTasks = 0
		if err := m.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid but got %v", err)
		}
	})

	t.Run("stake above one", func(t *testing.T) {
		m := testManifest()
		m.OracleStake = decimal.RequireFromString("1.5")
		if err := m.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid but got %v", err)
		}
	})

	t.Run("missing reputation oracle", func(t *testing.T) {
		m := testManifest()
		m.ReputationOracleAddr = common.Address{}
		if err := m.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid but got %v", err)
		}
	})

	t.Run("webhook without scheme", func(t *testing.T) {
		m := testManifest()
		m.InstantResultDeliveryWebhook = "not a url"
		if err := m.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid but got %v", err)
		}
	})
}

func TestAmount(t *testing.T) {
	m := testManifest()

	want := decimal.NewFromInt(100)
	if got := m.Amount(); !got.Equal(want) {
		t.Errorf("Expected amount %s but got %s", want, got)
	}

	m.TaskBidPrice = decimal.RequireFromString("0.35")
	m.JobTotalTasks = 3
	want = decimal.RequireFromString("1.05")
	if got := m.Amount(); !got.Equal(want) {
		t.Errorf("Expected amount %s but got %s", want, got)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	m := testManifest()
	raw, err := m.Serialize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	decoded, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if decoded.JobTotalTasks != m.JobTotalTasks {
		t.Errorf("Expected %d tasks but got %d", m.JobTotalTasks, decoded.JobTotalTasks)
	}
	if !decoded.TaskBidPrice.Equal(m.TaskBidPrice) {
		t.Errorf("Expected price %s but got %s", m.TaskBidPrice, decoded.TaskBidPrice)
	}
	if decoded.ReputationOracleAddr != m.ReputationOracleAddr {
		t.Errorf("Expected reputation oracle %s but got %s", m.ReputationOracleAddr.Hex(), decoded.ReputationOracleAddr.Hex())
	}
	if !decoded.Amount().Equal(m.Amount()) {
		t.Errorf("Expected amount %s but got %s", m.Amount(), decoded.Amount())
	}
}

func TestDeserializeRejectsInvalid(t *testing.T) {
	if _, err := Deserialize([]byte(`{"job_mode": "batch"}`)); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid but got %v", err)
	}
	if _, err := Deserialize([]byte(`not json`)); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid but got %v", err)
	}
}
