package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := Record{
		EscrowAddress: "0x1CC6FD32C442E2C8D0Ad25D894Ae91bd1cfF707E",
		ManifestCID:   "bafymanifest",
		Status:        "pending",
		Amount:        "100000000000000000000",
		PaidTotal:     "0",
		GasPayer:      "0x1413862c2B7054CDbfdc181B83962CB0FC11fD92",
	}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Lookup is case-insensitive on the address.
	got, err := store.Get(ctx, "0x1cc6fd32c442e2c8d0ad25d894ae91bd1cff707e")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.ManifestCID != "bafymanifest" {
		t.Errorf("Expected manifest cid 'bafymanifest' but got %q", got.ManifestCID)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestMemoryStoreUpdateKeepsCreatedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := Record{EscrowAddress: "0xabc", ManifestCID: "bafy1", Status: "pending"}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	first, _ := store.Get(ctx, "0xabc")

	rec.Status = "partial"
	rec.PaidTotal = "30"
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, _ := store.Get(ctx, "0xabc")

	if second.Status != "partial" {
		t.Errorf("Expected status 'partial' but got %q", second.Status)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("Expected created_at preserved at %v but got %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "0xmissing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound but got %v", err)
	}
}

func TestMemoryStoreListOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := Record{EscrowAddress: "0xaaa", ManifestCID: "bafy1", Status: "pending", CreatedAt: time.Now().Add(-time.Hour)}
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second := Record{EscrowAddress: "0xbbb", ManifestCID: "bafy2", Status: "pending"}
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records but got %d", len(records))
	}
	if records[0].EscrowAddress != "0xbbb" {
		t.Errorf("Expected most recently updated first but got %q", records[0].EscrowAddress)
	}
}
