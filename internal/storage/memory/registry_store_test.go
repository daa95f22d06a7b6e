package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/storage"
)

func TestRegistryStore_InsertAndGet(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	rec := &domain.RegistryRecord{
		Mint:          "AFdCxpRdJjwrUpUBGC9qSHU7yf9qCkdmh6xdELq7XXVK",
		Address:       "99JVd1rAYvK4ssKVxg59pZJqQiCbRCobef1gBfG89gA5",
		HookProgram:   "A5KCz6aVgoynxv2BK6pDXq8swv8iyJTRdgdr371hQpwp",
		Bump:          255,
		ExtraAccounts: 2,
		Data:          []byte{1, 2, 3},
		Slot:          42,
		CreatedAt:     1704067200000,
	}

	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Caller mutations must not leak into the store.
	rec.Data[0] = 9

	got, err := store.GetByMint(ctx, rec.Mint)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if got.Address != rec.Address || got.Bump != 255 || got.ExtraAccounts != 2 {
		t.Errorf("unexpected record: %+v", got)
	}
	if !bytes.Equal(got.Data, []byte{1, 2, 3}) {
		t.Errorf("Data = %v, want [1 2 3]", got.Data)
	}
}

func TestRegistryStore_DuplicateKey(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	rec := &domain.RegistryRecord{Mint: "mint1", Address: "reg1"}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, &domain.RegistryRecord{Mint: "mint1", Address: "reg2"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if got.Address != "reg1" {
		t.Errorf("record replaced: %s", got.Address)
	}
}

func TestRegistryStore_NotFoundAndInvalid(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	if _, err := store.GetByMint(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.RegistryRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty mint, got %v", err)
	}
}

func TestRegistryStore_ListOrdered(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	for _, mint := range []string{"c", "a", "b"} {
		if err := store.Insert(ctx, &domain.RegistryRecord{Mint: mint}); err != nil {
			t.Fatalf("Insert %s failed: %v", mint, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 || list[0].Mint != "a" || list[1].Mint != "b" || list[2].Mint != "c" {
		t.Errorf("unexpected order: %v", list)
	}
}
