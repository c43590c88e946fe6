package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"specimentrack/internal/blob/core"
)

func TestStorePutGetList(t *testing.T) {
	store := New()
	ctx := context.Background()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("expected memory driver")
	}
	meta := map[string]string{"project": "p1"}
	info, err := store.Put(ctx, "reports/p1/a.json", bytes.NewReader([]byte(`{"a":1}`)), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["project"] = "mutated"
	if info.Size != 7 || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "reports/p2/b.json", bytes.NewReader(nil), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, rc, err := store.Get(ctx, "reports/p1/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"a":1}` || got.Metadata["project"] != "p1" {
		t.Fatalf("unexpected blob %q %+v", body, got.Metadata)
	}

	list, err := store.List(ctx, "reports/p1/")
	if err != nil || len(list) != 1 || list[0].Key != "reports/p1/a.json" {
		t.Fatalf("list prefix: %v %+v", err, list)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 2 || all[0].Key > all[1].Key {
		t.Fatalf("expected two sorted blobs, got %+v", all)
	}
}

func TestStoreErrors(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Put(ctx, " ", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v2")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}
	if _, err := store.Put(ctx, "bad", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, fmt.Errorf("fail") }
