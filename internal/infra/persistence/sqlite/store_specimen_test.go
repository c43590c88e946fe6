package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"specimentrack/pkg/domain"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "specimens.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	var parent, child domain.Specimen
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		project, err := tx.CreateProject(domain.Project{Name: "Pedigree", RoleID: 2})
		if err != nil {
			return err
		}
		parent, err = tx.CreateSpecimen(domain.Specimen{
			Barcode:    "P1",
			ProjectID:  project.ID,
			Attributes: domain.NewAttributes(map[string]any{"family": "Lee"}),
		})
		if err != nil {
			return err
		}
		child, err = tx.CreateSpecimen(domain.Specimen{
			Barcode:    "C1",
			ProjectID:  project.ID,
			Attributes: domain.NewAttributes(map[string]any{"parent_id": parent.ID, "note": "aliquot"}),
		})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, ok := reopened.GetSpecimen(child.ID)
	if !ok {
		t.Fatalf("expected child specimen after reopen")
	}
	v, _ := got.Attributes.Get("parent_id")
	if v != parent.ID {
		t.Fatalf("expected integer parent_id %d after reload, got %#v", parent.ID, v)
	}
	if got.Attributes.String("note") != "aliquot" {
		t.Fatalf("expected note preserved, got %v", got.Attributes.Map())
	}
	if len(reopened.ListProjects()) != 1 {
		t.Fatalf("expected project restored")
	}

	var next domain.Specimen
	if _, err := reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		next, err = tx.CreateSpecimen(domain.Specimen{Barcode: "C2", ProjectID: got.ProjectID})
		return err
	}); err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
	if next.ID != child.ID+1 {
		t.Fatalf("expected sequence to survive reopen, got %d", next.ID)
	}
}

func TestFailedTransactionDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "specimens.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSpecimen(domain.Specimen{Barcode: "X", ProjectID: 5})
		return err
	})
	if err == nil {
		t.Fatalf("expected missing project error")
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no snapshot rows, got %d", count)
	}
}
