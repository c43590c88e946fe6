package core

import (
	"context"

	"specimentrack/pkg/domain"
)

// RecordStore adapts a PersistentStore to the lineage engine's load/save
// contract. Saves go through a transaction so write rules still apply.
type RecordStore struct {
	store PersistentStore
}

// NewRecordStore wraps store.
func NewRecordStore(store PersistentStore) *RecordStore {
	return &RecordStore{store: store}
}

// GetSpecimen loads a specimen, returning a domain.NotFoundError when absent.
func (r *RecordStore) GetSpecimen(ctx context.Context, id int64) (domain.Specimen, error) {
	var out domain.Specimen
	err := r.store.View(ctx, func(view TransactionView) error {
		sp, ok := view.FindSpecimen(id)
		if !ok {
			return domain.NotFound(domain.EntitySpecimen, id)
		}
		out = sp
		return nil
	})
	return out, err
}

// SaveSpecimen persists the mutable fields of specimen. The store refreshes
// the update timestamp.
func (r *RecordStore) SaveSpecimen(ctx context.Context, specimen domain.Specimen) (domain.Specimen, error) {
	var saved domain.Specimen
	_, err := r.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		saved, err = tx.UpdateSpecimen(specimen.ID, func(current *domain.Specimen) error {
			current.Barcode = specimen.Barcode
			current.Name = specimen.Name
			current.Attributes = specimen.Attributes
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Specimen{}, err
	}
	return saved, nil
}
