package lineage

import (
	"context"
	"errors"

	"specimentrack/pkg/domain"
)

// Verify runs the read-path repair for one specimen: resolve the parent
// reference, load the parent and reconcile inherited attributes.
//
// A specimen without a parent is returned unchanged. When the parent does not
// exist the specimen is returned as it stands after resolution together with
// an error matching domain.ErrNotFound; callers on the read path log it and
// keep going.
func (e *Engine) Verify(ctx context.Context, specimen domain.Specimen) (domain.Specimen, error) {
	if _, ok := specimen.ParentRef(); !ok {
		return specimen, nil
	}
	res, err := e.Resolve(ctx, specimen)
	if err != nil {
		return specimen, err
	}
	parent, err := e.store.GetSpecimen(ctx, res.ParentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("parent specimen not found", "specimen_id", specimen.ID, "parent_id", res.ParentID)
			e.observe(ctx, RepairDanglingParent)
		}
		return res.Specimen, err
	}
	return e.Reconcile(ctx, res.Specimen, parent)
}
