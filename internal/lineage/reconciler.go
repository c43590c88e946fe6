package lineage

import (
	"context"
	"fmt"

	"specimentrack/pkg/domain"
)

// InheritAttributes returns child with every inheritable key copied from parent
// where the parent holds a non-empty value that differs. The keys that changed
// are returned in inheritance order. Neither input is modified.
func InheritAttributes(child, parent domain.Attributes) (domain.Attributes, []string) {
	var changed []string
	out := child
	for _, key := range domain.InheritableAttributes {
		pv, ok := parent.Get(key)
		if !ok || domain.IsEmptyValue(pv) {
			continue
		}
		if cv, ok := child.Get(key); ok && domain.ValuesEqual(cv, pv) {
			continue
		}
		out = out.With(key, pv)
		changed = append(changed, key)
	}
	return out, changed
}

// Reconcile aligns the child's inheritable attributes with its parent. When
// anything changes the child is saved once and then reloaded, so the returned
// specimen reflects persisted state. An already consistent child is returned
// as is without touching the store.
func (e *Engine) Reconcile(ctx context.Context, child, parent domain.Specimen) (domain.Specimen, error) {
	updated, changed := InheritAttributes(child.Attributes, parent.Attributes)
	if len(changed) == 0 {
		return child, nil
	}
	for _, key := range changed {
		before, _ := child.Attributes.Get(key)
		after, _ := updated.Get(key)
		e.logger.Debug("inheriting attribute", "specimen_id", child.ID, "parent_id", parent.ID, "key", key, "from", before, "to", after)
	}

	child.Attributes = updated
	if _, err := e.store.SaveSpecimen(ctx, child); err != nil {
		return child, fmt.Errorf("persist inherited attributes of specimen %d: %w", child.ID, err)
	}
	reloaded, err := e.store.GetSpecimen(ctx, child.ID)
	if err != nil {
		return child, fmt.Errorf("reload specimen %d: %w", child.ID, err)
	}
	e.logger.Info("reconciled inherited attributes", "specimen_id", child.ID, "parent_id", parent.ID, "keys", changed)
	e.observe(ctx, RepairAttributes)
	return reloaded, nil
}
