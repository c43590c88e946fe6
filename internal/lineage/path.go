package lineage

import (
	"context"
	"errors"
	"fmt"

	"specimentrack/pkg/domain"
)

// Ancestry walks parent links from specimen to the root and returns the
// internal ids leaf first, starting with specimen itself. Parent references
// are normalized in memory only. A missing parent aborts the walk, as does a
// revisited id. The visited set is private to the call.
func (e *Engine) Ancestry(ctx context.Context, specimen domain.Specimen) ([]int64, error) {
	visited := make(map[int64]struct{})
	var ids []int64
	current := specimen
	for {
		if _, seen := visited[current.ID]; seen {
			e.logger.Error("lineage cycle detected", "specimen_id", specimen.ID, "revisited", current.ID)
			e.observe(ctx, RepairCycle)
			return nil, domain.CycleError{SpecimenID: current.ID, Path: append(ids, current.ID)}
		}
		visited[current.ID] = struct{}{}
		ids = append(ids, current.ID)

		ref, ok := current.ParentRef()
		if !ok {
			return ids, nil
		}
		parentID, _, err := e.Normalize(current.ID, ref)
		if err != nil {
			return nil, err
		}
		parent, err := e.store.GetSpecimen(ctx, parentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("lineage of specimen %d broken at %d: %w", specimen.ID, current.ID, err)
			}
			return nil, err
		}
		current = parent
	}
}

// BuildPath returns the external ids of specimen and its ancestors, leaf first.
// Use RootFirst for display order.
func (e *Engine) BuildPath(ctx context.Context, specimen domain.Specimen) ([]string, error) {
	ids, err := e.Ancestry(ctx, specimen)
	if err != nil {
		return nil, err
	}
	path := make([]string, len(ids))
	for i, id := range ids {
		path[i] = e.codec.Encode(id)
	}
	return path, nil
}

// RootFirst returns a reversed copy of a leaf-first path.
func RootFirst(path []string) []string {
	out := make([]string, len(path))
	for i, id := range path {
		out[len(path)-1-i] = id
	}
	return out
}
