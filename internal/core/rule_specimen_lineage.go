package core

import (
	"context"
	"fmt"

	"specimentrack/pkg/domain"
)

const specimenLineageRuleName = "specimen_lineage"

// SpecimenLineageRule blocks writes that would link a specimen to a missing
// parent, a parent in another project, itself, or one of its descendants.
//
// Only newly written integer references are checked. Updates that merely
// convert a legacy encoded reference to its integer form pass, so read-path
// repairs of historical data are never blocked. Because the rule cannot tell
// a repair of a legacy reference from a replacement of it, UpdateSpecimen
// checks explicitly requested parents with the same logic.
func SpecimenLineageRule() domain.Rule {
	return specimenLineageRule{}
}

type specimenLineageRule struct{}

func (specimenLineageRule) Name() string { return specimenLineageRuleName }

func (specimenLineageRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntitySpecimen {
			continue
		}
		after, ok := change.After.(domain.Specimen)
		if !ok {
			continue
		}
		parentID, ok := integerParent(after)
		if !ok {
			continue
		}
		if change.Action == domain.ActionUpdate {
			before, _ := change.Before.(domain.Specimen)
			if _, hadRef := before.ParentRef(); hadRef {
				prev, wasInt := integerParent(before)
				if !wasInt || prev == parentID {
					continue
				}
			}
		}
		if msg := checkParentLink(view, after, parentID); msg != "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     specimenLineageRuleName,
				Severity: domain.SeverityBlock,
				Message:  msg,
				Entity:   domain.EntitySpecimen,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

func lineageViolation(specimenID int64, msg string) error {
	return domain.RuleViolationError{Result: domain.Result{Violations: []domain.Violation{{
		Rule:     specimenLineageRuleName,
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntitySpecimen,
		EntityID: specimenID,
	}}}}
}

func checkParentLink(view domain.RuleView, child domain.Specimen, parentID int64) string {
	if parentID == child.ID {
		return fmt.Sprintf("specimen %d references itself as a parent", child.ID)
	}
	parent, ok := view.FindSpecimen(parentID)
	if !ok {
		return fmt.Sprintf("specimen %d references missing parent %d", child.ID, parentID)
	}
	if parent.ProjectID != child.ProjectID {
		return fmt.Sprintf("specimen %d parent %d belongs to another project", child.ID, parentID)
	}
	visited := map[int64]struct{}{parentID: {}}
	current := parent
	for {
		next, ok := integerParent(current)
		if !ok {
			return ""
		}
		if next == child.ID {
			return fmt.Sprintf("specimen %d parent %d is one of its descendants", child.ID, parentID)
		}
		if _, seen := visited[next]; seen {
			return ""
		}
		visited[next] = struct{}{}
		current, ok = view.FindSpecimen(next)
		if !ok {
			return ""
		}
	}
}
