package core

import (
	"context"
	"fmt"

	"specimentrack/pkg/domain"
)

const barcodeUniqueRuleName = "barcode_unique"

// BarcodeUniqueRule enforces one barcode per project. Updates that keep the
// stored barcode are not checked, so repairs of historical duplicates still
// save.
func BarcodeUniqueRule() domain.Rule {
	return barcodeUniqueRule{}
}

type barcodeUniqueRule struct{}

func (barcodeUniqueRule) Name() string { return barcodeUniqueRuleName }

func (barcodeUniqueRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var specimens []domain.Specimen
	for _, change := range changes {
		if change.Entity != domain.EntitySpecimen {
			continue
		}
		changed, ok := change.After.(domain.Specimen)
		if !ok {
			continue
		}
		if change.Action == domain.ActionUpdate {
			if before, ok := change.Before.(domain.Specimen); ok && before.Barcode == changed.Barcode {
				continue
			}
		}
		if specimens == nil {
			specimens = view.ListSpecimens()
		}
		for _, other := range specimens {
			if other.ID == changed.ID || other.ProjectID != changed.ProjectID || other.Barcode != changed.Barcode {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     barcodeUniqueRuleName,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("barcode %s already used by specimen %d", changed.Barcode, other.ID),
				Entity:   domain.EntitySpecimen,
				EntityID: changed.ID,
			})
			break
		}
	}
	return res, nil
}
