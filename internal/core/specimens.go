package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"specimentrack/internal/lineage"
	"specimentrack/pkg/domain"
)

// SpecimenInput carries the client fields for a new specimen. Project and
// parent are encoded ids. When SampleData is nil the state defaults to "new".
type SpecimenInput struct {
	ProjectID  string         `json:"project_id"`
	Barcode    string         `json:"bar_code"`
	ParentID   string         `json:"parent_id,omitempty"`
	State      string         `json:"state,omitempty"`
	Location   string         `json:"location,omitempty"`
	Type       string         `json:"type,omitempty"`
	SampleData map[string]any `json:"sample_data,omitempty"`
}

// SpecimenPatch carries the client fields for a specimen update. Empty
// fields are left untouched. A parent_id inside SampleData is an encoded id.
type SpecimenPatch struct {
	State      string         `json:"state,omitempty"`
	Location   string         `json:"location,omitempty"`
	Type       string         `json:"type,omitempty"`
	SampleData map[string]any `json:"sample_data,omitempty"`
}

func (p SpecimenPatch) empty() bool {
	return p.State == "" && p.Location == "" && p.Type == "" && len(p.SampleData) == 0
}

// CreateSpecimen stores a new specimen in a project the caller holds a role
// for. A parent must live in the same project; its pedigree attributes are
// copied onto the new specimen and its id is stored as a raw integer.
func (s *Service) CreateSpecimen(ctx context.Context, input SpecimenInput) (SpecimenView, error) {
	var view SpecimenView
	err := s.run(ctx, opCreateSpecimen, func(ctx context.Context) (string, error) {
		project, err := s.authorizedProject(ctx, input.ProjectID)
		if err != nil {
			return "", err
		}
		barcode := strings.TrimSpace(input.Barcode)
		if barcode == "" {
			return "", fmt.Errorf("specimen bar_code: %w", domain.ErrMissingParameter)
		}
		attrs, err := s.initialAttributes(input)
		if err != nil {
			return "", err
		}
		var parentID int64
		if input.ParentID != "" {
			parentID, err = s.codec.Decode(input.ParentID)
			if err != nil {
				return "", fmt.Errorf("specimen parent_id %q: %w", input.ParentID, domain.ErrInvalidParameter)
			}
		}

		var created domain.Specimen
		if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, exists := tx.Snapshot().FindSpecimenByBarcode(project.ID, barcode); exists {
				return fmt.Errorf("barcode %s: %w", barcode, domain.ErrConflict)
			}
			if input.ParentID != "" {
				parent, ok := tx.FindSpecimen(parentID)
				if !ok || parent.ProjectID != project.ID {
					return fmt.Errorf("specimen parent_id %q: %w", input.ParentID, domain.ErrInvalidParameter)
				}
				attrs, _ = lineage.InheritAttributes(attrs, parent.Attributes)
				attrs = attrs.With(domain.AttrParentID, parentID)
			}
			var err error
			created, err = tx.CreateSpecimen(domain.Specimen{
				Barcode:    barcode,
				Name:       s.codec.Encode(project.ID) + "_" + barcode,
				ProjectID:  project.ID,
				Attributes: attrs,
			})
			return err
		}); err != nil {
			return "", err
		}
		view = s.specimenView(created)
		return view.ID, nil
	})
	return view, err
}

func (s *Service) initialAttributes(input SpecimenInput) (domain.Attributes, error) {
	attrs := domain.NewAttributes(input.SampleData).Without(domain.AttrParentID)
	if input.State != "" {
		attrs = attrs.With(domain.AttrState, input.State)
	}
	if input.Location != "" {
		attrs = attrs.With(domain.AttrLocation, input.Location)
	}
	if input.Type != "" {
		attrs = attrs.With(domain.AttrType, input.Type)
	}
	if input.SampleData == nil && !attrs.IsSet(domain.AttrState) {
		attrs = attrs.With(domain.AttrState, domain.DefaultState)
	}
	for _, flag := range domain.FlagAttributes {
		v, ok := attrs.Get(flag)
		if !ok {
			continue
		}
		if value, set := domain.ParseFlag(v); set {
			attrs = attrs.With(flag, value)
		} else {
			attrs = attrs.Without(flag)
		}
	}
	if err := s.validateAttributes(attrs); err != nil {
		return domain.Attributes{}, err
	}
	return attrs, nil
}

func (s *Service) validateAttributes(attrs domain.Attributes) error {
	if attrs.IsSet(domain.AttrState) && !s.vocabulary.ValidState(attrs.String(domain.AttrState)) {
		return fmt.Errorf("state %q: %w", attrs.String(domain.AttrState), domain.ErrInvalidAttribute)
	}
	if attrs.IsSet(domain.AttrType) && !s.vocabulary.ValidType(attrs.String(domain.AttrType)) {
		return fmt.Errorf("type %q: %w", attrs.String(domain.AttrType), domain.ErrInvalidAttribute)
	}
	if attrs.IsSet(domain.AttrLocation) && !s.vocabulary.ValidLocation(attrs.String(domain.AttrLocation)) {
		return fmt.Errorf("location %q: %w", attrs.String(domain.AttrLocation), domain.ErrInvalidAttribute)
	}
	return nil
}

// applySpecimenPatch returns attrs with the non-empty patch fields and
// recognized sample data applied. The parent reference is left to the caller.
func applySpecimenPatch(attrs domain.Attributes, patch SpecimenPatch) domain.Attributes {
	if patch.State != "" {
		attrs = attrs.With(domain.AttrState, patch.State)
	}
	if patch.Location != "" {
		attrs = attrs.With(domain.AttrLocation, patch.Location)
	}
	if patch.Type != "" {
		attrs = attrs.With(domain.AttrType, patch.Type)
	}
	for _, key := range domain.SampleDataAttributes {
		v, ok := patch.SampleData[key]
		if !ok || key == domain.AttrParentID {
			continue
		}
		if domain.IsFlag(key) {
			if flag, set := domain.ParseFlag(v); set {
				attrs = attrs.With(key, flag)
			}
			continue
		}
		if domain.IsEmptyValue(v) {
			continue
		}
		attrs = attrs.With(key, v)
	}
	return attrs
}

// ShowSpecimen returns one verified specimen with its root-first lineage path.
func (s *Service) ShowSpecimen(ctx context.Context, token string) (SpecimenView, error) {
	var view SpecimenView
	err := s.run(ctx, opShowSpecimen, func(ctx context.Context) (string, error) {
		sp, err := s.authorizedSpecimen(ctx, token)
		if err != nil {
			return token, err
		}
		view, err = s.detailedView(ctx, sp)
		return token, err
	})
	return view, err
}

// FindSpecimen looks a specimen up by barcode within a project.
func (s *Service) FindSpecimen(ctx context.Context, projectToken, barcode string) (SpecimenView, error) {
	var view SpecimenView
	err := s.run(ctx, opFindSpecimen, func(ctx context.Context) (string, error) {
		project, err := s.authorizedProject(ctx, projectToken)
		if err != nil {
			return "", err
		}
		var sp domain.Specimen
		if err := s.store.View(ctx, func(v TransactionView) error {
			found, ok := v.FindSpecimenByBarcode(project.ID, barcode)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntitySpecimen, ID: barcode}
			}
			sp = found
			return nil
		}); err != nil {
			return "", err
		}
		view, err = s.detailedView(ctx, sp)
		return view.ID, err
	})
	return view, err
}

// ListSpecimens returns the verified specimens of a project sorted by
// family, specimens without a family first. Dangling parents are tolerated;
// integrity failures abort the listing.
func (s *Service) ListSpecimens(ctx context.Context, projectToken string) ([]SpecimenView, error) {
	var views []SpecimenView
	err := s.run(ctx, opListSpecimens, func(ctx context.Context) (string, error) {
		verified, err := s.projectSpecimens(ctx, projectToken)
		if err != nil {
			return "", err
		}
		views = make([]SpecimenView, 0, len(verified))
		for _, sp := range verified {
			views = append(views, s.specimenView(sp))
		}
		return "", nil
	})
	return views, err
}

// projectSpecimens loads and verifies a project's specimens in family order.
func (s *Service) projectSpecimens(ctx context.Context, projectToken string) ([]domain.Specimen, error) {
	project, err := s.authorizedProject(ctx, projectToken)
	if err != nil {
		return nil, err
	}
	var stored []domain.Specimen
	if err := s.store.View(ctx, func(v TransactionView) error {
		stored = v.ListProjectSpecimens(project.ID)
		return nil
	}); err != nil {
		return nil, err
	}
	out := make([]domain.Specimen, 0, len(stored))
	for _, sp := range stored {
		verified, err := s.verifyForRead(ctx, sp)
		if err != nil {
			return nil, err
		}
		out = append(out, verified)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Attributes.String(domain.AttrFamily) < out[j].Attributes.String(domain.AttrFamily)
	})
	return out, nil
}

// UpdateSpecimen applies a patch. Flags accept true/yes/on, "none" leaves
// them untouched and anything else clears them.
func (s *Service) UpdateSpecimen(ctx context.Context, token string, patch SpecimenPatch) (SpecimenView, error) {
	var view SpecimenView
	err := s.run(ctx, opUpdateSpecimen, func(ctx context.Context) (string, error) {
		if patch.empty() {
			return token, fmt.Errorf("state, location, type or sample_data: %w", domain.ErrMissingParameter)
		}
		sp, err := s.authorizedSpecimen(ctx, token)
		if err != nil {
			return token, err
		}
		parentToken := ""
		if v, ok := patch.SampleData[domain.AttrParentID]; ok && !domain.IsEmptyValue(v) {
			str, isString := v.(string)
			if !isString {
				return token, fmt.Errorf("parent_id %v: %w", v, domain.ErrInvalidParameter)
			}
			parentToken = str
		}

		var updated domain.Specimen
		if _, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var parentID int64
			if parentToken != "" {
				var err error
				parentID, err = s.codec.Decode(parentToken)
				if err != nil {
					return domain.NotFoundError{Entity: domain.EntitySpecimen, ID: parentToken}
				}
				if _, ok := tx.FindSpecimen(parentID); !ok {
					return domain.NotFoundError{Entity: domain.EntitySpecimen, ID: parentToken}
				}
				// The write rule lets legacy references through untouched, so an
				// explicitly requested parent is checked here.
				if msg := checkParentLink(tx.Snapshot(), sp, parentID); msg != "" {
					return lineageViolation(sp.ID, msg)
				}
			}
			var err error
			updated, err = tx.UpdateSpecimen(sp.ID, func(current *domain.Specimen) error {
				attrs := applySpecimenPatch(current.Attributes, patch)
				if parentToken != "" {
					attrs = attrs.With(domain.AttrParentID, parentID)
				}
				if err := s.validateAttributes(attrs); err != nil {
					return err
				}
				current.Attributes = attrs
				return nil
			})
			return err
		}); err != nil {
			return token, err
		}
		view = s.specimenView(updated)
		return token, nil
	})
	return view, err
}

// LineagePath returns the encoded ids from the root ancestor down to the
// specimen. Cycles and dangling parents are errors.
func (s *Service) LineagePath(ctx context.Context, token string) ([]string, error) {
	var path []string
	err := s.run(ctx, opLineagePath, func(ctx context.Context) (string, error) {
		sp, err := s.authorizedSpecimen(ctx, token)
		if err != nil {
			return token, err
		}
		leafFirst, err := s.lineage.BuildPath(ctx, sp)
		if err != nil {
			return token, err
		}
		path = lineage.RootFirst(leafFirst)
		return token, nil
	})
	return path, err
}

// authorizedSpecimen decodes token, loads the specimen and checks the
// caller's role on its project.
func (s *Service) authorizedSpecimen(ctx context.Context, token string) (domain.Specimen, error) {
	id, err := s.codec.Decode(token)
	if err != nil {
		return domain.Specimen{}, domain.NotFoundError{Entity: domain.EntitySpecimen, ID: token}
	}
	sp, err := s.records.GetSpecimen(ctx, id)
	if err != nil {
		return domain.Specimen{}, err
	}
	project, ok := s.store.GetProject(sp.ProjectID)
	if !ok {
		return domain.Specimen{}, domain.NotFound(domain.EntityProject, sp.ProjectID)
	}
	if err := s.authorize(ctx, project); err != nil {
		return domain.Specimen{}, err
	}
	return sp, nil
}

// verifyForRead runs the lineage verification. A missing parent has already
// been logged by the engine and does not fail the read.
func (s *Service) verifyForRead(ctx context.Context, sp domain.Specimen) (domain.Specimen, error) {
	verified, err := s.lineage.Verify(ctx, sp)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Specimen{}, err
	}
	return verified, nil
}

func (s *Service) detailedView(ctx context.Context, sp domain.Specimen) (SpecimenView, error) {
	verified, err := s.verifyForRead(ctx, sp)
	if err != nil {
		return SpecimenView{}, err
	}
	view := s.specimenView(verified)
	view.LineagePath = s.rootFirstPath(ctx, verified)
	return view, nil
}

// rootFirstPath returns nil, after logging, when the path cannot be built.
func (s *Service) rootFirstPath(ctx context.Context, sp domain.Specimen) []string {
	path, err := s.lineage.BuildPath(ctx, sp)
	if err != nil {
		s.logger.Warn("lineage path unavailable", "specimen_id", sp.ID, "error", err)
		return nil
	}
	return lineage.RootFirst(path)
}
