package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"specimentrack/internal/infra/persistence/memory"
	"specimentrack/pkg/domain"
)

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)

	project, err := svc.CreateProject(ctx, ProjectInput{
		Name:         "  Mitochondrial Heteroplasmy  ",
		RoleID:       codec.Encode(3),
		SampleTypeID: codec.Encode(2),
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if project.Name != "Mitochondrial Heteroplasmy" || project.RoleID != codec.Encode(3) || project.SampleTypeID != codec.Encode(2) {
		t.Fatalf("unexpected project view %+v", project)
	}
	if decodeID(t, codec, project.ID) != 1 {
		t.Fatalf("expected first project id 1")
	}

	shown, err := svc.ShowProject(ctx, project.ID)
	if err != nil || shown.Name != project.Name {
		t.Fatalf("show project: %v %+v", err, shown)
	}
	list, err := svc.ListProjects(ctx)
	if err != nil || len(list) != 1 || list[0].ID != project.ID {
		t.Fatalf("list projects: %v %+v", err, list)
	}

	if _, err := svc.ShowProject(ctx, codec.Encode(42)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ShowProject(ctx, "not-a-token"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for garbage token, got %v", err)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)

	cases := []struct {
		name  string
		input ProjectInput
		want  error
	}{
		{"missing name", ProjectInput{RoleID: codec.Encode(1)}, domain.ErrMissingParameter},
		{"missing role", ProjectInput{Name: "P"}, domain.ErrMissingParameter},
		{"bad role", ProjectInput{Name: "P", RoleID: "zz"}, domain.ErrInvalidParameter},
		{"bad sample type", ProjectInput{Name: "P", RoleID: codec.Encode(1), SampleTypeID: "zz"}, domain.ErrInvalidParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateProject(ctx, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	member := NewService(svc.Store(), codec, WithAccessChecker(RoleAccess{Roles: []int64{1}}))
	if _, err := member.CreateProject(ctx, ProjectInput{Name: "P", RoleID: codec.Encode(1)}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied for non-admin, got %v", err)
	}
}

func TestRoleAccessFiltersProjects(t *testing.T) {
	ctx := context.Background()
	admin, codec := newTestService(t)
	visible := mustProject(t, admin, codec, "Visible", 1)
	hidden := mustProject(t, admin, codec, "Hidden", 2)
	sp := mustSpecimen(t, admin, SpecimenInput{ProjectID: hidden.ID, Barcode: "H1"})

	member := NewService(admin.Store(), codec, WithAccessChecker(RoleAccess{Roles: []int64{1}}))
	list, err := member.ListProjects(ctx)
	if err != nil || len(list) != 1 || list[0].ID != visible.ID {
		t.Fatalf("expected only the visible project, got %v %+v", err, list)
	}
	if _, err := member.ShowProject(ctx, hidden.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if _, err := member.ListSpecimens(ctx, hidden.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied on list, got %v", err)
	}
	if _, err := member.ShowSpecimen(ctx, sp.ID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied on show, got %v", err)
	}
	if _, err := member.CreateSpecimen(ctx, SpecimenInput{ProjectID: hidden.ID, Barcode: "H2"}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied on create, got %v", err)
	}
	if _, err := member.UpdateSpecimen(ctx, sp.ID, SpecimenPatch{State: "lost"}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied on update, got %v", err)
	}
}

func TestCreateSpecimenDefaultsAndFlags(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Mito", 1)

	plain := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: " B-001 ", Location: "freezer 2", Type: "blood"})
	if plain.Barcode != "B-001" || plain.Name != project.ID+"_B-001" {
		t.Fatalf("unexpected barcode/name %+v", plain)
	}
	if plain.SampleData["state"] != domain.DefaultState || plain.SampleData["location"] != "freezer 2" || plain.SampleData["type"] != "blood" {
		t.Fatalf("unexpected sample data %+v", plain.SampleData)
	}
	if plain.ProjectID != project.ID {
		t.Fatalf("expected encoded project id")
	}

	flagged, err := svc.CreateSpecimen(ctx, SpecimenInput{
		ProjectID: project.ID,
		Barcode:   "B-002",
		SampleData: map[string]any{
			"genotype_flag":  "yes",
			"haplotype_flag": "none",
			"dd_pcr_flag":    "nope",
			"parent_id":      "smuggled",
			"note":           "collected at home",
		},
	})
	if err != nil {
		t.Fatalf("create flagged: %v", err)
	}
	data := flagged.SampleData
	if data["genotype_flag"] != true || data["dd_pcr_flag"] != false {
		t.Fatalf("unexpected flags %+v", data)
	}
	if _, ok := data["haplotype_flag"]; ok {
		t.Fatalf("expected none flag to be dropped, got %+v", data)
	}
	if _, ok := data["parent_id"]; ok {
		t.Fatalf("expected sample data parent_id to be ignored, got %+v", data)
	}
	if _, ok := data["state"]; ok {
		t.Fatalf("explicit sample data must not receive a default state, got %+v", data)
	}
	if data["note"] != "collected at home" {
		t.Fatalf("expected note to be kept, got %+v", data)
	}
}

func TestCreateSpecimenValidation(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Mito", 1)
	other := mustProject(t, svc, codec, "Other", 1)
	foreign := mustSpecimen(t, svc, SpecimenInput{ProjectID: other.ID, Barcode: "F-1"})
	mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "DUP"})

	cases := []struct {
		name  string
		input SpecimenInput
		want  error
	}{
		{"missing barcode", SpecimenInput{ProjectID: project.ID, Barcode: "  "}, domain.ErrMissingParameter},
		{"duplicate barcode", SpecimenInput{ProjectID: project.ID, Barcode: "DUP"}, domain.ErrConflict},
		{"invalid state", SpecimenInput{ProjectID: project.ID, Barcode: "S1", State: "melted"}, domain.ErrInvalidAttribute},
		{"blank location", SpecimenInput{ProjectID: project.ID, Barcode: "S2", SampleData: map[string]any{"location": " "}}, domain.ErrInvalidAttribute},
		{"parent in other project", SpecimenInput{ProjectID: project.ID, Barcode: "S3", ParentID: foreign.ID}, domain.ErrInvalidParameter},
		{"missing parent", SpecimenInput{ProjectID: project.ID, Barcode: "S4", ParentID: codec.Encode(999)}, domain.ErrInvalidParameter},
		{"garbage parent", SpecimenInput{ProjectID: project.ID, Barcode: "S5", ParentID: "garbage"}, domain.ErrInvalidParameter},
		{"unknown project", SpecimenInput{ProjectID: codec.Encode(77), Barcode: "S6"}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateSpecimen(ctx, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// the same barcode is fine in another project
	mustSpecimen(t, svc, SpecimenInput{ProjectID: other.ID, Barcode: "DUP"})
}

func TestCreateSpecimenInheritsFromParent(t *testing.T) {
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Pedigree", 1)
	root := mustSpecimen(t, svc, SpecimenInput{
		ProjectID:  project.ID,
		Barcode:    "ROOT",
		SampleData: map[string]any{"family": "Lee", "sex": "F", "participant_relationship": "mother", "state": "new"},
	})
	child := mustSpecimen(t, svc, SpecimenInput{
		ProjectID:  project.ID,
		Barcode:    "CHILD",
		ParentID:   root.ID,
		SampleData: map[string]any{"family": "Unset", "state": "new", "type": "dna"},
	})

	if child.SampleData["family"] != "Lee" || child.SampleData["sex"] != "F" || child.SampleData["participant_relationship"] != "mother" {
		t.Fatalf("expected inherited pedigree, got %+v", child.SampleData)
	}
	if child.SampleData["parent_id"] != root.ID {
		t.Fatalf("expected encoded parent in view, got %v", child.SampleData["parent_id"])
	}
	stored := storedSpecimen(t, svc, decodeID(t, codec, child.ID))
	if ref, _ := stored.ParentRef(); ref != decodeID(t, codec, root.ID) {
		t.Fatalf("expected raw integer parent in store, got %#v", ref)
	}
}

func TestStrictTypesVocabulary(t *testing.T) {
	vocabulary := domain.DefaultVocabulary()
	vocabulary.StrictTypes = true
	svc, codec := newTestService(t, WithVocabulary(vocabulary))
	project := mustProject(t, svc, codec, "Strict", 1)

	if _, err := svc.CreateSpecimen(context.Background(), SpecimenInput{ProjectID: project.ID, Barcode: "X", Type: "plasma"}); !errors.Is(err, domain.ErrInvalidAttribute) {
		t.Fatalf("expected invalid type, got %v", err)
	}
	mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "Y", Type: "enriched_mtdna"})
}

func TestUpdateSpecimen(t *testing.T) {
	ctx := context.Background()
	clock := &tickingClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc, codec := newTestService(t, WithClock(clock))
	project := mustProject(t, svc, codec, "Mito", 1)
	root := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "ROOT", SampleData: map[string]any{"family": "Lee", "state": "new"}})
	sp := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "S1"})

	if _, err := svc.UpdateSpecimen(ctx, sp.ID, SpecimenPatch{}); !errors.Is(err, domain.ErrMissingParameter) {
		t.Fatalf("expected missing parameter, got %v", err)
	}
	if _, err := svc.UpdateSpecimen(ctx, sp.ID, SpecimenPatch{State: "thawed"}); !errors.Is(err, domain.ErrInvalidAttribute) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	before := storedSpecimen(t, svc, decodeID(t, codec, sp.ID))
	updated, err := svc.UpdateSpecimen(ctx, sp.ID, SpecimenPatch{
		State:    "onroad",
		Location: "courier",
		SampleData: map[string]any{
			"note":            "shipped",
			"date_sent":       "",
			"sanger_seq_flag": "on",
			"ngs_seg_flag":    "none",
			"unknown_key":     "dropped",
			"parent_id":       root.ID,
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	data := updated.SampleData
	if data["state"] != "onroad" || data["location"] != "courier" || data["note"] != "shipped" || data["sanger_seq_flag"] != true {
		t.Fatalf("unexpected sample data %+v", data)
	}
	for _, key := range []string{"date_sent", "ngs_seg_flag", "unknown_key"} {
		if _, ok := data[key]; ok {
			t.Fatalf("expected %s to be skipped, got %+v", key, data)
		}
	}
	if data["parent_id"] != root.ID {
		t.Fatalf("expected encoded parent, got %v", data["parent_id"])
	}
	after := storedSpecimen(t, svc, decodeID(t, codec, sp.ID))
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("expected update_time refresh: before %v after %v", before.UpdatedAt, after.UpdatedAt)
	}
	if ref, _ := after.ParentRef(); ref != decodeID(t, codec, root.ID) {
		t.Fatalf("expected integer parent stored, got %#v", ref)
	}

	// the next read reconciles the pedigree from the new parent
	shown, err := svc.ShowSpecimen(ctx, sp.ID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.SampleData["family"] != "Lee" {
		t.Fatalf("expected family inherited on read, got %+v", shown.SampleData)
	}
	if len(shown.LineagePath) != 2 || shown.LineagePath[0] != root.ID || shown.LineagePath[1] != sp.ID {
		t.Fatalf("unexpected lineage path %v", shown.LineagePath)
	}
}

func TestUpdateSpecimenParentErrors(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Mito", 1)
	root := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "ROOT"})
	child := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "CHILD", ParentID: root.ID})

	if _, err := svc.UpdateSpecimen(ctx, child.ID, SpecimenPatch{SampleData: map[string]any{"parent_id": codec.Encode(500)}}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing parent, got %v", err)
	}
	if _, err := svc.UpdateSpecimen(ctx, child.ID, SpecimenPatch{SampleData: map[string]any{"parent_id": int64(1)}}); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected non-string parent rejected, got %v", err)
	}
	if _, err := svc.UpdateSpecimen(ctx, codec.Encode(404), SpecimenPatch{State: "lost"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown specimen, got %v", err)
	}

	_, err := svc.UpdateSpecimen(ctx, root.ID, SpecimenPatch{SampleData: map[string]any{"parent_id": child.ID}})
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation for a cycle, got %v", err)
	}
	if violation.Result.Violations[0].Rule != specimenLineageRuleName {
		t.Fatalf("unexpected violation %+v", violation.Result.Violations)
	}
	if _, err := svc.UpdateSpecimen(ctx, root.ID, SpecimenPatch{SampleData: map[string]any{"parent_id": root.ID}}); !errors.As(err, &violation) {
		t.Fatalf("expected rule violation for self parent, got %v", err)
	}
	if ref, ok := storedSpecimen(t, svc, decodeID(t, codec, root.ID)).ParentRef(); ok {
		t.Fatalf("blocked update must not persist, got parent %v", ref)
	}
}

func TestUpdateSpecimenReplacingLegacyParentIsChecked(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Legacy", 1)
	other := mustProject(t, svc, codec, "Other", 1)
	stranger := mustSpecimen(t, svc, SpecimenInput{ProjectID: other.ID, Barcode: "STRANGER"})
	projectID := decodeID(t, codec, project.ID)

	root := seedSpecimens(t, svc.Store(), Specimen{Barcode: "ROOT", ProjectID: projectID})[0]
	child := seedSpecimens(t, svc.Store(),
		Specimen{Barcode: "CHILD", ProjectID: projectID, Attributes: attrs(map[string]any{"parent_id": codec.Encode(root.ID)})},
	)[0]
	grandchild := seedSpecimens(t, svc.Store(),
		Specimen{Barcode: "GRAND", ProjectID: projectID, Attributes: attrs(map[string]any{"parent_id": child.ID})},
	)[0]
	childToken := codec.Encode(child.ID)

	cases := []struct {
		name     string
		parent   string
		fragment string
	}{
		{"itself", childToken, "references itself"},
		{"descendant", codec.Encode(grandchild.ID), "is one of its descendants"},
		{"other project", stranger.ID, "belongs to another project"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateSpecimen(ctx, childToken, SpecimenPatch{SampleData: map[string]any{"parent_id": tc.parent}})
			expectViolation(t, err, specimenLineageRuleName, tc.fragment)
			if ref, _ := storedSpecimen(t, svc, child.ID).ParentRef(); ref != codec.Encode(root.ID) {
				t.Fatalf("blocked update must keep the stored parent, got %#v", ref)
			}
		})
	}

	updated, err := svc.UpdateSpecimen(ctx, childToken, SpecimenPatch{SampleData: map[string]any{"parent_id": codec.Encode(root.ID)}})
	if err != nil {
		t.Fatalf("replace legacy parent with its own target: %v", err)
	}
	if updated.SampleData["parent_id"] != codec.Encode(root.ID) {
		t.Fatalf("unexpected parent %v", updated.SampleData["parent_id"])
	}
	if ref, _ := storedSpecimen(t, svc, child.ID).ParentRef(); ref != root.ID {
		t.Fatalf("expected integer parent stored, got %#v", ref)
	}
}

// repairingStore applies a write of its own right before the next
// transaction, the way a concurrent read-path repair would land.
type repairingStore struct {
	*memory.Store
	repair func(tx Transaction) error
}

func (s *repairingStore) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	if repair := s.repair; repair != nil {
		s.repair = nil
		if _, err := s.Store.RunInTransaction(ctx, repair); err != nil {
			return Result{}, err
		}
	}
	return s.Store.RunInTransaction(ctx, fn)
}

func TestUpdateSpecimenKeepsConcurrentRepairs(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	store := &repairingStore{Store: memory.NewStore(NewDefaultRulesEngine())}
	svc := NewService(store, codec)
	project := mustProject(t, svc, codec, "Race", 1)
	sp := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "S1"})
	id := decodeID(t, codec, sp.ID)

	store.repair = func(tx Transaction) error {
		_, err := tx.UpdateSpecimen(id, func(current *Specimen) error {
			current.Attributes = current.Attributes.With("family", "Lee")
			return nil
		})
		return err
	}
	updated, err := svc.UpdateSpecimen(ctx, sp.ID, SpecimenPatch{Location: "freezer 2"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.SampleData["family"] != "Lee" || updated.SampleData["location"] != "freezer 2" {
		t.Fatalf("expected repair and patch both kept, got %+v", updated.SampleData)
	}
	stored, _ := store.GetSpecimen(id)
	if stored.Attributes.String("family") != "Lee" {
		t.Fatalf("repair reverted: %+v", stored.Attributes.Map())
	}
}

func TestReadPathRepairToleratesHistoricalDuplicateBarcodes(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Legacy", 1)
	projectID := decodeID(t, codec, project.ID)

	// duplicates predate the rule, so they are loaded around it
	loose := memory.NewStore(NewRulesEngine())
	loose.ImportState(svc.Store().(*memory.Store).ExportState())
	root := seedSpecimens(t, loose, Specimen{Barcode: "DUP", ProjectID: projectID, Attributes: attrs(map[string]any{"family": "Park"})})[0]
	dup := seedSpecimens(t, loose,
		Specimen{Barcode: "DUP", ProjectID: projectID, Attributes: attrs(map[string]any{"parent_id": codec.Encode(root.ID)})},
	)[0]
	svc.Store().(*memory.Store).ImportState(loose.ExportState())

	view, err := svc.ShowSpecimen(ctx, codec.Encode(dup.ID))
	if err != nil {
		t.Fatalf("show with duplicate barcode: %v", err)
	}
	if view.SampleData["family"] != "Park" {
		t.Fatalf("expected repair to converge, got %+v", view.SampleData)
	}
	if ref, _ := storedSpecimen(t, svc, dup.ID).ParentRef(); ref != root.ID {
		t.Fatalf("expected normalized parent persisted, got %#v", ref)
	}
}

func TestReadPathRepairsLegacyParentReferences(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Legacy", 1)
	projectID := decodeID(t, codec, project.ID)

	seeded := seedSpecimens(t, svc.Store(),
		Specimen{Barcode: "S1", ProjectID: projectID, Attributes: attrs(map[string]any{"family": "Lee", "sex": "M"})},
	)
	rootID := seeded[0].ID
	seeded = seedSpecimens(t, svc.Store(),
		Specimen{Barcode: "S2", ProjectID: projectID, Attributes: attrs(map[string]any{"family": "Unset", "parent_id": codec.Encode(rootID)})},
		Specimen{Barcode: "S3", ProjectID: projectID, Attributes: attrs(map[string]any{"parent_id": codec.LegacyDoubleEncode(rootID)})},
	)
	single, double := seeded[0], seeded[1]

	view, err := svc.ShowSpecimen(ctx, codec.Encode(single.ID))
	if err != nil {
		t.Fatalf("show single-encoded: %v", err)
	}
	if view.SampleData["family"] != "Lee" || view.SampleData["sex"] != "M" || view.SampleData["parent_id"] != codec.Encode(rootID) {
		t.Fatalf("unexpected repaired view %+v", view.SampleData)
	}
	stored := storedSpecimen(t, svc, single.ID)
	if ref, _ := stored.ParentRef(); ref != rootID || stored.Attributes.String("family") != "Lee" {
		t.Fatalf("expected repair persisted, got %+v", stored.Attributes.Map())
	}

	if _, err := svc.FindSpecimen(ctx, project.ID, "S3"); err != nil {
		t.Fatalf("find double-encoded: %v", err)
	}
	if ref, _ := storedSpecimen(t, svc, double.ID).ParentRef(); ref != rootID {
		t.Fatalf("expected double-encoded parent normalized, got %#v", ref)
	}

	// canonical data is left alone
	again := storedSpecimen(t, svc, single.ID)
	if _, err := svc.ShowSpecimen(ctx, codec.Encode(single.ID)); err != nil {
		t.Fatalf("second show: %v", err)
	}
	if !storedSpecimen(t, svc, single.ID).UpdatedAt.Equal(again.UpdatedAt) {
		t.Fatalf("expected no write when re-verifying canonical data")
	}
}

func TestListSpecimensSortsByFamilyAndToleratesDanglingParents(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	codec := newTestCodec(t)
	svc := NewInMemoryService(NewRulesEngine(), codec, WithLogger(logger))
	project := mustProject(t, svc, codec, "Families", 1)
	projectID := decodeID(t, codec, project.ID)

	seeded := seedSpecimens(t, svc.Store(),
		Specimen{Barcode: "B", ProjectID: projectID, Attributes: attrs(map[string]any{"family": "b"})},
		Specimen{Barcode: "NONE", ProjectID: projectID},
		Specimen{Barcode: "A", ProjectID: projectID, Attributes: attrs(map[string]any{"family": "a"})},
		Specimen{Barcode: "DANGLING", ProjectID: projectID, Attributes: attrs(map[string]any{"parent_id": int64(999)})},
	)

	list, err := svc.ListSpecimens(ctx, project.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var order []string
	for _, view := range list {
		order = append(order, view.Barcode)
	}
	if strings.Join(order, ",") != "NONE,DANGLING,A,B" {
		t.Fatalf("unexpected order %v", order)
	}

	dangling := codec.Encode(seeded[3].ID)
	view, err := svc.ShowSpecimen(ctx, dangling)
	if err != nil {
		t.Fatalf("show dangling: %v", err)
	}
	if view.LineagePath != nil {
		t.Fatalf("expected no lineage path for dangling parent, got %v", view.LineagePath)
	}
	if !logger.has("w:lineage path unavailable") {
		t.Fatalf("expected lineage warning, got %s", joinCalls(logger.calls))
	}
	if _, err := svc.LineagePath(ctx, dangling); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found from lineage path, got %v", err)
	}
}

func TestListSpecimensSurfacesIntegrityErrors(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	svc, codec := newTestService(t, WithLogger(logger))
	project := mustProject(t, svc, codec, "Broken", 1)
	seeded := seedSpecimens(t, svc.Store(), Specimen{
		Barcode:    "BAD",
		ProjectID:  decodeID(t, codec, project.ID),
		Attributes: attrs(map[string]any{"parent_id": "deadbeef"}),
	})

	if _, err := svc.ListSpecimens(ctx, project.ID); !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if _, err := svc.ShowSpecimen(ctx, codec.Encode(seeded[0].ID)); !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("expected integrity error on show, got %v", err)
	}
	if !logger.has("e:operation failed") {
		t.Fatalf("expected failure logged, got %s", joinCalls(logger.calls))
	}
	if ref, _ := storedSpecimen(t, svc, seeded[0].ID).ParentRef(); ref != "deadbeef" {
		t.Fatalf("corrupt reference must be left untouched, got %#v", ref)
	}
}

func TestLineagePath(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Chain", 1)
	root := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "ROOT"})
	a := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "A", ParentID: root.ID})
	b := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "B", ParentID: a.ID})
	c := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "C", ParentID: b.ID})

	path, err := svc.LineagePath(ctx, c.ID)
	if err != nil {
		t.Fatalf("lineage path: %v", err)
	}
	want := []string{root.ID, a.ID, b.ID, c.ID}
	if strings.Join(path, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, path)
	}
	rootPath, err := svc.LineagePath(ctx, root.ID)
	if err != nil || len(rootPath) != 1 || rootPath[0] != root.ID {
		t.Fatalf("expected root-only path, got %v %v", rootPath, err)
	}
}

func TestLineagePathDetectsCycles(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	svc := NewInMemoryService(NewRulesEngine(), codec)
	project := mustProject(t, svc, codec, "Loop", 1)
	projectID := decodeID(t, codec, project.ID)
	seeded := seedSpecimens(t, svc.Store(),
		Specimen{Barcode: "X", ProjectID: projectID, Attributes: attrs(map[string]any{"parent_id": int64(2)})},
		Specimen{Barcode: "Y", ProjectID: projectID, Attributes: attrs(map[string]any{"parent_id": int64(1)})},
	)

	if _, err := svc.LineagePath(ctx, codec.Encode(seeded[0].ID)); !errors.Is(err, domain.ErrCycleDetected) {
		t.Fatalf("expected cycle detected, got %v", err)
	}
	view, err := svc.ShowSpecimen(ctx, codec.Encode(seeded[0].ID))
	if err != nil {
		t.Fatalf("show must tolerate a cycle in the path: %v", err)
	}
	if view.LineagePath != nil {
		t.Fatalf("expected path omitted, got %v", view.LineagePath)
	}
}

func TestFindSpecimen(t *testing.T) {
	ctx := context.Background()
	svc, codec := newTestService(t)
	project := mustProject(t, svc, codec, "Find", 1)
	created := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "BC-9"})

	found, err := svc.FindSpecimen(ctx, project.ID, "BC-9")
	if err != nil || found.ID != created.ID {
		t.Fatalf("find: %v %+v", err, found)
	}
	if len(found.LineagePath) != 1 || found.LineagePath[0] != created.ID {
		t.Fatalf("unexpected lineage path %v", found.LineagePath)
	}
	if _, err := svc.FindSpecimen(ctx, project.ID, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestViewsRenderTimestampsWithClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)
	svc, codec := newTestService(t, WithClock(stubClock{t: fixed}))
	project := mustProject(t, svc, codec, "Clock", 1)
	if project.CreateTime != "2024-01-02 03:04 PM" || project.UpdateTime != project.CreateTime {
		t.Fatalf("unexpected project times %q %q", project.CreateTime, project.UpdateTime)
	}
	sp := mustSpecimen(t, svc, SpecimenInput{ProjectID: project.ID, Barcode: "T"})
	if sp.CreateTime != "2024-01-02 03:04 PM" {
		t.Fatalf("unexpected specimen time %q", sp.CreateTime)
	}
	if formatTime(time.Time{}) != "" {
		t.Fatalf("expected zero time to render empty")
	}
}

func TestSpecimenViewLeavesNonIntegerParent(t *testing.T) {
	logger := &captureLogger{}
	svc, codec := newTestService(t, WithLogger(logger))
	view := svc.specimenView(Specimen{
		Base:       Base{ID: 5},
		ProjectID:  1,
		Attributes: attrs(map[string]any{"parent_id": "legacy-token"}),
	})
	if view.SampleData["parent_id"] != "legacy-token" {
		t.Fatalf("expected stored value untouched, got %v", view.SampleData["parent_id"])
	}
	if view.ID != codec.Encode(5) {
		t.Fatalf("expected encoded id")
	}
	if !logger.has("e:parent reference is not an integer") {
		t.Fatalf("expected alarm logged, got %s", joinCalls(logger.calls))
	}
}
