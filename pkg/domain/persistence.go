package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProject(Project) (Project, error)
	UpdateProject(id int64, mutator func(*Project) error) (Project, error)
	CreateSpecimen(Specimen) (Specimen, error)
	UpdateSpecimen(id int64, mutator func(*Specimen) error) (Specimen, error)
	FindProject(id int64) (Project, bool)
	FindSpecimen(id int64) (Specimen, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListSpecimens() []Specimen
	ListProjects() []Project
	FindSpecimen(id int64) (Specimen, bool)
	FindProject(id int64) (Project, bool)
	FindSpecimenByBarcode(projectID int64, barcode string) (Specimen, bool)
	ListProjectSpecimens(projectID int64) []Specimen
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetSpecimen(id int64) (Specimen, bool)
	ListSpecimens() []Specimen
	GetProject(id int64) (Project, bool)
	ListProjects() []Project
}
