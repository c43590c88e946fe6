// Package memory provides an in-memory implementation of the specimen
// persistence store used for tests, ephemeral environments and as the
// transactional engine behind the snapshotting SQL stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"specimentrack/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Specimen aliases domain.Specimen for in-memory persistence operations.
	Specimen = domain.Specimen
	// Project aliases domain.Project.
	Project = domain.Project
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Sequences tracks the last id handed out per entity.
type Sequences struct {
	Specimen int64 `json:"specimen"`
	Project  int64 `json:"project"`
}

type memoryState struct {
	specimens map[int64]Specimen
	projects  map[int64]Project
	seq       Sequences
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Specimens map[int64]Specimen `json:"specimens"`
	Projects  map[int64]Project  `json:"projects"`
	Sequences Sequences          `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		specimens: make(map[int64]Specimen),
		projects:  make(map[int64]Project),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		specimens: make(map[int64]Specimen, len(s.specimens)),
		projects:  make(map[int64]Project, len(s.projects)),
		seq:       s.seq,
	}
	for k, v := range s.specimens {
		out.specimens[k] = v
	}
	for k, v := range s.projects {
		out.projects[k] = cloneProject(v)
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	return Snapshot{Specimens: cloned.specimens, Projects: cloned.projects, Sequences: cloned.seq}
}

// memoryStateFromSnapshot rebuilds state from a snapshot. Sequences lagging
// behind the highest stored id, as found in hand-edited or older snapshots,
// are advanced so new ids never collide.
func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.seq = s.Sequences
	for k, v := range s.Specimens {
		v.ID = k
		state.specimens[k] = v
		if k > state.seq.Specimen {
			state.seq.Specimen = k
		}
	}
	for k, v := range s.Projects {
		v.ID = k
		state.projects[k] = cloneProject(v)
		if k > state.seq.Project {
			state.seq.Project = k
		}
	}
	return state
}

func cloneProject(p Project) Project {
	if p.SampleTypeID != nil {
		id := *p.SampleTypeID
		p.SampleTypeID = &id
	}
	return p
}

// Store provides an in-memory transactional store for specimens and projects.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider; nil restores the wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListSpecimens returns all specimens ordered by id.
func (v transactionView) ListSpecimens() []Specimen {
	out := make([]Specimen, 0, len(v.state.specimens))
	for _, sp := range v.state.specimens {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListProjects returns all projects ordered by id.
func (v transactionView) ListProjects() []Project {
	out := make([]Project, 0, len(v.state.projects))
	for _, p := range v.state.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) FindSpecimen(id int64) (Specimen, bool) {
	sp, ok := v.state.specimens[id]
	return sp, ok
}

func (v transactionView) FindProject(id int64) (Project, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindSpecimenByBarcode looks a specimen up by barcode within a project.
func (v transactionView) FindSpecimenByBarcode(projectID int64, barcode string) (Specimen, bool) {
	for _, sp := range v.state.specimens {
		if sp.ProjectID == projectID && sp.Barcode == barcode {
			return sp, true
		}
	}
	return Specimen{}, false
}

// ListProjectSpecimens returns the specimens owned by a project ordered by id.
func (v transactionView) ListProjectSpecimens(projectID int64) []Specimen {
	var out []Specimen
	for _, sp := range v.state.specimens {
		if sp.ProjectID == projectID {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules run against the post-transaction state; blocking violations discard it.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindSpecimen(id int64) (Specimen, bool) {
	sp, ok := tx.state.specimens[id]
	return sp, ok
}

func (tx *transaction) FindProject(id int64) (Project, bool) {
	p, ok := tx.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// CreateProject stores a new project and assigns its id.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Project{}, fmt.Errorf("project name: %w", domain.ErrMissingParameter)
	}
	tx.state.seq.Project++
	p.ID = tx.state.seq.Project
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.projects[p.ID] = cloneProject(p)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates a project using the provided mutator function.
func (tx *transaction) UpdateProject(id int64, mutator func(*Project) error) (Project, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return Project{}, domain.NotFound(domain.EntityProject, id)
	}
	before := cloneProject(current)
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.projects[id] = cloneProject(current)
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// CreateSpecimen stores a new specimen and assigns its id. The owning project must exist.
func (tx *transaction) CreateSpecimen(sp Specimen) (Specimen, error) {
	if strings.TrimSpace(sp.Barcode) == "" {
		return Specimen{}, fmt.Errorf("specimen barcode: %w", domain.ErrMissingParameter)
	}
	if _, ok := tx.state.projects[sp.ProjectID]; !ok {
		return Specimen{}, domain.NotFound(domain.EntityProject, sp.ProjectID)
	}
	tx.state.seq.Specimen++
	sp.ID = tx.state.seq.Specimen
	sp.CreatedAt = tx.now
	sp.UpdatedAt = tx.now
	tx.state.specimens[sp.ID] = sp
	tx.recordChange(Change{Entity: domain.EntitySpecimen, Action: domain.ActionCreate, After: sp})
	return sp, nil
}

// UpdateSpecimen mutates a specimen. The id, owning project and creation
// time are immutable; the update time is refreshed on every call.
func (tx *transaction) UpdateSpecimen(id int64, mutator func(*Specimen) error) (Specimen, error) {
	current, ok := tx.state.specimens[id]
	if !ok {
		return Specimen{}, domain.NotFound(domain.EntitySpecimen, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Specimen{}, err
	}
	current.ID = id
	current.ProjectID = before.ProjectID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.specimens[id] = current
	tx.recordChange(Change{Entity: domain.EntitySpecimen, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// GetSpecimen returns a specimen by id.
func (s *Store) GetSpecimen(id int64) (Specimen, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.state.specimens[id]
	return sp, ok
}

// ListSpecimens returns all specimens ordered by id.
func (s *Store) ListSpecimens() []Specimen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListSpecimens()
}

// GetProject returns a project by id.
func (s *Store) GetProject(id int64) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// ListProjects returns all projects ordered by id.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListProjects()
}
