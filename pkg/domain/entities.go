// Package domain defines the persistent specimen-tracking entities, value types,
// and rule evaluation primitives used by specimentrack.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntitySpecimen identifies a specimen (sample) record.
	EntitySpecimen EntityType = "specimen"
	// EntityProject identifies a project record.
	EntityProject EntityType = "project"
)

// Recognized attribute keys stored in a specimen's sample data bag.
const (
	AttrState                   = "state"
	AttrLocation                = "location"
	AttrType                    = "type"
	AttrFamily                  = "family"
	AttrParticipantRelationship = "participant_relationship"
	AttrSex                     = "sex"
	AttrNote                    = "note"
	AttrParticipantDOB          = "participant_dob"
	AttrDateSent                = "date_sent"
	AttrDateOfCollection        = "date_of_collection"
	AttrParentID                = "parent_id"

	AttrGenotypeFlag  = "genotype_flag"
	AttrHaplotypeFlag = "haplotype_flag"
	AttrSangerSeqFlag = "sanger_seq_flag"
	AttrNGSSegFlag    = "ngs_seg_flag"
	AttrDDPCRFlag     = "dd_pcr_flag"
)

// InheritableAttributes lists the pedigree keys a derived specimen must share with its parent.
var InheritableAttributes = []string{AttrFamily, AttrParticipantRelationship, AttrSex}

// FlagAttributes lists the boolean processing flags tracked per specimen.
var FlagAttributes = []string{AttrGenotypeFlag, AttrHaplotypeFlag, AttrSangerSeqFlag, AttrNGSSegFlag, AttrDDPCRFlag}

// SampleDataAttributes lists the keys accepted from clients when patching a
// specimen's sample data. Anything else is ignored.
var SampleDataAttributes = []string{
	AttrFamily, AttrParticipantRelationship, AttrSex, AttrNote,
	AttrParticipantDOB, AttrDateSent, AttrDateOfCollection, AttrParentID,
	AttrGenotypeFlag, AttrHaplotypeFlag, AttrSangerSeqFlag, AttrNGSSegFlag, AttrDDPCRFlag,
}

// Severity defines how the rules engine treats a violation.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"create_time"`
	UpdatedAt time.Time `json:"update_time"`
}

// Specimen is a tracked biological sample. The parent reference lives inside
// the attribute bag under parent_id and may hold a legacy encoded string.
type Specimen struct {
	Base
	Barcode    string     `json:"bar_code"`
	Name       string     `json:"name"`
	ProjectID  int64      `json:"project_id"`
	Attributes Attributes `json:"sample_data"`
}

// ParentRef returns the raw stored parent reference and whether one is set.
// A JSON null or missing key both report false.
func (s Specimen) ParentRef() (any, bool) {
	v, ok := s.Attributes.Get(AttrParentID)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Project groups specimens behind a role-based access check.
type Project struct {
	Base
	Name         string `json:"name"`
	RoleID       int64  `json:"role_id"`
	SampleTypeID *int64 `json:"sample_type_id,omitempty"`
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations. Specimens are never deleted.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
