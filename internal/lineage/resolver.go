package lineage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"specimentrack/pkg/domain"
)

// Representation classifies a stored parent reference.
type Representation int

const (
	// RepresentationRaw is a plain integer id.
	RepresentationRaw Representation = iota
	// RepresentationSingle is a token encoded once that was never decoded.
	RepresentationSingle
	// RepresentationDouble is the legacy token encoded twice.
	RepresentationDouble
)

func (r Representation) String() string {
	switch r {
	case RepresentationRaw:
		return "raw"
	case RepresentationSingle:
		return "single"
	case RepresentationDouble:
		return "double"
	}
	return "unknown"
}

const (
	// BlockSize is the length of a singly encoded token.
	BlockSize = 16
	// DoubleEncodedLength is the length of a doubly encoded token.
	DoubleEncodedLength = 3 * BlockSize
)

var errNoLegacyDecoder = errors.New("no legacy decoder configured")

// Classify reports the representation of a stored parent reference. Unknown
// string lengths and unsupported types are integrity errors.
func Classify(value any) (Representation, error) {
	switch v := value.(type) {
	case int, int32, int64:
		return RepresentationRaw, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, domain.IntegrityError{Value: value, Reason: "non-integer number"}
		}
		return RepresentationRaw, nil
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return 0, domain.IntegrityError{Value: value, Reason: "non-integer number"}
		}
		return RepresentationRaw, nil
	case string:
		switch len(v) {
		case BlockSize:
			return RepresentationSingle, nil
		case DoubleEncodedLength:
			return RepresentationDouble, nil
		}
		return 0, domain.IntegrityError{Value: value, Reason: fmt.Sprintf("unrecognized token length %d", len(v))}
	}
	return 0, domain.IntegrityError{Value: value, Reason: fmt.Sprintf("unsupported type %T", value)}
}

// Normalize converts a stored parent reference to an integer id without
// touching the store. corrected is false only for references that were
// already raw integers.
func (e *Engine) Normalize(specimenID int64, value any) (id int64, corrected bool, err error) {
	rep, err := Classify(value)
	if err != nil {
		var ie domain.IntegrityError
		if errors.As(err, &ie) {
			ie.SpecimenID = specimenID
			return 0, false, ie
		}
		return 0, false, err
	}
	switch rep {
	case RepresentationRaw:
		return rawInt(value), false, nil
	case RepresentationSingle:
		id, err = e.codec.Decode(value.(string))
	case RepresentationDouble:
		if e.legacy == nil {
			err = errNoLegacyDecoder
		} else {
			id, err = e.legacy.DecodeDoubleEncoded(value.(string))
		}
	}
	if err != nil {
		return 0, false, domain.IntegrityError{
			SpecimenID: specimenID,
			Value:      value,
			Reason:     rep.String() + "-encoded token does not decode to an integer",
			Err:        err,
		}
	}
	return id, true, nil
}

func rawInt(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Resolution is the outcome of resolving a specimen's parent reference.
type Resolution struct {
	// Specimen is the specimen as persisted after any correction.
	Specimen  domain.Specimen
	ParentID  int64
	HasParent bool
	Corrected bool
}

// Resolve normalizes the specimen's parent reference. When the stored value
// was not already a raw integer, the integer is written back to parent_id and
// the specimen is saved before returning. Resolving a raw reference is a no-op.
func (e *Engine) Resolve(ctx context.Context, specimen domain.Specimen) (Resolution, error) {
	ref, ok := specimen.ParentRef()
	if !ok {
		return Resolution{Specimen: specimen}, nil
	}
	parentID, corrected, err := e.Normalize(specimen.ID, ref)
	if err != nil {
		e.logger.Error("unresolvable parent reference", "specimen_id", specimen.ID, "parent_id", ref, "error", err)
		e.observe(ctx, RepairIntegrityFailure)
		return Resolution{Specimen: specimen}, err
	}
	res := Resolution{Specimen: specimen, ParentID: parentID, HasParent: true}
	if !corrected {
		return res, nil
	}

	specimen.Attributes = specimen.Attributes.With(domain.AttrParentID, parentID)
	saved, err := e.store.SaveSpecimen(ctx, specimen)
	if err != nil {
		return res, fmt.Errorf("persist normalized parent of specimen %d: %w", specimen.ID, err)
	}
	e.logger.Info("normalized parent reference", "specimen_id", specimen.ID, "from", ref, "parent_id", parentID)
	e.observe(ctx, RepairParentID)
	res.Specimen = saved
	res.Corrected = true
	return res, nil
}
