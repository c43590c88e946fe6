package domain

import "strings"

// Vocabulary carries the allow-lists used to validate specimen writes. It is
// passed explicitly to the service instead of living in package globals.
type Vocabulary struct {
	States []string
	// SampleTypes groups the accepted type values by tier (source material,
	// extracted nucleic acid, derived product).
	SampleTypes [][]string
	// StrictTypes enables rejection of type values outside SampleTypes.
	StrictTypes bool
}

// DefaultState is assigned to new specimens that do not carry a state.
const DefaultState = "new"

// DefaultVocabulary returns the stock allow-lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		States: []string{"new", "onroad", "psu", "depleted", "lost", "discarded"},
		SampleTypes: [][]string{
			{"blood", "buccal", "hair", "breastmilk", "stool", "vaginal_swab", "placenta", "cord_blood", "tissue", "rectal_swab", "skin_swab"},
			{"dna", "rna"},
			{"amplicon", "library", "haplotype", "enriched_mtdna"},
		},
	}
}

// ValidState reports whether state is an accepted specimen state.
func (v Vocabulary) ValidState(state string) bool {
	for _, s := range v.States {
		if s == state {
			return true
		}
	}
	return false
}

// ValidType reports whether a sample type is accepted. Without StrictTypes
// every value passes.
func (v Vocabulary) ValidType(sampleType string) bool {
	if !v.StrictTypes {
		return true
	}
	for _, tier := range v.SampleTypes {
		for _, t := range tier {
			if t == sampleType {
				return true
			}
		}
	}
	return false
}

// ValidLocation reports whether a storage location is accepted. Locations are free text.
func (v Vocabulary) ValidLocation(location string) bool {
	return strings.TrimSpace(location) != ""
}

// IsFlag reports whether key names one of the boolean processing flags.
func IsFlag(key string) bool {
	for _, f := range FlagAttributes {
		if f == key {
			return true
		}
	}
	return false
}

// ParseFlag interprets a flag value. It returns set=false when the value means
// "leave untouched" (absent or "none"); "true", "yes" and "on" are true and
// anything else is false.
func ParseFlag(value any) (flag bool, set bool) {
	switch t := value.(type) {
	case nil:
		return false, false
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "none":
			return false, false
		case "true", "yes", "on":
			return true, true
		default:
			return false, true
		}
	}
	return false, true
}
