package core

import "specimentrack/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in write policies.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(SpecimenLineageRule())
	engine.Register(BarcodeUniqueRule())
	return engine
}

// integerParent returns the stored parent reference when it is already a raw
// integer id. Legacy encoded references report false.
func integerParent(sp domain.Specimen) (int64, bool) {
	ref, ok := sp.ParentRef()
	if !ok {
		return 0, false
	}
	id, ok := ref.(int64)
	return id, ok
}
