package calldi

import (
	"reflect"
)

// PlanInfo describes a callback's resolution plan for external tooling such
// as the managed lifecycle layer. It exposes what the plan needs, not how
// it resolves.
type PlanInfo struct {
	// RequiredTypes holds the single-candidate type dependencies that have
	// no fallback default, i.e. the types that must be bound for the
	// callback to be invocable.
	RequiredTypes []reflect.Type

	// CallbackDependencies holds the nested callback dependencies.
	CallbackDependencies []*Callback
}

// InspectPlan builds (or reuses) the resolution plan for callback and
// returns its dependency summary. Like any first use of a callback this
// panics with a *DefinitionError if the injection declaration is malformed.
func InspectPlan(callback any) PlanInfo {
	p := asCallback(callback).getPlan()

	var info PlanInfo
	for _, pp := range p.params {
		if pp.kind != paramInjected {
			continue
		}
		switch pp.desc.kind {
		case kindCallback:
			info.CallbackDependencies = append(info.CallbackDependencies, pp.desc.target)
		case kindType:
			if !pp.desc.hasDefault && len(pp.desc.candidates) == 1 {
				info.RequiredTypes = append(info.RequiredTypes, pp.desc.candidates[0])
			}
		}
	}
	return info
}
