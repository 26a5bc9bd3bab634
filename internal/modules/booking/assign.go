// README: Technician auto-assignment strategies used by the admin grant path.
package booking

import "homefix/internal/modules/catalog"

// TechnicianSelector picks a technician for svc, or nil when there is none to pick.
type TechnicianSelector interface {
	SelectTechnician(svc catalog.Service, candidates []catalog.Technician) *catalog.Technician
}

// SelectorFunc adapts a function to TechnicianSelector.
type SelectorFunc func(svc catalog.Service, candidates []catalog.Technician) *catalog.Technician

func (f SelectorFunc) SelectTechnician(svc catalog.Service, candidates []catalog.Technician) *catalog.Technician {
	return f(svc, candidates)
}

// SkillMatch matches the service category against the skills text, then the service
// name, and otherwise falls back to the first candidate.
type SkillMatch struct{}

func (SkillMatch) SelectTechnician(svc catalog.Service, candidates []catalog.Technician) *catalog.Technician {
	if len(candidates) == 0 {
		return nil
	}
	for _, term := range []string{svc.Category, svc.Name} {
		for i := range candidates {
			if candidates[i].HasSkill(term) {
				return &candidates[i]
			}
		}
	}
	return &candidates[0]
}
