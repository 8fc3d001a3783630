package visit

import (
	"strings"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

var defaultNext = map[Stage]Stage{
	StageFrontDesk: StageNurse,
	StageNurse:     StageReturned,
	StageDoctor:    StageLab,
	StageLab:       StagePharmacy,
	StagePharmacy:  StageBilling,
	StageBilling:   StageReturned,
	StageReturned:  StageDoctor,
}

var allowedTargets = map[Stage][]Stage{
	StageFrontDesk: {StageNurse, StageDoctor, StageLab},
	StageNurse:     {StageReturned, StageDoctor, StageLab},
	StageDoctor:    {StageNurse, StageLab, StagePharmacy, StageBilling},
	StageLab:       {StagePharmacy, StageDoctor, StageBilling},
	StagePharmacy:  {StageBilling},
	StageBilling:   {StageReturned},
	StageReturned:  {StageDoctor, StageNurse, StageLab, StagePharmacy, StageBilling, StageCompleted},
}

var stageRoles = map[Stage]string{
	StageFrontDesk: auth.RoleFrontDesk,
	StageNurse:     auth.RoleNurse,
	StageDoctor:    auth.RoleDoctor,
	StageLab:       auth.RoleLabScientist,
	StagePharmacy:  auth.RolePharmacist,
	StageBilling:   auth.RoleBilling,
	StageReturned:  auth.RoleFrontDesk,
}

// ParseStage validates a stage name from a request. Empty input yields an
// empty stage.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.TrimSpace(s))
	if st == "" || st == StageCompleted {
		return st, nil
	}
	if _, ok := stageRoles[st]; !ok {
		return "", apperr.Validation("unknown stage: %s", s)
	}
	return st, nil
}

// RoleForStage returns the staff role that works stage.
func RoleForStage(s Stage) string {
	return stageRoles[s]
}

// AllowedTargets lists the stages a handoff from the given stage may name.
func AllowedTargets(from Stage) []Stage {
	return append([]Stage(nil), allowedTargets[from]...)
}

// ResolveTarget picks the stage a handoff from current goes to. An empty
// requested stage means the default route; lab-only visits leave the lab
// straight for billing.
func ResolveTarget(current Stage, labOnly bool, requested Stage) (Stage, error) {
	target := requested
	if target == "" {
		if labOnly && current == StageLab {
			target = StageBilling
		} else {
			target = defaultNext[current]
		}
	}
	if target == "" {
		return "", apperr.Conflict("no default next stage from %s", current)
	}
	for _, s := range allowedTargets[current] {
		if s == target {
			return target, nil
		}
	}
	return "", apperr.Conflict("invalid transition from %s to %s, allowed: %s",
		current, target, joinStages(allowedTargets[current]))
}

// CanWorkStage reports whether the actor may clock in at stage.
func CanWorkStage(actor auth.Actor, stage Stage) bool {
	role := RoleForStage(stage)
	return role != "" && actor.HasRole(role)
}

func joinStages(ss []Stage) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
