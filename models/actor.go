package models

import (
	"context"

	"github.com/mmdatafocus/distribution_backend/utils"
)

// Actor is the caller identity supplied by the authentication collaborator.
// UnitId is the unit a HUB or BRANCH actor acts for; zero for unrestricted actors.
type Actor struct {
	ID     int       `json:"id"`
	Name   string    `json:"name"`
	Role   ActorRole `json:"role"`
	UnitId int       `json:"unit_id"`
}

// SystemActor is used by maintenance tools.
var SystemActor = Actor{ID: 0, Name: "system", Role: ActorRoleUnrestricted}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	id, ok := utils.GetActorIdFromContext(ctx)
	if !ok {
		return Actor{}, false
	}
	actor := Actor{ID: id}
	actor.Name, _ = utils.GetActorNameFromContext(ctx)
	if raw, ok := utils.GetActorRoleFromContext(ctx); ok {
		if role, err := ParseActorRole(raw); err == nil {
			actor.Role = role
		}
	}
	actor.UnitId, _ = utils.GetUnitIdFromContext(ctx)
	if actor.Role == "" {
		return Actor{}, false
	}
	return actor, true
}

// ActsForHub is true when the actor may act on behalf of the HUB unit.
func (a Actor) ActsForHub(unitId int) bool {
	if a.Role == ActorRoleUnrestricted {
		return true
	}
	return a.Role == ActorRoleHub && a.UnitId == unitId
}

// ActsForUnit is true when the actor is unrestricted or bound to unitId.
func (a Actor) ActsForUnit(unitId int) bool {
	if a.Role == ActorRoleUnrestricted {
		return true
	}
	return a.UnitId == unitId
}
