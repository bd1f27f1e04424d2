package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsledger/workflow-engine/internal/application/port"
	"github.com/opsledger/workflow-engine/internal/domain/entity"
	"github.com/opsledger/workflow-engine/internal/domain/workflow"
)

// RosterProvider resolves actors from a static roster loaded at startup.
// The roster maps actor ids to roles; authentication itself happens at an
// upstream gateway, so a missing entry means the caller is unknown here.
type RosterProvider struct {
	roster map[string]entity.Role
}

// NewRosterProvider creates a provider from an actor-id to role-name map
func NewRosterProvider(roster map[string]string) (*RosterProvider, error) {
	resolved := make(map[string]entity.Role, len(roster))
	for id, roleName := range roster {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		role := entity.Role(strings.ToLower(strings.TrimSpace(roleName)))
		if !role.IsValid() {
			return nil, fmt.Errorf("unknown role %q for actor %q", roleName, id)
		}
		resolved[id] = role
	}
	return &RosterProvider{roster: resolved}, nil
}

// Resolve returns the actor for the given id
func (p *RosterProvider) Resolve(ctx context.Context, actorID string) (entity.Actor, error) {
	role, ok := p.roster[actorID]
	if !ok {
		return entity.Actor{}, fmt.Errorf("%w: unknown actor %q", workflow.ErrUnauthorized, actorID)
	}
	return entity.Actor{ID: actorID, Role: role}, nil
}

// Verify interface compliance
var _ port.IdentityProvider = (*RosterProvider)(nil)
