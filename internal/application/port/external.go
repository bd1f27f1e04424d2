package port

import (
	"context"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
)

// IdentityProvider resolves the (actor id, role) pair for a request. Session
// handling and authentication live outside the engine; this boundary only
// answers who an already-authenticated caller is.
type IdentityProvider interface {
	Resolve(ctx context.Context, actorID string) (entity.Actor, error)
}

// Notification describes a workflow outcome worth telling someone about
type Notification struct {
	RecordID   string
	RecordKind entity.Kind
	ActorID    string
	FromStatus string
	ToStatus   string
}

// NotificationSink receives fire-and-forget notifications after successful
// approved/rejected/paid/confirmed transitions. A sink failure must never
// roll back the transition that produced it.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
}
