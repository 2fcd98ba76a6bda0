package service

import (
	"context"
	"roomio/pkg/model"
)

// Authorizer is the external authorization collaborator. The engine treats
// its verdict as a pass-through: a denial surfaces as Forbidden without
// the engine reasoning about roles itself.
type Authorizer interface {
	CanModify(ctx context.Context, actorID string, reservation *model.Reservation) (bool, error)
}

// OwnerAuthorizer permits the reservation's owner and a fixed set of
// admin ids. It is the default wiring; deployments with a real identity
// service supply their own Authorizer.
type OwnerAuthorizer struct {
	AdminIDs map[string]bool
}

func (a OwnerAuthorizer) CanModify(ctx context.Context, actorID string, reservation *model.Reservation) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	if actorID == reservation.UserID {
		return true, nil
	}
	return a.AdminIDs[actorID], nil
}
