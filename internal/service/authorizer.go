package service

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Authorizer is the authorization boundary consulted before every lifecycle
// transition and before population changes. The HTTP layer has its own role
// middleware, but the engine checks again so the invariant holds for any
// caller, not just Gin handlers.
type Authorizer interface {
	ActorHasRole(ctx context.Context, actorID primitive.ObjectID, roles ...domain.Role) (bool, error)
}

// repositoryAuthorizer resolves the actor's role from the user store.
type repositoryAuthorizer struct {
	userRepo repository.UserRepository
}

// NewRepositoryAuthorizer creates an Authorizer backed by the user repository.
func NewRepositoryAuthorizer(userRepo repository.UserRepository) Authorizer {
	return &repositoryAuthorizer{userRepo: userRepo}
}

func (a *repositoryAuthorizer) ActorHasRole(ctx context.Context, actorID primitive.ObjectID, roles ...domain.Role) (bool, error) {
	if actorID == primitive.NilObjectID {
		return false, nil
	}
	actor, err := a.userRepo.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, role := range roles {
		if actor.Role == role {
			return true, nil
		}
	}
	return false, nil
}
