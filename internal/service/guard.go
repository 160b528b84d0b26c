package service

import "threadline/internal/domain"

// authorizeOwner enforces the single ownership rule for mutations: the
// acting identity must own the target resource. There is no admin bypass.
// Callers must return before touching any store when this fails.
func authorizeOwner(actorID, resourceOwnerID string) error {
	if actorID == "" || actorID != resourceOwnerID {
		return domain.ErrUnauthorized
	}
	return nil
}
