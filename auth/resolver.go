package auth

import (
	"context"
	"fmt"

	"activity-hub/contract"
	"activity-hub/domain"
	"activity-hub/errors"
)

// Resolver turns the bearer token of a connection handshake into an Identity.
// It is the hub's authentication collaborator: the hub core never sees a JWT,
// only the resolved identity or a failure.
type Resolver struct {
	issuer TokenIssuer
}

func NewResolver(issuer TokenIssuer) Resolver {
	return Resolver{issuer: issuer}
}

func (r Resolver) ResolveIdentity(_ context.Context, hs contract.Handshake) (domain.Identity, error) {
	if hs.BearerToken == "" {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	claims, err := r.issuer.Validate(hs.BearerToken)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("invalid or expired token: %w", err)
	}
	if claims.UserID == "" {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	return domain.Identity{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
	}, nil
}
