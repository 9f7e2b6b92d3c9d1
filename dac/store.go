package dac

import (
	"context"

	"github.com/fundwit/go-commons/types"
)

// Store persists permissions, grants and owners.
// Uniqueness of grants and owners is enforced by the storage, concurrent writers on the same key converge to one row.
type Store interface {
	// FindPermission returns nil when the codename is not registered.
	FindPermission(ctx context.Context, codename string) (*Permission, error)
	GetOrCreatePermission(ctx context.Context, codename string) (*Permission, error)

	// UpsertGrant overwrites the allow flag when a grant with the same key exists.
	UpsertGrant(ctx context.Context, actor Actor, target Target, codename string, allow bool) (*AccessGrant, error)
	ListGrants(ctx context.Context, q GrantQuery) ([]AccessGrant, error)
	DeleteGrant(ctx context.Context, id types.ID) (*AccessGrant, error)

	SetOwner(ctx context.Context, userID types.ID, target Target) (*Owner, error)
	RemoveOwner(ctx context.Context, userID types.ID, target Target) (bool, error)
	IsOwner(ctx context.Context, userID types.ID, target Target) (bool, error)

	GroupIDsOfUser(ctx context.Context, userID types.ID) ([]types.ID, error)
	ActorExists(ctx context.Context, actor Actor) (bool, error)
}
