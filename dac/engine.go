package dac

import (
	"context"
	"mangaapi/event"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/patrickmn/go-cache"
)

// Engine decides whether a subject holds a permission on a target.
// Registered permissions and group memberships are cached for cacheTTL,
// membership entries are dropped as soon as a membership change event is seen.
type Engine struct {
	store Store

	permissions *cache.Cache
	memberships *cache.Cache
}

func NewEngine(store Store, cacheTTL time.Duration) *Engine {
	e := &Engine{store: store}
	if cacheTTL > 0 {
		e.permissions = cache.New(cacheTTL, 2*cacheTTL)
		e.memberships = cache.New(cacheTTL, 2*cacheTTL)
	}
	return e
}

func (e *Engine) Store() Store {
	return e.store
}

// Check evaluates, in order: anonymous, superuser, owner, user grants, group grants.
// The first tier holding a matching grant decides, a deny in that tier wins over an allow.
// Any storage error yields false together with the error.
func (e *Engine) Check(ctx context.Context, subject *Subject, target Target, codename string) (bool, error) {
	if subject == nil || subject.UserID == 0 {
		return false, nil
	}
	if subject.Superuser {
		return true, nil
	}
	if target.Type == "" || target.ID == "" || target.IsWildcard() {
		return false, nil
	}

	owned, err := e.store.IsOwner(ctx, subject.UserID, target)
	if err != nil {
		return false, err
	}
	if owned {
		return true, nil
	}

	perm, err := e.findPermission(ctx, codename)
	if err != nil || perm == nil {
		return false, err
	}

	q := GrantQuery{UserID: subject.UserID, TargetType: target.Type, TargetIDs: []string{target.ID, Wildcard}, PermissionID: perm.ID}
	if allow, decided, err := e.evaluate(ctx, q); err != nil || decided {
		return allow, err
	}

	groupIDs, err := e.groupIDsOfUser(ctx, subject.UserID)
	if err != nil || len(groupIDs) == 0 {
		return false, err
	}
	q = GrantQuery{GroupIDs: groupIDs, TargetType: target.Type, TargetIDs: []string{target.ID, Wildcard}, PermissionID: perm.ID}
	allow, _, err := e.evaluate(ctx, q)
	return allow, err
}

func (e *Engine) evaluate(ctx context.Context, q GrantQuery) (allow bool, decided bool, err error) {
	grants, err := e.store.ListGrants(ctx, q)
	if err != nil {
		return false, true, err
	}
	for _, g := range grants {
		if !g.Allow {
			return false, true, nil
		}
	}
	if len(grants) > 0 {
		return true, true, nil
	}
	return false, false, nil
}

func (e *Engine) findPermission(ctx context.Context, codename string) (*Permission, error) {
	if e.permissions != nil {
		if v, found := e.permissions.Get(codename); found {
			return v.(*Permission), nil
		}
	}
	perm, err := e.store.FindPermission(ctx, codename)
	if err != nil {
		return nil, err
	}
	// permissions are never deleted, misses are not cached so a later registration is seen
	if perm != nil && e.permissions != nil {
		e.permissions.SetDefault(codename, perm)
	}
	return perm, nil
}

func (e *Engine) groupIDsOfUser(ctx context.Context, userID types.ID) ([]types.ID, error) {
	key := userID.String()
	if e.memberships != nil {
		if v, found := e.memberships.Get(key); found {
			return v.([]types.ID), nil
		}
	}
	ids, err := e.store.GroupIDsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e.memberships != nil {
		e.memberships.SetDefault(key, ids)
	}
	return ids, nil
}

// FlushCache drops every cached permission and membership.
func (e *Engine) FlushCache() {
	if e.permissions != nil {
		e.permissions.Flush()
	}
	if e.memberships != nil {
		e.memberships.Flush()
	}
}

// OnEvent drops cached memberships when groups or memberships change.
func (e *Engine) OnEvent(record *event.EventRecord) *event.EventHandleResult {
	switch record.SourceType {
	case event.SourceGroup, event.SourceGroupMember, event.SourceUserProfile:
		if e.memberships != nil {
			e.memberships.Flush()
		}
		return &event.EventHandleResult{Success: true, Message: "membership cache flushed", HandlerIdentifier: "dac-engine"}
	default:
		return nil
	}
}
