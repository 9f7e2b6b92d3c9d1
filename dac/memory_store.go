package dac

import (
	"context"
	"mangaapi/bizerror"
	"mangaapi/idgen"
	"sort"
	"sync"

	"github.com/fundwit/go-commons/types"
)

// MemoryStore is an in-process Store, it backs unit tests and single node tooling.
type MemoryStore struct {
	mu sync.RWMutex

	permissions map[string]Permission
	grants      map[types.ID]AccessGrant
	owners      map[Target]map[types.ID]bool
	users       map[types.ID]bool
	memberships map[types.ID]map[types.ID]bool

	// Err is returned by every read when set, simulating an unavailable storage.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: map[string]Permission{},
		grants:      map[types.ID]AccessGrant{},
		owners:      map[Target]map[types.ID]bool{},
		users:       map[types.ID]bool{},
		memberships: map[types.ID]map[types.ID]bool{},
	}
}

// AddUser registers a user without any group.
func (s *MemoryStore) AddUser(userID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = true
}

// AddMember registers both the user and the group.
func (s *MemoryStore) AddMember(groupID, userID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = true
	if s.memberships[groupID] == nil {
		s.memberships[groupID] = map[types.ID]bool{}
	}
	s.memberships[groupID][userID] = true
}

func (s *MemoryStore) RemoveMember(groupID, userID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships[groupID], userID)
}

func (s *MemoryStore) FindPermission(ctx context.Context, codename string) (*Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, found := s.permissions[codename]
	if !found {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) GetOrCreatePermission(ctx context.Context, codename string) (*Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreatePermission(codename)
}

func (s *MemoryStore) getOrCreatePermission(codename string) (*Permission, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if !validCodename(codename) {
		return nil, bizerror.ErrUnknownPermission
	}
	p, found := s.permissions[codename]
	if !found {
		p = Permission{ID: idgen.NextID(idWorker), Codename: codename, DisplayName: codename, CreateTime: types.CurrentTimestamp()}
		s.permissions[codename] = p
	}
	return &p, nil
}

func (s *MemoryStore) UpsertGrant(ctx context.Context, actor Actor, target Target, codename string, allow bool) (*AccessGrant, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if target.Type == "" || target.ID == "" {
		return nil, bizerror.ErrUnknownTargetType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	perm, err := s.getOrCreatePermission(codename)
	if err != nil {
		return nil, err
	}

	now := types.CurrentTimestamp()
	for id, g := range s.grants {
		if g.UserID == actor.UserID && g.GroupID == actor.GroupID && g.TargetType == target.Type &&
			g.TargetID == target.ID && g.PermissionID == perm.ID {
			g.Allow = allow
			g.UpdateTime = now
			s.grants[id] = g
			return &g, nil
		}
	}
	g := AccessGrant{ID: idgen.NextID(idWorker), UserID: actor.UserID, GroupID: actor.GroupID, TargetType: target.Type,
		TargetID: target.ID, PermissionID: perm.ID, Codename: perm.Codename, Allow: allow, CreateTime: now, UpdateTime: now}
	s.grants[g.ID] = g
	return &g, nil
}

func (s *MemoryStore) ListGrants(ctx context.Context, q GrantQuery) ([]AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	result := []AccessGrant{}
	for _, g := range s.grants {
		if matchGrant(&g, &q) {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func matchGrant(g *AccessGrant, q *GrantQuery) bool {
	if q.UserID != 0 || len(q.GroupIDs) > 0 {
		matched := q.UserID != 0 && g.UserID == q.UserID
		for _, gid := range q.GroupIDs {
			matched = matched || g.GroupID == gid
		}
		if !matched {
			return false
		}
	}
	if q.TargetType != "" && g.TargetType != q.TargetType {
		return false
	}
	if len(q.TargetIDs) > 0 {
		matched := false
		for _, id := range q.TargetIDs {
			matched = matched || g.TargetID == id
		}
		if !matched {
			return false
		}
	}
	if q.PermissionID != 0 && g.PermissionID != q.PermissionID {
		return false
	}
	return q.Allow == nil || g.Allow == *q.Allow
}

func (s *MemoryStore) DeleteGrant(ctx context.Context, id types.ID) (*AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	g, found := s.grants[id]
	if !found {
		return nil, nil
	}
	delete(s.grants, id)
	return &g, nil
}

func (s *MemoryStore) SetOwner(ctx context.Context, userID types.ID, target Target) (*Owner, error) {
	if userID == 0 {
		return nil, bizerror.ErrMalformedActor
	}
	if target.Type == "" || target.ID == "" || target.IsWildcard() {
		return nil, bizerror.ErrUnknownTargetType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.owners[target] == nil {
		s.owners[target] = map[types.ID]bool{}
	}
	s.owners[target][userID] = true
	return &Owner{UserID: userID, TargetType: target.Type, TargetID: target.ID, CreateTime: types.CurrentTimestamp()}, nil
}

func (s *MemoryStore) RemoveOwner(ctx context.Context, userID types.ID, target Target) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	found := s.owners[target][userID]
	delete(s.owners[target], userID)
	return found, nil
}

func (s *MemoryStore) IsOwner(ctx context.Context, userID types.ID, target Target) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.owners[target][userID], nil
}

func (s *MemoryStore) GroupIDsOfUser(ctx context.Context, userID types.ID) ([]types.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	result := []types.ID{}
	for gid, members := range s.memberships {
		if members[userID] {
			result = append(result, gid)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

func (s *MemoryStore) ActorExists(ctx context.Context, actor Actor) (bool, error) {
	if err := actor.Validate(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	if actor.IsGroup() {
		_, found := s.memberships[actor.GroupID]
		return found, nil
	}
	return s.users[actor.UserID], nil
}

// AddGroup registers an empty group.
func (s *MemoryStore) AddGroup(groupID types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberships[groupID] == nil {
		s.memberships[groupID] = map[types.ID]bool{}
	}
}
