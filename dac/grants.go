package dac

import (
	"context"
	"fmt"
	"mangaapi/authority"
	"mangaapi/bizerror"
	"mangaapi/event"
	"mangaapi/session"
	"strconv"

	"github.com/fundwit/go-commons/types"
)

// Manager runs the administrative grant operations, all of them are reserved to superusers.
type Manager struct {
	store          Store
	knownTargetFor func(TargetType) bool
}

// NewManager accepts any target type when knownTargetType is nil.
func NewManager(store Store, knownTargetType func(TargetType) bool) *Manager {
	return &Manager{store: store, knownTargetFor: knownTargetType}
}

func (m *Manager) GrantToGroup(groupID types.ID, c *GrantCreation, sec *session.Session) (*AccessGrant, error) {
	return m.grant(GroupActor(groupID), c, sec)
}

func (m *Manager) GrantToUser(userID types.ID, c *GrantCreation, sec *session.Session) (*AccessGrant, error) {
	return m.grant(UserActor(userID), c, sec)
}

func (m *Manager) grant(actor Actor, c *GrantCreation, sec *session.Session) (*AccessGrant, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if m.knownTargetFor != nil && !m.knownTargetFor(c.TargetType) {
		return nil, bizerror.ErrUnknownTargetType
	}
	exists, err := m.store.ActorExists(sec.Ctx(), actor)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, bizerror.ErrNotFound
	}

	target := Target{Type: c.TargetType, ID: c.TargetID}
	if target.ID == "" {
		target.ID = Wildcard
	}
	allow := true
	if c.Allow != nil {
		allow = *c.Allow
	}

	g, err := m.store.UpsertGrant(sec.Ctx(), actor, target, c.Codename, allow)
	if err != nil {
		return nil, err
	}
	publishGrantEvent(sec, g, event.EventCategoryCreated)
	return g, nil
}

// QueryGrants lists grants matching q.
func (m *Manager) QueryGrants(q GrantQuery, sec *session.Session) ([]AccessGrant, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	return m.store.ListGrants(sec.Ctx(), q)
}

// RevokeGrant deletes a grant, revoking an absent grant is not an error.
func (m *Manager) RevokeGrant(id types.ID, sec *session.Session) error {
	if !sec.IsSuperuser() {
		return bizerror.ErrForbidden
	}
	g, err := m.store.DeleteGrant(sec.Ctx(), id)
	if err != nil {
		return err
	}
	if g != nil {
		publishGrantEvent(sec, g, event.EventCategoryDeleted)
	}
	return nil
}

func (m *Manager) AssignOwner(c *OwnerAssignment, sec *session.Session) (*Owner, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	if m.knownTargetFor != nil && !m.knownTargetFor(c.TargetType) {
		return nil, bizerror.ErrUnknownTargetType
	}
	exists, err := m.store.ActorExists(sec.Ctx(), UserActor(c.UserID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, bizerror.ErrNotFound
	}
	target := Target{Type: c.TargetType, ID: c.TargetID}
	o, err := m.store.SetOwner(sec.Ctx(), c.UserID, target)
	if err != nil {
		return nil, err
	}
	publishOwnerEvent(sec, c.UserID, target, "", c.UserID.String())
	return o, nil
}

func (m *Manager) RemoveOwner(c *OwnerAssignment, sec *session.Session) error {
	if !sec.IsSuperuser() {
		return bizerror.ErrForbidden
	}
	target := Target{Type: c.TargetType, ID: c.TargetID}
	removed, err := m.store.RemoveOwner(sec.Ctx(), c.UserID, target)
	if err != nil {
		return err
	}
	if removed {
		publishOwnerEvent(sec, c.UserID, target, c.UserID.String(), "")
	}
	return nil
}

// EffectiveGlobalPermissions lists the codenames a user holds on every object through wildcard allow grants,
// of its own or of its groups. Superusers get the wildcard marker only.
func EffectiveGlobalPermissions(ctx context.Context, store Store, subject *Subject) (authority.Permissions, error) {
	if subject == nil {
		return authority.Permissions{}, nil
	}
	if subject.Superuser {
		return authority.Permissions{authority.Wildcard}, nil
	}
	groupIDs, err := store.GroupIDsOfUser(ctx, subject.UserID)
	if err != nil {
		return nil, err
	}
	allow := true
	grants, err := store.ListGrants(ctx, GrantQuery{UserID: subject.UserID, GroupIDs: groupIDs, TargetIDs: []string{Wildcard}, Allow: &allow})
	if err != nil {
		return nil, err
	}
	var codenames authority.Permissions
	for _, g := range grants {
		codenames = append(codenames, g.Codename)
	}
	return codenames.Normalize(), nil
}

func publishGrantEvent(sec *session.Session, g *AccessGrant, category event.EventCategory) {
	desc := fmt.Sprintf("%s %s", g.Codename, g.Target().String())
	event.PublishFunc(sec.Ctx(), event.Event{
		SourceType: event.SourceGrant, SourceId: g.ID, SourceDesc: desc, EventCategory: category,
		UpdatedProperties: event.UpdatedProperties{
			{PropertyName: "allow", NewValue: strconv.FormatBool(g.Allow)},
			{PropertyName: "actor", NewValue: actorDesc(g.Actor())},
		},
		CreatorId: sec.Identity.ID, CreatorName: sec.Identity.Name,
	})
}

func publishOwnerEvent(sec *session.Session, userID types.ID, target Target, oldOwner, newOwner string) {
	event.PublishFunc(sec.Ctx(), event.Event{
		SourceType: event.SourceOwner, SourceId: userID, SourceDesc: target.String(), EventCategory: event.EventCategoryRelationUpdated,
		UpdatedRelations: event.UpdatedRelations{{PropertyName: "owner", TargetType: string(target.Type), OldTargetId: oldOwner, NewTargetId: newOwner}},
		CreatorId:        sec.Identity.ID, CreatorName: sec.Identity.Name,
	})
}

func actorDesc(a Actor) string {
	if a.IsGroup() {
		return "group:" + a.GroupID.String()
	}
	return "user:" + a.UserID.String()
}
