package account

import (
	"context"
	"errors"
	"mangaapi/bizerror"
	"mangaapi/event"
	"mangaapi/idgen"
	"mangaapi/persistence"
	"mangaapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

// GroupDeleteHook removes data referencing a group inside the deleting transaction.
type GroupDeleteHook func(tx *gorm.DB, groupID types.ID) error

var GroupDeleteHooks []GroupDeleteHook

// GroupMemberGuard vetoes direct membership changes of a group by returning an error.
type GroupMemberGuard func(g *Group) error

var GroupMemberGuards []GroupMemberGuard

func checkMemberGuards(g *Group) error {
	for _, guard := range GroupMemberGuards {
		if err := guard(g); err != nil {
			return err
		}
	}
	return nil
}

var (
	CreateGroupFunc       = CreateGroup
	QueryGroupsFunc       = QueryGroups
	DetailGroupFunc       = DetailGroup
	UpdateGroupFunc       = UpdateGroup
	DeleteGroupFunc       = DeleteGroup
	AddGroupMemberFunc    = AddGroupMember
	RemoveGroupMemberFunc = RemoveGroupMember
	QueryGroupMembersFunc = QueryGroupMembers
)

func CreateGroup(c *GroupCreation, sec *session.Session) (*Group, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	g := Group{ID: idgen.NextID(idWorker), Name: c.Name, CreateTime: types.CurrentTimestamp()}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Create(&g).Error; err != nil {
		if persistence.IsDuplicateKeyError(err) {
			return nil, &bizerror.ErrBadParam{Cause: errors.New("group '" + c.Name + "' already exists")}
		}
		return nil, err
	}
	event.PublishFunc(sec.Context, event.Event{SourceType: event.SourceGroup, SourceId: g.ID, SourceDesc: g.Name,
		EventCategory: event.EventCategoryCreated, CreatorId: sec.Identity.ID, CreatorName: sec.Identity.Name})
	return &g, nil
}

func QueryGroups(sec *session.Session) ([]Group, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	groups := []Group{}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func DetailGroup(id types.ID, sec *session.Session) (*Group, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	g := Group{}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// FindGroupByName returns nil when no group carries the name.
func FindGroupByName(tx *gorm.DB, name string) (*Group, error) {
	g := Group{}
	if err := tx.Where("name = ?", name).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// EnsureGroup returns the group named name, creating it when absent.
func EnsureGroup(tx *gorm.DB, name string) (*Group, error) {
	g, err := FindGroupByName(tx, name)
	if err != nil || g != nil {
		return g, err
	}
	created := Group{ID: idgen.NextID(idWorker), Name: name, CreateTime: types.CurrentTimestamp()}
	if err := tx.Create(&created).Error; err != nil {
		if persistence.IsDuplicateKeyError(err) {
			return FindGroupByName(tx, name)
		}
		return nil, err
	}
	return &created, nil
}

func UpdateGroup(id types.ID, c *GroupUpdation, sec *session.Session) error {
	if !sec.IsSuperuser() {
		return bizerror.ErrForbidden
	}
	var old Group
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&old).Error; err != nil {
			return err
		}
		return tx.Model(&Group{}).Where("id = ?", id).Update("name", c.Name).Error
	})
	if err != nil {
		return err
	}
	event.PublishFunc(sec.Context, event.Event{SourceType: event.SourceGroup, SourceId: id, SourceDesc: c.Name,
		EventCategory:     event.EventCategoryPropertyUpdated,
		UpdatedProperties: event.UpdatedProperties{{PropertyName: "name", OldValue: old.Name, NewValue: c.Name}},
		CreatorId:         sec.Identity.ID, CreatorName: sec.Identity.Name})
	return nil
}

// DeleteGroup removes the group, its memberships and everything registered in GroupDeleteHooks.
func DeleteGroup(id types.ID, sec *session.Session) error {
	if !sec.IsSuperuser() {
		return bizerror.ErrForbidden
	}
	var g Group
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&g).Error; err != nil {
			return err
		}
		for _, hook := range GroupDeleteHooks {
			if err := hook(tx, id); err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", id).Delete(&GroupMembership{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Group{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	event.PublishFunc(sec.Context, event.Event{SourceType: event.SourceGroup, SourceId: id, SourceDesc: g.Name,
		EventCategory: event.EventCategoryDeleted, CreatorId: sec.Identity.ID, CreatorName: sec.Identity.Name})
	return nil
}

func AddGroupMember(groupID types.ID, c *GroupMemberChange, sec *session.Session) error {
	if !sec.IsSuperuser() {
		return bizerror.ErrForbidden
	}
	var record *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		g := Group{}
		if err := tx.Where("id = ?", groupID).First(&g).Error; err != nil {
			return err
		}
		if err := checkMemberGuards(&g); err != nil {
			return err
		}
		if err := tx.Where("id = ?", c.UserID).First(&User{}).Error; err != nil {
			return err
		}
		added, err := AddMembershipTx(tx, groupID, c.UserID)
		if err != nil || !added {
			return err
		}
		record, err = event.CreateEvent(event.SourceGroupMember, groupID, "", event.EventCategoryRelationUpdated, nil,
			event.UpdatedRelations{{PropertyName: "members", TargetType: "user", NewTargetId: c.UserID.String()}},
			&sec.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return err
	}
	if record != nil {
		event.InvokeHandlersFunc(record)
	}
	return nil
}

func RemoveGroupMember(groupID types.ID, userID types.ID, sec *session.Session) error {
	if !sec.IsSuperuser() {
		return bizerror.ErrForbidden
	}
	var record *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		g := Group{}
		if err := tx.Where("id = ?", groupID).First(&g).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := checkMemberGuards(&g); err != nil {
			return err
		}
		result := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&GroupMembership{})
		if result.Error != nil || result.RowsAffected == 0 {
			return result.Error
		}
		var err error
		record, err = event.CreateEvent(event.SourceGroupMember, groupID, "", event.EventCategoryRelationUpdated, nil,
			event.UpdatedRelations{{PropertyName: "members", TargetType: "user", OldTargetId: userID.String()}},
			&sec.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return err
	}
	if record != nil {
		event.InvokeHandlersFunc(record)
	}
	return nil
}

func QueryGroupMembers(groupID types.ID, sec *session.Session) ([]UserInfo, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	members := []UserInfo{}
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Model(&User{}).
		Joins("JOIN group_memberships m ON m.user_id = users.id").
		Where("m.group_id = ?", groupID).Order("users.id ASC").Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// AddMembershipTx is idempotent, it reports whether a new membership row was created.
func AddMembershipTx(tx *gorm.DB, groupID, userID types.ID) (bool, error) {
	var count int
	if err := tx.Model(&GroupMembership{}).Where("group_id = ? AND user_id = ?", groupID, userID).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	m := GroupMembership{ID: idgen.NextID(idWorker), GroupID: groupID, UserID: userID, CreateTime: types.CurrentTimestamp()}
	if err := tx.Create(&m).Error; err != nil {
		if persistence.IsDuplicateKeyError(err) {
			logrus.Debugf("membership of user %d in group %d created concurrently", userID, groupID)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GroupNamesOfUser returns the names of the groups userID belongs to, in ascending order.
func GroupNamesOfUser(ctx context.Context, userID types.ID) ([]string, error) {
	var groups []Group
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Model(&Group{}).
		Joins("JOIN group_memberships m ON m.group_id = user_groups.id").
		Where("m.user_id = ?", userID).Order("user_groups.name ASC").Find(&groups).Error
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, g := range groups {
		names = append(names, g.Name)
	}
	return names, nil
}
