package profile

import (
	"context"
	"errors"
	"mangaapi/account"
	"mangaapi/bizerror"
	"mangaapi/dac"
	"mangaapi/event"
	"mangaapi/idgen"
	"mangaapi/persistence"
	"mangaapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var idWorker *sonyflake.Sonyflake

func init() {
	idWorker = idgen.NewWorker()
}

var (
	ApplyProfileFunc         = ApplyProfile
	SetUserProfileFunc       = SetUserProfile
	GetUserProfileFunc       = GetUserProfile
	HasProfilePermissionFunc = HasProfilePermission
)

// ApplyProfile stores profile on the user and moves the user into exactly the matching profile group.
// The user row is locked for the whole operation so concurrent changes of the same user are serialized.
// It is idempotent and returns the previous profile.
func ApplyProfile(ctx context.Context, userID types.ID, p Profile) (Profile, error) {
	if !p.Valid() {
		return "", bizerror.ErrUnknownProfile
	}
	var previous Profile
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		user := account.User{}
		if err := tx.Set("gorm:query_option", "FOR UPDATE").Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		previous = Profile(user.Profile)

		group, err := account.EnsureGroup(tx, p.GroupName())
		if err != nil {
			return err
		}

		var otherGroupIDs []uint64
		if err := tx.Model(&account.Group{}).Where("name IN (?) AND id <> ?", GroupNames(), group.ID).
			Pluck("id", &otherGroupIDs).Error; err != nil {
			return err
		}
		if len(otherGroupIDs) > 0 {
			if err := tx.Where("user_id = ? AND group_id IN (?)", userID, otherGroupIDs).
				Delete(&account.GroupMembership{}).Error; err != nil {
				return err
			}
		}
		if _, err := account.AddMembershipTx(tx, group.ID, userID); err != nil {
			return err
		}
		if err := tx.Model(&account.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{"profile": string(p), "profile_update_time": types.CurrentTimestamp()}).Error; err != nil {
			return err
		}
		return syncGroupPermissionsTx(tx, group.ID, p)
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// SetUserProfile is the administrative entry of ApplyProfile.
func SetUserProfile(userID types.ID, c *ProfileUpdating, sec *session.Session) (*UserProfile, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}
	p, err := Parse(c.Profile)
	if err != nil {
		return nil, err
	}
	previous, err := ApplyProfileFunc(sec.Ctx(), userID, p)
	if err != nil {
		return nil, err
	}
	event.PublishFunc(sec.Ctx(), event.Event{
		SourceType: event.SourceUserProfile, SourceId: userID, SourceDesc: p.GroupName(),
		EventCategory:     event.EventCategoryPropertyUpdated,
		UpdatedProperties: event.UpdatedProperties{{PropertyName: "profile", OldValue: string(previous), NewValue: string(p)}},
		CreatorId:         sec.Identity.ID, CreatorName: sec.Identity.Name,
	})
	return newUserProfile(userID, p, types.CurrentTimestamp()), nil
}

// GetUserProfile is visible to the user itself and to superusers.
func GetUserProfile(userID types.ID, sec *session.Session) (*UserProfile, error) {
	if !sec.Authenticated() {
		return nil, bizerror.ErrUnauthenticated
	}
	if !sec.IsSuperuser() && sec.Identity.ID != userID {
		return nil, bizerror.ErrForbidden
	}
	user := account.User{}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	p, err := Parse(user.Profile)
	if err != nil {
		logrus.Warnf("user %d carries unknown profile '%s', treated as %s", userID, user.Profile, HomeOnly)
		p = HomeOnly
	}
	return newUserProfile(userID, p, user.ProfileUpdateTime), nil
}

// SetupProfileGroups creates every profile group and resets its permissions to the profile table.
func SetupProfileGroups(ctx context.Context) error {
	return persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range All() {
			group, err := account.EnsureGroup(tx, p.GroupName())
			if err != nil {
				return err
			}
			if err := syncGroupPermissionsTx(tx, group.ID, p); err != nil {
				return err
			}
			logrus.Infof("profile group '%s' configured with %d permissions", group.Name, len(p.Permissions()))
		}
		return nil
	})
}

// syncGroupPermissionsTx clears the bindings of the group then assigns the permissions of p.
func syncGroupPermissionsTx(tx *gorm.DB, groupID types.ID, p Profile) error {
	if err := tx.Where("group_id = ?", groupID).Delete(&GroupPermissionBinding{}).Error; err != nil {
		return err
	}
	for _, codename := range p.Permissions() {
		perm, err := dac.GetOrCreatePermissionTx(tx, codename)
		if err != nil {
			return err
		}
		b := GroupPermissionBinding{ID: idgen.NextID(idWorker), GroupID: groupID, PermissionID: perm.ID, CreateTime: types.CurrentTimestamp()}
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteGroupBindingsTx is registered as an account.GroupDeleteHook.
func DeleteGroupBindingsTx(tx *gorm.DB, groupID types.ID) error {
	return tx.Where("group_id = ?", groupID).Delete(&GroupPermissionBinding{}).Error
}

// ErrProfileGroupMembership rejects direct membership changes of a profile group.
var ErrProfileGroupMembership = errors.New("members of profile groups follow user profiles, change them through PUT /v1/users/:id/profile")

// GuardProfileGroupMembers is registered as an account.GroupMemberGuard so a user never joins a second
// profile group behind ApplyProfile.
func GuardProfileGroupMembers(g *account.Group) error {
	for _, name := range GroupNames() {
		if g.Name == name {
			return &bizerror.ErrBadParam{Cause: ErrProfileGroupMembership}
		}
	}
	return nil
}

// HasProfilePermission reports whether one of the groups of the subject is bound to codename.
// It does not consult access grants. Superusers hold every profile permission.
func HasProfilePermission(ctx context.Context, subject *dac.Subject, codename string) (bool, error) {
	if subject == nil || subject.UserID == 0 {
		return false, nil
	}
	if subject.Superuser {
		return true, nil
	}
	var count int
	err := persistence.ActiveDataSourceManager.GormDB(ctx).Model(&GroupPermissionBinding{}).
		Joins("JOIN dac_permissions p ON p.id = profile_group_permissions.permission_id").
		Joins("JOIN group_memberships m ON m.group_id = profile_group_permissions.group_id").
		Where("m.user_id = ? AND p.codename = ?", subject.UserID, codename).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
