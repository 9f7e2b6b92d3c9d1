package profile

import (
	"github.com/fundwit/go-commons/types"
)

// GroupPermissionBinding materializes the permission set of a profile group.
type GroupPermissionBinding struct {
	ID           types.ID        `json:"id"`
	GroupID      types.ID        `json:"groupId" gorm:"unique_index:uni_group_permission"`
	PermissionID types.ID        `json:"permissionId" gorm:"unique_index:uni_group_permission"`
	CreateTime   types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (b *GroupPermissionBinding) TableName() string {
	return "profile_group_permissions"
}

type ProfileUpdating struct {
	Profile string `json:"profile" binding:"required"`
}

type UserProfile struct {
	UserID      types.ID        `json:"userId"`
	Profile     Profile         `json:"profile"`
	GroupName   string          `json:"groupName"`
	Permissions []string        `json:"permissions"`
	UpdateTime  types.Timestamp `json:"updateTime"`

	CanViewNSFW         bool `json:"canViewNsfw"`
	CanAccessAdmin      bool `json:"canAccessAdmin"`
	IsModeratorOrHigher bool `json:"isModeratorOrHigher"`
}

func newUserProfile(userID types.ID, p Profile, updateTime types.Timestamp) *UserProfile {
	return &UserProfile{UserID: userID, Profile: p, GroupName: p.GroupName(), Permissions: p.Permissions(), UpdateTime: updateTime,
		CanViewNSFW: p.Has(PermViewNSFWContent), CanAccessAdmin: p.Has(PermAccessAdminPanel), IsModeratorOrHigher: p.IsModeratorOrHigher()}
}
