package account

import "github.com/fundwit/go-commons/types"

const DefaultProfile = "home_only"

type User struct {
	ID     types.ID `json:"id"`
	Name   string   `json:"name" gorm:"unique_index:uni_user_name"`
	Secret string   `json:"secret"`

	Nickname  string `json:"nickname"`
	Superuser bool   `json:"superuser"`

	Profile           string          `json:"profile" sql:"type:VARCHAR(32) NOT NULL"`
	ProfileUpdateTime types.Timestamp `json:"profileUpdateTime" sql:"type:DATETIME(6)"`
}

type UserInfo struct {
	ID        types.ID `json:"id"`
	Name      string   `json:"name"`
	Nickname  string   `json:"nickname"`
	Superuser bool     `json:"superuser"`
	Profile   string   `json:"profile"`
}

type BasicAuthUpdating struct {
	OriginalSecret string `json:"originalSecret"`
	NewSecret      string `json:"newSecret" binding:"required,gte=6,lte=32"`
}

type UserCreation struct {
	Name     string `json:"name" binding:"required,lte=32"`
	Secret   string `json:"secret" binding:"required,gte=6,lte=32"`
	Nickname string `json:"nickname" binding:"omitempty,gte=1,lte=32"`
}

type UserUpdation struct {
	Nickname string `json:"nickname" binding:"required,lte=32"`
}

// Group is a named set of users that grants can be assigned to.
type Group struct {
	ID         types.ID        `json:"id"`
	Name       string          `json:"name" gorm:"unique_index:uni_group_name" sql:"type:VARCHAR(150) NOT NULL"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

// TableName avoids the reserved word GROUPS of MySQL 8.
func (g *Group) TableName() string {
	return "user_groups"
}

type GroupMembership struct {
	ID         types.ID        `json:"id"`
	GroupID    types.ID        `json:"groupId" gorm:"unique_index:uni_group_member"`
	UserID     types.ID        `json:"userId" gorm:"unique_index:uni_group_member;index:idx_member_user"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type GroupCreation struct {
	Name string `json:"name" binding:"required,lte=150"`
}

type GroupUpdation struct {
	Name string `json:"name" binding:"required,lte=150"`
}

type GroupMemberChange struct {
	UserID types.ID `json:"userId" binding:"required"`
}
