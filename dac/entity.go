package dac

import (
	"mangaapi/bizerror"
	"mangaapi/session"
	"regexp"

	"github.com/fundwit/go-commons/types"
)

// Wildcard as target id matches every object of the target type.
const Wildcard = "*"

// CodenameWrite is the permission required to mutate an existing object.
const CodenameWrite = "write"

var codenamePattern = regexp.MustCompile(`^[a-z][a-z0-9_.:-]{0,99}$`)

type TargetType string

// Target references an object by type discriminator and primary key.
type Target struct {
	Type TargetType `json:"targetType"`
	ID   string     `json:"targetId"`
}

func (t Target) IsWildcard() bool {
	return t.ID == Wildcard
}

func (t Target) String() string {
	return string(t.Type) + "#" + t.ID
}

// Actor is either a user or a group, never both.
type Actor struct {
	UserID  types.ID `json:"userId,omitempty"`
	GroupID types.ID `json:"groupId,omitempty"`
}

func UserActor(id types.ID) Actor {
	return Actor{UserID: id}
}

func GroupActor(id types.ID) Actor {
	return Actor{GroupID: id}
}

func (a Actor) Validate() error {
	if (a.UserID == 0) == (a.GroupID == 0) {
		return bizerror.ErrMalformedActor
	}
	return nil
}

func (a Actor) IsGroup() bool {
	return a.GroupID != 0
}

type Permission struct {
	ID          types.ID        `json:"id"`
	Codename    string          `json:"codename" gorm:"unique_index:uni_permission_codename" sql:"type:VARCHAR(100) NOT NULL"`
	DisplayName string          `json:"displayName"`
	CreateTime  types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (p *Permission) TableName() string {
	return "dac_permissions"
}

// AccessGrant allows or denies one permission on a target to a user or a group.
// A zero UserID or GroupID means the column does not apply, which keeps the unique index effective.
type AccessGrant struct {
	ID           types.ID   `json:"id"`
	UserID       types.ID   `json:"userId" gorm:"unique_index:uni_access_grant"`
	GroupID      types.ID   `json:"groupId" gorm:"unique_index:uni_access_grant"`
	TargetType   TargetType `json:"targetType" gorm:"unique_index:uni_access_grant" sql:"type:VARCHAR(64) NOT NULL"`
	TargetID     string     `json:"targetId" gorm:"unique_index:uni_access_grant" sql:"type:VARCHAR(128) NOT NULL"`
	PermissionID types.ID   `json:"permissionId" gorm:"unique_index:uni_access_grant"`
	Codename     string     `json:"codename" gorm:"-"`
	Allow        bool       `json:"allow"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (g *AccessGrant) TableName() string {
	return "dac_access_grants"
}

func (g *AccessGrant) Actor() Actor {
	return Actor{UserID: g.UserID, GroupID: g.GroupID}
}

func (g *AccessGrant) Target() Target {
	return Target{Type: g.TargetType, ID: g.TargetID}
}

// Owner passes every permission check on its target.
type Owner struct {
	ID         types.ID        `json:"id"`
	UserID     types.ID        `json:"userId" gorm:"unique_index:uni_owner"`
	TargetType TargetType      `json:"targetType" gorm:"unique_index:uni_owner" sql:"type:VARCHAR(64) NOT NULL"`
	TargetID   string          `json:"targetId" gorm:"unique_index:uni_owner" sql:"type:VARCHAR(128) NOT NULL"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (o *Owner) TableName() string {
	return "dac_owners"
}

// GrantQuery filters grants, zero fields do not filter. UserID and GroupIDs are combined with OR.
type GrantQuery struct {
	UserID       types.ID
	GroupIDs     []types.ID
	TargetType   TargetType
	TargetIDs    []string
	PermissionID types.ID
	Allow        *bool
}

type GrantCreation struct {
	Codename   string     `json:"codename" binding:"required,lte=100"`
	TargetType TargetType `json:"targetType" binding:"required,lte=64"`
	TargetID   string     `json:"targetId" binding:"lte=128"`
	Allow      *bool      `json:"allow"`
}

type OwnerAssignment struct {
	UserID     types.ID   `json:"userId" binding:"required"`
	TargetType TargetType `json:"targetType" binding:"required,lte=64"`
	TargetID   string     `json:"targetId" binding:"required,lte=128"`
}

// Subject is the principal a decision is made for.
type Subject struct {
	UserID    types.ID
	Superuser bool
}

// SubjectOf returns nil for anonymous sessions.
func SubjectOf(s *session.Session) *Subject {
	if !s.Authenticated() {
		return nil
	}
	return &Subject{UserID: s.Identity.ID, Superuser: s.Identity.Superuser}
}

func validCodename(codename string) bool {
	return codenamePattern.MatchString(codename)
}
