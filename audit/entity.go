package audit

import (
	"github.com/fundwit/go-commons/types"
)

// Entry is an append-only record of one enforcement decision.
type Entry struct {
	ID         types.ID        `json:"id"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL" gorm:"index:idx_audit_create_time"`

	UserID   types.ID `json:"userId" gorm:"index:idx_audit_user"`
	UserName string   `json:"userName"`

	Path     string `json:"path" sql:"type:VARCHAR(512) NOT NULL"`
	Method   string `json:"method" sql:"type:VARCHAR(16) NOT NULL"`
	ViewName string `json:"viewName"`

	TargetType *string `json:"targetType" sql:"type:VARCHAR(64)"`
	TargetID   *string `json:"targetId" sql:"type:VARCHAR(128)"`

	Allowed    bool   `json:"allowed"`
	StatusCode int    `json:"statusCode"`
	Detail     string `json:"detail" sql:"type:VARCHAR(1024)"`
}

func (e *Entry) TableName() string {
	return "audit_log_entries"
}

// Anonymous reports whether the request carried no authenticated actor.
func (e *Entry) Anonymous() bool {
	return e.UserID == 0
}

type EntryQuery struct {
	UserID  types.ID `form:"userId"`
	Allowed *bool    `form:"allowed"`
	Limit   int      `form:"limit" binding:"omitempty,gte=1,lte=500"`
	Offset  int      `form:"offset" binding:"omitempty,gte=0"`
}

type PagedEntries struct {
	List  []Entry `json:"list"`
	Total uint64  `json:"total"`
}

// AllowedByStatus derives the outcome from the final status code, so audit reflects what was answered.
func AllowedByStatus(status int) bool {
	return status < 400 && status != 403
}
