package audit

import (
	"fmt"
	"mangaapi/enforce"
	"mangaapi/idgen"
	"mangaapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var idWorker *sonyflake.Sonyflake

func init() {
	idWorker = idgen.NewWorker()
}

// Middleware records every request that passed through an enforcement guard, once the response is final.
// It must be registered before bizerror.ErrorHandling so the status written for rejections is visible.
func Middleware(r *Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if !enforce.Enforced(c) {
			return
		}
		record(r, c)
	}
}

func record(r *Recorder, c *gin.Context) {
	defer func() {
		if ret := recover(); ret != nil {
			logrus.Warnf("audit entry not recorded: %v", ret)
		}
	}()
	r.Record(EntryFromGinContext(c))
}

// EntryFromGinContext builds the entry of a completed request.
func EntryFromGinContext(c *gin.Context) Entry {
	status := c.Writer.Status()
	e := Entry{
		ID:         idgen.NextID(idWorker),
		CreateTime: types.CurrentTimestamp(),
		Path:       c.Request.URL.Path,
		Method:     c.Request.Method,
		ViewName:   c.FullPath(),
		Allowed:    AllowedByStatus(status),
		StatusCode: status,
	}
	if sec := session.ExtractSessionFromGinContext(c); sec.Authenticated() {
		e.UserID = sec.Identity.ID
		e.UserName = sec.Identity.Name
	}
	if res := enforce.ResourceFromGinContext(c); res != nil {
		t := res.DACTarget()
		targetType, targetID := string(t.Type), t.ID
		e.TargetType, e.TargetID = &targetType, &targetID
	}
	if v, ok := c.Get(enforce.KeyDecision); ok {
		if d, ok := v.(enforce.Decision); ok {
			e.Detail = fmt.Sprintf("decision: %s", d.Reason)
		}
	}
	return e
}
