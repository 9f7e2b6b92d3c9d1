package audit

import (
	"mangaapi/bizerror"
	"mangaapi/session"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var PathAuditLogs = "/v1/audit-logs"

// RegisterAuditRestAPI exposes the entries of reader. The resync endpoint is registered only with a mirror.
func RegisterAuditRestAPI(r *gin.Engine, reader Reader, mirror Sink, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathAuditLogs, middleWares...)
	h := &auditHandler{reader: reader, mirror: mirror}
	g.GET("", h.handleQuery)
	if mirror != nil {
		g.POST("resync", h.handleResync)
	}
}

type auditHandler struct {
	reader Reader
	mirror Sink
}

func (h *auditHandler) handleQuery(c *gin.Context) {
	q := EntryQuery{}
	if err := c.ShouldBindWith(&q, binding.Query); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	page, err := QueryEntriesFunc(h.reader, q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, page)
}

func (h *auditHandler) handleResync(c *gin.Context) {
	started, err := ScheduleResyncFunc(h.reader, h.mirror, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"result": started})
}
