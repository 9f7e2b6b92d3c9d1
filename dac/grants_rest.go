package dac

import (
	"mangaapi/bizerror"
	"mangaapi/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathGrants = "/v1/grants"
	PathOwners = "/v1/owners"
)

type grantsQueryParams struct {
	UserID     string `form:"userId"`
	GroupID    string `form:"groupId"`
	TargetType string `form:"targetType"`
	TargetID   string `form:"targetId"`
}

func RegisterGrantsRestAPI(r *gin.Engine, m *Manager, middleWares ...gin.HandlerFunc) {
	h := &grantsHandler{manager: m}

	groups := r.Group("/v1/groups", middleWares...)
	groups.GET(":id/grants", h.handleQueryGroupGrants)
	groups.POST(":id/grants", h.handleGrantToGroup)

	users := r.Group("/v1/users", middleWares...)
	users.POST(":id/grants", h.handleGrantToUser)

	grants := r.Group(PathGrants, middleWares...)
	grants.GET("", h.handleQueryGrants)
	grants.DELETE(":id", h.handleRevokeGrant)

	owners := r.Group(PathOwners, middleWares...)
	owners.PUT("", h.handleAssignOwner)
	owners.DELETE("", h.handleRemoveOwner)
}

type grantsHandler struct {
	manager *Manager
}

func (h *grantsHandler) handleGrantToGroup(c *gin.Context) {
	id := parseIDParam(c, "id")
	payload := GrantCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	g, err := h.manager.GrantToGroup(id, &payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, g)
}

func (h *grantsHandler) handleGrantToUser(c *gin.Context) {
	id := parseIDParam(c, "id")
	payload := GrantCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	g, err := h.manager.GrantToUser(id, &payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, g)
}

func (h *grantsHandler) handleQueryGroupGrants(c *gin.Context) {
	id := parseIDParam(c, "id")
	grants, err := h.manager.QueryGrants(GrantQuery{GroupIDs: []types.ID{id}}, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, grants)
}

func (h *grantsHandler) handleQueryGrants(c *gin.Context) {
	params := grantsQueryParams{}
	if err := c.ShouldBindQuery(&params); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	q := GrantQuery{TargetType: TargetType(params.TargetType)}
	if params.UserID != "" {
		q.UserID = parseID(params.UserID)
	}
	if params.GroupID != "" {
		q.GroupIDs = []types.ID{parseID(params.GroupID)}
	}
	if params.TargetID != "" {
		q.TargetIDs = []string{params.TargetID}
	}
	grants, err := h.manager.QueryGrants(q, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, grants)
}

func (h *grantsHandler) handleRevokeGrant(c *gin.Context) {
	if err := h.manager.RevokeGrant(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func (h *grantsHandler) handleAssignOwner(c *gin.Context) {
	payload := OwnerAssignment{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	o, err := h.manager.AssignOwner(&payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, o)
}

func (h *grantsHandler) handleRemoveOwner(c *gin.Context) {
	payload := OwnerAssignment{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := h.manager.RemoveOwner(&payload, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func parseIDParam(c *gin.Context, name string) types.ID {
	return parseID(c.Param(name))
}

func parseID(s string) types.ID {
	id, err := types.ParseID(s)
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}
