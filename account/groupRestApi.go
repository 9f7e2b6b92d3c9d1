package account

import (
	"mangaapi/bizerror"
	"mangaapi/session"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var PathGroups = "/v1/groups"

func RegisterGroupsHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathGroups, middleWares...)
	g.GET("", handleQueryGroups)
	g.POST("", handleCreateGroup)
	g.GET(":id", handleDetailGroup)
	g.PUT(":id", handleUpdateGroup)
	g.DELETE(":id", handleDeleteGroup)

	g.GET(":id/members", handleQueryGroupMembers)
	g.POST(":id/members", handleAddGroupMember)
	g.DELETE(":id/members/:userId", handleRemoveGroupMember)
}

func handleQueryGroups(c *gin.Context) {
	groups, err := QueryGroupsFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, groups)
}

func handleCreateGroup(c *gin.Context) {
	payload := GroupCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	g, err := CreateGroupFunc(&payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, g)
}

func handleDetailGroup(c *gin.Context) {
	g, err := DetailGroupFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, g)
}

func handleUpdateGroup(c *gin.Context) {
	id := parseIDParam(c, "id")
	payload := GroupUpdation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := UpdateGroupFunc(id, &payload, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

func handleDeleteGroup(c *gin.Context) {
	if err := DeleteGroupFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}

func handleQueryGroupMembers(c *gin.Context) {
	members, err := QueryGroupMembersFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, members)
}

func handleAddGroupMember(c *gin.Context) {
	id := parseIDParam(c, "id")
	payload := GroupMemberChange{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := AddGroupMemberFunc(id, &payload, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

func handleRemoveGroupMember(c *gin.Context) {
	id := parseIDParam(c, "id")
	userID := parseIDParam(c, "userId")
	if err := RemoveGroupMemberFunc(id, userID, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusNoContent)
}
