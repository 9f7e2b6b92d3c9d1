package profile

import (
	"mangaapi/bizerror"
	"mangaapi/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func RegisterProfilesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group("/v1/users", middleWares...)
	g.GET(":id/profile", handleGetProfile)
	g.PUT(":id/profile", handleSetProfile)
}

func handleGetProfile(c *gin.Context) {
	p, err := GetUserProfileFunc(parseIDParam(c, "id"), session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func handleSetProfile(c *gin.Context) {
	id := parseIDParam(c, "id")
	payload := ProfileUpdating{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	p, err := SetUserProfileFunc(id, &payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, p)
}

func parseIDParam(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}
