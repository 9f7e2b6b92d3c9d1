package account

import (
	"mangaapi/bizerror"
	"mangaapi/session"
	"net/http"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathUsers        = "/v1/users"
	PathSessionUsers = "/v1/session-users"
)

func RegisterUsersHandler(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathUsers, middleWares...)
	g.GET("", HandleQueryUsers)
	g.POST("", HandleCreateUser)
	g.PUT(":id", HandleUpdateUser)

	s := r.Group(PathSessionUsers, middleWares...)
	s.GET("", UserInfoQueryHandler)
	s.PUT("basic-auths", HandleUpdateBaseAuth)
}

func UserInfoQueryHandler(c *gin.Context) {
	c.JSON(http.StatusOK, session.ExtractSessionFromGinContext(c))
}

func HandleUpdateBaseAuth(c *gin.Context) {
	payload := BasicAuthUpdating{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := UpdateBasicAuthSecretFunc(&payload, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

func HandleQueryUsers(c *gin.Context) {
	users, err := QueryUsersFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, users)
}

func HandleCreateUser(c *gin.Context) {
	payload := UserCreation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	user, err := CreateUserFunc(&payload, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, user)
}

func HandleUpdateUser(c *gin.Context) {
	id := parseIDParam(c, "id")
	payload := UserUpdation{}
	if err := c.ShouldBindBodyWith(&payload, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	if err := UpdateUserFunc(id, &payload, session.ExtractSessionFromGinContext(c)); err != nil {
		panic(err)
	}
	c.Status(http.StatusOK)
}

func parseIDParam(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return id
}
