package sessions

import (
	"errors"
	"mangaapi/account"
	"mangaapi/bizerror"
	"mangaapi/dac"
	"mangaapi/persistence"
	"mangaapi/session"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
)

const PathSessions = "/v1/sessions"

func RegisterSessionsHandler(r *gin.Engine, store dac.Store) {
	h := &sessionsHandler{store: store}
	g := r.Group(PathSessions)
	g.POST("", h.handleLogin)
	g.DELETE("", SimpleLogoutHandler)
}

type sessionsHandler struct {
	store dac.Store
}

func SimpleLogoutHandler(c *gin.Context) {
	if token := session.ExtractToken(c); token != "" {
		session.TokenCache.Delete(token)
	}
	c.SetCookie(session.KeySecToken, "", -1, "/", "", false, false)
	c.AbortWithStatus(http.StatusNoContent)
}

func (h *sessionsHandler) handleLogin(c *gin.Context) {
	login := session.LoginRequest{}
	if err := c.ShouldBindBodyWith(&login, binding.JSON); err != nil {
		panic(err)
	}
	identity := session.Identity{}
	db := persistence.ActiveDataSourceManager.GormDB(c.Request.Context())
	if err := db.Model(&account.User{}).Where(&account.User{Name: login.Name, Secret: account.HashSha256(login.Password)}).
		Scan(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			panic(bizerror.ErrUnauthenticated)
		}
		panic(err)
	}

	token := uuid.New().String()
	s := &session.Session{Token: token, Identity: identity, SigningTime: time.Now()}
	s.Perms = loadPerms(c, h.store, s)
	session.TokenCache.Set(token, s, cache.DefaultExpiration)

	c.SetCookie(session.KeySecToken, token, int(session.TokenExpiration/time.Second), "/", "", false, false)
	c.JSON(http.StatusOK, s)
}
