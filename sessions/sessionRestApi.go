package sessions

import (
	"mangaapi/account"
	"mangaapi/authority"
	"mangaapi/bizerror"
	"mangaapi/dac"
	"mangaapi/session"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const PathSession = "/v1/session"

var GroupNamesOfUserFunc = account.GroupNamesOfUser

// EffectivePermissions describes what the caller may do on every object.
type EffectivePermissions struct {
	Authenticated bool                  `json:"authenticated"`
	Permissions   authority.Permissions `json:"permissions"`
	Groups        []string              `json:"groups"`
}

// RegisterSessionHandler serves the current session, middleWares guard the session detail only:
// the permission summary answers anonymous callers too.
func RegisterSessionHandler(r *gin.Engine, store dac.Store, middleWares ...gin.HandlerFunc) {
	h := &sessionHandler{store: store}
	r.GET(PathSession, append(middleWares, h.handleDetailSession)...)
	r.GET(PathSession+"/permissions", h.handleEffectivePermissions)
}

type sessionHandler struct {
	store dac.Store
}

func (h *sessionHandler) handleDetailSession(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Authenticated() {
		panic(bizerror.ErrUnauthenticated)
	}

	now := time.Now()
	ttl := session.TokenExpiration - now.Sub(sec.SigningTime)
	if ttl <= 0 {
		session.TokenCache.Delete(sec.Token)
		panic(bizerror.ErrUnauthenticated)
	}
	refreshed := &session.Session{Token: sec.Token, Identity: sec.Identity, SigningTime: now}
	refreshed.Perms = loadPerms(c, h.store, sec)
	session.TokenCache.Set(sec.Token, refreshed, ttl)
	c.JSON(http.StatusOK, refreshed)
}

func (h *sessionHandler) handleEffectivePermissions(c *gin.Context) {
	sec := session.ExtractSessionFromGinContext(c)
	if !sec.Authenticated() {
		c.JSON(http.StatusOK, &EffectivePermissions{Permissions: authority.Permissions{}, Groups: []string{}})
		return
	}

	groups, err := GroupNamesOfUserFunc(sec.Ctx(), sec.Identity.ID)
	if err != nil {
		logrus.WithField("user", sec.Identity.ID).Warnf("failed to load groups: %v", err)
		groups = []string{}
	}
	c.JSON(http.StatusOK, &EffectivePermissions{Authenticated: true, Permissions: loadPerms(c, h.store, sec), Groups: groups})
}

// loadPerms degrades to an empty list when the grant storage fails.
func loadPerms(c *gin.Context, store dac.Store, sec *session.Session) authority.Permissions {
	perms, err := dac.EffectiveGlobalPermissions(c.Request.Context(), store, dac.SubjectOf(sec))
	if err != nil {
		logrus.WithField("user", sec.Identity.ID).Warnf("failed to load effective permissions: %v", err)
		return authority.Permissions{}
	}
	return perms
}
