package testinfra

import (
	"context"
	"io/ioutil"
	"mangaapi/authority"
	"mangaapi/session"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ExecuteRequest serves req with router and returns the status, body and recorded response.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *http.Response) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()
	bodyBytes, _ := ioutil.ReadAll(resp.Body)
	return resp.StatusCode, string(bodyBytes), resp
}

// BuildSession builds an authenticated session, the token is derived from uid.
func BuildSession(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Context:     context.Background(),
		Token:       "token_" + uid.String(),
		Identity:    session.Identity{ID: uid, Name: "user" + uid.String()},
		Perms:       authority.Permissions(perms),
		SigningTime: time.Now(),
	}
}

// BuildSuperuserSession builds an authenticated superuser session.
func BuildSuperuserSession(uid types.ID) *session.Session {
	s := BuildSession(uid, authority.Wildcard)
	s.Identity.Superuser = true
	return s
}

// AnonymousSession builds a session without identity.
func AnonymousSession() *session.Session {
	return &session.Session{Context: context.Background()}
}

// Login registers s in the token cache and returns a request carrying its token cookie.
func Login(s *session.Session, req *http.Request) *http.Request {
	session.TokenCache.Set(s.Token, s, cache.DefaultExpiration)
	req.AddCookie(&http.Cookie{Name: session.KeySecToken, Value: s.Token})
	return req
}
