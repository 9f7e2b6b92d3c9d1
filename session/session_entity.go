package session

import (
	"context"
	"mangaapi/authority"
	"time"

	"github.com/fundwit/go-commons/types"
)

// Session is the authenticated principal of a request. A zero Token means anonymous.
type Session struct {
	context.Context `json:"-"`

	Token    string                `json:"token"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`

	SigningTime time.Time `json:"-"`
}

type Identity struct {
	ID        types.ID `json:"id"`
	Name      string   `json:"name"`
	Nickname  string   `json:"nickname"`
	Superuser bool     `json:"superuser"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != "" && s.Identity.ID != 0
}

func (s *Session) IsSuperuser() bool {
	return s.Authenticated() && s.Identity.Superuser
}

func (s *Session) Clone() Session {
	perms := make(authority.Permissions, len(s.Perms))
	copy(perms, s.Perms)
	return Session{Context: s.Context, Token: s.Token, Identity: s.Identity, Perms: perms, SigningTime: s.SigningTime}
}

// Ctx returns the request context carried by the session, falling back to background.
func (s *Session) Ctx() context.Context {
	if s == nil || s.Context == nil {
		return context.Background()
	}
	return s.Context
}
