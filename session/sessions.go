package session

import (
	"mangaapi/bizerror"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

const TokenExpiration = 24 * time.Hour

var TokenCache = cache.New(TokenExpiration, 1*time.Minute)

type LoginRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

const KeySecCtx = "SecCtx"
const KeySecToken = "sec_token"

func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok || s0.Token == "" {
		return &Session{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context() // trace context
	return &s
}

// SimpleAuthFilter rejects requests without a live session.
func SimpleAuthFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		s := lookupSession(ctx)
		if s == nil {
			panic(bizerror.ErrUnauthenticated)
		}
		InjectSessionIntoGinContext(ctx, s)
		ctx.Next()
	}
}

// OptionalAuthFilter attaches the session if one is presented and lets anonymous requests through.
func OptionalAuthFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if s := lookupSession(ctx); s != nil {
			InjectSessionIntoGinContext(ctx, s)
		}
		ctx.Next()
	}
}

func InjectSessionIntoGinContext(ctx *gin.Context, secCtx *Session) {
	if secCtx != nil && secCtx.Token != "" {
		ctx.Set(KeySecCtx, secCtx)
	}
}

func lookupSession(ctx *gin.Context) *Session {
	token := ExtractToken(ctx)
	if token == "" {
		return nil
	}
	value, found := TokenCache.Get(token)
	if !found {
		return nil
	}
	s, ok := value.(*Session)
	if !ok {
		return nil
	}
	return s
}

// ExtractToken reads the token from the session cookie or a bearer authorization header.
func ExtractToken(ctx *gin.Context) string {
	if token, err := ctx.Cookie(KeySecToken); err == nil && token != "" {
		return token
	}
	header := ctx.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
