package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/model"
)

// Session is the authenticated caller of one request.
type Session struct {
	UserID string
	Role   model.Role
	Token  string
	// Source names the extractor that produced the token.
	Source string
}

const sessionKey = "session"

// FromContext returns the session attached by the middleware.
func FromContext(c echo.Context) (*Session, bool) {
	s, ok := c.Get(sessionKey).(*Session)
	return s, ok && s != nil
}

// Require returns the session or an auth error.
func Require(c echo.Context) (*Session, error) {
	s, ok := FromContext(c)
	if !ok {
		return nil, apperr.Auth("Unauthorized")
	}
	return s, nil
}

func attach(c echo.Context, s *Session) {
	c.Set(sessionKey, s)
	c.Set("user_id", s.UserID)
	c.Set("role", string(s.Role))
}

// Extractor yields a raw token from a request, if present.
type Extractor struct {
	Name    string
	Extract func(c echo.Context) (string, bool)
}

// Cookie reads the session cookie set by the backend.
func Cookie(name string) Extractor {
	return Extractor{Name: "cookie", Extract: func(c echo.Context) (string, bool) {
		ck, err := c.Cookie(name)
		if err != nil || ck.Value == "" {
			return "", false
		}
		return ck.Value, true
	}}
}

// Bearer reads an Authorization: Bearer header.
func Bearer() Extractor {
	return Extractor{Name: "bearer", Extract: func(c echo.Context) (string, bool) {
		const prefix = "Bearer "
		h := c.Request().Header.Get(echo.HeaderAuthorization)
		if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
			return "", false
		}
		return strings.TrimSpace(h[len(prefix):]), true
	}}
}

// BodyAccessToken offers a token already decoded from the request body.
func BodyAccessToken(token string) Extractor {
	return Extractor{Name: "body", Extract: func(echo.Context) (string, bool) {
		return token, token != ""
	}}
}

// TokenVerifier returns the subject of a valid token.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// Authenticator resolves sessions from an ordered extractor list.
type Authenticator struct {
	verifier   TokenVerifier
	profiles   ProfileReader
	extractors []Extractor
	log        *zap.Logger
}

func NewAuthenticator(verifier TokenVerifier, profiles ProfileReader, cookieName string, log *zap.Logger) *Authenticator {
	return &Authenticator{
		verifier:   verifier,
		profiles:   profiles,
		extractors: []Extractor{Cookie(cookieName), Bearer()},
		log:        log,
	}
}

// Resolve tries the cookie, then the bearer header, then any extra
// extractors. The first token that verifies wins.
func (a *Authenticator) Resolve(c echo.Context, extra ...Extractor) (*Session, error) {
	chain := append(append([]Extractor{}, a.extractors...), extra...)

	for _, ex := range chain {
		token, ok := ex.Extract(c)
		if !ok {
			continue
		}
		sub, err := a.verifier.Subject(token)
		if err != nil {
			a.log.Debug("credential rejected", zap.String("source", ex.Name), zap.Error(err))
			continue
		}
		profile, err := a.profiles.GetProfile(c.Request().Context(), sub)
		if err != nil {
			if apperr.IsNotFound(err) {
				return nil, apperr.Auth("Unauthorized")
			}
			return nil, err
		}
		return &Session{UserID: sub, Role: profile.Role, Token: token, Source: ex.Name}, nil
	}
	return nil, apperr.Auth("Unauthorized")
}

// Middleware rejects requests without a valid session.
func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := a.Resolve(c)
		if err != nil {
			return apperr.Respond(c, err)
		}
		attach(c, s)
		return next(c)
	}
}

// Optional attaches a session when one resolves and continues either way.
func (a *Authenticator) Optional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s, err := a.Resolve(c); err == nil {
			attach(c, s)
		}
		return next(c)
	}
}
