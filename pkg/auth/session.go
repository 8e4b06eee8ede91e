// Package auth provides the signed-in identity the notes service consults, and the
// pieces the HTTP API uses to establish it: bcrypt-checked accounts and JWT session
// tokens.
//
// The notes service only sees a [SessionSource]. The HTTP middleware verifies the
// bearer token, puts the [Session] on the request context with [WithSession], and
// hands the service a [ContextSource].
package auth

import (
	"context"
)

// Session is the identity of the signed-in user.
type Session struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// SessionSource reports the current session, if any.
type SessionSource interface {
	Current(ctx context.Context) (*Session, bool)
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// ContextSource reads the session from the context passed to each call.
type ContextSource struct{}

func (ContextSource) Current(ctx context.Context) (*Session, bool) {
	return FromContext(ctx)
}

// StaticSource always reports the same session. A nil Session means signed out.
type StaticSource struct {
	Session *Session
}

func (s StaticSource) Current(context.Context) (*Session, bool) {
	return s.Session, s.Session != nil
}

// Anonymous is a source with no session.
var Anonymous SessionSource = StaticSource{}
