// Package auth implements HTTP Basic authentication against the
// principal store. Hash generation lives outside the DAV core; this
// package only verifies a submitted password against the opaque bcrypt
// hash the store already holds.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/sonroyaalmerol/go-davcore/internal/authz"
	"github.com/sonroyaalmerol/go-davcore/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// Principal identifies the authenticated caller of a request, already
// expanded into the subject set the authorization engine consumes
//.
type Principal struct {
	ID       string
	Display  string
	Subjects []string
}

// Authenticator verifies an Authorization header and returns the
// authenticated Principal, or an error if verification failed.
type Authenticator struct {
	store storage.Store
}

func New(store storage.Store) *Authenticator {
	return &Authenticator{store: store}
}

// Basic verifies an "Authorization: Basic ..." header against the
// principal store, returning the expanded Principal on success.
func (a *Authenticator) Basic(ctx context.Context, header string) (*Principal, error) {
	if header == "" {
		return nil, errors.New("no authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return nil, errors.New("not a basic auth header")
	}
	dec, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}
	creds := strings.SplitN(string(dec), ":", 2)
	if len(creds) != 2 {
		return nil, errors.New("malformed basic credentials")
	}
	username, password := creds[0], creds[1]

	p, err := a.store.GetPrincipal(ctx, username)
	if err != nil {
		return nil, err
	}
	if p == nil || p.IsGroup || p.PasswordHash == "" {
		return nil, errors.New("unknown principal")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	groups, err := a.store.GroupIDsForPrincipal(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &Principal{ID: p.ID, Display: p.DisplayName, Subjects: authz.ExpandSubjects(p.ID, groups)}, nil
}

// Anonymous returns the unauthenticated Principal's subject set, used
// when no credentials were presented and the resource permits
// unauthenticated/read-freebusy access.
func Anonymous() *Principal {
	return &Principal{Subjects: authz.ExpandSubjects("", nil)}
}

type contextKey int

const principalKey contextKey = iota

// WithPrincipal attaches p to ctx for downstream handlers.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext retrieves the Principal attached by WithPrincipal.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
