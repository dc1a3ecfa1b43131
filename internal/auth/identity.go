package auth

import (
	"context"

	"github.com/mtlprog/indexfund/internal/email"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	Username  string
	Superuser bool
}

// CanActAs reports whether the caller may read or write data owned by addr.
// Superusers may act as anyone; everyone else only as their own normalized email.
func (id Identity) CanActAs(addr string) bool {
	if id.Superuser {
		return true
	}
	own := email.Normalize(id.Username)
	return own != "" && own == email.Normalize(addr)
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
