package auth

import "context"

// AuthorityUser is granted to every authenticated account.
const AuthorityUser = "ROLE_USER"

// Principal is the identity attached to one request after its access token
// verified.  It is built from token claims only.
type Principal struct {
	AccountID   string   `json:"account_id"`
	Authorities []string `json:"authorities"`
}

// HasAuthority reports whether p was granted the named authority.
func (p Principal) HasAuthority(name string) bool {
	for _, a := range p.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
