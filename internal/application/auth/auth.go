package auth

import "context"

// Role classifies the current identity for gateway attribution. Anonymous
// shoppers carry a session token; customers and admins are attributed by the
// gateway from their own credentials and must not send one.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleCustomer  Role = "customer"
	RoleAdmin     Role = "admin"
)

// Identity is the resolved caller identity for one request.
type Identity struct {
	Role    Role
	Subject string
}

// Authenticated reports whether gateway calls should omit the guest session
// token and let the ledger attribute the cart to the signed-in principal.
func (i Identity) Authenticated() bool {
	return i.Role == RoleCustomer || i.Role == RoleAdmin
}

// Resolver determines the identity in effect for a request context.
type Resolver interface {
	Resolve(ctx context.Context) Identity
}

// StaticResolver always answers with a fixed identity. The anonymous
// deployment shape uses it; a credential-backed resolver can replace it
// without touching callers.
type StaticResolver struct {
	Identity Identity
}

func NewAnonymousResolver() *StaticResolver {
	return &StaticResolver{Identity: Identity{Role: RoleAnonymous}}
}

func (r *StaticResolver) Resolve(context.Context) Identity { return r.Identity }
