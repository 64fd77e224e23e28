package session

import "context"

// Store persists the anonymous session token locally. Implementations must
// not require the network; a store that cannot persist reports errors and the
// caller degrades to an in-memory token.
type Store interface {
	Load(ctx context.Context) (Token, error)
	Save(ctx context.Context, token Token) error
	Clear(ctx context.Context) error
}
