package external

import "context"

// TokenIdentity treats the bearer token itself as the user id and reports no
// demographic label. For local development; deployments plug in the
// platform's identity service.
type TokenIdentity struct{}

func (TokenIdentity) ResolveToken(ctx context.Context, token string) (string, string, error) {
	return token, "", nil
}
