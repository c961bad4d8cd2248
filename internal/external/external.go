// Package external declares the narrow interfaces through which the event
// core consumes its collaborators. Implementations live elsewhere: the
// bundled Postgres-backed ones in repository, fakes in tests.
package external

import "context"

// Identity resolves an actor token to a stable user id. The demographic
// label is used for metrics only, never for authorization.
type Identity interface {
	ResolveToken(ctx context.Context, token string) (userID string, demographic string, err error)
}

// Hierarchy answers ownership and moderation questions about communities and
// groups. IsModerator must report transitive moderation when the underlying
// hierarchy grants it.
type Hierarchy interface {
	IsModerator(ctx context.Context, kind string, ownerID, userID string) (bool, error)
	CommunityExists(ctx context.Context, communityID string) (bool, error)
	GroupExists(ctx context.Context, groupID string) (bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Photos confirms a photo reference exists and yields its displayable URL.
// Resolve returns model.ErrNotFound for unknown keys.
type Photos interface {
	Resolve(ctx context.Context, key string) (url string, err error)
}

// Threads creates the discussion thread bound to a chain. Delete is the
// compensation path when chain creation fails after the thread exists.
type Threads interface {
	Create(ctx context.Context, chainID string) (threadID string, err error)
	Delete(ctx context.Context, threadID string) error
}

// Notifier is invoked on subscription-relevant changes. Fire-and-forget:
// delivery guarantees are the dispatcher's responsibility and failures never
// abort the triggering operation.
type Notifier interface {
	EventRescheduled(chainID, occurrenceID string, subscribers []string)
	OrganizerInvited(chainID, userID string)
}
