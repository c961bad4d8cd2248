// Package permission computes a viewer's rights against a chain's ownership
// and organizer set. Decisions are recomputed per request and never cached:
// ownership and organizer membership change underneath long-lived viewers.
package permission

import (
	"context"
	"fmt"

	"github.com/gatherhub/gatherhub/internal/external"
	"github.com/gatherhub/gatherhub/internal/model"
)

// Decision holds the two independent permission flags. An individual owner
// gets CanEdit but never CanModerate; a community moderator gets CanModerate
// but not CanEdit unless also an organizer.
type Decision struct {
	CanEdit     bool
	CanModerate bool
}

// Resolve computes the decision for one viewer.
//
// CanEdit: viewer is the owning individual, the chain's creator, or an
// organizer. CanModerate: the chain is community/group-owned and the
// hierarchy reports the viewer as a (possibly transitive) moderator of that
// owner; individually-owned chains are never moderatable.
func Resolve(ctx context.Context, owner model.Owner, creatorID string, organizer bool, viewerID string, h external.Hierarchy) (Decision, error) {
	d := Decision{
		CanEdit: organizer || viewerID == creatorID ||
			(owner.Kind == model.OwnerUser && viewerID == owner.ID),
	}
	if owner.IsCollective() {
		mod, err := h.IsModerator(ctx, string(owner.Kind), owner.ID, viewerID)
		if err != nil {
			return Decision{}, fmt.Errorf("moderator lookup for %s %s: %w", owner.Kind, owner.ID, model.ErrDependencyUnavailable)
		}
		d.CanModerate = mod
	}
	return d, nil
}
