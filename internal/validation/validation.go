// Package validation checks proposed occurrences for consistency before any
// mutation. Rules are evaluated in a fixed priority order so the reported
// violation is deterministic.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherhub/gatherhub/internal/external"
	"github.com/gatherhub/gatherhub/internal/model"
)

// Error is a single violated rule. Reason is a stable code surfaced verbatim
// to callers.
type Error struct {
	Reason  string
	Message string
}

func (e *Error) Error() string { return e.Message }

// The full rule vocabulary, in evaluation priority order.
var (
	ErrMissingTitle        = &Error{"missing_event_title", "event title is required"}
	ErrMissingContent      = &Error{"missing_event_content", "event content is required"}
	ErrPhotoNotFound       = &Error{"photo_not_found", "photo reference does not resolve"}
	ErrOnlineMissingLink   = &Error{"online_event_missing_link", "online event requires a link"}
	ErrOnlineMissingParent = &Error{"online_event_missing_parent", "online event requires a parent community or group"}
	ErrOfflineHasLink      = &Error{"offline_event_has_link", "in-person event must not have a link"}
	ErrMissingAddressOrLoc = &Error{"missing_event_address_or_location", "in-person event requires an address or location"}
	ErrEndsBeforeStarts    = &Error{"event_ends_before_starts", "event must end after it starts"}
	ErrInPast              = &Error{"event_in_past", "event cannot start in the past"}
	ErrTooFarInFuture      = &Error{"event_too_far_in_future", "event starts beyond the scheduling horizon"}
	ErrTooLong             = &Error{"event_too_long", "event exceeds the maximum duration"}
)

// Limits bound how far out and how long an occurrence may be scheduled.
type Limits struct {
	Horizon     time.Duration // max distance of start time from now
	MaxDuration time.Duration // max end - start
}

// DefaultLimits allow scheduling up to a year out, for at most two weeks.
var DefaultLimits = Limits{
	Horizon:     365 * 24 * time.Hour,
	MaxDuration: 14 * 24 * time.Hour,
}

// Proposal is the field set of a new or rescheduled occurrence under
// validation.
type Proposal struct {
	Title      string
	Content    string
	PhotoKey   string
	Location   *model.Coordinate
	Address    string
	OnlineOnly bool
	Link       string
	HasParent  bool // chain is (or will be) owned by a community or group
	StartTime  time.Time
	EndTime    time.Time

	// NewChain marks initial creation, where the start time must be
	// future-facing. Rescheduling may move a start earlier to correct
	// mistakes.
	NewChain bool
}

// Engine evaluates proposals. The photo resolver is the only collaborator it
// touches; every other rule is a pure function of the proposal and clock.
type Engine struct {
	limits Limits
	photos external.Photos
}

// NewEngine constructs an Engine. Zero limits fall back to DefaultLimits.
func NewEngine(limits Limits, photos external.Photos) *Engine {
	if limits.Horizon == 0 {
		limits.Horizon = DefaultLimits.Horizon
	}
	if limits.MaxDuration == 0 {
		limits.MaxDuration = DefaultLimits.MaxDuration
	}
	return &Engine{limits: limits, photos: photos}
}

// Validate returns nil for a consistent proposal or the first violated rule.
func (e *Engine) Validate(ctx context.Context, p Proposal, now time.Time) error {
	if p.Title == "" {
		return ErrMissingTitle
	}
	if p.Content == "" {
		return ErrMissingContent
	}
	if p.PhotoKey != "" {
		if _, err := e.photos.Resolve(ctx, p.PhotoKey); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return ErrPhotoNotFound
			}
			return fmt.Errorf("resolve photo %q: %w", p.PhotoKey, model.ErrDependencyUnavailable)
		}
	}
	if p.OnlineOnly {
		if p.Link == "" {
			return ErrOnlineMissingLink
		}
		if !p.HasParent {
			return ErrOnlineMissingParent
		}
	} else {
		if p.Link != "" {
			return ErrOfflineHasLink
		}
		if p.Location == nil && p.Address == "" {
			return ErrMissingAddressOrLoc
		}
	}
	if !p.EndTime.After(p.StartTime) {
		return ErrEndsBeforeStarts
	}
	if p.NewChain && p.StartTime.Before(now) {
		return ErrInPast
	}
	if p.StartTime.After(now.Add(e.limits.Horizon)) {
		return ErrTooFarInFuture
	}
	if p.EndTime.Sub(p.StartTime) > e.limits.MaxDuration {
		return ErrTooLong
	}
	return nil
}
