// Package service implements the event core operations: chain creation and
// rescheduling, ownership transfer, attendance and subscription tracking,
// organizer management and the viewer-scoped query facade.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gatherhub/gatherhub/internal/external"
	"github.com/gatherhub/gatherhub/internal/model"
	"github.com/gatherhub/gatherhub/internal/pagination"
	"github.com/gatherhub/gatherhub/internal/permission"
	"github.com/gatherhub/gatherhub/internal/validation"
)

// ChainStore persists chains and their append-only occurrence sequences.
// AppendOccurrence and TransferOwner must serialize per chain and fail with
// model.ErrConflict when the expected state went stale underneath the caller.
type ChainStore interface {
	CreateChain(ctx context.Context, chain *model.Chain, occ *model.Occurrence) error
	GetChain(ctx context.Context, id string) (*model.Chain, error)
	GetOccurrence(ctx context.Context, id string) (*model.Occurrence, error)
	AppendOccurrence(ctx context.Context, chainID, expectedCurrentID string, occ *model.Occurrence) error
	TransferOwner(ctx context.Context, chainID string, expectedOwner, newOwner model.Owner) error
	ListOccurrences(ctx context.Context, chainID string, beforeSeq, limit int) ([]model.Occurrence, error)
}

// TrackerStore persists the per-user record sets of a chain and derives the
// aggregate counts from them.
type TrackerStore interface {
	SetAttendance(ctx context.Context, chainID, userID string, state model.AttendanceState) error
	GetAttendance(ctx context.Context, chainID, userID string) (model.AttendanceState, error)
	SetSubscription(ctx context.Context, chainID, userID string, subscribed bool) error
	IsSubscribed(ctx context.Context, chainID, userID string) (bool, error)
	AddOrganizer(ctx context.Context, chainID, userID string) error
	RemoveOrganizer(ctx context.Context, chainID, userID string) error
	IsOrganizer(ctx context.Context, chainID, userID string) (bool, error)
	Counts(ctx context.Context, chainID string) (model.Counts, error)
	ListAttendees(ctx context.Context, chainID, afterUser string, limit int) ([]model.AttendanceRecord, error)
	ListSubscribers(ctx context.Context, chainID, afterUser string, limit int) ([]string, error)
	ListOrganizers(ctx context.Context, chainID, afterUser string, limit int) ([]string, error)
	Subscribers(ctx context.Context, chainID string) ([]string, error)
}

// EventService orchestrates the event core operations.
type EventService struct {
	chains    ChainStore
	tracker   TrackerStore
	hierarchy external.Hierarchy
	photos    external.Photos
	threads   external.Threads
	notifier  external.Notifier
	validator *validation.Engine

	now func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	chains ChainStore,
	tracker TrackerStore,
	hierarchy external.Hierarchy,
	photos external.Photos,
	threads external.Threads,
	notifier external.Notifier,
	validator *validation.Engine,
) *EventService {
	return &EventService{
		chains:    chains,
		tracker:   tracker,
		hierarchy: hierarchy,
		photos:    photos,
		threads:   threads,
		notifier:  notifier,
		validator: validator,
		now:       time.Now,
	}
}

// CreateEvent creates a chain with its first occurrence. The creator is
// registered as organizer, going attendee and subscriber atomically with the
// chain; the discussion thread is created first and compensated away if the
// chain insert fails.
func (s *EventService) CreateEvent(ctx context.Context, actorID string, req model.CreateEventRequest) (*model.Projection, error) {
	owner, err := s.resolveParent(ctx, actorID, req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	err = s.validator.Validate(ctx, validation.Proposal{
		Title:      req.Title,
		Content:    req.Content,
		PhotoKey:   req.PhotoKey,
		Location:   req.Location,
		Address:    req.Address,
		OnlineOnly: req.OnlineOnly,
		Link:       req.Link,
		HasParent:  owner.IsCollective(),
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		NewChain:   true,
	}, now)
	if err != nil {
		return nil, err
	}

	chain := &model.Chain{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatorID: actorID,
		Created:   now,
	}
	threadID, err := s.threads.Create(ctx, chain.ID)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	chain.ThreadID = threadID

	occ := &model.Occurrence{
		ID:         uuid.New().String(),
		ChainID:    chain.ID,
		Seq:        1,
		Title:      req.Title,
		Content:    req.Content,
		PhotoKey:   req.PhotoKey,
		Location:   req.Location,
		Address:    req.Address,
		OnlineOnly: req.OnlineOnly,
		Link:       req.Link,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Timezone:   req.Timezone,
		Created:    now,
		LastEdited: now,
		CreatorID:  actorID,
	}
	if err := s.chains.CreateChain(ctx, chain, occ); err != nil {
		// The chain must not exist without its thread or vice versa.
		_ = s.threads.Delete(ctx, threadID)
		return nil, fmt.Errorf("create chain: %w", err)
	}
	chain.CurrentID = occ.ID

	return s.project(ctx, occ, chain, actorID)
}

// ScheduleEvent appends a new occurrence to a chain. The title and owner
// carry over; attendance and subscription records are chain-scoped and
// persist unchanged. Subscribers are notified after the append commits.
func (s *EventService) ScheduleEvent(ctx context.Context, actorID, chainID string, req model.ScheduleEventRequest) (*model.Projection, error) {
	chain, err := s.chains.GetChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEdit(ctx, chain, actorID); err != nil {
		return nil, err
	}
	current, err := s.chains.GetOccurrence(ctx, chain.CurrentID)
	if err != nil {
		return nil, fmt.Errorf("load current occurrence: %w", err)
	}

	now := s.now().UTC()
	err = s.validator.Validate(ctx, validation.Proposal{
		Title:      current.Title,
		Content:    req.Content,
		PhotoKey:   req.PhotoKey,
		Location:   req.Location,
		Address:    req.Address,
		OnlineOnly: req.OnlineOnly,
		Link:       req.Link,
		HasParent:  chain.Owner.IsCollective(),
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	}, now)
	if err != nil {
		return nil, err
	}

	occ := &model.Occurrence{
		ID:         uuid.New().String(),
		ChainID:    chain.ID,
		Title:      current.Title,
		Content:    req.Content,
		PhotoKey:   req.PhotoKey,
		Location:   req.Location,
		Address:    req.Address,
		OnlineOnly: req.OnlineOnly,
		Link:       req.Link,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Timezone:   req.Timezone,
		Created:    now,
		LastEdited: now,
		CreatorID:  actorID,
	}
	if err := s.chains.AppendOccurrence(ctx, chain.ID, chain.CurrentID, occ); err != nil {
		return nil, err
	}
	chain.CurrentID = occ.ID

	if subscribers, err := s.tracker.Subscribers(ctx, chain.ID); err == nil {
		s.notifier.EventRescheduled(chain.ID, occ.ID, subscribers)
	}

	return s.project(ctx, occ, chain, actorID)
}

// TransferEvent changes a chain's owner. The actor needs edit or moderate
// rights under the pre-transfer ownership.
func (s *EventService) TransferEvent(ctx context.Context, actorID, chainID string, req model.TransferEventRequest) (*model.Projection, error) {
	newOwner, err := s.resolveTransferTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	chain, err := s.chains.GetChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEdit(ctx, chain, actorID); err != nil {
		return nil, err
	}
	if err := s.chains.TransferOwner(ctx, chainID, chain.Owner, newOwner); err != nil {
		return nil, err
	}
	chain.Owner = newOwner

	current, err := s.chains.GetOccurrence(ctx, chain.CurrentID)
	if err != nil {
		return nil, fmt.Errorf("load current occurrence: %w", err)
	}
	return s.project(ctx, current, chain, actorID)
}

// GetOccurrence builds the viewer-scoped projection of one occurrence.
// Superseded occurrences stay retrievable; only is_next distinguishes them.
func (s *EventService) GetOccurrence(ctx context.Context, viewerID, occurrenceID string) (*model.Projection, error) {
	occ, err := s.chains.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	chain, err := s.chains.GetChain(ctx, occ.ChainID)
	if err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}
	return s.project(ctx, occ, chain, viewerID)
}

// ListOccurrences pages a chain's occurrences most-recent-created first,
// returning viewer-scoped projections and an opaque cursor for the next page.
func (s *EventService) ListOccurrences(ctx context.Context, viewerID, chainID, pageToken string, pageSize int) ([]*model.Projection, string, error) {
	chain, err := s.chains.GetChain(ctx, chainID)
	if err != nil {
		return nil, "", err
	}
	beforeSeq, err := decodeSeqToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.Clamp(pageSize)

	occs, err := s.chains.ListOccurrences(ctx, chainID, beforeSeq, limit)
	if err != nil {
		return nil, "", err
	}

	projections := make([]*model.Projection, 0, len(occs))
	for i := range occs {
		p, err := s.project(ctx, &occs[i], chain, viewerID)
		if err != nil {
			return nil, "", err
		}
		projections = append(projections, p)
	}

	next := ""
	if len(occs) == limit && occs[len(occs)-1].Seq > 1 {
		next = pagination.EncodeToken(strconv.Itoa(occs[len(occs)-1].Seq))
	}
	return projections, next, nil
}

// SetAttendance upserts the actor's RSVP state on a chain and returns the
// refreshed projection of the current occurrence.
func (s *EventService) SetAttendance(ctx context.Context, actorID, chainID string, state model.AttendanceState) (*model.Projection, error) {
	chain, err := s.chains.GetChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.SetAttendance(ctx, chainID, actorID, state); err != nil {
		return nil, err
	}
	return s.projectCurrent(ctx, chain, actorID)
}

// SetSubscription upserts the actor's subscription on a chain.
func (s *EventService) SetSubscription(ctx context.Context, actorID, chainID string, subscribed bool) (*model.Projection, error) {
	chain, err := s.chains.GetChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if err := s.tracker.SetSubscription(ctx, chainID, actorID, subscribed); err != nil {
		return nil, err
	}
	return s.projectCurrent(ctx, chain, actorID)
}

// InviteOrganizer grants organizer rights to a user. Requires edit rights.
func (s *EventService) InviteOrganizer(ctx context.Context, actorID, chainID, userID string) error {
	chain, err := s.chains.GetChain(ctx, chainID)
	if err != nil {
		return err
	}
	if err := s.requireEdit(ctx, chain, actorID); err != nil {
		return err
	}
	ok, err := s.hierarchy.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("validate organizer: %w", model.ErrDependencyUnavailable)
	}
	if !ok {
		return model.ErrNotFound
	}
	if err := s.tracker.AddOrganizer(ctx, chainID, userID); err != nil {
		return err
	}
	s.notifier.OrganizerInvited(chainID, userID)
	return nil
}

// RemoveOrganizer revokes a user's organizer rights. Requires edit rights.
func (s *EventService) RemoveOrganizer(ctx context.Context, actorID, chainID, userID string) error {
	chain, err := s.chains.GetChain(ctx, chainID)
	if err != nil {
		return err
	}
	if err := s.requireEdit(ctx, chain, actorID); err != nil {
		return err
	}
	return s.tracker.RemoveOrganizer(ctx, chainID, userID)
}

// ListAttendees pages the attendees (going or maybe) of a chain.
func (s *EventService) ListAttendees(ctx context.Context, chainID, pageToken string, pageSize int) ([]model.AttendanceRecord, string, error) {
	if _, err := s.chains.GetChain(ctx, chainID); err != nil {
		return nil, "", err
	}
	afterUser, err := pagination.DecodeToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.Clamp(pageSize)
	records, err := s.tracker.ListAttendees(ctx, chainID, afterUser, limit)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(records) == limit {
		next = pagination.EncodeToken(records[len(records)-1].UserID)
	}
	return records, next, nil
}

// ListSubscribers pages the subscriber user ids of a chain.
func (s *EventService) ListSubscribers(ctx context.Context, chainID, pageToken string, pageSize int) ([]string, string, error) {
	if _, err := s.chains.GetChain(ctx, chainID); err != nil {
		return nil, "", err
	}
	return s.pageUserIDs(ctx, s.tracker.ListSubscribers, chainID, pageToken, pageSize)
}

// ListOrganizers pages the organizer user ids of a chain.
func (s *EventService) ListOrganizers(ctx context.Context, chainID, pageToken string, pageSize int) ([]string, string, error) {
	if _, err := s.chains.GetChain(ctx, chainID); err != nil {
		return nil, "", err
	}
	return s.pageUserIDs(ctx, s.tracker.ListOrganizers, chainID, pageToken, pageSize)
}

func (s *EventService) pageUserIDs(
	ctx context.Context,
	list func(context.Context, string, string, int) ([]string, error),
	chainID, pageToken string,
	pageSize int,
) ([]string, string, error) {
	afterUser, err := pagination.DecodeToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.Clamp(pageSize)
	ids, err := list(ctx, chainID, afterUser, limit)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(ids) == limit {
		next = pagination.EncodeToken(ids[len(ids)-1])
	}
	return ids, next, nil
}

// requireEdit rejects actors without edit or moderate rights on a chain.
func (s *EventService) requireEdit(ctx context.Context, chain *model.Chain, actorID string) error {
	organizer, err := s.tracker.IsOrganizer(ctx, chain.ID, actorID)
	if err != nil {
		return err
	}
	d, err := permission.Resolve(ctx, chain.Owner, chain.CreatorID, organizer, actorID, s.hierarchy)
	if err != nil {
		return err
	}
	if !d.CanEdit && !d.CanModerate {
		return model.ErrPermissionDenied
	}
	return nil
}

// resolveParent maps the create request's parent fields onto the owner
// variant: a community or group when supplied, the creator otherwise.
func (s *EventService) resolveParent(ctx context.Context, actorID string, req model.CreateEventRequest) (model.Owner, error) {
	switch {
	case req.ParentCommunityID != "" && req.ParentGroupID != "":
		return model.Owner{}, &validation.Error{
			Reason:  "ambiguous_parent",
			Message: "at most one of parent community and parent group may be set",
		}
	case req.ParentCommunityID != "":
		ok, err := s.hierarchy.CommunityExists(ctx, req.ParentCommunityID)
		if err != nil {
			return model.Owner{}, fmt.Errorf("community lookup: %w", model.ErrDependencyUnavailable)
		}
		if !ok {
			return model.Owner{}, model.ErrNotFound
		}
		return model.OwnedByCommunity(req.ParentCommunityID), nil
	case req.ParentGroupID != "":
		ok, err := s.hierarchy.GroupExists(ctx, req.ParentGroupID)
		if err != nil {
			return model.Owner{}, fmt.Errorf("group lookup: %w", model.ErrDependencyUnavailable)
		}
		if !ok {
			return model.Owner{}, model.ErrNotFound
		}
		return model.OwnedByGroup(req.ParentGroupID), nil
	default:
		return model.OwnedByUser(actorID), nil
	}
}

func (s *EventService) resolveTransferTarget(ctx context.Context, req model.TransferEventRequest) (model.Owner, error) {
	set := 0
	for _, id := range []string{req.NewOwnerUserID, req.NewOwnerCommunityID, req.NewOwnerGroupID} {
		if id != "" {
			set++
		}
	}
	if set != 1 {
		return model.Owner{}, &validation.Error{
			Reason:  "ambiguous_transfer_target",
			Message: "exactly one new owner must be named",
		}
	}
	switch {
	case req.NewOwnerUserID != "":
		ok, err := s.hierarchy.UserExists(ctx, req.NewOwnerUserID)
		if err != nil {
			return model.Owner{}, fmt.Errorf("user lookup: %w", model.ErrDependencyUnavailable)
		}
		if !ok {
			return model.Owner{}, model.ErrNotFound
		}
		return model.OwnedByUser(req.NewOwnerUserID), nil
	case req.NewOwnerCommunityID != "":
		ok, err := s.hierarchy.CommunityExists(ctx, req.NewOwnerCommunityID)
		if err != nil {
			return model.Owner{}, fmt.Errorf("community lookup: %w", model.ErrDependencyUnavailable)
		}
		if !ok {
			return model.Owner{}, model.ErrNotFound
		}
		return model.OwnedByCommunity(req.NewOwnerCommunityID), nil
	default:
		ok, err := s.hierarchy.GroupExists(ctx, req.NewOwnerGroupID)
		if err != nil {
			return model.Owner{}, fmt.Errorf("group lookup: %w", model.ErrDependencyUnavailable)
		}
		if !ok {
			return model.Owner{}, model.ErrNotFound
		}
		return model.OwnedByGroup(req.NewOwnerGroupID), nil
	}
}

func decodeSeqToken(token string) (int, error) {
	raw, err := pagination.DecodeToken(token)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	seq, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed page token: %w", err)
	}
	return seq, nil
}
