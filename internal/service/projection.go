package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherhub/gatherhub/internal/model"
	"github.com/gatherhub/gatherhub/internal/permission"
)

// displayLayout renders times for humans in the occurrence's own timezone.
const displayLayout = "Monday, 2 January 2006 at 15:04 MST"

// project assembles the viewer-scoped projection of one occurrence: the
// stored fields, the time classification, the viewer's own records, the
// derived counts and the permission flags. is_next is chain state while
// is_past/is_future are recomputed against the clock, so a superseded past
// occurrence can be both not-next and past.
func (s *EventService) project(ctx context.Context, occ *model.Occurrence, chain *model.Chain, viewerID string) (*model.Projection, error) {
	now := s.now()

	counts, err := s.tracker.Counts(ctx, chain.ID)
	if err != nil {
		return nil, err
	}
	state, err := s.tracker.GetAttendance(ctx, chain.ID, viewerID)
	if err != nil {
		return nil, err
	}
	organizer, err := s.tracker.IsOrganizer(ctx, chain.ID, viewerID)
	if err != nil {
		return nil, err
	}
	subscriber, err := s.tracker.IsSubscribed(ctx, chain.ID, viewerID)
	if err != nil {
		return nil, err
	}
	decision, err := permission.Resolve(ctx, chain.Owner, chain.CreatorID, organizer, viewerID, s.hierarchy)
	if err != nil {
		return nil, err
	}

	photoURL := ""
	if occ.PhotoKey != "" {
		url, err := s.photos.Resolve(ctx, occ.PhotoKey)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("resolve photo: %w", err)
		}
		photoURL = url
	}

	p := &model.Projection{
		OccurrenceID: occ.ID,
		ChainID:      chain.ID,
		Title:        occ.Title,
		Slug:         model.Slugify(occ.Title),
		Content:      occ.Content,
		PhotoURL:     photoURL,
		Location:     occ.Location,
		Address:      occ.Address,
		OnlineOnly:   occ.OnlineOnly,
		Link:         occ.Link,

		StartTime:        occ.StartTime,
		EndTime:          occ.EndTime,
		Timezone:         occ.Timezone,
		StartTimeDisplay: displayTime(occ.StartTime, occ.Timezone),
		EndTimeDisplay:   displayTime(occ.EndTime, occ.Timezone),
		Created:          occ.Created,
		LastEdited:       occ.LastEdited,

		CreatorID: occ.CreatorID,
		IsNext:    chain.CurrentID == occ.ID,
		IsPast:    !occ.EndTime.After(now),
		IsFuture:  occ.StartTime.After(now),

		AttendanceState: state.String(),
		Organizer:       organizer,
		Subscriber:      subscriber,
		Counts:          counts,

		ThreadID:    chain.ThreadID,
		CanEdit:     decision.CanEdit,
		CanModerate: decision.CanModerate,
	}
	switch chain.Owner.Kind {
	case model.OwnerUser:
		p.OwnerUserID = chain.Owner.ID
	case model.OwnerCommunity:
		p.OwnerCommunityID = chain.Owner.ID
	case model.OwnerGroup:
		p.OwnerGroupID = chain.Owner.ID
	}
	return p, nil
}

// projectCurrent projects the chain's current occurrence.
func (s *EventService) projectCurrent(ctx context.Context, chain *model.Chain, viewerID string) (*model.Projection, error) {
	occ, err := s.chains.GetOccurrence(ctx, chain.CurrentID)
	if err != nil {
		return nil, fmt.Errorf("load current occurrence: %w", err)
	}
	return s.project(ctx, occ, chain, viewerID)
}

// displayTime renders a timestamp in the occurrence's stored timezone,
// falling back to UTC for unknown zone names.
func displayTime(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}
