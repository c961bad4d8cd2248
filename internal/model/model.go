// Package model defines the core domain types for the community event system.
package model

import (
	"strings"
	"time"
)

// OwnerKind discriminates the owner variant of a chain.
type OwnerKind string

const (
	OwnerUser      OwnerKind = "user"
	OwnerCommunity OwnerKind = "community"
	OwnerGroup     OwnerKind = "group"
)

// Owner is a tagged variant: exactly one kind tag plus the corresponding id.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// OwnedByUser builds an individual owner.
func OwnedByUser(userID string) Owner { return Owner{Kind: OwnerUser, ID: userID} }

// OwnedByCommunity builds a community owner.
func OwnedByCommunity(communityID string) Owner {
	return Owner{Kind: OwnerCommunity, ID: communityID}
}

// OwnedByGroup builds a group owner.
func OwnedByGroup(groupID string) Owner { return Owner{Kind: OwnerGroup, ID: groupID} }

// IsCollective reports whether the owner is a community or group.
func (o Owner) IsCollective() bool {
	return o.Kind == OwnerCommunity || o.Kind == OwnerGroup
}

// AttendanceState is a user's RSVP state on a chain.
type AttendanceState int

const (
	AttendanceNotGoing AttendanceState = iota
	AttendanceMaybe
	AttendanceGoing
)

func (s AttendanceState) String() string {
	switch s {
	case AttendanceMaybe:
		return "maybe"
	case AttendanceGoing:
		return "going"
	default:
		return "not_going"
	}
}

// ParseAttendanceState maps a wire value to a state.
func ParseAttendanceState(v string) (AttendanceState, bool) {
	switch v {
	case "not_going":
		return AttendanceNotGoing, true
	case "maybe":
		return AttendanceMaybe, true
	case "going":
		return AttendanceGoing, true
	}
	return AttendanceNotGoing, false
}

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Occurrence is one time-bound instance within a chain. Occurrences are
// append-only: rescheduling creates a new one, the old one stays queryable.
type Occurrence struct {
	ID         string
	ChainID    string
	Seq        int // creation sequence within the chain, 1-based
	Title      string
	Content    string
	PhotoKey   string
	Location   *Coordinate
	Address    string
	OnlineOnly bool
	Link       string
	StartTime  time.Time
	EndTime    time.Time
	Timezone   string
	Created    time.Time
	LastEdited time.Time
	CreatorID  string
	PrevID     string // empty for the first occurrence of a chain
}

// Chain is the persistent identity of an event across reschedules. The
// current occurrence pointer is explicit state, changed only by rescheduling.
type Chain struct {
	ID        string
	Owner     Owner
	CreatorID string
	ThreadID  string
	CurrentID string
	Created   time.Time
}

// AttendanceRecord pairs a user with their RSVP state on a chain.
type AttendanceRecord struct {
	UserID string          `json:"user_id"`
	State  AttendanceState `json:"-"`
}

// Counts are the aggregates derived from the record sets of one chain.
type Counts struct {
	Going       int `json:"going_count"`
	Maybe       int `json:"maybe_count"`
	Organizers  int `json:"organizer_count"`
	Subscribers int `json:"subscriber_count"`
}

// Projection is the viewer-scoped read model of one occurrence.
type Projection struct {
	OccurrenceID string      `json:"occurrence_id"`
	ChainID      string      `json:"chain_id"`
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	Content      string      `json:"content"`
	PhotoURL     string      `json:"photo_url,omitempty"`
	Location     *Coordinate `json:"location,omitempty"`
	Address      string      `json:"address,omitempty"`
	OnlineOnly   bool        `json:"is_online_only"`
	Link         string      `json:"link,omitempty"`

	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Timezone         string    `json:"timezone"`
	StartTimeDisplay string    `json:"start_time_display"`
	EndTimeDisplay   string    `json:"end_time_display"`
	Created          time.Time `json:"created"`
	LastEdited       time.Time `json:"last_edited"`

	CreatorID string `json:"creator_user_id"`
	IsNext    bool   `json:"is_next"`
	IsPast    bool   `json:"is_past"`
	IsFuture  bool   `json:"is_future"`

	AttendanceState string `json:"attendance_state"`
	Organizer       bool   `json:"organizer"`
	Subscriber      bool   `json:"subscriber"`
	Counts

	OwnerUserID      string `json:"owner_user_id,omitempty"`
	OwnerCommunityID string `json:"owner_community_id,omitempty"`
	OwnerGroupID     string `json:"owner_group_id,omitempty"`

	ThreadID    string `json:"thread_id"`
	CanEdit     bool   `json:"can_edit"`
	CanModerate bool   `json:"can_moderate"`
}

// CreateEventRequest is the payload for creating a new chain with its first
// occurrence. At most one of ParentCommunityID/ParentGroupID may be set; when
// neither is, the creator owns the chain individually.
type CreateEventRequest struct {
	Title             string      `json:"title"`
	Content           string      `json:"content"`
	PhotoKey          string      `json:"photo_key,omitempty"`
	Location          *Coordinate `json:"location,omitempty"`
	Address           string      `json:"address,omitempty"`
	OnlineOnly        bool        `json:"is_online_only"`
	Link              string      `json:"link,omitempty"`
	ParentCommunityID string      `json:"parent_community_id,omitempty"`
	ParentGroupID     string      `json:"parent_group_id,omitempty"`
	StartTime         time.Time   `json:"start_time"`
	EndTime           time.Time   `json:"end_time"`
	Timezone          string      `json:"timezone"`
}

// ScheduleEventRequest is the payload for appending a new occurrence to an
// existing chain. The title is inherited from the chain's current occurrence.
type ScheduleEventRequest struct {
	Content    string      `json:"content"`
	PhotoKey   string      `json:"photo_key,omitempty"`
	Location   *Coordinate `json:"location,omitempty"`
	Address    string      `json:"address,omitempty"`
	OnlineOnly bool        `json:"is_online_only"`
	Link       string      `json:"link,omitempty"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    time.Time   `json:"end_time"`
	Timezone   string      `json:"timezone"`
}

// TransferEventRequest names the new owner of a chain. Exactly one id must be
// set.
type TransferEventRequest struct {
	NewOwnerUserID      string `json:"new_owner_user_id,omitempty"`
	NewOwnerCommunityID string `json:"new_owner_community_id,omitempty"`
	NewOwnerGroupID     string `json:"new_owner_group_id,omitempty"`
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Slugify derives a URL slug from a title: lowercase, runs of anything other
// than letters and digits collapse to single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		} else {
			pending = true
		}
	}
	return b.String()
}
