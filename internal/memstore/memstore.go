// Package memstore is an in-memory implementation of the event store and the
// bundled collaborators: an arena of occurrences indexed by id plus a
// per-chain current pointer. It backs the service tests and the -memory dev
// mode of the server.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gatherhub/gatherhub/internal/model"
)

// Store holds everything behind one mutex. Mutating operations run as one
// critical section, which serializes reschedule/transfer per chain and keeps
// every operation all-or-nothing.
type Store struct {
	mu sync.RWMutex

	chains      map[string]*model.Chain
	occurrences map[string]*model.Occurrence
	chainOccs   map[string][]string // occurrence ids in creation order

	organizers    map[string]map[string]bool
	attendance    map[string]map[string]model.AttendanceState
	subscriptions map[string]map[string]bool

	photos     map[string]string
	threads    map[string]string // thread id -> chain id
	moderators map[string]map[string]bool
	comms      map[string]bool
	groups     map[string]bool
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		chains:        make(map[string]*model.Chain),
		occurrences:   make(map[string]*model.Occurrence),
		chainOccs:     make(map[string][]string),
		organizers:    make(map[string]map[string]bool),
		attendance:    make(map[string]map[string]model.AttendanceState),
		subscriptions: make(map[string]map[string]bool),
		photos:        make(map[string]string),
		threads:       make(map[string]string),
		moderators:    make(map[string]map[string]bool),
		comms:         make(map[string]bool),
		groups:        make(map[string]bool),
	}
}

// ── Chain store ──────────────────────────────────────────────────────────────

// CreateChain stores a chain with its first occurrence and the creator's
// organizer/attendance/subscription records.
func (s *Store) CreateChain(ctx context.Context, chain *model.Chain, occ *model.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *chain
	c.CurrentID = occ.ID
	o := *occ
	s.chains[c.ID] = &c
	s.occurrences[o.ID] = &o
	s.chainOccs[c.ID] = []string{o.ID}
	s.organizers[c.ID] = map[string]bool{c.CreatorID: true}
	s.attendance[c.ID] = map[string]model.AttendanceState{c.CreatorID: model.AttendanceGoing}
	s.subscriptions[c.ID] = map[string]bool{c.CreatorID: true}
	return nil
}

// GetChain returns a chain or model.ErrNotFound.
func (s *Store) GetChain(ctx context.Context, id string) (*model.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chains[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetOccurrence returns an occurrence or model.ErrNotFound.
func (s *Store) GetOccurrence(ctx context.Context, id string) (*model.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.occurrences[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// AppendOccurrence appends a rescheduled occurrence and moves the current
// pointer. A stale expectedCurrentID yields model.ErrConflict.
func (s *Store) AppendOccurrence(ctx context.Context, chainID, expectedCurrentID string, occ *model.Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.chains[chainID]
	if !ok {
		return model.ErrNotFound
	}
	if chain.CurrentID != expectedCurrentID {
		return model.ErrConflict
	}

	o := *occ
	o.Seq = len(s.chainOccs[chainID]) + 1
	o.PrevID = chain.CurrentID
	s.occurrences[o.ID] = &o
	s.chainOccs[chainID] = append(s.chainOccs[chainID], o.ID)
	chain.CurrentID = o.ID
	occ.Seq = o.Seq
	occ.PrevID = o.PrevID
	return nil
}

// TransferOwner swaps a chain's owner. A stale expectedOwner yields
// model.ErrConflict.
func (s *Store) TransferOwner(ctx context.Context, chainID string, expectedOwner, newOwner model.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.chains[chainID]
	if !ok {
		return model.ErrNotFound
	}
	if chain.Owner != expectedOwner {
		return model.ErrConflict
	}
	chain.Owner = newOwner
	return nil
}

// ListOccurrences pages most-recent-created first; beforeSeq = 0 starts from
// the top.
func (s *Store) ListOccurrences(ctx context.Context, chainID string, beforeSeq, limit int) ([]model.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.chainOccs[chainID]
	var occs []model.Occurrence
	for i := len(ids) - 1; i >= 0 && len(occs) < limit; i-- {
		o := s.occurrences[ids[i]]
		if beforeSeq != 0 && o.Seq >= beforeSeq {
			continue
		}
		occs = append(occs, *o)
	}
	return occs, nil
}

// ── Tracker store ────────────────────────────────────────────────────────────

// SetAttendance upserts a user's RSVP state; not-going clears the record.
func (s *Store) SetAttendance(ctx context.Context, chainID, userID string, state model.AttendanceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.attendance[chainID]
	if m == nil {
		m = make(map[string]model.AttendanceState)
		s.attendance[chainID] = m
	}
	if state == model.AttendanceNotGoing {
		delete(m, userID)
		return nil
	}
	m[userID] = state
	return nil
}

// GetAttendance returns a user's state; missing records are not-going.
func (s *Store) GetAttendance(ctx context.Context, chainID, userID string) (model.AttendanceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attendance[chainID][userID], nil
}

// SetSubscription upserts or clears a subscription.
func (s *Store) SetSubscription(ctx context.Context, chainID, userID string, subscribed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.subscriptions[chainID]
	if m == nil {
		m = make(map[string]bool)
		s.subscriptions[chainID] = m
	}
	if subscribed {
		m[userID] = true
	} else {
		delete(m, userID)
	}
	return nil
}

// IsSubscribed reports subscription membership.
func (s *Store) IsSubscribed(ctx context.Context, chainID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscriptions[chainID][userID], nil
}

// AddOrganizer grants edit rights. Idempotent.
func (s *Store) AddOrganizer(ctx context.Context, chainID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.organizers[chainID]
	if m == nil {
		m = make(map[string]bool)
		s.organizers[chainID] = m
	}
	m[userID] = true
	return nil
}

// RemoveOrganizer revokes an organizer grant.
func (s *Store) RemoveOrganizer(ctx context.Context, chainID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.organizers[chainID], userID)
	return nil
}

// IsOrganizer reports organizer membership.
func (s *Store) IsOrganizer(ctx context.Context, chainID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.organizers[chainID][userID], nil
}

// Counts derives the chain aggregates from the record sets.
func (s *Store) Counts(ctx context.Context, chainID string) (model.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c model.Counts
	for _, state := range s.attendance[chainID] {
		switch state {
		case model.AttendanceGoing:
			c.Going++
		case model.AttendanceMaybe:
			c.Maybe++
		}
	}
	c.Organizers = len(s.organizers[chainID])
	c.Subscribers = len(s.subscriptions[chainID])
	return c, nil
}

// ListAttendees pages attendees ordered by user id.
func (s *Store) ListAttendees(ctx context.Context, chainID, afterUser string, limit int) ([]model.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []model.AttendanceRecord
	for userID, state := range s.attendance[chainID] {
		if userID > afterUser {
			records = append(records, model.AttendanceRecord{UserID: userID, State: state})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListSubscribers pages subscriber user ids.
func (s *Store) ListSubscribers(ctx context.Context, chainID, afterUser string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageSet(s.subscriptions[chainID], afterUser, limit), nil
}

// ListOrganizers pages organizer user ids.
func (s *Store) ListOrganizers(ctx context.Context, chainID, afterUser string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageSet(s.organizers[chainID], afterUser, limit), nil
}

// Subscribers returns every subscriber, for notification fan-out.
func (s *Store) Subscribers(ctx context.Context, chainID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageSet(s.subscriptions[chainID], "", len(s.subscriptions[chainID])), nil
}

func pageSet(set map[string]bool, afterUser string, limit int) []string {
	var ids []string
	for id := range set {
		if id > afterUser {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// ── Collaborators ────────────────────────────────────────────────────────────

// AddPhoto seeds a resolvable photo reference.
func (s *Store) AddPhoto(key, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[key] = url
}

// Resolve implements external.Photos.
func (s *Store) Resolve(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.photos[key]
	if !ok {
		return "", model.ErrNotFound
	}
	return url, nil
}

// Create implements external.Threads.
func (s *Store) Create(ctx context.Context, chainID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.threads[id] = chainID
	return id, nil
}

// Delete implements external.Threads.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// AddCommunity seeds a community id.
func (s *Store) AddCommunity(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comms[id] = true
}

// AddGroup seeds a group id.
func (s *Store) AddGroup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[id] = true
}

// AddModerator seeds a moderator grant on a community or group.
func (s *Store) AddModerator(kind, subjectID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := kind + "/" + subjectID
	if s.moderators[key] == nil {
		s.moderators[key] = make(map[string]bool)
	}
	s.moderators[key][userID] = true
}

// IsModerator implements external.Hierarchy.
func (s *Store) IsModerator(ctx context.Context, kind, ownerID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moderators[kind+"/"+ownerID][userID], nil
}

// CommunityExists implements external.Hierarchy.
func (s *Store) CommunityExists(ctx context.Context, communityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.comms[communityID], nil
}

// GroupExists implements external.Hierarchy.
func (s *Store) GroupExists(ctx context.Context, groupID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[groupID], nil
}

// UserExists implements external.Hierarchy.
func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	return userID != "", nil
}
