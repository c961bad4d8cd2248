// Package notify provides the bundled notification dispatcher. Delivery is
// someone else's problem: this one just records what would be sent.
package notify

import "log"

// LogDispatcher writes notifications to the process log. Fire-and-forget.
type LogDispatcher struct{}

// NewLogDispatcher constructs a LogDispatcher.
func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

// EventRescheduled records a reschedule notice for a chain's subscribers.
func (d *LogDispatcher) EventRescheduled(chainID, occurrenceID string, subscribers []string) {
	log.Printf("notify: chain %s rescheduled to occurrence %s (%d subscribers)", chainID, occurrenceID, len(subscribers))
}

// OrganizerInvited records an organizer invitation notice.
func (d *LogDispatcher) OrganizerInvited(chainID, userID string) {
	log.Printf("notify: user %s invited as organizer of chain %s", userID, chainID)
}
