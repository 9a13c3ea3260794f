package callstore

import (
	"strings"
	"time"
)

// Kind classifies what a call record represents.
type Kind string

const (
	KindMissed    Kind = "missed"
	KindCompleted Kind = "completed"
	KindMerged    Kind = "merged"
	KindSkipped   Kind = "skipped"
)

// Status represents the reservation lifecycle of a call record.
type Status string

const (
	StatusMissed    Status = "missed"
	StatusReserved  Status = "reserved"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{StatusMissed, StatusReserved, StatusCompleted}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var allKinds = []Kind{KindMissed, KindCompleted, KindMerged, KindSkipped}

var kindSet = func() map[Kind]struct{} {
	set := make(map[Kind]struct{}, len(allKinds))
	for _, kind := range allKinds {
		set[kind] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := kindSet[normalized]
	return normalized, ok
}

// IsOpen reports whether a status still admits reservation work.
func (s Status) IsOpen() bool {
	return s == StatusMissed || s == StatusReserved
}

// Client is a known contact whose calls the system monitors.
type Client struct {
	ID        int64
	Phone     string
	Name      string
	Address   string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Record is one observed telephony event persisted in SQLite.
type Record struct {
	ID           int64
	ClientID     *int64
	CallerPhone  string
	Kind         Kind
	Status       Status
	ObservedAt   time.Time
	ClaimOwner   string
	ClaimedAt    *time.Time
	Recipients   []string
	MergedIntoID *int64
	NoteID       *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPrimary reports whether the record roots its call group.
func (r *Record) IsPrimary() bool {
	return r.MergedIntoID == nil
}

// HasRecipient reports whether the agent already observed this call.
func (r *Record) HasRecipient(agentID string) bool {
	for _, id := range r.Recipients {
		if id == agentID {
			return true
		}
	}
	return false
}

// Group is the derived call group: one primary record plus the records merged
// into it. Groups are never persisted as such; they are reassembled from
// merge links on every read.
type Group struct {
	Primary *Record
	Members []*Record
}

// Records returns the primary followed by all merged members.
func (g *Group) Records() []*Record {
	if g == nil || g.Primary == nil {
		return nil
	}
	records := make([]*Record, 0, len(g.Members)+1)
	records = append(records, g.Primary)
	records = append(records, g.Members...)
	return records
}

// OldestOpen returns the earliest-observed record that is still open, or nil.
func (g *Group) OldestOpen() *Record {
	var oldest *Record
	for _, rec := range g.Records() {
		if !rec.Status.IsOpen() {
			continue
		}
		if oldest == nil || rec.ObservedAt.Before(oldest.ObservedAt) {
			oldest = rec
		}
	}
	return oldest
}

// RecipientUnion returns the distinct agent identifiers across the group.
func (g *Group) RecipientUnion() []string {
	seen := make(map[string]struct{})
	var union []string
	for _, rec := range g.Records() {
		for _, id := range rec.Recipients {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			union = append(union, id)
		}
	}
	return union
}

// HealthSummary describes aggregated call counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Missed    int
	Reserved  int
	Completed int
	Merged    int
}

// DatabaseHealth captures diagnostic information about the call database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	IntegrityCheck   bool
	TotalRecords     int
	FreeDiskBytes    uint64
	Error            string
}
