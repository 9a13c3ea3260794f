package reservation

import (
	"sync"
	"time"

	"calldesk/internal/callstore"
)

// Action names a speculative mutation recorded in the overlay.
type Action string

const (
	ActionClaim    Action = "claim"
	ActionRelease  Action = "release"
	ActionComplete Action = "complete"
)

// Intent is one in-flight mutation rendered speculatively until the next
// confirmed read.
type Intent struct {
	GroupID int64
	Action  Action
	AgentID string
	At      time.Time
}

// View holds the client-side picture of call groups: an authoritative layer
// rebuilt only from confirmed store reads, plus a pending-intent overlay.
// Intents are discarded wholesale whenever confirmed state arrives; they are
// never merged into it field by field. The store's answer always wins.
type View struct {
	mu        sync.Mutex
	confirmed map[int64]*callstore.Group
	pending   []Intent
	stale     bool
}

// NewView returns an empty view.
func NewView() *View {
	return &View{confirmed: make(map[int64]*callstore.Group)}
}

// Record notes a speculative intent so the UI can render the expected
// outcome immediately.
func (v *View) Record(intent Intent) {
	if v == nil {
		return
	}
	if intent.At.IsZero() {
		intent.At = time.Now().UTC()
	}
	v.mu.Lock()
	v.pending = append(v.pending, intent)
	v.mu.Unlock()
}

// Confirm installs store-confirmed groups as the authoritative layer and
// drops the entire pending overlay.
func (v *View) Confirm(groups ...*callstore.Group) {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, group := range groups {
		if group == nil || group.Primary == nil {
			continue
		}
		v.confirmed[group.Primary.ID] = group
	}
	v.pending = nil
	v.stale = false
}

// Replace swaps the whole authoritative layer, used on full resyncs.
func (v *View) Replace(groups []*callstore.Group) {
	if v == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirmed = make(map[int64]*callstore.Group, len(groups))
	for _, group := range groups {
		if group == nil || group.Primary == nil {
			continue
		}
		v.confirmed[group.Primary.ID] = group
	}
	v.pending = nil
	v.stale = false
}

// Invalidate marks the view stale after a failed or timed-out mutation.
// Pending intents are dropped; renders keep serving the last confirmed state
// until the mandatory re-fetch lands.
func (v *View) Invalidate() {
	if v == nil {
		return
	}
	v.mu.Lock()
	v.pending = nil
	v.stale = true
	v.mu.Unlock()
}

// Forget drops a group from the authoritative layer, used when a delete
// event arrives on the change feed.
func (v *View) Forget(groupID int64) {
	if v == nil {
		return
	}
	v.mu.Lock()
	delete(v.confirmed, groupID)
	v.mu.Unlock()
}

// Stale reports whether the last mutation failed without a confirmed
// re-fetch yet.
func (v *View) Stale() bool {
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stale
}

// Group renders one group: the confirmed state with any pending intents for
// it applied on top. The rendered copy is detached from the stored state.
func (v *View) Group(groupID int64) (*callstore.Group, bool) {
	if v == nil {
		return nil, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	group, ok := v.confirmed[groupID]
	if !ok {
		return nil, false
	}
	rendered := cloneGroup(group)
	for _, intent := range v.pending {
		if intent.GroupID == groupID {
			applyIntent(rendered, intent)
		}
	}
	return rendered, true
}

// Groups renders every known group with the overlay applied.
func (v *View) Groups() []*callstore.Group {
	if v == nil {
		return nil
	}
	v.mu.Lock()
	ids := make([]int64, 0, len(v.confirmed))
	for id := range v.confirmed {
		ids = append(ids, id)
	}
	v.mu.Unlock()

	groups := make([]*callstore.Group, 0, len(ids))
	for _, id := range ids {
		if group, ok := v.Group(id); ok {
			groups = append(groups, group)
		}
	}
	return groups
}

func applyIntent(group *callstore.Group, intent Intent) {
	for _, rec := range group.Records() {
		if !rec.Status.IsOpen() {
			continue
		}
		switch intent.Action {
		case ActionClaim:
			rec.Status = callstore.StatusReserved
			rec.ClaimOwner = intent.AgentID
			at := intent.At
			rec.ClaimedAt = &at
		case ActionRelease:
			if rec.Status == callstore.StatusReserved {
				rec.Status = callstore.StatusMissed
				rec.ClaimOwner = ""
				rec.ClaimedAt = nil
			}
		case ActionComplete:
			rec.Status = callstore.StatusCompleted
		}
	}
}

func cloneGroup(group *callstore.Group) *callstore.Group {
	cp := &callstore.Group{Primary: cloneRecord(group.Primary)}
	for _, member := range group.Members {
		cp.Members = append(cp.Members, cloneRecord(member))
	}
	return cp
}

func cloneRecord(rec *callstore.Record) *callstore.Record {
	if rec == nil {
		return nil
	}
	cp := *rec
	if rec.ClientID != nil {
		id := *rec.ClientID
		cp.ClientID = &id
	}
	if rec.ClaimedAt != nil {
		at := *rec.ClaimedAt
		cp.ClaimedAt = &at
	}
	if rec.MergedIntoID != nil {
		id := *rec.MergedIntoID
		cp.MergedIntoID = &id
	}
	if rec.NoteID != nil {
		id := *rec.NoteID
		cp.NoteID = &id
	}
	cp.Recipients = append([]string(nil), rec.Recipients...)
	return &cp
}
