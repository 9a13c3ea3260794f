package callstore

// ChangeOp classifies a store mutation for change-feed consumers.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Change describes a single mutation against a store table. The payload is
// intentionally minimal: subscribers re-fetch the affected group in full
// rather than merging deltas.
type Change struct {
	Table string
	Op    ChangeOp
	ID    int64
}

// Publisher receives change notifications after successful mutations.
// Implementations must not block; the store calls Publish inline.
type Publisher interface {
	Publish(Change)
}

// SetPublisher registers the change-feed publisher. Pass nil to detach.
func (s *Store) SetPublisher(p Publisher) {
	s.publisher = p
}

func (s *Store) publish(table string, op ChangeOp, id int64) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(Change{Table: table, Op: op, ID: id})
}

const (
	tableCallRecords = "call_records"
	tableClients     = "clients"
)
