package models

import "time"

// IngestionStatus is the outcome of an ingestion attempt.
type IngestionStatus string

const (
	StatusSuccess    IngestionStatus = "success"
	StatusError      IngestionStatus = "error"
	StatusProcessing IngestionStatus = "processing"
)

// HistoryEntry is one ingestion attempt in the ledger.
// RecordCount is set iff Status is success, ErrorMessage iff Status is error.
type HistoryEntry struct {
	ID           string            `json:"id"`
	Kind         SourceKind        `json:"type"`
	Name         string            `json:"name"`
	Connection   *string           `json:"connection,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Status       IngestionStatus   `json:"status"`
	RecordCount  *int64            `json:"records,omitempty"`
	ErrorMessage *string           `json:"error,omitempty"`
	Schema       *SchemaDescriptor `json:"schema,omitempty"`
	User         *string           `json:"user,omitempty"`

	// Pending marks an optimistic entry that has not been seen in a backend refresh.
	Pending bool `json:"-"`
}

// Clone returns a deep copy so callers cannot mutate ledger state.
func (e HistoryEntry) Clone() HistoryEntry {
	out := e
	out.Connection = cloneString(e.Connection)
	out.ErrorMessage = cloneString(e.ErrorMessage)
	out.User = cloneString(e.User)
	if e.RecordCount != nil {
		n := *e.RecordCount
		out.RecordCount = &n
	}
	out.Schema = e.Schema.Clone()
	return out
}

// HistoryUpdate carries the fields to merge into an existing entry.
// Nil pointers leave the corresponding field untouched.
type HistoryUpdate struct {
	Name         *string
	Connection   *string
	Timestamp    *time.Time
	Status       *IngestionStatus
	RecordCount  *int64
	ErrorMessage *string
	Schema       *SchemaDescriptor
	User         *string
}

// Apply merges u into e. A status change clears the fields that the new
// status does not allow; fields set in the same update are kept.
func (u HistoryUpdate) Apply(e *HistoryEntry) {
	if u.Status != nil {
		e.Status = *u.Status
		switch e.Status {
		case StatusSuccess:
			e.ErrorMessage = nil
		case StatusError:
			e.RecordCount = nil
			e.Schema = nil
		case StatusProcessing:
			e.RecordCount = nil
			e.ErrorMessage = nil
			e.Schema = nil
		}
	}
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Connection != nil {
		e.Connection = cloneString(u.Connection)
	}
	if u.Timestamp != nil {
		e.Timestamp = *u.Timestamp
	}
	if u.RecordCount != nil {
		n := *u.RecordCount
		e.RecordCount = &n
	}
	if u.ErrorMessage != nil {
		e.ErrorMessage = cloneString(u.ErrorMessage)
	}
	if u.Schema != nil {
		e.Schema = u.Schema.Clone()
	}
	if u.User != nil {
		e.User = cloneString(u.User)
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
