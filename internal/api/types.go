package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CallRecord describes one observed call in a transport-friendly format.
type CallRecord struct {
	ID           int64    `json:"id"`
	ClientID     int64    `json:"clientId,omitempty"`
	ClientName   string   `json:"clientName,omitempty"`
	CallerPhone  string   `json:"callerPhone"`
	Kind         string   `json:"kind"`
	Status       string   `json:"status"`
	ObservedAt   string   `json:"observedAt"`
	ClaimOwner   string   `json:"claimOwner,omitempty"`
	ClaimedAt    string   `json:"claimedAt,omitempty"`
	Recipients   []string `json:"recipients,omitempty"`
	MergedIntoID int64    `json:"mergedIntoId,omitempty"`
	NoteID       int64    `json:"noteId,omitempty"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

// CallGroup is a primary record plus everything merged into it.
type CallGroup struct {
	Primary    CallRecord   `json:"primary"`
	Members    []CallRecord `json:"members,omitempty"`
	Agents     []string     `json:"agents,omitempty"`
	MultiAgent bool         `json:"multiAgent"`
}

// SlaAlert describes one group needing attention.
type SlaAlert struct {
	GroupID        int64    `json:"groupId"`
	CallerPhone    string   `json:"callerPhone"`
	ObservedAt     string   `json:"observedAt"`
	WaitingSeconds int64    `json:"waitingSeconds"`
	Agents         []string `json:"agents,omitempty"`
	MultiAgent     bool     `json:"multiAgent"`
}

// ClientInfo describes a registry entry.
type ClientInfo struct {
	ID        int64  `json:"id"`
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// IngestStatus reports the ingestion pipeline state.
type IngestStatus struct {
	Suspended      bool     `json:"suspended"`
	PendingRetries int      `json:"pendingRetries"`
	DetectedLines  []string `json:"detectedLines,omitempty"`
	BusinessLine   string   `json:"businessLine,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DBPath       string         `json:"dbPath"`
	LockFilePath string         `json:"lockFilePath"`
	AgentID      string         `json:"agentId"`
	CallStats    map[string]int `json:"callStats"`
	Ingest       IngestStatus   `json:"ingest"`
	FeedClients  int            `json:"feedClients"`
}

// CallListResponse wraps a collection of call records.
type CallListResponse struct {
	Calls []CallRecord `json:"calls"`
}

// CallGroupResponse wraps a single call group.
type CallGroupResponse struct {
	Group CallGroup `json:"group"`
}

// AlertsResponse wraps the current SLA alerts.
type AlertsResponse struct {
	Alerts []SlaAlert `json:"alerts"`
}

// ClientListResponse wraps the client registry.
type ClientListResponse struct {
	Clients []ClientInfo `json:"clients"`
}
