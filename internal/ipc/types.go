package ipc

import "calldesk/internal/api"

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// CallRecord mirrors the HTTP API call DTO for internal IPC callers.
type CallRecord = api.CallRecord

// CallGroup mirrors the HTTP API group DTO.
type CallGroup = api.CallGroup

// SlaAlert mirrors the HTTP API alert DTO.
type SlaAlert = api.SlaAlert

// ClientInfo mirrors the HTTP API client DTO.
type ClientInfo = api.ClientInfo

// IngestStatus mirrors the ingestion pipeline status.
type IngestStatus = api.IngestStatus

// StatusResponse represents combined daemon status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DBPath       string         `json:"db_path"`
	LockPath     string         `json:"lock_path"`
	AgentID      string         `json:"agent_id"`
	CallStats    map[string]int `json:"call_stats"`
	Ingest       IngestStatus   `json:"ingest"`
	FeedClients  int            `json:"feed_clients"`
}

// CallListRequest filters call listing by status.
type CallListRequest struct {
	Statuses []string `json:"statuses"`
}

// CallListResponse contains primary call records.
type CallListResponse struct {
	Calls []CallRecord `json:"calls"`
}

// CallDescribeRequest fetches a single call by id.
type CallDescribeRequest struct {
	ID int64 `json:"id"`
}

// CallDescribeResponse contains a single call record.
type CallDescribeResponse struct {
	Call CallRecord `json:"call"`
}

// CallGroupRequest fetches a merged group by its primary id.
type CallGroupRequest struct {
	ID int64 `json:"id"`
}

// CallGroupResponse contains a merged group.
type CallGroupResponse struct {
	Group CallGroup `json:"group"`
}

// ClaimRequest reserves a call group for an agent.
type ClaimRequest struct {
	GroupID int64  `json:"group_id"`
	AgentID string `json:"agent_id"`
}

// ClaimResponse reports the claim outcome. On conflict Claimed is false and
// Owner names the agent already holding the group.
type ClaimResponse struct {
	Claimed bool      `json:"claimed"`
	Owner   string    `json:"owner,omitempty"`
	Group   CallGroup `json:"group"`
}

// ReleaseRequest returns a claimed group to the missed pool. Any agent may
// release any claim.
type ReleaseRequest struct {
	GroupID int64  `json:"group_id"`
	AgentID string `json:"agent_id"`
}

// ReleaseResponse contains the group after release.
type ReleaseResponse struct {
	Group CallGroup `json:"group"`
}

// CompleteRequest marks a claimed group handled. Only the claim owner may
// complete.
type CompleteRequest struct {
	GroupID int64  `json:"group_id"`
	AgentID string `json:"agent_id"`
}

// CompleteResponse contains the group after completion.
type CompleteResponse struct {
	Group CallGroup `json:"group"`
}

// AddRecipientRequest records that another agent observed a call.
type AddRecipientRequest struct {
	CallID  int64  `json:"call_id"`
	AgentID string `json:"agent_id"`
}

// AddRecipientResponse contains the group after the recipient was added.
type AddRecipientResponse struct {
	Group      CallGroup `json:"group"`
	MultiAgent bool      `json:"multi_agent"`
}

// SlaAlertsRequest fetches groups past the response threshold.
type SlaAlertsRequest struct{}

// SlaAlertsResponse contains the current alerts, longest wait first.
type SlaAlertsResponse struct {
	Alerts []SlaAlert `json:"alerts"`
}

// NeedsAttentionRequest fetches completed calls without a follow-up note.
type NeedsAttentionRequest struct{}

// NeedsAttentionResponse contains calls needing a follow-up note.
type NeedsAttentionResponse struct {
	Calls []CallRecord `json:"calls"`
}

// ClientAddRequest registers a client in the registry.
type ClientAddRequest struct {
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// ClientAddResponse contains the stored client.
type ClientAddResponse struct {
	Client ClientInfo `json:"client"`
}

// ClientListRequest fetches the client registry.
type ClientListRequest struct{}

// ClientListResponse contains the registered clients.
type ClientListResponse struct {
	Clients []ClientInfo `json:"clients"`
}

// ClientRemoveRequest removes a client by id.
type ClientRemoveRequest struct {
	ID int64 `json:"id"`
}

// ClientRemoveResponse reports whether a client was removed.
type ClientRemoveResponse struct {
	Removed bool `json:"removed"`
}

// SetBusinessLineRequest selects the business line and resumes ingestion.
type SetBusinessLineRequest struct {
	LineID string `json:"line_id"`
}

// SetBusinessLineResponse confirms the selection.
type SetBusinessLineResponse struct {
	BusinessLine string `json:"business_line"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// CallHealthRequest fetches aggregate call-store diagnostics.
type CallHealthRequest struct{}

// CallHealthResponse reports call-store record counts.
type CallHealthResponse struct {
	Total     int `json:"total"`
	Missed    int `json:"missed"`
	Reserved  int `json:"reserved"`
	Completed int `json:"completed"`
	Merged    int `json:"merged"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    string `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalRecords     int    `json:"total_records"`
	FreeDiskBytes    uint64 `json:"free_disk_bytes"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
