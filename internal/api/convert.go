package api

import (
	"time"

	"calldesk/internal/callstore"
	"calldesk/internal/sla"
)

// FromRecord converts a call record to its API representation.
func FromRecord(rec *callstore.Record) CallRecord {
	if rec == nil {
		return CallRecord{}
	}

	dto := CallRecord{
		ID:          rec.ID,
		CallerPhone: rec.CallerPhone,
		Kind:        string(rec.Kind),
		Status:      string(rec.Status),
		ObservedAt:  FormatTime(rec.ObservedAt),
		ClaimOwner:  rec.ClaimOwner,
		Recipients:  append([]string(nil), rec.Recipients...),
		CreatedAt:   FormatTime(rec.CreatedAt),
		UpdatedAt:   FormatTime(rec.UpdatedAt),
	}
	if rec.ClientID != nil {
		dto.ClientID = *rec.ClientID
	}
	if rec.ClaimedAt != nil {
		dto.ClaimedAt = FormatTime(*rec.ClaimedAt)
	}
	if rec.MergedIntoID != nil {
		dto.MergedIntoID = *rec.MergedIntoID
	}
	if rec.NoteID != nil {
		dto.NoteID = *rec.NoteID
	}
	return dto
}

// FromRecords converts a slice of call records into API DTOs.
func FromRecords(records []*callstore.Record) []CallRecord {
	if len(records) == 0 {
		return nil
	}
	out := make([]CallRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromGroup converts a call group to its API representation.
func FromGroup(group *callstore.Group) CallGroup {
	if group == nil || group.Primary == nil {
		return CallGroup{}
	}
	agents := group.RecipientUnion()
	return CallGroup{
		Primary:    FromRecord(group.Primary),
		Members:    FromRecords(group.Members),
		Agents:     agents,
		MultiAgent: len(agents) > 1,
	}
}

// FromGroups converts call groups into API DTOs.
func FromGroups(groups []*callstore.Group) []CallGroup {
	if len(groups) == 0 {
		return nil
	}
	out := make([]CallGroup, 0, len(groups))
	for _, group := range groups {
		out = append(out, FromGroup(group))
	}
	return out
}

// FromAlert converts an SLA alert into its API representation.
func FromAlert(alert sla.Alert) SlaAlert {
	return SlaAlert{
		GroupID:        alert.GroupID,
		CallerPhone:    alert.CallerPhone,
		ObservedAt:     FormatTime(alert.ObservedAt),
		WaitingSeconds: int64(alert.Waiting / time.Second),
		Agents:         alert.Agents,
		MultiAgent:     alert.MultiAgent,
	}
}

// FromAlerts converts SLA alerts into API DTOs.
func FromAlerts(alerts []sla.Alert) []SlaAlert {
	if len(alerts) == 0 {
		return nil
	}
	out := make([]SlaAlert, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, FromAlert(alert))
	}
	return out
}

// FromClient converts a registry client to its API representation.
func FromClient(client *callstore.Client) ClientInfo {
	if client == nil {
		return ClientInfo{}
	}
	return ClientInfo{
		ID:        client.ID,
		Phone:     client.Phone,
		Name:      client.Name,
		Address:   client.Address,
		Notes:     client.Notes,
		CreatedAt: FormatTime(client.CreatedAt),
		UpdatedAt: FormatTime(client.UpdatedAt),
	}
}

// FromClients converts registry clients into API DTOs.
func FromClients(clients []*callstore.Client) []ClientInfo {
	if len(clients) == 0 {
		return nil
	}
	out := make([]ClientInfo, 0, len(clients))
	for _, client := range clients {
		out = append(out, FromClient(client))
	}
	return out
}

// MergeCallStats produces a string-keyed representation of call stats.
func MergeCallStats(stats map[callstore.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
