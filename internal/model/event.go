package model

type EventType string

const (
	EventReportCreated       EventType = "report.created"
	EventReportStatusUpdated EventType = "report.status.updated"
)

// ReportEvent is emitted after a mutation has been persisted.
type ReportEvent struct {
	Type      EventType `json:"type"`
	Report    Report    `json:"report"`
	Timestamp int64     `json:"timestamp"`
}
