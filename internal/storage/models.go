package storage

import "time"

// Blob keys of the persisted application state.
const (
	KeyRegistry   = "llmConfig"
	KeyAssistants = "assistants"
	KeyLegacyAPI  = "apiConfig"
)

type Blob struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

type AuditEntry struct {
	Subject  string
	Action   string
	MetaJSON string
}

type AuditRecord struct {
	ID int64
	AuditEntry
	CreatedAt time.Time
}
