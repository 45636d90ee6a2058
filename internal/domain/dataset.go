package domain

import "time"

// Identity template placeholders.
const (
	PlaceholderPrefix    = "{prefix}"
	PlaceholderTimestamp = "{timestamp}"
	PlaceholderSequence  = "{sequence}"

	DefaultIdentityField    = "id"
	DefaultIdentityTemplate = "{prefix}-{timestamp}-{sequence}"
)

// Schema is the identity and column policy of a dataset.
// Columns is a hint only; the real column set is derived from data.
type Schema struct {
	Name             string   `json:"name" mapstructure:"name"`
	DisplayName      string   `json:"displayName" mapstructure:"display_name"`
	IdentityField    string   `json:"identityField" mapstructure:"identity_field"`
	IdentityPrefix   string   `json:"identityPrefix" mapstructure:"identity_prefix"`
	IdentityTemplate string   `json:"identityTemplate" mapstructure:"identity_template"`
	Columns          []string `json:"columns" mapstructure:"columns"`
}

// DatasetInfo summarizes a dataset for enumeration.
type DatasetInfo struct {
	Name          string    `json:"name"`
	DisplayName   string    `json:"displayName"`
	IdentityField string    `json:"identityField"`
	Columns       []string  `json:"columns"`
	RecordCount   int       `json:"recordCount"`
	Size          int64     `json:"size"`
	ModifiedAt    time.Time `json:"modifiedAt"`
}

// UploadStats is the transient result of one ingestion batch.
type UploadStats struct {
	Dataset             string `json:"dataset"`
	TotalRows           int    `json:"totalRows"`
	NewRows             int    `json:"newRows"`
	Duplicates          int    `json:"duplicates"`
	SheetsProcessed     int    `json:"sheetsProcessed"`
	IdentitiesGenerated int    `json:"identitiesGenerated"`
}

// RepairResult reports an identity maintenance run.
type RepairResult struct {
	Dataset string `json:"dataset"`
	Updated int    `json:"updated"`
	Total   int    `json:"total"`
}

// IngestRun is the persisted log entry of one ingestion attempt.
type IngestRun struct {
	ID         string      `json:"id"`
	Dataset    string      `json:"dataset"`
	Source     string      `json:"source"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Status     string      `json:"status"` // "success" | "error"
	Stats      UploadStats `json:"stats"`
	Error      string      `json:"error,omitempty"`
}

// IngestRunStore persists ingestion run logs.
type IngestRunStore interface {
	CreateRun(run *IngestRun) error
	ListRuns(dataset string, limit int) ([]IngestRun, error)
}
