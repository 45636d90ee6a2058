package domain

import "errors"

var (
	// ErrNotFound is returned for a bad position or identity, or a missing dataset.
	ErrNotFound = errors.New("not found")

	// ErrIdentityExhausted is returned when collision retries run out.
	ErrIdentityExhausted = errors.New("identity exhausted")

	// ErrIngestionFailed wraps an upstream workbook parse failure.
	ErrIngestionFailed = errors.New("ingestion failed")

	// ErrPersistenceFailed wraps an I/O error on load or save.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrInvalidDataset is returned for names that cannot back a blob.
	ErrInvalidDataset = errors.New("invalid dataset name")

	// ErrBlobNotFound is the storage-level absence of a blob.
	ErrBlobNotFound = errors.New("blob not found")
)
