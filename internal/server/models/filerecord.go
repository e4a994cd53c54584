// Package models defines server-side data models persisted in the database
// and exchanged over the HTTP API.
package models

import (
	"strings"
	"time"
)

// Status values for a FileRecord. The lifecycle is monotonic:
// RAW -> PROCESSED, never back.
const (
	StatusRaw       = "RAW"
	StatusProcessed = "PROCESSED"
)

// PKPrefix is prepended to the original storage key to form the record's
// primary key, keeping re-deliveries of the same object collision-free.
const PKPrefix = "file#"

// FileRecord describes one ingested object. Bucket/Key always point at the
// object's current location: the source bucket while RAW, the processed
// location once PROCESSED.
type FileRecord struct {
	// PK is "file#" + the object's original storage key.
	PK string `json:"pk"`
	// Bucket is the current storage bucket.
	Bucket string `json:"bucket"`
	// Key is the current storage key.
	Key string `json:"key"`
	// Size of the object in bytes.
	Size int64 `json:"size"`
	// ETag is the opaque version tag captured at ingestion time.
	ETag string `json:"etag"`
	// Status is RAW or PROCESSED.
	Status string `json:"status"`
	// Checksum is the lowercase hex SHA-256 of the object's content.
	Checksum string `json:"checksum"`
	// ProcessedAt is set exactly once, at the RAW -> PROCESSED transition.
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// PrimaryKey derives the metadata primary key for an object's storage key.
func PrimaryKey(objectKey string) string {
	return PKPrefix + objectKey
}

// NormalizePK accepts an id with or without the "file#" prefix and returns
// the canonical primary key.
func NormalizePK(id string) string {
	if strings.HasPrefix(id, PKPrefix) {
		return id
	}
	return PKPrefix + id
}
