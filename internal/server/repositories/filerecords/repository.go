// Package filerecords persists FileRecord rows and enforces the RAW ->
// PROCESSED status machine at the storage layer.
package filerecords

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/server/models"
)

// Filter narrows List/Count results. A nil From/To leaves that bound open;
// when either bound is set, records without processed_at are excluded.
type Filter struct {
	Status string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type Repository interface {
	// CreateRaw upserts a RAW record for the notification. It never
	// downgrades: when the existing record is already PROCESSED it
	// returns common.ErrAlreadyProcessed and leaves the row untouched.
	CreateRaw(ctx context.Context, rec *models.FileRecord) error

	// MarkProcessed moves the record to PROCESSED, points bucket/key at
	// the relocated object, and sets processed_at exactly once (repeat
	// calls keep the first timestamp). Missing pk returns
	// common.ErrorNotFound.
	MarkProcessed(ctx context.Context, pk, bucket, key string, at time.Time) error

	// GetByPK returns the record or common.ErrorNotFound.
	GetByPK(ctx context.Context, pk string) (*models.FileRecord, error)

	// List returns the filtered page ordered by pk.
	List(ctx context.Context, f Filter) ([]*models.FileRecord, error)

	// Count returns the number of records matching the filter,
	// ignoring Limit/Offset.
	Count(ctx context.Context, f Filter) (int64, error)
}
