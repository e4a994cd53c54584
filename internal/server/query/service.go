// Package query serves read requests over the metadata records: filtered,
// paginated listings and point lookups.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/common"
	"github.com/dmitrijs2005/ingestor/internal/server/models"
	"github.com/dmitrijs2005/ingestor/internal/server/repositories/filerecords"
)

// MaxLimit caps the page size; it is also the default when no limit is
// given.
const MaxLimit = 100

// Params are the supported listing filters. Page is zero-based.
type Params struct {
	Status string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// Listing is one page of records plus the post-filter total.
type Listing struct {
	Items []*models.FileRecord `json:"items"`
	Total int64                `json:"total"`
}

type Service struct {
	records filerecords.Repository
}

func NewService(records filerecords.Repository) *Service {
	return &Service{records: records}
}

// List validates the filters and returns the requested page. Total counts
// every record matching the filters, not just the page. A page past the end
// yields empty items with the correct total. Store errors surface; they are
// never collapsed into an empty listing.
func (s *Service) List(ctx context.Context, p Params) (*Listing, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit == 0 {
		limit = MaxLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	f := filerecords.Filter{
		Status: p.Status,
		From:   p.From,
		To:     p.To,
		Limit:  limit,
		Offset: p.Page * limit,
	}

	total, err := s.records.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	items, err := s.records.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if items == nil {
		items = []*models.FileRecord{}
	}

	return &Listing{Items: items, Total: total}, nil
}

// GetByKey returns a single record. The id is accepted with or without the
// "file#" prefix.
func (s *Service) GetByKey(ctx context.Context, id string) (*models.FileRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("empty id: %w", common.ErrorValidation)
	}
	return s.records.GetByPK(ctx, models.NormalizePK(id))
}

func validate(p Params) error {
	if p.Status != "" && p.Status != models.StatusRaw && p.Status != models.StatusProcessed {
		return fmt.Errorf("unknown status %q: %w", p.Status, common.ErrorValidation)
	}
	if p.Page < 0 {
		return fmt.Errorf("page must not be negative: %w", common.ErrorValidation)
	}
	if p.Limit < 0 {
		return fmt.Errorf("limit must be positive: %w", common.ErrorValidation)
	}
	if p.From != nil && p.To != nil && p.From.After(*p.To) {
		return fmt.Errorf("from is after to: %w", common.ErrorValidation)
	}
	return nil
}
