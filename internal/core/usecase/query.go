package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/image-insight/internal/core/domain"
	"github.com/kirillkom/image-insight/internal/core/ports"
)

// DefaultListLimit applies when a caller does not specify a page size at all.
// An explicit non-positive limit clamps to 1 instead.
const (
	DefaultListLimit = 20
	maxListLimit     = 100
)

// QueryResultsUseCase serves point lookups and filtered listings over
// persisted analysis records.
type QueryResultsUseCase struct {
	repo ports.ResultRepository
}

func NewQueryResultsUseCase(repo ports.ResultRepository) *QueryResultsUseCase {
	return &QueryResultsUseCase{repo: repo}
}

// GetByID returns the current (greatest revision) record for an image id.
func (uc *QueryResultsUseCase) GetByID(ctx context.Context, imageID string) (*domain.AnalysisRecord, error) {
	record, err := uc.repo.GetByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("get analysis record: %w", err)
	}
	return record, nil
}

// List returns one page of records. With a user id the listing is ordered by
// revision descending; without one it is a best-effort scan.
func (uc *QueryResultsUseCase) List(ctx context.Context, filter domain.ListFilter) (*domain.RecordPage, error) {
	filter.Limit = clampLimit(filter.Limit)

	page, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list analysis records: %w", err)
	}
	return page, nil
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
