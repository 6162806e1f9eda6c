// Package repo defines persistence interfaces for run history.
package repo

import (
	"context"
	"errors"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

var ErrNotFound = errors.New("not found")

// RunReportRepository stores finalized run reports durably, keyed by run
// id. Reports are immutable; Insert refuses to overwrite.
type RunReportRepository interface {
	Insert(ctx context.Context, report domain.RunReport) error
	GetByRunID(ctx context.Context, runID string) (domain.RunReport, error)
	ListRecent(ctx context.Context, limit int) ([]domain.RunReport, error)
}
