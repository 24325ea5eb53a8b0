// Package store is the deal persistence layer. The ingestion pipeline talks
// to it only through the Store interface; Postgres is the primary backend,
// SQLite the embedded one for development and tests.
package store

import (
	"context"
	"time"

	"github.com/sells-group/broker-crm/internal/model"
)

// DealFilter specifies criteria for querying the deal dashboard.
type DealFilter struct {
	Status      model.DealStatus `json:"status,omitempty"`
	LoanType    model.LoanType   `json:"loan_type,omitempty"`
	Source      string           `json:"source,omitempty"`
	Search      string           `json:"search,omitempty"`
	MinAmount   float64          `json:"min_amount,omitempty"`
	MaxAmount   float64          `json:"max_amount,omitempty"`
	CreatedFrom time.Time        `json:"created_from,omitempty"`
	CreatedTo   time.Time        `json:"created_to,omitempty"`
}

// DealPage is one page of query results plus the unpaginated total.
type DealPage struct {
	Deals []model.Deal `json:"deals"`
	Total int          `json:"total"`
}

// Store defines the persistence interface for the ingestion pipeline and the
// dashboard query surface.
type Store interface {
	// Ingestion
	InsertDeal(ctx context.Context, deal *model.ParsedDeal) (id string, inserted bool, err error)
	ExistsByExternalID(ctx context.Context, col model.ExternalIDColumn, value string) (bool, error)
	DeleteBySource(ctx context.Context, source string) (int64, error)

	// Dashboard
	QueryDeals(ctx context.Context, filter DealFilter, page, pageSize int) (*DealPage, error)
	CountBySource(ctx context.Context, source string) (int, error)

	// CRM workflow
	UpdateStatus(ctx context.Context, dealID string, status model.DealStatus) error
	UpdateNotes(ctx context.Context, dealID string, notes string) error

	// Sync settings
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
